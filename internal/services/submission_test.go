package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/docstore/memory"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitPrompt(t *testing.T) {
	f := newFixture(t, func(s *memory.Store) {
		seedUser(t, s, models.User{ID: "u1", Name: "Ann"})
	})
	ctx := context.Background()

	p, err := f.submission.SubmitPrompt(ctx, "u1", models.Prompt{Title: " Haiku ", Text: "write one", Upvotes: 99, Status: models.StatusApproved})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Haiku", p.Title)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.Equal(t, 0, p.Upvotes)
	assert.True(t, p.IsPublic)
	assert.Equal(t, "Ann", p.Author.Name)

	u := f.user(t, "u1")
	assert.Equal(t, 1, u.SubmissionCount)
	assert.Equal(t, "2023-06-10", u.LastSubmissionReset)
	assert.Equal(t, []string{p.ID}, u.SubmittedPrompts)
	assert.Equal(t, "pending", f.remote(t, "prompts/"+p.ID+"/status"))
}

func TestSubmitPrompt_DailyLimit(t *testing.T) {
	f := newFixture(t, func(s *memory.Store) {
		seedUser(t, s, models.User{ID: "u1", SubmissionCount: 2, LastSubmissionReset: "2023-06-10"})
		seedUser(t, s, models.User{ID: "u2", SubmissionCount: 2, LastSubmissionReset: "2023-06-09"})
	})
	ctx := context.Background()
	p := models.Prompt{Title: "t", Text: "x"}

	_, err := f.submission.SubmitPrompt(ctx, "u1", p)
	assert.True(t, errors.Is(err, common.ErrorQuotaExceeded))
	assert.Equal(t, 0, f.repos.Prompts.Len())

	_, err = f.submission.SubmitPrompt(ctx, "u2", p)
	require.NoError(t, err)
	assert.Equal(t, 1, f.user(t, "u2").SubmissionCount)
}

func TestSubmitPrompt_Rejected(t *testing.T) {
	f := newFixture(t, func(s *memory.Store) {
		seedUser(t, s, models.User{ID: "u1"})
		seedUser(t, s, models.User{ID: "banned", Status: models.UserBanned})
	})
	ctx := context.Background()

	_, err := f.submission.SubmitPrompt(ctx, "banned", models.Prompt{Title: "t", Text: "x"})
	assert.True(t, errors.Is(err, common.ErrorBanned))

	_, err = f.submission.SubmitPrompt(ctx, "u1", models.Prompt{Title: "  ", Text: "x"})
	assert.True(t, errors.Is(err, common.ErrorInvalidArgument))
	assert.Equal(t, 0, f.user(t, "u1").SubmissionCount)
}

func TestCreateCollection(t *testing.T) {
	f := newFixture(t, func(s *memory.Store) {
		seedUser(t, s, models.User{ID: "u1", Name: "Ann"})
		require.NoError(t, s.Seed("prompts/p1", models.Prompt{ID: "p1", Title: "a", Text: "b"}))
	})
	ctx := context.Background()

	_, err := f.submission.CreateCollection(ctx, "u1", models.Collection{Name: "set", PromptIDs: []string{"missing"}})
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	c, err := f.submission.CreateCollection(ctx, "u1", models.Collection{Name: "set", PriceCents: 500, PromptIDs: []string{"p1"}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, c.Status)
	assert.Equal(t, 1, c.PromptCount)
	assert.Equal(t, "Ann", c.Creator.Name)
	assert.Equal(t, []string{c.ID}, f.user(t, "u1").CreatedCollections)
	assert.True(t, f.user(t, "u1").Owns(c.ID))
}

func TestSendFeedback(t *testing.T) {
	f := newFixture(t, func(s *memory.Store) {
		seedUser(t, s, models.User{ID: "u1"})
	})
	ctx := context.Background()

	_, err := f.submission.SendFeedback(ctx, "u1", "rant", "hello")
	assert.True(t, errors.Is(err, common.ErrorInvalidArgument))

	fb, err := f.submission.SendFeedback(ctx, "u1", "bug", " broken button ")
	require.NoError(t, err)
	assert.Equal(t, "broken button", fb.Message)
	assert.Equal(t, models.FeedbackPending, fb.Status)
	assert.Len(t, f.repos.Feedback.Pending(), 1)
}
