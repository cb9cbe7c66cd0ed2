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

func seedModeration(t *testing.T) *fixture {
	return newFixture(t, func(s *memory.Store) {
		seedUser(t, s, models.User{ID: "admin", Role: models.RoleAdmin})
		seedUser(t, s, models.User{ID: "u1", Name: "Ann"})
		ann := models.UserSnapshot{ID: "u1", Name: "Ann", Status: models.UserActive}
		require.NoError(t, s.Seed("prompts/p1", models.Prompt{ID: "p1", Title: "a", Text: "b", Author: ann, Status: models.StatusPending, IsPublic: true}))
		require.NoError(t, s.Seed("collections/c1", models.Collection{ID: "c1", Name: "set", Creator: ann, Status: models.StatusPending}))
		require.NoError(t, s.Seed("feedback/f1", models.FeedbackItem{ID: "f1", Type: "bug", Message: "m", User: ann, Status: models.FeedbackPending}))
	})
}

func TestModeration_RequiresAdmin(t *testing.T) {
	f := seedModeration(t)
	ctx := context.Background()

	_, err := f.moderation.ReviewPrompt(ctx, "u1", "p1", models.StatusApproved)
	assert.True(t, errors.Is(err, common.ErrorForbidden))
	_, err = f.moderation.CreatePromoCode(ctx, "u1", "X", 10, 1)
	assert.True(t, errors.Is(err, common.ErrorForbidden))
	err = f.moderation.DeletePrompt(ctx, "nobody", "p1")
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	p, _ := f.repos.Prompts.Get("p1")
	assert.Equal(t, models.StatusPending, p.Status)
}

func TestModeration_Review(t *testing.T) {
	f := seedModeration(t)
	ctx := context.Background()

	p, err := f.moderation.ReviewPrompt(ctx, "admin", "p1", models.StatusApproved)
	require.NoError(t, err)
	assert.True(t, p.Visible())

	c, err := f.moderation.ReviewCollection(ctx, "admin", "c1", models.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, c.Status)

	fb, err := f.moderation.ReviewFeedback(ctx, "admin", "f1")
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackReviewed, fb.Status)

	assert.Equal(t, "approved", f.remote(t, "prompts/p1/status"))
	assert.Equal(t, "rejected", f.remote(t, "collections/c1/status"))

	require.NoError(t, f.moderation.DeletePrompt(ctx, "admin", "p1"))
	assert.Nil(t, f.remote(t, "prompts/p1"))
}

func TestModeration_BanPropagates(t *testing.T) {
	f := seedModeration(t)
	ctx := context.Background()

	_, err := f.moderation.SetUserStatus(ctx, "admin", "admin", models.UserBanned)
	assert.True(t, errors.Is(err, common.ErrorInvalidArgument))

	u, err := f.moderation.SetUserStatus(ctx, "admin", "u1", models.UserBanned)
	require.NoError(t, err)
	assert.True(t, u.IsBanned())

	p, _ := f.repos.Prompts.Get("p1")
	assert.Equal(t, models.UserBanned, p.Author.Status)
	c, _ := f.repos.Collections.Get("c1")
	assert.Equal(t, models.UserBanned, c.Creator.Status)
	assert.Equal(t, "banned", f.remote(t, "feedback/f1/user/status"))

	_, err = f.voting.Vote(ctx, "u1", "p1", models.VoteUp)
	assert.True(t, errors.Is(err, common.ErrorBanned))
}

func TestModeration_PromoCodes(t *testing.T) {
	f := seedModeration(t)
	ctx := context.Background()

	pc, err := f.moderation.CreatePromoCode(ctx, "admin", "spring10", 10, 3)
	require.NoError(t, err)
	assert.Equal(t, "SPRING10", pc.ID)

	_, err = f.moderation.CreatePromoCode(ctx, "admin", "SPRING10", 10, 3)
	assert.True(t, errors.Is(err, common.ErrorAlreadyExists))

	require.NoError(t, f.moderation.DeletePromoCode(ctx, "admin", "spring10"))
	_, ok := f.repos.PromoCodes.Lookup("SPRING10")
	assert.False(t, ok)
}
