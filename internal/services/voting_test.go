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

func seedVoting(t *testing.T) *fixture {
	return newFixture(t, func(s *memory.Store) {
		seedUser(t, s, models.User{ID: "u1", Name: "Ann"})
		seedUser(t, s, models.User{ID: "u2", Name: "Bob"})
		seedUser(t, s, models.User{ID: "admin", Role: models.RoleAdmin})
		require.NoError(t, s.Seed("prompts/p1", models.Prompt{ID: "p1", Title: "a", Text: "b", Status: models.StatusApproved, IsPublic: true}))
	})
}

func TestVote_ToggleAndSwitch(t *testing.T) {
	f := seedVoting(t)
	ctx := context.Background()

	tests := []struct {
		click      models.VoteDirection
		up, down   int
		storedVote models.VoteDirection
	}{
		{models.VoteUp, 1, 0, models.VoteUp},
		{models.VoteUp, 0, 0, models.VoteNone},
		{models.VoteDown, 0, 1, models.VoteDown},
		{models.VoteUp, 1, 0, models.VoteUp},
		{models.VoteDown, 0, 1, models.VoteDown},
		{models.VoteDown, 0, 0, models.VoteNone},
	}
	for _, tt := range tests {
		p, err := f.voting.Vote(ctx, "u1", "p1", tt.click)
		require.NoError(t, err)
		assert.Equal(t, tt.up, p.Upvotes)
		assert.Equal(t, tt.down, p.Downvotes)
		assert.Equal(t, tt.storedVote, f.user(t, "u1").Vote("p1"))
	}
}

func TestVote_Invalid(t *testing.T) {
	f := seedVoting(t)
	ctx := context.Background()

	_, err := f.voting.Vote(ctx, "u1", "p1", models.VoteNone)
	assert.True(t, errors.Is(err, common.ErrorInvalidArgument))

	_, err = f.voting.Vote(ctx, "u1", "missing", models.VoteUp)
	assert.True(t, errors.Is(err, common.ErrorNotFound))
	assert.Equal(t, models.VoteNone, f.user(t, "u1").Vote("missing"))
}

func TestToggleSaved(t *testing.T) {
	f := seedVoting(t)
	ctx := context.Background()

	saved, err := f.voting.ToggleSaved(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = f.voting.ToggleSaved(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.False(t, saved)

	_, err = f.voting.ToggleSaved(ctx, "u1", "missing")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestComments(t *testing.T) {
	f := seedVoting(t)
	ctx := context.Background()

	_, err := f.voting.Comment(ctx, "u1", "p1", "   ")
	assert.True(t, errors.Is(err, common.ErrorInvalidArgument))

	c, err := f.voting.Comment(ctx, "u1", "p1", "nice")
	require.NoError(t, err)
	assert.Equal(t, "Ann", c.Author.Name)
	f.mirror.Wait()

	err = f.voting.DeleteComment(ctx, "u2", "p1", c.ID)
	assert.True(t, errors.Is(err, common.ErrorForbidden))

	err = f.voting.DeleteComment(ctx, "u2", "p1", "nope")
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	require.NoError(t, f.voting.DeleteComment(ctx, "admin", "p1", c.ID))
	p, _ := f.repos.Prompts.Get("p1")
	assert.Empty(t, p.Comments)
}
