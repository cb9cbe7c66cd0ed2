package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/models"
)

// VotingService covers votes, saved prompts and comments.
type VotingService struct {
	repos Repositories
}

func NewVotingService(repos Repositories) *VotingService {
	return &VotingService{repos: repos}
}

// Vote applies a click on dir. Clicking the stored direction again clears
// the vote.
func (s *VotingService) Vote(ctx context.Context, userID, promptID string, dir models.VoteDirection) (models.Prompt, error) {
	if dir != models.VoteUp && dir != models.VoteDown {
		return models.Prompt{}, fmt.Errorf("vote %q: %w", dir, common.ErrorInvalidArgument)
	}
	u, err := s.repos.active(userID)
	if err != nil {
		return models.Prompt{}, err
	}

	prev := u.Vote(promptID)
	p, err := s.repos.Prompts.Vote(ctx, promptID, dir, prev)
	if err != nil {
		return models.Prompt{}, err
	}
	if _, err := s.repos.Users.SetVote(ctx, userID, promptID, models.NextVote(prev, dir)); err != nil {
		return models.Prompt{}, err
	}
	return p, nil
}

func (s *VotingService) ToggleSaved(ctx context.Context, userID, promptID string) (bool, error) {
	if _, err := s.repos.prompt(promptID); err != nil {
		return false, err
	}
	u, err := s.repos.Users.ToggleSaved(ctx, userID, promptID)
	if err != nil {
		return false, err
	}
	return slices.Contains(u.SavedPrompts, promptID), nil
}

// Comment adds a comment authored by the user.
func (s *VotingService) Comment(ctx context.Context, userID, promptID, text string) (models.Comment, error) {
	u, err := s.repos.active(userID)
	if err != nil {
		return models.Comment{}, err
	}
	c := models.Comment{Author: u.Snapshot(), Text: strings.TrimSpace(text)}
	if err := validate.Struct(c); err != nil {
		return models.Comment{}, invalid(err)
	}
	return s.repos.Prompts.AddComment(ctx, promptID, c)
}

// DeleteComment removes a comment. Only its author or an admin may do so.
func (s *VotingService) DeleteComment(ctx context.Context, userID, promptID, commentID string) error {
	u, err := s.repos.active(userID)
	if err != nil {
		return err
	}
	p, err := s.repos.prompt(promptID)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(p.Comments, func(c models.Comment) bool { return c.ID == commentID })
	if i < 0 {
		return fmt.Errorf("comment %s: %w", commentID, common.ErrorNotFound)
	}
	if p.Comments[i].Author.ID != u.ID && !u.IsAdmin() {
		return fmt.Errorf("comment %s: %w", commentID, common.ErrorForbidden)
	}
	return s.repos.Prompts.RemoveComment(ctx, promptID, commentID)
}
