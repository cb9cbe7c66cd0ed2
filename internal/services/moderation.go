package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/models"
)

// ModerationService holds the admin-only commands. Every method takes the
// acting user's id first.
type ModerationService struct {
	repos Repositories
	log   logging.Logger
}

func NewModerationService(repos Repositories, log logging.Logger) *ModerationService {
	return &ModerationService{repos: repos, log: log.With("module", "moderation")}
}

func (s *ModerationService) ReviewPrompt(ctx context.Context, adminID, promptID string, status models.ModerationStatus) (models.Prompt, error) {
	if _, err := s.repos.admin(adminID); err != nil {
		return models.Prompt{}, err
	}
	return s.repos.Prompts.SetStatus(ctx, promptID, status)
}

func (s *ModerationService) DeletePrompt(ctx context.Context, adminID, promptID string) error {
	if _, err := s.repos.admin(adminID); err != nil {
		return err
	}
	return s.repos.Prompts.Remove(ctx, promptID)
}

func (s *ModerationService) ReviewCollection(ctx context.Context, adminID, collectionID string, status models.ModerationStatus) (models.Collection, error) {
	if _, err := s.repos.admin(adminID); err != nil {
		return models.Collection{}, err
	}
	return s.repos.Collections.SetStatus(ctx, collectionID, status)
}

// SetUserStatus bans or reinstates a user. Admins cannot change their own
// status.
func (s *ModerationService) SetUserStatus(ctx context.Context, adminID, userID string, status models.UserStatus) (models.User, error) {
	if _, err := s.repos.admin(adminID); err != nil {
		return models.User{}, err
	}
	if adminID == userID {
		return models.User{}, fmt.Errorf("own status: %w", common.ErrorInvalidArgument)
	}
	u, err := s.repos.Users.SetStatus(ctx, userID, status)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info(ctx, "user status changed", "admin", adminID, "user", userID, "status", status)
	return u, nil
}

func (s *ModerationService) ReviewFeedback(ctx context.Context, adminID, feedbackID string) (models.FeedbackItem, error) {
	if _, err := s.repos.admin(adminID); err != nil {
		return models.FeedbackItem{}, err
	}
	return s.repos.Feedback.MarkReviewed(ctx, feedbackID)
}

func (s *ModerationService) CreatePromoCode(ctx context.Context, adminID, code string, discountPercentage, usageLimit int) (models.PromoCode, error) {
	if _, err := s.repos.admin(adminID); err != nil {
		return models.PromoCode{}, err
	}
	return s.repos.PromoCodes.Create(ctx, code, discountPercentage, usageLimit)
}

func (s *ModerationService) DeletePromoCode(ctx context.Context, adminID, code string) error {
	if _, err := s.repos.admin(adminID); err != nil {
		return err
	}
	return s.repos.PromoCodes.Delete(ctx, code)
}
