package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/quota"
)

// SubmissionService accepts community prompts, collections and feedback.
type SubmissionService struct {
	repos   Repositories
	quota   *quota.Tracker
	log     logging.Logger
	metrics *metrics.Metrics
}

func NewSubmissionService(repos Repositories, q *quota.Tracker, log logging.Logger, m *metrics.Metrics) *SubmissionService {
	return &SubmissionService{repos: repos, quota: q, log: log.With("module", "submission-service"), metrics: m}
}

// SubmitPrompt adds p as a pending public prompt authored by the user.
func (s *SubmissionService) SubmitPrompt(ctx context.Context, userID string, p models.Prompt) (models.Prompt, error) {
	u, err := s.repos.active(userID)
	if err != nil {
		return models.Prompt{}, err
	}
	if !s.quota.CanSubmit(u) {
		s.metrics.QuotaDenied("submission")
		return models.Prompt{}, fmt.Errorf("submit: %w", common.ErrorQuotaExceeded)
	}

	p.ID = ""
	p.Title = strings.TrimSpace(p.Title)
	p.Author = u.Snapshot()
	p.Upvotes, p.Downvotes = 0, 0
	p.Comments = nil
	p.Status = models.StatusPending
	p.IsPublic = true
	if err := validate.Struct(p); err != nil {
		return models.Prompt{}, invalid(err)
	}

	added := s.repos.Prompts.Add(ctx, p)
	if _, err := s.repos.Users.RecordSubmission(ctx, userID); err != nil {
		return models.Prompt{}, fmt.Errorf("record submission: %w", err)
	}
	if _, err := s.repos.Users.AddSubmitted(ctx, userID, added.ID); err != nil {
		return models.Prompt{}, fmt.Errorf("record submission: %w", err)
	}
	return added, nil
}

// CreateCollection adds a pending collection created by the user. Member
// prompts must exist.
func (s *SubmissionService) CreateCollection(ctx context.Context, userID string, c models.Collection) (models.Collection, error) {
	u, err := s.repos.active(userID)
	if err != nil {
		return models.Collection{}, err
	}
	for _, id := range c.PromptIDs {
		if _, err := s.repos.prompt(id); err != nil {
			return models.Collection{}, err
		}
	}

	c.ID = ""
	c.Creator = u.Snapshot()
	c.Status = models.StatusPending
	if err := validate.Struct(c); err != nil {
		return models.Collection{}, invalid(err)
	}

	added := s.repos.Collections.Add(ctx, c)
	if _, err := s.repos.Users.AddCreated(ctx, userID, added.ID); err != nil {
		return models.Collection{}, fmt.Errorf("record collection: %w", err)
	}
	return added, nil
}

// SendFeedback files a report from the user.
func (s *SubmissionService) SendFeedback(ctx context.Context, userID, kind, message string) (models.FeedbackItem, error) {
	u, err := s.repos.user(userID)
	if err != nil {
		return models.FeedbackItem{}, err
	}
	f := models.FeedbackItem{User: u.Snapshot(), Type: kind, Message: strings.TrimSpace(message)}
	if err := validate.Struct(f); err != nil {
		return models.FeedbackItem{}, invalid(err)
	}
	return s.repos.Feedback.Add(ctx, f), nil
}
