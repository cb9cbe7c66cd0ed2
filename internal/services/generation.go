package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/generation"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/quota"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/history"
)

// GenerationService runs quota-limited prompt generation.
type GenerationService struct {
	repos     Repositories
	quota     *quota.Tracker
	generator generation.Generator
	log       logging.Logger
	metrics   *metrics.Metrics
}

func NewGenerationService(repos Repositories, q *quota.Tracker, g generation.Generator, log logging.Logger, m *metrics.Metrics) *GenerationService {
	return &GenerationService{repos: repos, quota: q, generator: g, log: log.With("module", "generation-service"), metrics: m}
}

// Left returns the generations the user may still run this period.
func (s *GenerationService) Left(userID string) (int, error) {
	u, err := s.repos.user(userID)
	if err != nil {
		return 0, err
	}
	return s.quota.GenerationsLeft(u), nil
}

// Generate checks the quota, calls the generator and counts the generation.
// hist may be nil; a failed history append is logged and does not fail the
// call.
func (s *GenerationService) Generate(ctx context.Context, userID string, hist *history.Repository, req generation.Request) (generation.Result, error) {
	u, err := s.repos.active(userID)
	if err != nil {
		return generation.Result{}, err
	}
	if !s.quota.CanGenerate(u) {
		s.metrics.QuotaDenied("generation")
		return generation.Result{}, fmt.Errorf("generate: %w", common.ErrorQuotaExceeded)
	}

	res, err := s.generator.GeneratePrompt(ctx, req)
	if err != nil {
		return generation.Result{}, fmt.Errorf("generate: %w", err)
	}

	if _, err := s.repos.Users.RecordGeneration(ctx, userID); err != nil {
		return generation.Result{}, fmt.Errorf("record generation: %w", err)
	}

	if hist != nil {
		if _, err := hist.Append(ctx, models.HistoryItem{Title: res.Title, Prompt: res.Prompt, Tags: res.Tags}); err != nil {
			s.log.Warn(ctx, "history append failed", "user", userID, "error", err)
		}
	}
	return res, nil
}

// Example produces a sample answer for a prompt body. It does not count
// against the quota.
func (s *GenerationService) Example(ctx context.Context, userID, body string) (string, error) {
	if _, err := s.repos.active(userID); err != nil {
		return "", err
	}
	out, err := s.generator.GenerateExample(ctx, body)
	if err != nil {
		return "", fmt.Errorf("example: %w", err)
	}
	return out, nil
}
