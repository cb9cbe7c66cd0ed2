// Package collections holds the curated, purchasable prompt collections.
package collections

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/cache"
)

const Root = "collections"

type Repository struct {
	*cache.Repository[models.Collection]
	now func() time.Time
}

func New(mirror *cache.Mirror, log logging.Logger, m *metrics.Metrics) *Repository {
	return &Repository{
		Repository: cache.New[models.Collection](mirror, cache.Options[models.Collection]{
			Entity:  "collections",
			Root:    Root,
			Log:     log,
			Metrics: m,
			Compare: func(a, b models.Collection) int { return b.CreatedAt.Compare(a.CreatedAt) },
		}),
		now: time.Now,
	}
}

func (r *Repository) Add(ctx context.Context, c models.Collection) models.Collection {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	c.PromptIDs = slices.Clone(c.PromptIDs)
	c.PromptCount = len(c.PromptIDs)
	return r.Repository.Add(ctx, c)
}

func (r *Repository) SetStatus(ctx context.Context, id string, status models.ModerationStatus) (models.Collection, error) {
	if !status.Valid() {
		return models.Collection{}, fmt.Errorf("status %q: %w", status, common.ErrorInvalidArgument)
	}
	return r.Mutate(ctx, cache.OpStatus, id, func(c models.Collection) (models.Collection, error) {
		c.Status = status
		return c, nil
	}, func(c models.Collection) cache.Write {
		return func(ctx context.Context, s docstore.Store) error {
			return s.Update(ctx, r.Path(id), map[string]any{"status": c.Status})
		}
	})
}

// AddPrompt appends promptID to the ordered member list. Adding a member
// twice is a no-op.
func (r *Repository) AddPrompt(ctx context.Context, id, promptID string) (models.Collection, error) {
	return r.members(ctx, id, func(ids []string) []string {
		if slices.Contains(ids, promptID) {
			return ids
		}
		return append(ids, promptID)
	})
}

func (r *Repository) RemovePrompt(ctx context.Context, id, promptID string) (models.Collection, error) {
	return r.members(ctx, id, func(ids []string) []string {
		return slices.DeleteFunc(ids, func(p string) bool { return p == promptID })
	})
}

func (r *Repository) members(ctx context.Context, id string, fn func([]string) []string) (models.Collection, error) {
	return r.Mutate(ctx, cache.OpUpdate, id, func(c models.Collection) (models.Collection, error) {
		c.PromptIDs = fn(c.PromptIDs)
		c.PromptCount = len(c.PromptIDs)
		return c, nil
	}, func(c models.Collection) cache.Write {
		return func(ctx context.Context, s docstore.Store) error {
			var ids any
			if len(c.PromptIDs) > 0 {
				ids = c.PromptIDs
			}
			return s.Update(ctx, r.Path(id), map[string]any{
				"promptIds":   ids,
				"promptCount": c.PromptCount,
			})
		}
	})
}

// Approved returns the collections listed in the store front.
func (r *Repository) Approved() []models.Collection {
	return r.Find(func(c models.Collection) bool { return c.Status == models.StatusApproved })
}

func (r *Repository) ByCreator(userID string) []models.Collection {
	return r.Find(func(c models.Collection) bool { return c.Creator.ID == userID })
}

// Containing returns the collections that list promptID.
func (r *Repository) Containing(promptID string) []models.Collection {
	return r.Find(func(c models.Collection) bool { return slices.Contains(c.PromptIDs, promptID) })
}
