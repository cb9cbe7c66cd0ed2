// Package feedback holds user bug reports and feature requests.
package feedback

import (
	"context"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/cache"
)

const Root = "feedback"

type Repository struct {
	*cache.Repository[models.FeedbackItem]
	now func() time.Time
}

func New(mirror *cache.Mirror, log logging.Logger, m *metrics.Metrics) *Repository {
	return &Repository{
		Repository: cache.New[models.FeedbackItem](mirror, cache.Options[models.FeedbackItem]{
			Entity:  "feedback",
			Root:    Root,
			Log:     log,
			Metrics: m,
			Compare: func(a, b models.FeedbackItem) int { return b.CreatedAt.Compare(a.CreatedAt) },
		}),
		now: time.Now,
	}
}

func (r *Repository) Add(ctx context.Context, f models.FeedbackItem) models.FeedbackItem {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = r.now()
	}
	f.Status = models.FeedbackPending
	return r.Repository.Add(ctx, f)
}

func (r *Repository) MarkReviewed(ctx context.Context, id string) (models.FeedbackItem, error) {
	return r.Mutate(ctx, cache.OpStatus, id, func(f models.FeedbackItem) (models.FeedbackItem, error) {
		f.Status = models.FeedbackReviewed
		return f, nil
	}, func(f models.FeedbackItem) cache.Write {
		return func(ctx context.Context, s docstore.Store) error {
			return s.Update(ctx, r.Path(id), map[string]any{"status": f.Status})
		}
	})
}

func (r *Repository) Pending() []models.FeedbackItem {
	return r.Find(func(f models.FeedbackItem) bool { return f.Status == models.FeedbackPending })
}
