// Package propagation rewrites every embedded copy of a user after the
// canonical user record changes.
package propagation

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/cache"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/collections"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/feedback"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/prompts"
)

// Result lists the store paths of one propagation.
type Result struct {
	Paths  []string
	Values map[string]any
}

type Propagator struct {
	index       *Index
	prompts     *prompts.Repository
	collections *collections.Repository
	feedback    *feedback.Repository
	mirror      *cache.Mirror
	log         logging.Logger
	metrics     *metrics.Metrics
}

// New subscribes to the three embedding repositories. Build it before the
// repositories are loaded so the index sees every item.
func New(mirror *cache.Mirror, p *prompts.Repository, c *collections.Repository, f *feedback.Repository, log logging.Logger, m *metrics.Metrics) *Propagator {
	x := NewIndex()

	p.OnChange(func(old, new *models.Prompt) {
		track(x, KindPrompt, old, new, prompts.EmbeddedUsers)
	})
	c.OnChange(func(old, new *models.Collection) {
		track(x, KindCollection, old, new, func(c models.Collection) []string { return nonEmpty(c.Creator.ID) })
	})
	f.OnChange(func(old, new *models.FeedbackItem) {
		track(x, KindFeedback, old, new, func(f models.FeedbackItem) []string { return nonEmpty(f.User.ID) })
	})

	return &Propagator{
		index:       x,
		prompts:     p,
		collections: c,
		feedback:    f,
		mirror:      mirror,
		log:         log.With("module", "propagation"),
		metrics:     m,
	}
}

type keyed interface{ Key() string }

func track[T keyed](x *Index, kind Kind, old, new *T, users func(T) []string) {
	var before, after []string
	var id string
	if old != nil {
		before = users(*old)
		id = (*old).Key()
	}
	if new != nil {
		after = users(*new)
		id = (*new).Key()
	}
	x.Track(Ref{Kind: kind, ID: id}, before, after)
}

func nonEmpty(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

func (p *Propagator) Index() *Index { return p.index }

// Propagate replaces every embedded snapshot of snap.ID with snap. Local
// copies change before it returns; the store receives one atomic multi-path
// update in the background. A failed update is logged and not reverted.
// When no entity embeds the user the store is not called.
func (p *Propagator) Propagate(ctx context.Context, snap models.UserSnapshot) (Result, error) {
	if snap.ID == "" {
		return Result{}, fmt.Errorf("propagate: empty user id: %w", common.ErrorInvalidArgument)
	}

	values := make(map[string]any)
	for _, ref := range p.index.Refs(snap.ID) {
		switch ref.Kind {
		case KindPrompt:
			p.prompts.ApplyLocal(ref.ID, func(pr models.Prompt) models.Prompt {
				base := p.prompts.Path(ref.ID)
				if pr.Author.ID == snap.ID {
					pr.Author = snap
					values[docstore.Join(base, "author")] = snap
				}
				for i := range pr.Comments {
					if pr.Comments[i].Author.ID == snap.ID {
						pr.Comments[i].Author = snap
						values[docstore.Join(base, "comments", docstore.Index(i), "author")] = snap
					}
				}
				return pr
			})
		case KindCollection:
			p.collections.ApplyLocal(ref.ID, func(c models.Collection) models.Collection {
				if c.Creator.ID == snap.ID {
					c.Creator = snap
					values[docstore.Join(p.collections.Path(ref.ID), "creator")] = snap
				}
				return c
			})
		case KindFeedback:
			p.feedback.ApplyLocal(ref.ID, func(f models.FeedbackItem) models.FeedbackItem {
				if f.User.ID == snap.ID {
					f.User = snap
					values[docstore.Join(p.feedback.Path(ref.ID), "user")] = snap
				}
				return f
			})
		}
	}

	p.metrics.Propagation(len(values))
	if len(values) == 0 {
		return Result{}, nil
	}

	batch := maps.Clone(values)
	p.mirror.Go(ctx, "users", cache.OpPropagate, snap.ID, func(ctx context.Context, s docstore.Store) error {
		return s.MultiPathUpdate(ctx, batch)
	}, nil)

	p.log.Debug(ctx, "propagated user", "user", snap.ID, "paths", len(values))
	return Result{Paths: slices.Sorted(maps.Keys(values)), Values: values}, nil
}
