// Package prompts holds the community and collection prompts, their vote
// counters and their embedded comment lists.
package prompts

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

const Root = "prompts"

type Repository struct {
	*cache.Repository[models.Prompt]
	now func() time.Time
}

func New(mirror *cache.Mirror, log logging.Logger, m *metrics.Metrics) *Repository {
	return &Repository{
		Repository: cache.New[models.Prompt](mirror, cache.Options[models.Prompt]{
			Entity:  "prompts",
			Root:    Root,
			Log:     log,
			Metrics: m,
			Compare: newestFirst,
		}),
		now: time.Now,
	}
}

func newestFirst(a, b models.Prompt) int {
	return b.CreatedAt.Compare(a.CreatedAt)
}

// Add stores a new prompt. Zero CreatedAt is set to now.
func (r *Repository) Add(ctx context.Context, p models.Prompt) models.Prompt {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	return r.Repository.Add(ctx, p)
}

// Vote applies the counter change for a click on next while prev was the
// user's stored vote. Counters never go below zero. A failed write takes the
// applied change back off the counters.
func (r *Repository) Vote(ctx context.Context, id string, next, prev models.VoteDirection) (models.Prompt, error) {
	up, down, err := models.VoteDelta(prev, next)
	if err != nil {
		return models.Prompt{}, fmt.Errorf("%w: %v", common.ErrorInvalidArgument, err)
	}

	var appliedUp, appliedDown int
	return r.MutateRevert(ctx, cache.OpVote, id, func(p models.Prompt) (models.Prompt, error) {
		u, d := max(0, p.Upvotes+up), max(0, p.Downvotes+down)
		appliedUp, appliedDown = u-p.Upvotes, d-p.Downvotes
		p.Upvotes, p.Downvotes = u, d
		return p, nil
	}, func(p models.Prompt) cache.Write {
		return func(ctx context.Context, s docstore.Store) error {
			return s.Update(ctx, r.Path(id), map[string]any{
				"upvotes":   p.Upvotes,
				"downvotes": p.Downvotes,
			})
		}
	}, func(cur, _ models.Prompt) models.Prompt {
		cur.Upvotes = max(0, cur.Upvotes-appliedUp)
		cur.Downvotes = max(0, cur.Downvotes-appliedDown)
		return cur
	})
}

// AddComment puts c at the head of the prompt's comment list. A failed write
// takes c out again.
func (r *Repository) AddComment(ctx context.Context, promptID string, c models.Comment) (models.Comment, error) {
	if c.ID == "" {
		c.ID = docstore.NewPushID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	_, err := r.MutateRevert(ctx, cache.OpComment, promptID, func(p models.Prompt) (models.Prompt, error) {
		p.Comments = slices.Insert(p.Comments, 0, c)
		return p, nil
	}, r.writeComments(promptID), func(cur, _ models.Prompt) models.Prompt {
		cur.Comments = slices.DeleteFunc(cur.Comments, func(x models.Comment) bool { return x.ID == c.ID })
		return cur
	})
	if err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

// RemoveComment deletes one comment. A failed write puts it back at its old
// position.
func (r *Repository) RemoveComment(ctx context.Context, promptID, commentID string) error {
	var (
		removed models.Comment
		pos     int
	)
	_, err := r.MutateRevert(ctx, cache.OpComment, promptID, func(p models.Prompt) (models.Prompt, error) {
		i := slices.IndexFunc(p.Comments, func(c models.Comment) bool { return c.ID == commentID })
		if i < 0 {
			return p, fmt.Errorf("comment %s: %w", commentID, common.ErrorNotFound)
		}
		removed, pos = p.Comments[i], i
		p.Comments = slices.Delete(p.Comments, i, i+1)
		return p, nil
	}, r.writeComments(promptID), func(cur, _ models.Prompt) models.Prompt {
		if slices.ContainsFunc(cur.Comments, func(c models.Comment) bool { return c.ID == commentID }) {
			return cur
		}
		cur.Comments = slices.Insert(cur.Comments, min(pos, len(cur.Comments)), removed)
		return cur
	})
	return err
}

// the whole list is rewritten because positions shift
func (r *Repository) writeComments(id string) func(models.Prompt) cache.Write {
	return func(p models.Prompt) cache.Write {
		return func(ctx context.Context, s docstore.Store) error {
			var v any
			if len(p.Comments) > 0 {
				v = p.Comments
			}
			return s.Set(ctx, docstore.Join(r.Path(id), "comments"), v)
		}
	}
}

// SetStatus changes the moderation status. A failed write is not reverted.
func (r *Repository) SetStatus(ctx context.Context, id string, status models.ModerationStatus) (models.Prompt, error) {
	if !status.Valid() {
		return models.Prompt{}, fmt.Errorf("status %q: %w", status, common.ErrorInvalidArgument)
	}
	return r.Mutate(ctx, cache.OpStatus, id, func(p models.Prompt) (models.Prompt, error) {
		p.Status = status
		return p, nil
	}, func(p models.Prompt) cache.Write {
		return func(ctx context.Context, s docstore.Store) error {
			return s.Update(ctx, r.Path(id), map[string]any{"status": p.Status})
		}
	})
}

// Public returns the approved public prompts, newest first.
func (r *Repository) Public() []models.Prompt {
	return r.Find(models.Prompt.Visible)
}

func (r *Repository) ByAuthor(userID string) []models.Prompt {
	return r.Find(func(p models.Prompt) bool { return p.Author.ID == userID })
}

func (r *Repository) ByStatus(status models.ModerationStatus) []models.Prompt {
	return r.Find(func(p models.Prompt) bool { return p.Status == status })
}

// EmbeddedUsers lists the users with a snapshot inside p.
func EmbeddedUsers(p models.Prompt) []string {
	var out []string
	if p.Author.ID != "" {
		out = append(out, p.Author.ID)
	}
	for _, c := range p.Comments {
		if c.Author.ID != "" && !slices.Contains(out, c.Author.ID) {
			out = append(out, c.Author.ID)
		}
	}
	return out
}
