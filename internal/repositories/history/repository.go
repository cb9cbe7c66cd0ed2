// Package history holds one user's generation log under history/{userID}.
// It is opened after sign-in and closed on sign-out.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/cache"
)

const Root = "history"

var ErrClosed = errors.New("history closed")

type Repository struct {
	userID string
	store  docstore.Store
	items  *cache.Repository[models.HistoryItem]
	log    logging.Logger
	now    func() time.Time

	mu     sync.Mutex
	closed bool
}

// Open loads the user's history. A failed load starts empty.
func Open(ctx context.Context, mirror *cache.Mirror, userID string, log logging.Logger, m *metrics.Metrics) *Repository {
	r := &Repository{
		userID: userID,
		store:  mirror.Store(),
		items: cache.New[models.HistoryItem](mirror, cache.Options[models.HistoryItem]{
			Entity:  "history",
			Root:    docstore.Join(Root, userID),
			Log:     log,
			Metrics: m,
			Compare: func(a, b models.HistoryItem) int { return b.CreatedAt.Compare(a.CreatedAt) },
		}),
		log: log.With("module", "history", "user", userID),
		now: time.Now,
	}
	r.items.Load(ctx)
	return r
}

func (r *Repository) UserID() string { return r.userID }

// Append pushes item to the store and, once the push succeeds, inserts it
// locally at the head. Unlike the global collections this write is awaited.
func (r *Repository) Append(ctx context.Context, item models.HistoryItem) (models.HistoryItem, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return models.HistoryItem{}, ErrClosed
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = r.now()
	}
	item.ID = ""
	id, err := r.store.Push(ctx, docstore.Join(Root, r.userID), item)
	if err != nil {
		return models.HistoryItem{}, fmt.Errorf("history append: %w", err)
	}
	item.ID = id
	r.items.InsertLocal(item)
	return item, nil
}

// Items returns the log, newest first.
func (r *Repository) Items() []models.HistoryItem {
	return r.items.All()
}

func (r *Repository) Len() int {
	return r.items.Len()
}

// Clear deletes the whole log locally and remotely. The remote delete is
// awaited.
func (r *Repository) Clear(ctx context.Context) error {
	r.items.Reset()
	if err := r.store.Remove(ctx, docstore.Join(Root, r.userID)); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close drops the local copy. Further appends fail with ErrClosed.
func (r *Repository) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.items.Reset()
}
