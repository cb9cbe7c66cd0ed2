package cache

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Observer is called after every local change. old is nil for inserts and
// new is nil for removals.
type Observer[T any] func(old, new *T)

// Options configure a Repository.
type Options[T any] struct {
	// Entity names the collection in logs and metrics.
	Entity string
	// Root is the store path of the collection.
	Root    string
	Log     logging.Logger
	Metrics *metrics.Metrics
	// Compare orders items after Load. Nil keeps store key order.
	Compare func(a, b T) int
}

// Repository holds one collection in memory and mirrors changes to the store.
type Repository[T Entity[T]] struct {
	entity  string
	root    string
	mirror  *Mirror
	log     logging.Logger
	metrics *metrics.Metrics
	compare func(a, b T) int

	mu        sync.RWMutex
	items     []T
	loaded    bool
	observers []Observer[T]

	group singleflight.Group
}

func New[T Entity[T]](mirror *Mirror, opts Options[T]) *Repository[T] {
	log := opts.Log
	if log == nil {
		log = logging.NewNop()
	}
	return &Repository[T]{
		entity:  opts.Entity,
		root:    opts.Root,
		mirror:  mirror,
		log:     log.With("module", "repository", "entity", opts.Entity),
		metrics: opts.Metrics,
		compare: opts.Compare,
	}
}

func (r *Repository[T]) Entity() string { return r.entity }

// Path returns the store path of an item.
func (r *Repository[T]) Path(id string) string {
	return docstore.Join(r.root, id)
}

// OnChange registers an observer. Observers run synchronously, outside the
// repository lock, in registration order.
func (r *Repository[T]) OnChange(fn Observer[T]) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

func (r *Repository[T]) notify(old, new *T) {
	r.mu.RLock()
	obs := slices.Clone(r.observers)
	r.mu.RUnlock()
	for _, fn := range obs {
		fn(old, new)
	}
}

// Load replaces the local collection with the store contents. A failed fetch
// leaves the collection empty; the error is logged, not returned. Concurrent
// callers share one fetch.
func (r *Repository[T]) Load(ctx context.Context) {
	_, _, _ = r.group.Do("load", func() (any, error) {
		items := r.fetch(ctx)
		r.swap(items)
		return nil, nil
	})
}

func (r *Repository[T]) fetch(ctx context.Context) []T {
	raw, err := r.mirror.Store().Get(ctx, r.root)
	r.metrics.Load(r.entity, err)
	if err != nil {
		r.log.Warn(ctx, "load failed, starting empty", "error", err)
		return nil
	}

	children := docstore.Children(raw)
	items := make([]T, 0, len(children))
	for _, id := range slices.Sorted(maps.Keys(children)) {
		var v T
		if err := docstore.Decode(children[id], &v); err != nil {
			r.log.Warn(ctx, "skipping undecodable item", "id", id, "error", err)
			continue
		}
		items = append(items, v.WithKey(id))
	}
	if r.compare != nil {
		slices.SortStableFunc(items, r.compare)
	}
	r.log.Debug(ctx, "loaded", "count", len(items))
	return items
}

func (r *Repository[T]) swap(items []T) {
	r.mu.Lock()
	old := r.items
	r.items = items
	r.loaded = true
	r.mu.Unlock()

	for i := range old {
		r.notify(&old[i], nil)
	}
	for i := range items {
		v := items[i].Clone()
		r.notify(nil, &v)
	}
}

// Reset drops every local item without touching the store.
func (r *Repository[T]) Reset() {
	r.mu.Lock()
	old := r.items
	r.items = nil
	r.loaded = false
	r.mu.Unlock()
	for i := range old {
		r.notify(&old[i], nil)
	}
}

func (r *Repository[T]) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// All returns copies of every item in local order.
func (r *Repository[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.items))
	for i, v := range r.items {
		out[i] = v.Clone()
	}
	return out
}

func (r *Repository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *Repository[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.items[i].Clone(), true
	}
	var zero T
	return zero, false
}

// Find returns copies of the items matching pred.
func (r *Repository[T]) Find(pred func(T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []T
	for _, v := range r.items {
		if pred(v) {
			out = append(out, v.Clone())
		}
	}
	return out
}

func (r *Repository[T]) indexOf(id string) int {
	return slices.IndexFunc(r.items, func(v T) bool { return v.Key() == id })
}

// Add inserts item at the front and writes it to the store. An empty key is
// replaced by a generated id. A failed write removes the item again.
func (r *Repository[T]) Add(ctx context.Context, item T) T {
	if item.Key() == "" {
		item = item.WithKey(docstore.NewPushID())
	}
	id := item.Key()

	r.InsertLocal(item)

	stored := item.Clone()
	r.mirror.Go(ctx, r.entity, OpCreate, id, func(ctx context.Context, s docstore.Store) error {
		return s.Set(ctx, r.Path(id), stored)
	}, func() {
		r.RemoveLocal(id)
	})
	return item.Clone()
}

// InsertLocal puts item at the front without writing to the store. An item
// with the same key is replaced in place.
func (r *Repository[T]) InsertLocal(item T) {
	item = item.Clone()
	r.mu.Lock()
	var old *T
	if i := r.indexOf(item.Key()); i >= 0 {
		prev := r.items[i]
		old = &prev
		r.items[i] = item
	} else {
		r.items = slices.Insert(r.items, 0, item)
	}
	r.mu.Unlock()

	v := item.Clone()
	r.notify(old, &v)
}

// Update applies fn to the item and merges the result into the stored
// document. Members that became empty are removed from the document. A
// failed write is not reverted.
func (r *Repository[T]) Update(ctx context.Context, id string, fn func(T) (T, error)) (T, error) {
	return r.mutate(ctx, OpUpdate, id, fn, r.mergeWrite(id), nil)
}

// UpdateStatus is Update under the status operation.
func (r *Repository[T]) UpdateStatus(ctx context.Context, id string, fn func(T) (T, error)) (T, error) {
	return r.mutate(ctx, OpStatus, id, fn, r.mergeWrite(id), nil)
}

func (r *Repository[T]) mergeWrite(id string) func(before, next T) Write {
	return func(before, next T) Write {
		return func(ctx context.Context, s docstore.Store) error {
			fields, err := encodeFields(next)
			if err != nil {
				return err
			}
			prev, err := encodeFields(before)
			if err != nil {
				return err
			}
			for k := range prev {
				if _, ok := fields[k]; !ok {
					fields[k] = nil
				}
			}
			return s.Update(ctx, r.Path(id), fields)
		}
	}
}

func encodeFields(v any) (map[string]any, error) {
	raw, err := docstore.Encode(v)
	if err != nil {
		return nil, err
	}
	fields, _ := raw.(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// Revert rebuilds an item after its write failed. current is the item as it
// is now and before is the item as it was when the change was made.
type Revert[T any] func(current, before T) T

// Mutate applies fn to item id locally, then issues the write built from the
// new value under op. If fn fails nothing changes. When the write fails and
// the policy reverts op, the item is restored to its value before fn.
func (r *Repository[T]) Mutate(ctx context.Context, op Operation, id string, fn func(T) (T, error), write func(next T) Write) (T, error) {
	return r.MutateRevert(ctx, op, id, fn, write, nil)
}

// MutateRevert is Mutate with a custom rollback: revert rebuilds the item
// from its current value. A nil revert restores the whole item.
func (r *Repository[T]) MutateRevert(ctx context.Context, op Operation, id string, fn func(T) (T, error), write func(next T) Write, revert Revert[T]) (T, error) {
	return r.mutate(ctx, op, id, fn, func(_, next T) Write { return write(next) }, revert)
}

func (r *Repository[T]) mutate(ctx context.Context, op Operation, id string, fn func(T) (T, error), write func(before, next T) Write, revert Revert[T]) (T, error) {
	var zero T

	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return zero, fmt.Errorf("%s %s: %w", r.entity, id, common.ErrorNotFound)
	}
	before := r.items[i].Clone()
	next, err := fn(before.Clone())
	if err != nil {
		r.mu.Unlock()
		return zero, err
	}
	next = next.WithKey(id)
	r.items[i] = next.Clone()
	r.mu.Unlock()

	after := next.Clone()
	r.notify(&before, &after)

	r.mirror.Go(ctx, r.entity, op, id, write(before.Clone(), next.Clone()), func() {
		r.restore(before, revert)
	})
	return next, nil
}

// ApplyLocal changes item id in memory only.
func (r *Repository[T]) ApplyLocal(id string, fn func(T) T) (T, bool) {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		var zero T
		return zero, false
	}
	before := r.items[i].Clone()
	next := fn(before.Clone()).WithKey(id)
	r.items[i] = next.Clone()
	r.mu.Unlock()

	after := next.Clone()
	r.notify(&before, &after)
	return next, true
}

func (r *Repository[T]) restore(before T, revert Revert[T]) {
	id := before.Key()
	r.mu.Lock()
	i := r.indexOf(id)
	var (
		old  *T
		next T
	)
	switch {
	case i >= 0:
		prev := r.items[i]
		old = &prev
		next = before.Clone()
		if revert != nil {
			next = revert(prev.Clone(), before.Clone()).WithKey(id)
		}
		r.items[i] = next.Clone()
	case revert != nil:
		// removed in the meantime
		r.mu.Unlock()
		return
	default:
		next = before.Clone()
		r.items = slices.Insert(r.items, 0, next.Clone())
	}
	r.mu.Unlock()

	r.notify(old, &next)
}

// Remove deletes the item locally and from the store. A failed delete is not
// reverted.
func (r *Repository[T]) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%s %s: %w", r.entity, id, common.ErrorNotFound)
	}
	removed := r.items[i]
	r.mu.Unlock()

	r.RemoveLocal(id)

	r.mirror.Go(ctx, r.entity, OpDelete, id, func(ctx context.Context, s docstore.Store) error {
		return s.Remove(ctx, r.Path(id))
	}, func() {
		r.restore(removed, nil)
	})
	return nil
}

// RemoveLocal drops item id from memory only.
func (r *Repository[T]) RemoveLocal(id string) {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return
	}
	old := r.items[i]
	r.items = slices.Delete(r.items, i, i+1)
	r.mu.Unlock()

	r.notify(&old, nil)
}

// Wait blocks until every mirror write issued through the shared Mirror has
// finished.
func (r *Repository[T]) Wait() {
	r.mirror.Wait()
}
