// Package memory is an in-process docstore.Store. It backs the "memory"
// store driver and the repository tests, which use its failure injection
// and write log.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/docstore"
)

type Op string

const (
	OpGet       Op = "get"
	OpSet       Op = "set"
	OpUpdate    Op = "update"
	OpPush      Op = "push"
	OpRemove    Op = "remove"
	OpMulti     Op = "multi"
	OpSubscribe Op = "subscribe"
)

// Write records one applied mutation.
type Write struct {
	Op     Op
	Path   string
	Value  any
	Values map[string]any
}

type Store struct {
	mu     sync.Mutex
	tree   *docstore.Tree
	hub    *docstore.Hub
	writes []Write
	closed bool

	failNext []error
	failOn   map[Op]error
	delay    func(Write) time.Duration
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		tree:   docstore.NewTree(),
		hub:    docstore.NewHub(),
		failOn: map[Op]error{},
	}
}

// Seed stores value at path without recording a write or notifying.
func (s *Store) Seed(path string, value any) error {
	segs, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}
	v, err := docstore.Encode(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Set(segs, v)
}

// FailNext makes the next operation of any kind return err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	s.failNext = append(s.failNext, err)
	s.mu.Unlock()
}

// FailOn makes every operation of kind op return err until cleared with a
// nil err.
func (s *Store) FailOn(op Op, err error) {
	s.mu.Lock()
	if err == nil {
		delete(s.failOn, op)
	} else {
		s.failOn[op] = err
	}
	s.mu.Unlock()
}

// SetDelay holds each mutation for the returned duration before applying it.
func (s *Store) SetDelay(fn func(Write) time.Duration) {
	s.mu.Lock()
	s.delay = fn
	s.mu.Unlock()
}

// Writes returns the mutations applied so far.
func (s *Store) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// ResetWrites clears the write log.
func (s *Store) ResetWrites() {
	s.mu.Lock()
	s.writes = nil
	s.mu.Unlock()
}

func (s *Store) check(op Op) error {
	if s.closed {
		return docstore.ErrClosed
	}
	if len(s.failNext) > 0 {
		err := s.failNext[0]
		s.failNext = s.failNext[1:]
		return err
	}
	if err, ok := s.failOn[op]; ok {
		return err
	}
	return nil
}

func (s *Store) wait(ctx context.Context, w Write) error {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay == nil {
		return nil
	}
	d := delay(w)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Store) Get(ctx context.Context, path string) (any, error) {
	segs, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpGet); err != nil {
		return nil, err
	}
	return s.tree.Get(segs), nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	return s.apply(ctx, Write{Op: OpSet, Path: path, Value: value})
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	return s.apply(ctx, Write{Op: OpUpdate, Path: path, Values: fields})
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	id := docstore.NewPushID()
	if err := s.apply(ctx, Write{Op: OpPush, Path: docstore.Join(path, id), Value: value}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	return s.apply(ctx, Write{Op: OpRemove, Path: path})
}

func (s *Store) MultiPathUpdate(ctx context.Context, values map[string]any) error {
	return s.apply(ctx, Write{Op: OpMulti, Values: values})
}

func (s *Store) apply(ctx context.Context, w Write) error {
	if err := s.wait(ctx, w); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(w.Op); err != nil {
		return err
	}

	next := s.tree.Snapshot()
	var changed [][]string

	switch w.Op {
	case OpMulti:
		for p, v := range w.Values {
			segs, err := s.set(next, p, v)
			if err != nil {
				return err
			}
			changed = append(changed, segs)
		}
	case OpUpdate:
		segs, err := docstore.SplitPath(w.Path)
		if err != nil {
			return err
		}
		fields, err := docstore.Encode(w.Values)
		if err != nil {
			return err
		}
		m, _ := fields.(map[string]any)
		if err := next.Update(segs, m); err != nil {
			return err
		}
		changed = append(changed, segs)
	default:
		segs, err := s.set(next, w.Path, w.Value)
		if err != nil {
			return err
		}
		changed = append(changed, segs)
	}

	s.tree = next
	s.writes = append(s.writes, w)
	s.hub.Notify(changed, s.tree.Get)
	return nil
}

func (s *Store) set(t *docstore.Tree, path string, value any) ([]string, error) {
	segs, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}
	v, err := docstore.Encode(value)
	if err != nil {
		return nil, err
	}
	if err := t.Set(segs, v); err != nil {
		return nil, fmt.Errorf("set %s: %w", path, err)
	}
	return segs, nil
}

func (s *Store) Subscribe(ctx context.Context, path string, fn func(any)) (docstore.Unsubscribe, error) {
	segs, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpSubscribe); err != nil {
		return nil, err
	}
	return s.hub.Add(ctx, segs, s.tree.Get(segs), fn)
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	return s.hub.Len()
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}
