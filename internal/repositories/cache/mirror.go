package cache

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
)

// Write is a remote mutation issued against the store.
type Write func(ctx context.Context, store docstore.Store) error

// Mirror runs remote writes in the background for a set of repositories and
// applies the rollback policy when they fail.
type Mirror struct {
	store   docstore.Store
	policy  Policy
	log     logging.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewMirror(store docstore.Store, policy Policy, log logging.Logger, m *metrics.Metrics) *Mirror {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &Mirror{
		store:   store,
		policy:  policy,
		log:     log.With("module", "mirror"),
		metrics: m,
	}
}

func (m *Mirror) Store() docstore.Store { return m.store }

func (m *Mirror) Policy() Policy { return m.policy }

// Go issues write without blocking the caller. The caller's cancellation does
// not abort the write. If the write fails and the policy says so, rollback
// runs.
func (m *Mirror) Go(ctx context.Context, entity string, op Operation, id string, write Write, rollback func()) {
	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := write(ctx, m.store)
		m.metrics.MirrorWrite(entity, string(op), err)
		if err == nil {
			return
		}
		reverted := rollback != nil && m.policy.Rollback(op)
		m.log.Error(ctx, "mirror write failed",
			"entity", entity, "op", string(op), "id", id, "rollback", reverted, "error", err)
		if reverted {
			rollback()
			m.metrics.Rollback(entity, string(op))
		}
	}()
}

// Wait blocks until every write issued so far has finished.
func (m *Mirror) Wait() {
	m.wg.Wait()
}
