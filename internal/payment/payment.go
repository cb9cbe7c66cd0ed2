// Package payment charges users. Only a simulated processor exists.
package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
)

// Processor charges amountCents to userID. A nil error means the money moved.
type Processor interface {
	Charge(ctx context.Context, userID string, amountCents int64) error
}

// Simulated waits Delay and then succeeds, unless Fail is set.
type Simulated struct {
	Delay time.Duration

	mu      sync.Mutex
	fail    bool
	charges int
	log     logging.Logger
	metrics *metrics.Metrics
}

func NewSimulated(delay time.Duration, fail bool, log logging.Logger, m *metrics.Metrics) *Simulated {
	return &Simulated{Delay: delay, fail: fail, log: log.With("module", "payment"), metrics: m}
}

// SetFail switches forced failure on or off.
func (s *Simulated) SetFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

// Charges returns how many charges succeeded.
func (s *Simulated) Charges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.charges
}

func (s *Simulated) Charge(ctx context.Context, userID string, amountCents int64) (err error) {
	defer func() { s.metrics.Payment(err) }()

	if amountCents < 0 {
		return fmt.Errorf("%w: negative amount", common.ErrorInvalidArgument)
	}

	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", common.ErrPaymentFailed, ctx.Err())
		case <-t.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		s.log.Warn(ctx, "charge declined", "user", userID, "amount", amountCents)
		return fmt.Errorf("%w: card declined", common.ErrPaymentFailed)
	}
	s.charges++
	s.log.Info(ctx, "charge ok", "user", userID, "amount", amountCents)
	return nil
}
