package docstore

import (
	"context"
	"sync"
)

// Hub fans write notifications out to subscriptions. Each subscription has
// its own delivery goroutine, so callbacks run asynchronously but in the
// order the writes were notified.
type Hub struct {
	mu     sync.Mutex
	next   uint64
	subs   map[uint64]*subscription
	closed bool
}

type subscription struct {
	segs   []string
	fn     func(any)
	mu     sync.Mutex
	queue  []any
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscription)}
}

// Add registers fn for segs and queues initial as its first delivery. The
// subscription ends when the returned func is called, ctx is done or the hub
// is closed.
func (h *Hub) Add(ctx context.Context, segs []string, initial any, fn func(any)) (Unsubscribe, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	s := &subscription{
		segs:   segs,
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	id := h.next
	h.next++
	h.subs[id] = s
	s.push(initial)

	go s.run(ctx)

	stop := func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		s.stop()
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-s.done:
		}
	}()
	return stop, nil
}

// Notify queues the value returned by read for every subscription that
// overlaps one of the changed paths. Callers serialize Notify with their
// writes so deliveries follow write order.
func (h *Hub) Notify(changed [][]string, read func(segs []string) any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		for _, c := range changed {
			if Overlaps(c, s.segs) {
				s.push(read(s.segs))
				break
			}
		}
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = map[uint64]*subscription{}
	h.closed = true
	h.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *subscription) push(v any) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscription) run(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.signal:
		}
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()
		for _, v := range batch {
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(v)
		}
	}
}
