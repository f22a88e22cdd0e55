package broadcast

import (
	"sync"
	"sync/atomic"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

// Subscriber is one consumer of hub events with a bounded FIFO queue.
type Subscriber struct {
	id      uint64
	ch      chan models.Event
	done    chan struct{}
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64

	// consecutive publishes that overflowed; guarded by Hub.publishMu
	overflowStreak int
}

func (s *Subscriber) ID() uint64 { return s.id }

// Events delivers queued events in publish order.
func (s *Subscriber) Events() <-chan models.Event { return s.ch }

// Done is closed once the subscriber is closed or pruned.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Close marks the subscriber closed. The hub prunes it on the next publish.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}

func (s *Subscriber) Closed() bool { return s.closed.Load() }

// Dropped is the number of events discarded because the queue was full.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// offer enqueues ev, discarding the oldest queued events while the queue is
// full. The event channel is never closed, so a concurrent Close cannot make
// the send panic.
func (s *Subscriber) offer(ev models.Event) (droppedOld bool) {
	for {
		select {
		case s.ch <- ev:
			return droppedOld
		default:
		}
		select {
		case <-s.ch:
			droppedOld = true
			s.dropped.Add(1)
		default:
		}
	}
}

// PublishResult summarizes one fan-out.
type PublishResult struct {
	Delivered int
	Dropped   int
	Pruned    int
}

// Hub fans events out to any number of subscribers without ever blocking
// on one of them.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]*Subscriber

	publishMu sync.Mutex
	nextID    atomic.Uint64

	queueSize int
	maxDrops  int
	logger    *applogger.Logger
	metrics   drepo.Metrics
}

type HubOption func(*Hub)

// WithQueueSize sets the per subscriber queue bound (minimum 1).
func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithMaxConsecutiveDrops prunes a subscriber whose queue overflowed on n
// publishes in a row. Zero disables slow subscriber pruning.
func WithMaxConsecutiveDrops(n int) HubOption {
	return func(h *Hub) { h.maxDrops = n }
}

func WithLogger(l *applogger.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

func WithMetrics(m drepo.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:      make(map[uint64]*Subscriber),
		queueSize: 16,
		maxDrops:  64,
		logger:    applogger.Nop(),
		metrics:   metrics.Noop{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		id:   h.nextID.Add(1),
		ch:   make(chan models.Event, h.queueSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[s.id] = s
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	h.logger.Debug("subscriber added", applogger.Uint64("id", s.id), applogger.Int("subscribers", n))
	return s
}

// Unsubscribe removes and closes s. It is safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	delete(h.subs, s.id)
	n := len(h.subs)
	h.mu.Unlock()

	s.Close()
	h.metrics.SetSubscribers(n)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish enqueues ev for every live subscriber. Closed subscribers and
// subscribers that stayed full for too long are removed.
func (h *Hub) Publish(ev models.Event) PublishResult {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	var res PublishResult
	var stale []*Subscriber
	for _, s := range subs {
		if s.Closed() {
			stale = append(stale, s)
			continue
		}

		if s.offer(ev) {
			res.Dropped++
			s.overflowStreak++
			if h.maxDrops > 0 && s.overflowStreak >= h.maxDrops {
				h.logger.Warn("pruning slow subscriber",
					applogger.Uint64("id", s.id),
					applogger.Uint64("dropped", s.Dropped()),
				)
				s.Close()
				stale = append(stale, s)
				continue
			}
		} else {
			s.overflowStreak = 0
		}
		res.Delivered++
	}

	if len(stale) > 0 {
		h.mu.Lock()
		for _, s := range stale {
			delete(h.subs, s.id)
		}
		n := len(h.subs)
		h.mu.Unlock()

		res.Pruned = len(stale)
		h.metrics.SetSubscribers(n)
	}

	h.metrics.RecordEvent("publish", string(ev.Type))
	if res.Dropped > 0 {
		h.metrics.RecordError("subscriber_overflow")
	}
	return res
}
