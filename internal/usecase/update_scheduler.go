package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	domsvc "CoinPulse/internal/domain/service"
	"CoinPulse/internal/service/broadcast"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

// SchedulerState is the refresh loop position.
type SchedulerState int32

const (
	StateIdle SchedulerState = iota
	StateRefreshing
	StateScheduledWait
)

func (s SchedulerState) String() string {
	switch s {
	case StateRefreshing:
		return "refreshing"
	case StateScheduledWait:
		return "scheduled_wait"
	default:
		return "idle"
	}
}

// EventPublisher is the part of the broadcast hub the core needs.
type EventPublisher interface {
	Publish(ev models.Event) broadcast.PublishResult
}

// UpdateScheduler drives fetch → store → publish cycles on the configured
// cadence and coalesces concurrent refresh requests into one cycle.
type UpdateScheduler struct {
	chain      *SourceChain
	store      *MarketStore
	hub        EventPublisher
	settings   drepo.SettingsStore
	signals    domsvc.SignalDeriver
	checkpoint drepo.SnapshotCheckpoint
	symbols    []string

	staleAfter time.Duration
	freshWait  time.Duration

	group       singleflight.Group
	state       atomic.Int32
	wake        chan struct{}
	cycles      atomic.Uint64
	completedAt atomic.Int64

	logger  *applogger.Logger
	metrics drepo.Metrics
	now     func() time.Time
}

type SchedulerOption func(*UpdateScheduler)

func WithCheckpoint(cp drepo.SnapshotCheckpoint) SchedulerOption {
	return func(s *UpdateScheduler) { s.checkpoint = cp }
}

// WithFreshness sets how old a snapshot may be before EnsureFresh refreshes
// and how long it waits for that refresh.
func WithFreshness(staleAfter, freshWait time.Duration) SchedulerOption {
	return func(s *UpdateScheduler) {
		if staleAfter > 0 {
			s.staleAfter = staleAfter
		}
		if freshWait > 0 {
			s.freshWait = freshWait
		}
	}
}

func WithSchedulerLogger(l *applogger.Logger) SchedulerOption {
	return func(s *UpdateScheduler) { s.logger = l }
}

func WithSchedulerMetrics(m drepo.Metrics) SchedulerOption {
	return func(s *UpdateScheduler) { s.metrics = m }
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *UpdateScheduler) { s.now = now }
}

func NewUpdateScheduler(
	chain *SourceChain,
	store *MarketStore,
	hub EventPublisher,
	settings drepo.SettingsStore,
	signals domsvc.SignalDeriver,
	symbols []string,
	opts ...SchedulerOption,
) *UpdateScheduler {
	s := &UpdateScheduler{
		chain:      chain,
		store:      store,
		hub:        hub,
		settings:   settings,
		signals:    signals,
		symbols:    symbols,
		staleAfter: 30 * time.Second,
		freshWait:  2 * time.Second,
		wake:       make(chan struct{}, 1),
		logger:     applogger.Nop(),
		metrics:    metrics.Noop{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UpdateScheduler) State() SchedulerState { return SchedulerState(s.state.Load()) }

// Cycles is the number of completed refresh cycles.
func (s *UpdateScheduler) Cycles() uint64 { return s.cycles.Load() }

func (s *UpdateScheduler) Symbols() []string { return append([]string(nil), s.symbols...) }

// Run refreshes once, then keeps refreshing until ctx is cancelled. The next
// tick is computed from the interval read after each cycle completes.
func (s *UpdateScheduler) Run(ctx context.Context) error {
	s.logger.Info("update scheduler started", applogger.Strings("symbols", s.symbols))
	defer s.state.Store(int32(StateIdle))

	s.refreshOnce(ctx)
	timer := time.NewTimer(s.interval(ctx))
	defer timer.Stop()

	for {
		s.state.CompareAndSwap(int32(StateIdle), int32(StateScheduledWait))
		select {
		case <-ctx.Done():
			s.logger.Info("update scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.refreshOnce(ctx)
			timer.Reset(s.interval(ctx))
		case <-s.wake:
			// a manual refresh completed; the next tick counts from it
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.untilNext(ctx))
		}
	}
}

func (s *UpdateScheduler) refreshOnce(ctx context.Context) {
	if _, err := s.join(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled refresh failed", applogger.Error(err))
	}
}

// Refresh triggers a cycle, or joins the one already in flight, and waits
// for its snapshot. ctx bounds only the wait.
func (s *UpdateScheduler) Refresh(ctx context.Context) (*models.MarketSnapshot, error) {
	snap, err := s.join(ctx)
	if err == nil {
		s.wakeLoop()
	}
	return snap, err
}

func (s *UpdateScheduler) wakeLoop() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *UpdateScheduler) join(ctx context.Context) (*models.MarketSnapshot, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		return s.cycle(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.MarketSnapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EnsureFresh returns a snapshot no older than the stale threshold when one
// can be had within the wait budget, and the best available one otherwise.
func (s *UpdateScheduler) EnsureFresh(ctx context.Context) (*models.MarketSnapshot, error) {
	if cur := s.store.Read(); cur != nil && s.store.Age(s.now()) <= s.staleAfter {
		return cur, nil
	}

	wctx, cancel := context.WithTimeout(ctx, s.freshWait)
	defer cancel()

	snap, err := s.join(wctx)
	if err == nil {
		return snap, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.metrics.RecordError("stale_snapshot_timeout")
	s.logger.Warn("serving stale snapshot",
		applogger.Error(fmt.Errorf("%w: %w", models.ErrStaleSnapshotTimeout, err)),
		applogger.Duration("age_ms", s.store.Age(s.now())),
	)
	if cur := s.store.Read(); cur != nil {
		return cur, nil
	}
	return nil, fmt.Errorf("%w: no snapshot available", models.ErrStaleSnapshotTimeout)
}

func (s *UpdateScheduler) cycle(ctx context.Context) (*models.MarketSnapshot, error) {
	prev := SchedulerState(s.state.Swap(int32(StateRefreshing)))
	defer s.state.Store(int32(restState(prev)))

	start := s.now()
	settings := s.currentSettings(ctx)

	last := s.store.Read()
	if last == nil {
		last = s.restore(ctx)
	}

	snap, report := s.chain.Fetch(ctx, s.symbols, last)
	stored, err := s.store.Replace(snap)
	if err != nil {
		s.metrics.RecordError("store_replace")
		return nil, fmt.Errorf("replace snapshot: %w", err)
	}

	var signals map[string]models.Signal
	if settings.SignalsEnabled && s.signals != nil {
		signals = s.signals.DeriveAll(stored)
	}

	res := s.hub.Publish(models.PriceUpdateEvent(stored, settings.RefreshIntervalSeconds, signals))

	if s.checkpoint != nil {
		if err := s.checkpoint.Save(ctx, stored); err != nil {
			s.metrics.RecordError("checkpoint_save")
			s.logger.Warn("snapshot checkpoint failed", applogger.Error(err))
		}
	}

	for _, q := range stored.Quotes() {
		s.metrics.RecordLastPrice(q.Symbol, q.Price)
	}
	s.metrics.RecordEvent("refresh", report.Source)
	s.metrics.RecordLatency("refresh_cycle", s.now().Sub(start).Seconds())
	s.cycles.Add(1)
	s.completedAt.Store(s.now().UnixNano())

	s.logger.Debug("refresh cycle complete",
		applogger.Uint64("seq", stored.Seq()),
		applogger.String("source", report.Source),
		applogger.Bool("fallback", report.Fallback),
		applogger.Int("delivered", res.Delivered),
		applogger.Int("pruned", res.Pruned),
		applogger.Duration("duration_ms", report.Duration),
	)
	return stored, nil
}

// restState is where the loop returns after a cycle: a refresh that ran
// while the loop was waiting leaves it waiting.
func restState(prev SchedulerState) SchedulerState {
	if prev == StateRefreshing {
		return StateScheduledWait
	}
	return prev
}

// restore loads the checkpoint so the synthetic fallback can continue from
// the last known prices after a restart.
func (s *UpdateScheduler) restore(ctx context.Context) *models.MarketSnapshot {
	if s.checkpoint == nil {
		return nil
	}
	snap, err := s.checkpoint.Load(ctx)
	if err != nil {
		s.logger.Debug("no snapshot checkpoint", applogger.Error(err))
		return nil
	}
	return snap
}

func (s *UpdateScheduler) currentSettings(ctx context.Context) models.Settings {
	st, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn("settings unavailable, using defaults", applogger.Error(err))
		return models.DefaultSettings()
	}
	return st
}

// untilNext is the wait left until the last completed cycle is one interval
// old.
func (s *UpdateScheduler) untilNext(ctx context.Context) time.Duration {
	last := time.Unix(0, s.completedAt.Load())
	d := last.Add(s.interval(ctx)).Sub(s.now())
	if d < 0 {
		return 0
	}
	return d
}

func (s *UpdateScheduler) interval(ctx context.Context) time.Duration {
	d := s.currentSettings(ctx).RefreshInterval()
	if d < time.Second {
		d = time.Second
	}
	return d
}
