package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

// FetchReport describes how a snapshot was obtained.
type FetchReport struct {
	Source   string
	Fallback bool
	Failures []error
	Duration time.Duration
	Err      error
}

// SourceChain tries upstream sources in priority order and falls back to
// synthetic quotes. It keeps no market state of its own.
type SourceChain struct {
	sources  []drepo.SourceClient
	fallback drepo.FallbackSource
	timeout  time.Duration
	logger   *applogger.Logger
	metrics  drepo.Metrics
	now      func() time.Time
}

type SourceChainOption func(*SourceChain)

// WithSourceTimeout bounds each individual source attempt.
func WithSourceTimeout(d time.Duration) SourceChainOption {
	return func(c *SourceChain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithChainLogger(l *applogger.Logger) SourceChainOption {
	return func(c *SourceChain) { c.logger = l }
}

func WithChainMetrics(m drepo.Metrics) SourceChainOption {
	return func(c *SourceChain) { c.metrics = m }
}

func WithChainClock(now func() time.Time) SourceChainOption {
	return func(c *SourceChain) { c.now = now }
}

func NewSourceChain(sources []drepo.SourceClient, fallback drepo.FallbackSource, opts ...SourceChainOption) *SourceChain {
	c := &SourceChain{
		sources:  sources,
		fallback: fallback,
		timeout:  8 * time.Second,
		logger:   applogger.Nop(),
		metrics:  metrics.Noop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the first complete snapshot. When every source fails it
// perturbs last, or serves the seed when last is empty. The result is never
// empty for a non-empty symbol list.
func (c *SourceChain) Fetch(ctx context.Context, symbols []string, last *models.MarketSnapshot) (*models.MarketSnapshot, FetchReport) {
	start := c.now()
	var report FetchReport

	for _, src := range c.sources {
		snap, err := c.try(ctx, src, symbols)
		if err == nil {
			report.Source = src.Name()
			report.Duration = c.now().Sub(start)
			c.metrics.RecordEvent("source_success", src.Name())
			return snap, report
		}
		report.Failures = append(report.Failures, err)
		c.metrics.RecordError("source_unavailable")
		c.logger.Warn("market source failed", applogger.String("source", src.Name()), applogger.Error(err))
	}

	report.Err = fmt.Errorf("%w: %w", models.ErrAllSourcesExhausted, errors.Join(report.Failures...))
	report.Fallback = true
	c.metrics.RecordError("all_sources_exhausted")
	c.logger.Error("all market sources failed, serving synthetic quotes",
		applogger.Int("sources", len(c.sources)),
		applogger.Error(report.Err),
	)

	at := c.now().UTC()
	var snap *models.MarketSnapshot
	if last.Len() > 0 {
		snap = c.fallback.Perturb(last, symbols, at)
	} else {
		snap = c.fallback.Seed(symbols, at)
	}
	report.Source = snap.Source()
	report.Duration = c.now().Sub(start)
	return snap, report
}

type fetchResult struct {
	snap *models.MarketSnapshot
	err  error
}

// try enforces the timeout even for a source that ignores its context.
func (c *SourceChain) try(ctx context.Context, src drepo.SourceClient, symbols []string) (*models.MarketSnapshot, error) {
	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resCh := make(chan fetchResult, 1)
	go func() {
		snap, err := src.Fetch(fctx, symbols)
		resCh <- fetchResult{snap: snap, err: err}
	}()

	var res fetchResult
	select {
	case res = <-resCh:
	case <-fctx.Done():
		res.err = fctx.Err()
	}

	if res.err == nil {
		if res.snap == nil {
			res.err = errors.New("empty response")
		} else {
			res.err = res.snap.Covers(symbols)
		}
	}
	if res.err != nil {
		return nil, &models.SourceError{Source: src.Name(), Err: res.err}
	}
	return res.snap, nil
}
