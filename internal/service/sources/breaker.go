package sources

import (
	"context"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	applogger "CoinPulse/pkg/logger"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the per source circuit breaker.
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// GuardedSource short circuits a source that keeps failing so the chain
// moves on without waiting for its timeout.
type GuardedSource struct {
	inner drepo.SourceClient
	cb    *gobreaker.CircuitBreaker[*models.MarketSnapshot]
}

func NewGuardedSource(inner drepo.SourceClient, st BreakerSettings, l *applogger.Logger) *GuardedSource {
	if l == nil {
		l = applogger.Nop()
	}
	threshold := st.ConsecutiveFailures
	if threshold == 0 {
		threshold = 3
	}

	cb := gobreaker.NewCircuitBreaker[*models.MarketSnapshot](gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("source breaker state changed",
				applogger.String("source", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	})

	return &GuardedSource{inner: inner, cb: cb}
}

func (g *GuardedSource) Name() string { return g.inner.Name() }

// Fetch counts incomplete responses as failures too.
func (g *GuardedSource) Fetch(ctx context.Context, symbols []string) (*models.MarketSnapshot, error) {
	return g.cb.Execute(func() (*models.MarketSnapshot, error) {
		snap, err := g.inner.Fetch(ctx, symbols)
		if err != nil {
			return nil, err
		}
		if err := snap.Covers(symbols); err != nil {
			return nil, err
		}
		return snap, nil
	})
}

// State returns closed, half-open or open.
func (g *GuardedSource) State() string {
	return g.cb.State().String()
}
