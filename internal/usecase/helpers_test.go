package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/service/broadcast"
)

type fakeSource struct {
	name    string
	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
	err     error
	quotes  []models.Quote
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, symbols []string) (*models.MarketSnapshot, error) {
	f.calls.Add(1)
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return models.NewMarketSnapshot(f.name, time.Now(), f.quotes), nil
}

type memSettings struct {
	mu sync.Mutex
	s  models.Settings
}

func newMemSettings(mut func(*models.Settings)) *memSettings {
	s := models.DefaultSettings()
	if mut != nil {
		mut(&s)
	}
	return &memSettings{s: s}
}

func (m *memSettings) Get(context.Context) (models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *memSettings) Set(_ context.Context, s models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	return nil
}

type captureHub struct {
	mu     sync.Mutex
	events []models.Event
}

func (c *captureHub) Publish(ev models.Event) broadcast.PublishResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return broadcast.PublishResult{Delivered: 1}
}

func (c *captureHub) ofType(t models.EventType) []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var errDown = errors.New("upstream down")

func quote(sym string, price, change float64) models.Quote {
	return models.Quote{
		Symbol:           sym,
		DisplaySymbol:    models.DisplaySymbolFor(sym),
		Price:            price,
		ChangePercent24h: change,
		Volume24h:        1000,
		High24h:          price * 1.01,
		Low24h:           price * 0.99,
		ObservedAt:       time.Unix(1700000000, 0).UTC(),
	}
}
