package repository

import (
	"context"
	"time"

	"CoinPulse/internal/domain/models"
)

// SourceClient fetches quotes for the requested symbols from one upstream.
// A response that lacks any requested symbol counts as a failure.
type SourceClient interface {
	Name() string
	Fetch(ctx context.Context, symbols []string) (*models.MarketSnapshot, error)
}

// FallbackSource produces quotes locally when every upstream failed.
type FallbackSource interface {
	Seed(symbols []string, at time.Time) *models.MarketSnapshot
	Perturb(last *models.MarketSnapshot, symbols []string, at time.Time) *models.MarketSnapshot
}

// SettingsStore holds the operator settings. Set replaces them whole.
type SettingsStore interface {
	Get(ctx context.Context) (models.Settings, error)
	Set(ctx context.Context, s models.Settings) error
}

// SnapshotCheckpoint persists the latest snapshot across restarts.
type SnapshotCheckpoint interface {
	Save(ctx context.Context, snap *models.MarketSnapshot) error
	Load(ctx context.Context) (*models.MarketSnapshot, error)
}

// Publisher forwards trade records to a message broker.
type Publisher interface {
	PublishBatch(ctx context.Context, trades []models.TradeRecord) error
	Close() error
}

// Storage archives trade records.
type Storage interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, trades []models.TradeRecord) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordEvent(kind, label string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	SetSubscribers(n int)
}
