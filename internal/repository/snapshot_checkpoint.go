package repository

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/cache"
)

const checkpointKey = "snapshot:latest"

type snapshotRecord struct {
	Source     string         `json:"source"`
	CapturedAt time.Time      `json:"captured_at"`
	Synthetic  bool           `json:"synthetic"`
	Quotes     []models.Quote `json:"quotes"`
}

// CacheCheckpoint stores the latest snapshot in a cache.Service.
type CacheCheckpoint struct {
	cache cache.Service
	ttl   time.Duration
}

// NewCacheCheckpoint keeps checkpoints for ttl; zero keeps them forever.
func NewCacheCheckpoint(c cache.Service, ttl time.Duration) *CacheCheckpoint {
	return &CacheCheckpoint{cache: c, ttl: ttl}
}

func (c *CacheCheckpoint) Save(ctx context.Context, snap *models.MarketSnapshot) error {
	if snap.Len() == 0 {
		return models.ErrEmptySnapshot
	}
	rec := snapshotRecord{
		Source:     snap.Source(),
		CapturedAt: snap.CapturedAt(),
		Synthetic:  snap.Synthetic(),
		Quotes:     snap.Quotes(),
	}
	if err := c.cache.Set(ctx, checkpointKey, rec, c.ttl); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (c *CacheCheckpoint) Load(ctx context.Context) (*models.MarketSnapshot, error) {
	var rec snapshotRecord
	if err := c.cache.Get(ctx, checkpointKey, &rec); err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if len(rec.Quotes) == 0 {
		return nil, models.ErrEmptySnapshot
	}
	if rec.Synthetic {
		return models.NewSyntheticSnapshot(rec.CapturedAt, rec.Quotes), nil
	}
	return models.NewMarketSnapshot(rec.Source, rec.CapturedAt, rec.Quotes), nil
}
