package usecase

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
)

// Journal backends.
const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// TradeJournal routes trade records to the configured archive backend.
type TradeJournal struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
}

func NewTradeJournal(pub drepo.Publisher, store drepo.Storage, metrics drepo.Metrics, backend string) *TradeJournal {
	if backend == "" {
		backend = BackendNone
	}
	return &TradeJournal{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

func (j *TradeJournal) Backend() string { return j.backend }

// ProcessBatch writes trades to the backend. With backend none it is a no-op.
func (j *TradeJournal) ProcessBatch(ctx context.Context, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch j.backend {
	case BackendNone:
		return nil
	case BackendKafka:
		if j.pub == nil {
			return fmt.Errorf("kafka backend without publisher")
		}
		err = j.pub.PublishBatch(ctx, trades)
	case BackendClickHouse:
		if j.store == nil {
			return fmt.Errorf("clickhouse backend without storage")
		}
		err = j.store.StoreBatch(ctx, trades)
	default:
		err = fmt.Errorf("unknown backend: %s", j.backend)
	}

	if err != nil {
		j.metrics.RecordError("journal_batch")
		return fmt.Errorf("journal batch: %w", err)
	}

	for _, t := range trades {
		j.metrics.RecordEvent("journal_"+j.backend, t.Symbol)
	}
	j.metrics.RecordLatency("journal_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (j *TradeJournal) Close() {
	if j.pub != nil {
		_ = j.pub.Close()
	}
	if j.store != nil {
		_ = j.store.Close()
	}
}
