package repository

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	pkgkafka "CoinPulse/pkg/kafka"
)

// BatchInserter is the part of pkg/clickhouse.Client the trade storage uses.
type BatchInserter interface {
	InitSchema(ctx context.Context, stmts []string) error
	InsertBatch(ctx context.Context, query string, rows [][]any) error
	Health(ctx context.Context) error
	Close() error
}

// ClickHouseTradeStorage archives trade records in a MergeTree table.
type ClickHouseTradeStorage struct {
	ch    BatchInserter
	table string
}

func NewClickHouseTradeStorage(ch BatchInserter, table string) repository.Storage {
	if table == "" {
		table = "trades"
	}
	return &ClickHouseTradeStorage{ch: ch, table: table}
}

func (s *ClickHouseTradeStorage) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id String,
            ts DateTime64(3, 'UTC'),
            symbol LowCardinality(String),
            side LowCardinality(String),
            market_type LowCardinality(String),
            status LowCardinality(String),
            amount Decimal(38, 8),
            price Decimal(38, 8),
            original_trade_id String,
            signal LowCardinality(String),
            signal_confidence Float64
        )
        ENGINE = ReplacingMergeTree
        ORDER BY (symbol, ts, id)
    `, s.table)
	return s.ch.InitSchema(ctx, []string{ddl})
}

func (s *ClickHouseTradeStorage) StoreBatch(ctx context.Context, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s (id, ts, symbol, side, market_type, status, amount, price, original_trade_id, signal, signal_confidence)", s.table)
	rows := make([][]any, 0, len(trades))
	for _, t := range trades {
		var verdict string
		var conf float64
		if t.Signal != nil {
			verdict, conf = string(t.Signal.Verdict), t.Signal.Confidence
		}
		rows = append(rows, []any{
			t.ID,
			t.ExecutedAt,
			t.Symbol,
			string(t.Side),
			string(t.MarketType),
			string(t.Status),
			t.Quantity,
			t.Price,
			t.OriginalTradeID,
			verdict,
			conf,
		})
	}
	if err := s.ch.InsertBatch(ctx, q, rows); err != nil {
		return fmt.Errorf("store trades: %w", err)
	}
	return nil
}

func (s *ClickHouseTradeStorage) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *ClickHouseTradeStorage) Close() error {
	return s.ch.Close()
}

// tradeMessage is the Kafka wire form of a trade record.
type tradeMessage struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	Side            string    `json:"side"`
	MarketType      string    `json:"market_type"`
	Status          string    `json:"status"`
	Amount          string    `json:"amount"`
	Price           string    `json:"price"`
	OriginalTradeID string    `json:"original_trade_id,omitempty"`
	Signal          string    `json:"signal,omitempty"`
	Timestamp       time.Time `json:"ts"`
}

// KafkaTradePublisher implements Publisher for Kafka, keyed by symbol so one
// symbol's trades stay ordered within a partition.
type KafkaTradePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaTradePublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaTradePublisher{producer: producer, topic: topic}
}

func (p *KafkaTradePublisher) PublishBatch(ctx context.Context, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(trades))
	for i, t := range trades {
		m := tradeMessage{
			ID:              t.ID,
			Symbol:          t.Symbol,
			Side:            string(t.Side),
			MarketType:      string(t.MarketType),
			Status:          string(t.Status),
			Amount:          t.Quantity.String(),
			Price:           t.Price.String(),
			OriginalTradeID: t.OriginalTradeID,
			Timestamp:       t.ExecutedAt,
		}
		if t.Signal != nil {
			m.Signal = string(t.Signal.Verdict)
		}
		msgs[i] = pkgkafka.Message{Key: []byte(t.Symbol), Value: m}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaTradePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
