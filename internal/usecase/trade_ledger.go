package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	domsvc "CoinPulse/internal/domain/service"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

const pricePlaces = 8

// PriceSource hands out a snapshot recent enough to trade on.
type PriceSource interface {
	EnsureFresh(ctx context.Context) (*models.MarketSnapshot, error)
}

// TradeSink receives every record the ledger creates.
type TradeSink interface {
	Submit(trades ...models.TradeRecord) bool
}

// TradeLedger records simulated executions in memory.
type TradeLedger struct {
	prices   PriceSource
	settings drepo.SettingsStore
	signals  domsvc.SignalDeriver
	hub      EventPublisher
	sink     TradeSink

	slippage     decimal.Decimal // fraction, 0.001 = 0.1%
	historyLimit int

	mu      sync.Mutex
	history []models.TradeRecord // newest first
	open    []models.TradeRecord

	rng     *rand.Rand
	now     func() time.Time
	newID   func() string
	logger  *applogger.Logger
	metrics drepo.Metrics
}

type LedgerOption func(*TradeLedger)

// WithSlippagePct sets the maximum slippage in percent (0.1 = ±0.1%).
func WithSlippagePct(pct float64) LedgerOption {
	return func(l *TradeLedger) {
		if pct >= 0 {
			l.slippage = decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100))
		}
	}
}

func WithHistoryLimit(n int) LedgerOption {
	return func(l *TradeLedger) {
		if n > 0 {
			l.historyLimit = n
		}
	}
}

func WithTradeSink(s TradeSink) LedgerOption {
	return func(l *TradeLedger) { l.sink = s }
}

func WithLedgerRand(r *rand.Rand) LedgerOption {
	return func(l *TradeLedger) { l.rng = r }
}

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *TradeLedger) { l.now = now }
}

func WithLedgerIDs(newID func() string) LedgerOption {
	return func(l *TradeLedger) { l.newID = newID }
}

func WithLedgerLogger(lg *applogger.Logger) LedgerOption {
	return func(l *TradeLedger) { l.logger = lg }
}

func WithLedgerMetrics(m drepo.Metrics) LedgerOption {
	return func(l *TradeLedger) { l.metrics = m }
}

func NewTradeLedger(prices PriceSource, settings drepo.SettingsStore, signals domsvc.SignalDeriver, hub EventPublisher, opts ...LedgerOption) *TradeLedger {
	l := &TradeLedger{
		prices:       prices,
		settings:     settings,
		signals:      signals,
		hub:          hub,
		slippage:     decimal.NewFromFloat(0.001),
		historyLimit: 1000,
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		now:          time.Now,
		newID:        uuid.NewString,
		logger:       applogger.Nop(),
		metrics:      metrics.Noop{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Execute simulates a fill at the current price with random slippage. An
// unknown symbol fails with ErrUnknownSymbol and records nothing.
func (l *TradeLedger) Execute(ctx context.Context, symbol string, side models.Side, market models.MarketType) (models.TradeRecord, error) {
	if side != models.SideBuy && side != models.SideSell {
		return models.TradeRecord{}, fmt.Errorf("%w: side %q", models.ErrInvalidOrder, side)
	}
	if market != models.MarketSpot && market != models.MarketFutures {
		return models.TradeRecord{}, fmt.Errorf("%w: market type %q", models.ErrInvalidOrder, market)
	}

	snap, err := l.prices.EnsureFresh(ctx)
	if err != nil {
		return models.TradeRecord{}, fmt.Errorf("price lookup: %w", err)
	}
	q, ok := snap.Get(symbol)
	if !ok {
		l.metrics.RecordError("unknown_symbol")
		return models.TradeRecord{}, fmt.Errorf("%w: %s", models.ErrUnknownSymbol, symbol)
	}

	settings, err := l.settings.Get(ctx)
	if err != nil {
		return models.TradeRecord{}, fmt.Errorf("load settings: %w", err)
	}

	rec := models.TradeRecord{
		ID:         l.newID(),
		Symbol:     q.Symbol,
		Side:       side,
		Quantity:   decimal.NewFromFloat(settings.TradeAmount),
		MarketType: market,
		ExecutedAt: l.now().UTC(),
		Status:     models.TradeFilled,
	}
	if settings.SignalsEnabled && l.signals != nil {
		sig := l.signals.Derive(q)
		rec.Signal = &sig
	}

	l.mu.Lock()
	rec.Price = l.slipped(decimal.NewFromFloat(q.Price))
	l.pushLocked(rec)
	if side == models.SideBuy {
		l.open = append(l.open, rec)
	}
	l.mu.Unlock()

	l.hub.Publish(models.TradeExecutedEvent(rec))
	l.journal(rec)
	l.metrics.RecordEvent("trade", string(side))
	l.logger.Info("trade executed",
		applogger.String("id", rec.ID),
		applogger.String("symbol", rec.Symbol),
		applogger.String("side", string(rec.Side)),
		applogger.String("price", rec.Price.String()),
		applogger.String("market", string(rec.MarketType)),
	)
	return rec, nil
}

// EmergencyCloseAll sells every open BUY at the current market price and
// empties the open set. Originals stay in history.
func (l *TradeLedger) EmergencyCloseAll(ctx context.Context) ([]models.TradeRecord, error) {
	l.mu.Lock()
	n := len(l.open)
	l.mu.Unlock()
	if n == 0 {
		return []models.TradeRecord{}, nil
	}

	snap, err := l.prices.EnsureFresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("price lookup: %w", err)
	}
	at := l.now().UTC()

	l.mu.Lock()
	open := l.open
	l.open = nil
	closed := make([]models.TradeRecord, 0, len(open))
	for _, o := range open {
		price := o.Price
		if q, ok := snap.Get(o.Symbol); ok {
			price = decimal.NewFromFloat(q.Price).Round(pricePlaces)
		}
		rec := models.TradeRecord{
			ID:              l.newID(),
			Symbol:          o.Symbol,
			Side:            models.SideSell,
			Quantity:        o.Quantity,
			Price:           price,
			MarketType:      o.MarketType,
			ExecutedAt:      at,
			Status:          models.TradeEmergencyClosed,
			OriginalTradeID: o.ID,
		}
		l.pushLocked(rec)
		closed = append(closed, rec)
	}
	l.mu.Unlock()

	l.hub.Publish(models.EmergencySellEvent(closed, at))
	l.journal(closed...)
	l.metrics.RecordEvent("emergency_close", fmt.Sprint(len(closed)))
	l.logger.Warn("emergency close executed", applogger.Int("positions", len(closed)))
	return closed, nil
}

// History returns up to limit records, newest first.
func (l *TradeLedger) History(limit int) []models.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}
	return append([]models.TradeRecord(nil), l.history[:limit]...)
}

// Open returns the BUY positions an emergency close would sell.
func (l *TradeLedger) Open() []models.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.TradeRecord(nil), l.open...)
}

// slipped moves price uniformly within ±slippage. Caller holds mu, which
// also guards rng.
func (l *TradeLedger) slipped(price decimal.Decimal) decimal.Decimal {
	f := decimal.NewFromFloat(l.rng.Float64()*2 - 1)
	factor := decimal.NewFromInt(1).Add(f.Mul(l.slippage))
	return price.Mul(factor).Round(pricePlaces)
}

func (l *TradeLedger) pushLocked(rec models.TradeRecord) {
	l.history = append(l.history, models.TradeRecord{})
	copy(l.history[1:], l.history)
	l.history[0] = rec
	if len(l.history) > l.historyLimit {
		l.history = l.history[:l.historyLimit]
	}
}

func (l *TradeLedger) journal(recs ...models.TradeRecord) {
	if l.sink == nil || len(recs) == 0 {
		return
	}
	if !l.sink.Submit(recs...) {
		l.metrics.RecordError("journal_full")
		l.logger.Warn("trade journal buffer full, records not archived", applogger.Int("count", len(recs)))
	}
}
