package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
)

type stubPrices struct {
	mu   sync.Mutex
	snap *models.MarketSnapshot
}

func (s *stubPrices) EnsureFresh(context.Context) (*models.MarketSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *stubPrices) set(quotes ...models.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = models.NewMarketSnapshot("test", time.Now(), quotes)
}

type sliceSink struct {
	mu   sync.Mutex
	recs []models.TradeRecord
}

func (s *sliceSink) Submit(trades ...models.TradeRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, trades...)
	return true
}

func newTestLedger(prices PriceSource, hub EventPublisher, mut func(*models.Settings), opts ...LedgerOption) *TradeLedger {
	n := 0
	base := []LedgerOption{
		WithLedgerRand(rand.New(rand.NewPCG(3, 4))),
		WithLedgerIDs(func() string { n++; return fmt.Sprintf("t%d", n) }),
	}
	return NewTradeLedger(prices, newMemSettings(mut), NewSignalEngine(DefaultSignalConfig()), hub, append(base, opts...)...)
}

func TestTradeLedger_ExecuteAppliesSlippage(t *testing.T) {
	prices := &stubPrices{}
	prices.set(quote("BTCUSDT", 43000, 1))
	hub := &captureHub{}
	sink := &sliceSink{}
	l := newTestLedger(prices, hub, func(s *models.Settings) { s.TradeAmount = 250 }, WithTradeSink(sink))

	for i := 0; i < 50; i++ {
		rec, err := l.Execute(context.Background(), "BTCUSDT", models.SideBuy, models.MarketSpot)
		require.NoError(t, err)

		p, _ := rec.Price.Float64()
		assert.InDelta(t, 43000, p, 43000*0.001+1e-8)
		assert.True(t, rec.Quantity.Equal(decimal.NewFromInt(250)))
		assert.Equal(t, models.TradeFilled, rec.Status)
		assert.Nil(t, rec.Signal)
	}

	assert.Len(t, hub.ofType(models.EventTradeExecuted), 50)
	assert.Len(t, sink.recs, 50)
	assert.Len(t, l.Open(), 50)
}

func TestTradeLedger_UnknownSymbolCreatesNoRecord(t *testing.T) {
	prices := &stubPrices{}
	prices.set(quote("BTCUSDT", 43000, 1))
	hub := &captureHub{}
	l := newTestLedger(prices, hub, nil)

	_, err := l.Execute(context.Background(), "DOGEUSDT", models.SideBuy, models.MarketSpot)
	assert.ErrorIs(t, err, models.ErrUnknownSymbol)
	assert.Empty(t, l.History(0))
	assert.Empty(t, l.Open())
	assert.Empty(t, hub.ofType(models.EventTradeExecuted))
}

func TestTradeLedger_InvalidOrder(t *testing.T) {
	prices := &stubPrices{}
	prices.set(quote("BTCUSDT", 43000, 1))
	l := newTestLedger(prices, &captureHub{}, nil)

	_, err := l.Execute(context.Background(), "BTCUSDT", models.Side("HODL"), models.MarketSpot)
	assert.ErrorIs(t, err, models.ErrInvalidOrder)
	_, err = l.Execute(context.Background(), "BTCUSDT", models.SideSell, models.MarketType("margin"))
	assert.ErrorIs(t, err, models.ErrInvalidOrder)
}

func TestTradeLedger_AttachesSignalWhenEnabled(t *testing.T) {
	prices := &stubPrices{}
	prices.set(quote("ETHUSDT", 2600, -5))
	l := newTestLedger(prices, &captureHub{}, func(s *models.Settings) { s.SignalsEnabled = true })

	rec, err := l.Execute(context.Background(), "ETHUSDT", models.SideSell, models.MarketFutures)
	require.NoError(t, err)
	require.NotNil(t, rec.Signal)
	assert.Equal(t, models.VerdictSell, rec.Signal.Verdict)
	assert.Equal(t, models.MarketFutures, rec.MarketType)
	assert.Empty(t, l.Open(), "sells do not open positions")
}

func TestTradeLedger_EmergencyCloseAll(t *testing.T) {
	prices := &stubPrices{}
	prices.set(quote("AAAUSDT", 10, 0), quote("BBBUSDT", 20, 0))
	hub := &captureHub{}
	l := newTestLedger(prices, hub, nil)
	ctx := context.Background()

	a1, err := l.Execute(ctx, "AAAUSDT", models.SideBuy, models.MarketSpot)
	require.NoError(t, err)
	a2, err := l.Execute(ctx, "AAAUSDT", models.SideBuy, models.MarketSpot)
	require.NoError(t, err)
	b1, err := l.Execute(ctx, "BBBUSDT", models.SideBuy, models.MarketFutures)
	require.NoError(t, err)

	prices.set(quote("AAAUSDT", 11, 0), quote("BBBUSDT", 19, 0))

	closed, err := l.EmergencyCloseAll(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 3)

	want := []struct {
		orig  models.TradeRecord
		price int64
	}{{a1, 11}, {a2, 11}, {b1, 19}}
	for i, w := range want {
		c := closed[i]
		assert.Equal(t, models.SideSell, c.Side)
		assert.Equal(t, models.TradeEmergencyClosed, c.Status)
		assert.Equal(t, w.orig.ID, c.OriginalTradeID)
		assert.Equal(t, w.orig.Symbol, c.Symbol)
		assert.Equal(t, w.orig.MarketType, c.MarketType)
		assert.True(t, c.Quantity.Equal(w.orig.Quantity))
		assert.True(t, c.Price.Equal(decimal.NewFromInt(w.price)), "price %s", c.Price)
	}

	assert.Empty(t, l.Open())
	assert.Len(t, l.History(0), 6)
	evs := hub.ofType(models.EventEmergencySell)
	require.Len(t, evs, 1)
	assert.Len(t, evs[0].ClosedTrades, 3)

	again, err := l.EmergencyCloseAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestTradeLedger_HistoryNewestFirstAndCapped(t *testing.T) {
	prices := &stubPrices{}
	prices.set(quote("BTCUSDT", 100, 0))
	l := newTestLedger(prices, &captureHub{}, nil, WithHistoryLimit(3))

	for i := 0; i < 5; i++ {
		_, err := l.Execute(context.Background(), "BTCUSDT", models.SideSell, models.MarketSpot)
		require.NoError(t, err)
	}

	h := l.History(0)
	require.Len(t, h, 3)
	assert.Equal(t, "t5", h[0].ID)
	assert.Equal(t, "t3", h[2].ID)
	assert.Len(t, l.History(2), 2)
}
