package api

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/repository"
	"CoinPulse/internal/service/broadcast"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/internal/service/sources"
	"CoinPulse/internal/usecase"
	xlogger "CoinPulse/pkg/logger"
)

type staticSource struct{ quotes []models.Quote }

func (s staticSource) Name() string { return "static" }

func (s staticSource) Fetch(context.Context, []string) (*models.MarketSnapshot, error) {
	return models.NewMarketSnapshot("static", time.Now().UTC(), s.quotes), nil
}

type fixture struct {
	e        *echo.Echo
	hub      *broadcast.Hub
	store    *usecase.MarketStore
	sched    *usecase.UpdateScheduler
	ledger   *usecase.TradeLedger
	settings *repository.SettingsRepository
}

func testQuote(sym string, price, change float64) models.Quote {
	return models.Quote{
		Symbol:           sym,
		DisplaySymbol:    models.DisplaySymbolFor(sym),
		Price:            price,
		ChangePercent24h: change,
		Volume24h:        10,
		High24h:          price,
		Low24h:           price,
		ObservedAt:       time.Now().UTC(),
	}
}

func newFixture(t *testing.T, rl *ratelimit.Limiter) *fixture {
	t.Helper()
	l := xlogger.Nop()
	f := &fixture{
		hub:      broadcast.NewHub(),
		store:    usecase.NewMarketStore(),
		settings: repository.NewSettingsRepository(models.DefaultSettings(), nil, l),
	}
	src := staticSource{quotes: []models.Quote{testQuote("BTCUSDT", 43000, 5), testQuote("ETHUSDT", 2600, -1)}}
	chain := usecase.NewSourceChain([]domrepo.SourceClient{src},
		sources.NewSyntheticSource(0.5, rand.New(rand.NewPCG(1, 1))))
	engine := usecase.NewSignalEngine(usecase.DefaultSignalConfig())
	f.sched = usecase.NewUpdateScheduler(chain, f.store, f.hub, f.settings, engine, []string{"BTCUSDT", "ETHUSDT"})
	f.ledger = usecase.NewTradeLedger(f.sched, f.settings, engine, f.hub)

	f.e = echo.New()
	NewMarketHandler(l, f.sched, f.store, engine, f.settings, f.hub).RegisterRoutes(f.e)
	NewSettingsHandler(l, f.settings).RegisterRoutes(f.e)
	NewTradeHandler(l, f.ledger, rl).RegisterRoutes(f.e)
	NewWSHandler(l, f.hub, f.store, f.settings, DefaultWSConfig()).RegisterRoutes(f.e)
	return f
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *fixture) do(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)

	var h healthResponse
	require.NoError(t, json.Unmarshal(env.Data, &h))
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "idle", h.Scheduler)
}

func TestPairsFetchesWhenEmpty(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, http.MethodGet, "/api/pairs", "")
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Pairs map[string]models.Quote `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 43000.0, data.Pairs["BTCUSDT"].Price)
	assert.Equal(t, "BTC/USDT", data.Pairs["BTCUSDT"].DisplaySymbol)
}

func TestRefreshPrices(t *testing.T) {
	f := newFixture(t, nil)
	for i := 1; i <= 2; i++ {
		code, env := f.do(t, http.MethodPost, "/api/refresh-prices", "")
		require.Equal(t, http.StatusOK, code)
		var data struct {
			Seq uint64 `json:"seq"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, uint64(i), data.Seq)
	}
}

func TestTradeFlow(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, http.MethodPost, "/api/trade/BTCUSDT?side=buy", "")
	require.Equal(t, http.StatusOK, code, string(env.Data))
	var data struct {
		Trade models.TradeRecord `json:"trade"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "BTCUSDT", data.Trade.Symbol)
	assert.Equal(t, models.SideBuy, data.Trade.Side)
	assert.Equal(t, models.MarketSpot, data.Trade.MarketType)

	code, _ = f.do(t, http.MethodPost, "/api/trade/ETHUSDT?side=BUY&market_type=futures", "")
	require.Equal(t, http.StatusOK, code)

	code, env = f.do(t, http.MethodGet, "/api/trades?limit=1", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Trades []models.TradeRecord `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Trades, 1)
	assert.Equal(t, "ETHUSDT", list.Trades[0].Symbol)

	code, env = f.do(t, http.MethodPost, "/api/emergency-sell", "")
	require.Equal(t, http.StatusOK, code)
	var closed struct {
		ClosedPositions int `json:"closed_positions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &closed))
	assert.Equal(t, 2, closed.ClosedPositions)
	assert.Empty(t, f.ledger.Open())
}

func TestTradeUnknownPair(t *testing.T) {
	f := newFixture(t, nil)
	code, env := f.do(t, http.MethodPost, "/api/trade/DOGEUSDT?side=BUY", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(env.Data), "ERR_PAIR_NOT_FOUND")
	assert.Empty(t, f.ledger.History(0))
}

func TestTradeValidation(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, http.MethodPost, "/api/trade/BTCUSDT?side=HOLD", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "ERR_ONEOF")

	code, _ = f.do(t, http.MethodPost, "/api/trade/BTCUSDT", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/api/trade/BTCUSDT?side=BUY&market_type=margin", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodGet, "/api/trades?limit=500", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTradeRateLimited(t *testing.T) {
	f := newFixture(t, ratelimit.New(0.001, 1, time.Minute))

	code, _ := f.do(t, http.MethodPost, "/api/trade/BTCUSDT?side=SELL", "")
	assert.Equal(t, http.StatusOK, code)
	code, env := f.do(t, http.MethodPost, "/api/trade/BTCUSDT?side=SELL", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Contains(t, string(env.Data), "ERR_RATE_LIMITED")
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	code, _ := f.do(t, http.MethodPost, "/api/settings", `{"refresh_interval": 4000}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/api/settings", `{"refresh_interval": 10, "enable_ai_signals": true, "timeframe": "15M"}`)
	require.Equal(t, http.StatusOK, code)

	code, env := f.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, code)
	var st models.Settings
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 10, st.RefreshIntervalSeconds)
	assert.True(t, st.SignalsEnabled)
	assert.Equal(t, "15m", st.Timeframe)
	assert.Equal(t, 500.0, st.TradeAmount)
}

func TestSettingsKeepExplicitZeroPercentages(t *testing.T) {
	f := newFixture(t, nil)

	code, _ := f.do(t, http.MethodPost, "/api/settings", `{"take_profit": 0, "stop_loss": 0, "activation_distance": 0, "refresh_interval": 5}`)
	require.Equal(t, http.StatusOK, code)

	st, err := f.settings.Get(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TakeProfitPct)
	assert.Zero(t, st.StopLossPct)
	assert.Zero(t, st.ActivationDistancePct)
	assert.Equal(t, 500.0, st.TradeAmount)
}

func TestSettingsUpdatesDoNotStallScheduledRefresh(t *testing.T) {
	f := newFixture(t, nil)
	st := models.DefaultSettings()
	st.RefreshIntervalSeconds = 1
	require.NoError(t, f.settings.Set(context.Background(), st))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.sched.Run(ctx) }()

	deadline := time.Now().Add(2500 * time.Millisecond)
	for time.Now().Before(deadline) {
		code, _ := f.do(t, http.MethodPost, "/api/settings", `{"refresh_interval": 1}`)
		require.Equal(t, http.StatusOK, code)
		time.Sleep(200 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, f.sched.Cycles(), uint64(3))
}

func TestGenerateSignals(t *testing.T) {
	f := newFixture(t, nil)

	code, _ := f.do(t, http.MethodPost, "/api/generate-ai-signals", "")
	assert.Equal(t, http.StatusBadRequest, code)

	st := models.DefaultSettings()
	st.SignalsEnabled = true
	require.NoError(t, f.settings.Set(context.Background(), st))

	sub := f.hub.Subscribe()
	defer f.hub.Unsubscribe(sub)

	code, env := f.do(t, http.MethodPost, "/api/generate-ai-signals", "")
	require.Equal(t, http.StatusOK, code)
	var data struct {
		Signals map[string]models.Signal `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, models.VerdictBuy, data.Signals["BTCUSDT"].Verdict)
	assert.Equal(t, models.VerdictHold, data.Signals["ETHUSDT"].Verdict)

	var types []models.EventType
	for len(sub.Events()) > 0 {
		types = append(types, (<-sub.Events()).Type)
	}
	assert.Contains(t, types, models.EventAISignalsUpdated)

	code, env = f.do(t, http.MethodGet, "/api/pairs/all", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"signals"`)
}
