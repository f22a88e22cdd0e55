package server

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
	mid "CoinPulse/internal/middleware"
	"CoinPulse/internal/repository"
	"CoinPulse/internal/service/broadcast"
	"CoinPulse/internal/service/sources"
	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/cache"
	"CoinPulse/pkg/config"
	xhttp "CoinPulse/pkg/http"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

func TestRunContextRestoresSettingsAndStopsCleanly(t *testing.T) {
	cfg := config.Default()
	l := applogger.Nop()
	mem := cache.NewMemoryCache()

	persisted := models.DefaultSettings()
	persisted.RefreshIntervalSeconds = 42
	require.NoError(t, repository.NewSettingsRepository(models.DefaultSettings(), mem, l).Set(context.Background(), persisted))

	settings := repository.NewSettingsRepository(models.DefaultSettings(), mem, l)
	chain := usecase.NewSourceChain(nil, sources.NewSyntheticSource(0.5, rand.New(rand.NewPCG(1, 2))))
	store := usecase.NewMarketStore()
	sched := usecase.NewUpdateScheduler(chain, store, broadcast.NewHub(), settings,
		usecase.NewSignalEngine(usecase.DefaultSignalConfig()), cfg.Market.Symbols)
	journal := usecase.NewTradeJournal(nil, nil, metrics.Noop{}, usecase.BackendNone)
	pipeline := mid.NewTradePipeline(journal, metrics.Noop{})
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithLogger(l))

	app := New(cfg, l, sched, nil, pipeline, journal, settings, mem, srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	require.Eventually(t, func() bool { return sched.Cycles() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, len(cfg.Market.Symbols), store.Read().Len())

	got, err := settings.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, got.RefreshIntervalSeconds)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunContext did not return after cancel")
	}
	assert.Equal(t, usecase.StateIdle, sched.State())
}
