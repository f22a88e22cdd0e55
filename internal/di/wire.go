//go:build wireinject
// +build wireinject

package di

import (
	"CoinPulse/pkg/config"
	"CoinPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideHTTPClient,

		// Repositories
		ProvideTradeStorage,
		ProvideTradePublisher,
		ProvideSettingsRepository,
		ProvideSettingsStore,
		ProvideCheckpoint,

		// Market data
		ProvideStreamSource,
		ProvideSourceChain,
		ProvideMarketStore,
		ProvideHub,

		// Use cases
		ProvideSignalEngine,
		ProvideUpdateScheduler,
		ProvideTradeJournal,
		ProvideTradePipeline,
		ProvideTradeLedger,

		// Transport
		ProvideRateLimiter,
		ProvideHandlers,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
