package di

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	apihandler "CoinPulse/internal/handler/api"
	mid "CoinPulse/internal/middleware"
	internalrepo "CoinPulse/internal/repository"
	"CoinPulse/internal/service/broadcast"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/internal/service/sources"
	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/cache"
	pkgch "CoinPulse/pkg/clickhouse"
	"CoinPulse/pkg/config"
	xhttp "CoinPulse/pkg/http"
	pkgkafka "CoinPulse/pkg/kafka"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
	"CoinPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache returns a Redis backed cache with a local layer when Redis is
// enabled, and a process local cache otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Redis.LocalSize)), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis connected", applogger.String("addr", cfg.Redis.Addr))
	return cache.NewLayeredCache(rc, cfg.Redis.LocalSize), nil
}

// ProvideClickHouseClient creates a ClickHouse client when the journal
// backend is clickhouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != usecase.BackendClickHouse {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when the journal backend is
// kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopic(cfg.Kafka.AutoCreate),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideTradeStorage creates the ClickHouse trade archive and its table.
func ProvideTradeStorage(chClient *pkgch.Client, cfg *config.Config) (repository.Storage, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseTradeStorage(chClient, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("trade storage: %w", err)
	}
	return store, nil
}

// ProvideTradePublisher creates Kafka publisher repository.
func ProvideTradePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaTradePublisher(producer, cfg.Kafka.Topic)
}

// ProvideTradeJournal creates the journal use case.
func ProvideTradeJournal(
	pub repository.Publisher,
	store repository.Storage,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.TradeJournal {
	return usecase.NewTradeJournal(pub, store, metrics, cfg.Backend.Type)
}

// ProvideTradePipeline buffers ledger records in front of the journal.
func ProvideTradePipeline(journal *usecase.TradeJournal, metrics repository.Metrics, cfg *config.Config, l *applogger.Logger) *mid.TradePipeline {
	return mid.NewTradePipeline(journal, metrics,
		mid.WithBufferSize(cfg.Backend.BufferSize),
		mid.WithBatch(cfg.Backend.BatchSize, cfg.Backend.BatchTimeout),
		mid.WithRetry(cfg.Backend.MaxRetries, 50*time.Millisecond),
		mid.WithPipelineLogger(l),
	)
}

// ProvideHTTPClient creates the outbound client shared by REST sources.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Sources.HTTPTimeout),
		xhttp.WithUserAgent(cfg.Sources.UserAgent),
	)
}

// ProvideStreamSource creates the websocket ticker source when it is part
// of the source order.
func ProvideStreamSource(cfg *config.Config, l *applogger.Logger) *sources.StreamSource {
	for _, s := range cfg.Sources.Order {
		if s == "stream" {
			return sources.NewStreamSource(cfg.Stream.URL, cfg.Stream.ReconnectDelay, cfg.Stream.PingInterval, cfg.Stream.MaxAge, l)
		}
	}
	return nil
}

// ProvideSourceChain builds the ranked upstreams, each behind its own
// circuit breaker, with the synthetic generator as fallback.
func ProvideSourceChain(
	cfg *config.Config,
	stream *sources.StreamSource,
	client *xhttp.Client,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.SourceChain {
	bs := sources.BreakerSettings{
		MaxRequests:         cfg.Breaker.HalfOpenRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.OpenTimeout,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
	}

	var chain []repository.SourceClient
	for _, name := range cfg.Sources.Order {
		var src repository.SourceClient
		switch name {
		case "stream":
			if stream == nil {
				continue
			}
			src = stream
		case "exchange":
			src = sources.NewExchangeSource(cfg.Sources.Exchange.BaseURL, client)
		case "aggregator":
			src = sources.NewAggregatorSource(cfg.Sources.Aggregator.BaseURL, cfg.Sources.Aggregator.APIKey, cfg.Sources.Aggregator.CoinIDs, client)
		default:
			l.Warn("unknown source skipped", applogger.String("source", name))
			continue
		}
		chain = append(chain, sources.NewGuardedSource(src, bs, l))
	}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(time.Now().Unix())))
	fallback := sources.NewSyntheticSource(cfg.Market.SyntheticJitterPct, rng)

	return usecase.NewSourceChain(chain, fallback,
		usecase.WithSourceTimeout(cfg.Market.SourceTimeout),
		usecase.WithChainLogger(l),
		usecase.WithChainMetrics(m),
	)
}

func ProvideMarketStore() *usecase.MarketStore {
	return usecase.NewMarketStore()
}

func ProvideHub(cfg *config.Config, l *applogger.Logger, m repository.Metrics) *broadcast.Hub {
	return broadcast.NewHub(
		broadcast.WithQueueSize(cfg.Hub.QueueSize),
		broadcast.WithMaxConsecutiveDrops(cfg.Hub.MaxConsecutiveDrops),
		broadcast.WithLogger(l),
		broadcast.WithMetrics(m),
	)
}

// ProvideSettingsRepository seeds runtime settings from the config file and
// persists changes through the cache.
func ProvideSettingsRepository(cfg *config.Config, c cache.Service, l *applogger.Logger) *internalrepo.SettingsRepository {
	s := cfg.Settings
	return internalrepo.NewSettingsRepository(models.Settings{
		TradeAmount:            s.TradeAmount,
		TakeProfitPct:          s.TakeProfit,
		StopLossPct:            s.StopLoss,
		Timeframe:              string(models.NormalizeTimeframe(s.Timeframe)),
		ActivationDistancePct:  s.ActivationDistance,
		RefreshIntervalSeconds: s.RefreshInterval,
		SignalsEnabled:         s.EnableAISignals,
	}, c, l)
}

func ProvideSettingsStore(r *internalrepo.SettingsRepository) repository.SettingsStore {
	return r
}

func ProvideCheckpoint(c cache.Service, cfg *config.Config) repository.SnapshotCheckpoint {
	return internalrepo.NewCacheCheckpoint(c, cfg.Market.CheckpointTTL)
}

func ProvideSignalEngine(cfg *config.Config) *usecase.SignalEngine {
	return usecase.NewSignalEngine(usecase.SignalConfig{
		Threshold:      cfg.Signals.Threshold,
		BaseConfidence: cfg.Signals.BaseConfidence,
		Slope:          cfg.Signals.Slope,
		MaxConfidence:  cfg.Signals.MaxConfidence,
		HoldConfidence: cfg.Signals.HoldConfidence,
	})
}

func ProvideUpdateScheduler(
	cfg *config.Config,
	chain *usecase.SourceChain,
	store *usecase.MarketStore,
	hub *broadcast.Hub,
	settings repository.SettingsStore,
	engine *usecase.SignalEngine,
	checkpoint repository.SnapshotCheckpoint,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.UpdateScheduler {
	return usecase.NewUpdateScheduler(chain, store, hub, settings, engine, cfg.Market.Symbols,
		usecase.WithCheckpoint(checkpoint),
		usecase.WithFreshness(cfg.Market.StaleAfter, cfg.Market.FreshWait),
		usecase.WithSchedulerLogger(l),
		usecase.WithSchedulerMetrics(m),
	)
}

func ProvideTradeLedger(
	cfg *config.Config,
	scheduler *usecase.UpdateScheduler,
	settings repository.SettingsStore,
	engine *usecase.SignalEngine,
	hub *broadcast.Hub,
	pipeline *mid.TradePipeline,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.TradeLedger {
	return usecase.NewTradeLedger(scheduler, settings, engine, hub,
		usecase.WithSlippagePct(cfg.Ledger.SlippagePct),
		usecase.WithHistoryLimit(cfg.Ledger.HistoryLimit),
		usecase.WithTradeSink(pipeline),
		usecase.WithLedgerLogger(l),
		usecase.WithLedgerMetrics(m),
	)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.TradeRPS, cfg.RateLimit.TradeBurst, cfg.RateLimit.IdleTTL)
}

// ProvideHandlers collects every route group.
func ProvideHandlers(
	cfg *config.Config,
	l *applogger.Logger,
	scheduler *usecase.UpdateScheduler,
	store *usecase.MarketStore,
	engine *usecase.SignalEngine,
	settings repository.SettingsStore,
	hub *broadcast.Hub,
	ledger *usecase.TradeLedger,
	rl *ratelimit.Limiter,
) []xhttp.Handler {
	return []xhttp.Handler{
		apihandler.NewMarketHandler(l, scheduler, store, engine, settings, hub),
		apihandler.NewSettingsHandler(l, settings),
		apihandler.NewTradeHandler(l, ledger, rl),
		apihandler.NewWSHandler(l, hub, store, settings, apihandler.WSConfig{
			WriteWait:      cfg.WebSocket.WriteWait,
			PongWait:       cfg.WebSocket.PongWait,
			PingPeriod:     cfg.WebSocket.PingPeriod,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		}),
	}
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	scheduler *usecase.UpdateScheduler,
	stream *sources.StreamSource,
	pipeline *mid.TradePipeline,
	journal *usecase.TradeJournal,
	settings *internalrepo.SettingsRepository,
	c cache.Service,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, l, scheduler, stream, pipeline, journal, settings, c, httpServer)
}
