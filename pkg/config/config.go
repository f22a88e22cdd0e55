package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8001"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Market struct {
		Symbols            []string      `yaml:"symbols" default:"[\"BTCUSDT\",\"ETHUSDT\",\"BNBUSDT\",\"ADAUSDT\",\"SOLUSDT\",\"DOTUSDT\"]"`
		SourceTimeout      time.Duration `yaml:"source_timeout" default:"8s"`
		StaleAfter         time.Duration `yaml:"stale_after" default:"30s"`
		FreshWait          time.Duration `yaml:"fresh_wait" default:"2s"`
		SyntheticJitterPct float64       `yaml:"synthetic_jitter_pct" default:"0.5"`
		CheckpointTTL      time.Duration `yaml:"checkpoint_ttl" default:"24h"`
	} `yaml:"market"`
	Sources struct {
		// Order lists the upstreams to try, highest priority first.
		Order       []string      `yaml:"order" default:"[\"stream\",\"exchange\",\"aggregator\"]"`
		HTTPTimeout time.Duration `yaml:"http_timeout" default:"10s"`
		UserAgent   string        `yaml:"user_agent" default:"CoinPulse/1.0"`
		Exchange    struct {
			BaseURL string `yaml:"base_url" default:"https://api.binance.com"`
		} `yaml:"exchange"`
		Aggregator struct {
			BaseURL string            `yaml:"base_url" default:"https://api.coingecko.com/api/v3"`
			APIKey  string            `yaml:"api_key"`
			CoinIDs map[string]string `yaml:"coin_ids"`
		} `yaml:"aggregator"`
	} `yaml:"sources"`
	Stream struct {
		URL            string        `yaml:"url" default:"wss://stream.binance.com:9443/ws/!miniTicker@arr"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		MaxAge         time.Duration `yaml:"max_age" default:"15s"`
	} `yaml:"stream"`
	Breaker struct {
		ConsecutiveFailures uint32        `yaml:"consecutive_failures" default:"3"`
		OpenTimeout         time.Duration `yaml:"open_timeout" default:"30s"`
		HalfOpenRequests    uint32        `yaml:"half_open_requests" default:"1"`
		Interval            time.Duration `yaml:"interval" default:"60s"`
	} `yaml:"breaker"`
	Hub struct {
		QueueSize           int `yaml:"queue_size" default:"16"`
		MaxConsecutiveDrops int `yaml:"max_consecutive_drops" default:"64"`
	} `yaml:"hub"`
	WebSocket struct {
		WriteWait      time.Duration `yaml:"write_wait" default:"10s"`
		PongWait       time.Duration `yaml:"pong_wait" default:"60s"`
		PingPeriod     time.Duration `yaml:"ping_period" default:"54s"`
		MaxMessageSize int64         `yaml:"max_message_size" default:"4096"`
	} `yaml:"websocket"`
	Signals struct {
		Threshold      float64 `yaml:"threshold" default:"2"`
		BaseConfidence float64 `yaml:"base_confidence" default:"65"`
		Slope          float64 `yaml:"slope" default:"3"`
		MaxConfidence  float64 `yaml:"max_confidence" default:"95"`
		HoldConfidence float64 `yaml:"hold_confidence" default:"60"`
	} `yaml:"signals"`
	Ledger struct {
		SlippagePct  float64 `yaml:"slippage_pct" default:"0.1"`
		HistoryLimit int     `yaml:"history_limit" default:"1000"`
	} `yaml:"ledger"`
	// Settings seeds the runtime settings until an operator changes them.
	Settings struct {
		TradeAmount        float64 `yaml:"trade_amount" default:"500"`
		TakeProfit         float64 `yaml:"take_profit" default:"10"`
		StopLoss           float64 `yaml:"stop_loss" default:"3"`
		Timeframe          string  `yaml:"timeframe" default:"5m"`
		ActivationDistance float64 `yaml:"activation_distance" default:"1.5"`
		RefreshInterval    int     `yaml:"refresh_interval" default:"5"`
		EnableAISignals    bool    `yaml:"enable_ai_signals"`
	} `yaml:"settings"`
	Backend struct {
		Type         string        `yaml:"type" default:"none"`
		BufferSize   int           `yaml:"buffer_size" default:"1000"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
		MaxRetries   int           `yaml:"max_retries" default:"3"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"coinpulse.trades"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		AutoCreate   bool     `yaml:"auto_create_topic"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"coinpulse"`
		Table            string        `yaml:"table" default:"trades"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Addr         string        `yaml:"addr" default:"localhost:6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		Prefix       string        `yaml:"prefix" default:"coinpulse"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"4s"`
		LocalSize    int           `yaml:"local_size" default:"256"`
	} `yaml:"redis"`
	RateLimit struct {
		TradeRPS   float64       `yaml:"trade_rps" default:"5"`
		TradeBurst int           `yaml:"trade_burst" default:"10"`
		IdleTTL    time.Duration `yaml:"idle_ttl" default:"10m"`
	} `yaml:"rate_limit"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	return &c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("COINPULSE_ENV"); ok && v != "" {
		c.Environment = v
	}
	if v, ok := lookup("SYMBOLS"); ok && v != "" {
		symbols := splitList(v)
		for i := range symbols {
			symbols[i] = strings.ToUpper(symbols[i])
		}
		c.Market.Symbols = symbols
	}
	if v, ok := lookup("BACKEND"); ok && v != "" {
		c.Backend.Type = v
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("KAFKA_TOPIC"); ok && v != "" {
		c.Kafka.Topic = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v, ok := lookup("COINGECKO_API_KEY"); ok && v != "" {
		c.Sources.Aggregator.APIKey = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("market.symbols cannot be empty")
	}
	if c.Market.SourceTimeout <= 0 || c.Market.FreshWait <= 0 || c.Market.StaleAfter <= 0 {
		return fmt.Errorf("market timeouts must be positive")
	}
	for _, s := range c.Sources.Order {
		switch s {
		case "stream", "exchange", "aggregator":
		default:
			return fmt.Errorf("sources.order: unknown source '%s'", s)
		}
	}
	if c.Hub.QueueSize <= 0 {
		return fmt.Errorf("hub.queue_size must be positive")
	}
	if r := c.Settings.RefreshInterval; r < 1 || r > 3600 {
		return fmt.Errorf("settings.refresh_interval must be within [1, 3600], got %d", r)
	}
	if c.Ledger.SlippagePct < 0 || c.Ledger.SlippagePct > 5 {
		return fmt.Errorf("ledger.slippage_pct must be within [0, 5]")
	}
	switch c.Backend.Type {
	case "none":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required for backend 'kafka'")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for backend 'clickhouse'")
		}
	default:
		return fmt.Errorf("backend.type must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	return nil
}
