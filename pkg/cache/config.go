package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOption configures NewRedisCache.
type RedisOption func(*redisSettings)

type redisSettings struct {
	client      redis.Options
	prefix      string
	pingTimeout time.Duration
}

func defaultRedisSettings() *redisSettings {
	return &redisSettings{
		client: redis.Options{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
			PoolTimeout:  4 * time.Second,
		},
		prefix:      "coinpulse",
		pingTimeout: 5 * time.Second,
	}
}

func WithRedisAddr(addr string) RedisOption {
	return func(s *redisSettings) { s.client.Addr = addr }
}

func WithRedisPassword(password string) RedisOption {
	return func(s *redisSettings) { s.client.Password = password }
}

func WithRedisDB(db int) RedisOption {
	return func(s *redisSettings) { s.client.DB = db }
}

// WithRedisPool sets the pool size, the idle floor and how long a caller
// waits for a free connection. Non-positive values keep the defaults.
func WithRedisPool(size, minIdle int, timeout time.Duration) RedisOption {
	return func(s *redisSettings) {
		if size > 0 {
			s.client.PoolSize = size
		}
		if minIdle >= 0 {
			s.client.MinIdleConns = minIdle
		}
		if timeout > 0 {
			s.client.PoolTimeout = timeout
		}
	}
}

// WithRedisPrefix namespaces every key, so several deployments can share
// one Redis database.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *redisSettings) { s.prefix = prefix }
}

// MemoryOption configures NewMemoryCache.
type MemoryOption func(*MemoryCache)

// WithMemoryMaxSize bounds the number of entries; the least recently used
// entry is evicted past it.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(mc *MemoryCache) {
		if size > 0 {
			mc.maxSize = size
		}
	}
}
