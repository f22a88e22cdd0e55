package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/cache"
	applogger "CoinPulse/pkg/logger"
)

const settingsKey = "settings:current"

// SettingsRepository keeps the current settings in memory and, when a cache
// is configured, persists every replacement so it survives restarts.
type SettingsRepository struct {
	current atomic.Pointer[models.Settings]
	writeMu sync.Mutex
	cache   cache.Service
	logger  *applogger.Logger
}

// NewSettingsRepository starts from defaults. cache may be nil.
func NewSettingsRepository(defaults models.Settings, c cache.Service, l *applogger.Logger) *SettingsRepository {
	if l == nil {
		l = applogger.Nop()
	}
	r := &SettingsRepository{cache: c, logger: l}
	r.current.Store(&defaults)
	return r
}

// Load replaces the defaults with persisted settings if there are any.
func (r *SettingsRepository) Load(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	var s models.Settings
	if err := r.cache.Get(ctx, settingsKey, &s); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil
		}
		return fmt.Errorf("load settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		r.logger.Warn("ignoring invalid persisted settings", applogger.Error(err))
		return nil
	}
	r.current.Store(&s)
	r.logger.Info("settings restored", applogger.Int("refresh_interval", s.RefreshIntervalSeconds))
	return nil
}

func (r *SettingsRepository) Get(context.Context) (models.Settings, error) {
	return *r.current.Load(), nil
}

// Set validates and replaces the settings as a whole. Last write wins.
func (r *SettingsRepository) Set(ctx context.Context, s models.Settings) error {
	s.Normalize()
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidSettings, err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.cache != nil {
		if err := r.cache.Set(ctx, settingsKey, s, 0); err != nil {
			r.logger.Warn("settings not persisted", applogger.Error(err))
		}
	}
	r.current.Store(&s)
	return nil
}
