package models

import (
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var settingsValidator = validator.New()

// Settings is the operator configuration. It is always replaced as a whole.
// Fields where zero is a valid choice carry no default tag, so an explicit
// 0 in a request is kept.
type Settings struct {
	TradeAmount            float64 `json:"trade_amount" yaml:"trade_amount" default:"500" validate:"gt=0"`
	TakeProfitPct          float64 `json:"take_profit" yaml:"take_profit" validate:"gte=0,lte=1000"`
	StopLossPct            float64 `json:"stop_loss" yaml:"stop_loss" validate:"gte=0,lte=100"`
	Timeframe              string  `json:"timeframe" yaml:"timeframe" default:"5m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	ActivationDistancePct  float64 `json:"activation_distance" yaml:"activation_distance" validate:"gte=0,lte=100"`
	RefreshIntervalSeconds int     `json:"refresh_interval" yaml:"refresh_interval" default:"5" validate:"gte=1,lte=3600"`
	SignalsEnabled         bool    `json:"enable_ai_signals" yaml:"enable_ai_signals"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	s := Settings{
		TakeProfitPct:         10,
		StopLossPct:           3,
		ActivationDistancePct: 1.5,
	}
	_ = defaults.Set(&s)
	return s
}

// Normalize canonicalizes free-form fields before validation.
func (s *Settings) Normalize() {
	s.Timeframe = string(NormalizeTimeframe(s.Timeframe))
}

func (s Settings) Validate() error {
	return settingsValidator.Struct(s)
}

// RefreshInterval is the scheduler cadence.
func (s Settings) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}
