package usecase

import (
	"fmt"
	"math"

	"CoinPulse/internal/domain/models"
)

// SignalConfig holds the momentum heuristic parameters.
type SignalConfig struct {
	Threshold      float64 // absolute 24h change (%) that triggers BUY or SELL
	BaseConfidence float64
	Slope          float64 // confidence added per percent of change
	MaxConfidence  float64
	HoldConfidence float64
}

func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		Threshold:      2,
		BaseConfidence: 65,
		Slope:          3,
		MaxConfidence:  95,
		HoldConfidence: 60,
	}
}

// SignalEngine derives BUY/SELL/HOLD from the 24h change. Derive depends
// only on the quote, so the same quote always yields the same signal.
type SignalEngine struct {
	cfg SignalConfig
}

func NewSignalEngine(cfg SignalConfig) *SignalEngine {
	return &SignalEngine{cfg: cfg}
}

func (e *SignalEngine) Derive(q models.Quote) models.Signal {
	chg := q.ChangePercent24h
	s := models.Signal{
		Symbol:     q.Symbol,
		Verdict:    models.VerdictHold,
		Confidence: clamp(e.cfg.HoldConfidence),
		ComputedAt: q.ObservedAt,
		Rationale:  fmt.Sprintf("24h change %+.2f%% within ±%.2f%%", chg, e.cfg.Threshold),
	}

	if math.Abs(chg) <= e.cfg.Threshold || math.IsNaN(chg) {
		return s
	}

	conf := math.Min(e.cfg.MaxConfidence, e.cfg.BaseConfidence+e.cfg.Slope*math.Abs(chg))
	s.Confidence = clamp(conf)
	if chg > 0 {
		s.Verdict = models.VerdictBuy
		s.Rationale = fmt.Sprintf("upward momentum: 24h change %+.2f%% above +%.2f%%", chg, e.cfg.Threshold)
	} else {
		s.Verdict = models.VerdictSell
		s.Rationale = fmt.Sprintf("downward momentum: 24h change %+.2f%% below -%.2f%%", chg, e.cfg.Threshold)
	}
	return s
}

func (e *SignalEngine) DeriveAll(snap *models.MarketSnapshot) map[string]models.Signal {
	out := make(map[string]models.Signal, snap.Len())
	for _, q := range snap.Quotes() {
		out[q.Symbol] = e.Derive(q)
	}
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
