package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"CoinPulse/internal/domain/models"
)

func TestSignalEngine_Thresholds(t *testing.T) {
	e := NewSignalEngine(DefaultSignalConfig())

	tests := []struct {
		name    string
		change  float64
		verdict models.Verdict
		minConf float64
		maxConf float64
	}{
		{"strong rise", 5, models.VerdictBuy, 75, 95},
		{"strong fall", -5, models.VerdictSell, 75, 95},
		{"flat", 0, models.VerdictHold, 60, 60},
		{"at threshold", 2, models.VerdictHold, 60, 60},
		{"just above", 2.01, models.VerdictBuy, 65, 95},
		{"huge rise is capped", 80, models.VerdictBuy, 95, 95},
		{"huge fall is capped", -80, models.VerdictSell, 95, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := e.Derive(quote("BTCUSDT", 100, tt.change))
			assert.Equal(t, tt.verdict, s.Verdict)
			assert.GreaterOrEqual(t, s.Confidence, tt.minConf)
			assert.LessOrEqual(t, s.Confidence, tt.maxConf)
			assert.NotEmpty(t, s.Rationale)
		})
	}
}

func TestSignalEngine_ConfidenceClamped(t *testing.T) {
	e := NewSignalEngine(SignalConfig{Threshold: 1, BaseConfidence: 90, Slope: 50, MaxConfidence: 500, HoldConfidence: -10})

	assert.Equal(t, 100.0, e.Derive(quote("X", 1, 10)).Confidence)
	assert.Equal(t, 0.0, e.Derive(quote("X", 1, 0)).Confidence)
}

func TestSignalEngine_Deterministic(t *testing.T) {
	e := NewSignalEngine(DefaultSignalConfig())
	q := quote("ETHUSDT", 2000, -3.3)
	assert.Equal(t, e.Derive(q), e.Derive(q))
	assert.Equal(t, q.ObservedAt, e.Derive(q).ComputedAt)
}

func TestSignalEngine_DeriveAll(t *testing.T) {
	e := NewSignalEngine(DefaultSignalConfig())
	snap := models.NewMarketSnapshot("x", time.Now(), []models.Quote{
		quote("BTCUSDT", 1, 5),
		quote("ETHUSDT", 1, -5),
	})

	all := e.DeriveAll(snap)
	assert.Len(t, all, 2)
	assert.Equal(t, models.VerdictBuy, all["BTCUSDT"].Verdict)
	assert.Equal(t, models.VerdictSell, all["ETHUSDT"].Verdict)
}
