package service

import "CoinPulse/internal/domain/models"

// SignalDeriver turns a quote into an advisory signal. Implementations must
// be deterministic for a given quote.
type SignalDeriver interface {
	Derive(q models.Quote) models.Signal
	DeriveAll(snap *models.MarketSnapshot) map[string]models.Signal
}
