package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

type TradeStatus string

const (
	TradeFilled          TradeStatus = "filled"
	TradeEmergencyClosed TradeStatus = "emergency_closed"
)

// ParseSide accepts BUY or SELL in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("%w: side %q", ErrInvalidOrder, s)
}

// ParseMarketType accepts spot or futures; empty means spot.
func ParseMarketType(s string) (MarketType, error) {
	switch MarketType(strings.ToLower(strings.TrimSpace(s))) {
	case "", MarketSpot:
		return MarketSpot, nil
	case MarketFutures:
		return MarketFutures, nil
	}
	return "", fmt.Errorf("%w: market type %q", ErrInvalidOrder, s)
}

// TradeRecord is a simulated execution. Records are never mutated after
// creation; closing a position produces a new record.
type TradeRecord struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"pair"`
	Side            Side            `json:"side"`
	Quantity        decimal.Decimal `json:"amount"`
	Price           decimal.Decimal `json:"price"`
	MarketType      MarketType      `json:"market_type"`
	ExecutedAt      time.Time       `json:"timestamp"`
	Status          TradeStatus     `json:"status"`
	OriginalTradeID string          `json:"original_trade_id,omitempty"`
	Signal          *Signal         `json:"ai_signal,omitempty"`
}
