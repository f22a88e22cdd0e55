package models

import "time"

type EventType string

const (
	EventPriceUpdate      EventType = "price_update"
	EventTradeExecuted    EventType = "trade_executed"
	EventEmergencySell    EventType = "emergency_sell_executed"
	EventAISignalsUpdated EventType = "ai_signals_updated"
)

// Event is what the hub fans out to subscribers. Only the fields relevant to
// Type are set.
type Event struct {
	Type           EventType         `json:"type"`
	Data           *MarketSnapshot   `json:"data,omitempty"`
	UpdateInterval int               `json:"update_interval,omitempty"`
	Signals        map[string]Signal `json:"signals,omitempty"`
	Trade          *TradeRecord      `json:"trade,omitempty"`
	ClosedTrades   []TradeRecord     `json:"closed_trades,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

func PriceUpdateEvent(snap *MarketSnapshot, intervalSeconds int, signals map[string]Signal) Event {
	return Event{
		Type:           EventPriceUpdate,
		Data:           snap,
		UpdateInterval: intervalSeconds,
		Signals:        signals,
		Timestamp:      snap.CapturedAt(),
	}
}

func TradeExecutedEvent(rec TradeRecord) Event {
	return Event{Type: EventTradeExecuted, Trade: &rec, Timestamp: rec.ExecutedAt}
}

func EmergencySellEvent(closed []TradeRecord, at time.Time) Event {
	return Event{Type: EventEmergencySell, ClosedTrades: closed, Timestamp: at}
}

func SignalsUpdatedEvent(signals map[string]Signal, at time.Time) Event {
	return Event{Type: EventAISignalsUpdated, Signals: signals, Timestamp: at}
}
