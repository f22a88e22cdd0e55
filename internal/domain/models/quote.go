package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Quote is one symbol's 24h market observation.
type Quote struct {
	Symbol           string    `json:"pair"`
	DisplaySymbol    string    `json:"symbol"`
	Price            float64   `json:"price"`
	ChangePercent24h float64   `json:"change"`
	Volume24h        float64   `json:"volume"`
	High24h          float64   `json:"high24h"`
	Low24h           float64   `json:"low24h"`
	ObservedAt       time.Time `json:"lastUpdate"`
}

// Validate checks price > 0, volume >= 0 and low <= price <= high.
func (q Quote) Validate() error {
	switch {
	case q.Symbol == "":
		return errors.New("quote: empty symbol")
	case math.IsNaN(q.Price) || q.Price <= 0:
		return fmt.Errorf("quote %s: price must be positive, got %v", q.Symbol, q.Price)
	case q.Volume24h < 0:
		return fmt.Errorf("quote %s: negative volume %v", q.Symbol, q.Volume24h)
	case q.High24h < q.Price || q.Low24h > q.Price:
		return fmt.Errorf("quote %s: price %v outside 24h range [%v, %v]", q.Symbol, q.Price, q.Low24h, q.High24h)
	}
	return nil
}

var quoteAssets = []string{"USDT", "USDC", "FDUSD", "BUSD", "USD", "BTC", "ETH"}

// DisplaySymbolFor turns a canonical ticker such as BTCUSDT into BTC/USDT.
func DisplaySymbolFor(symbol string) string {
	for _, q := range quoteAssets {
		if len(symbol) > len(q) && strings.HasSuffix(symbol, q) {
			return symbol[:len(symbol)-len(q)] + "/" + q
		}
	}
	return symbol
}
