package models

import "strings"

// Requests for the trading HTTP endpoints.

type TradeRequest struct {
	Pair       string `param:"pair" validate:"required,min=5,max=20,alphanum"`
	Side       string `query:"side" validate:"required,oneof=BUY SELL"`
	MarketType string `query:"market_type" default:"spot" validate:"oneof=spot futures"`
}

func (r *TradeRequest) Normalize() {
	r.Pair = strings.ToUpper(strings.ReplaceAll(r.Pair, "/", ""))
	r.Side = strings.ToUpper(r.Side)
	r.MarketType = strings.ToLower(r.MarketType)
}

type TradesQuery struct {
	Limit int `query:"limit" default:"10" validate:"gte=1,lte=100"`
}
