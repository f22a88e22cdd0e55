package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"CoinPulse/internal/domain/models"
	xhttp "CoinPulse/pkg/http"
)

const exchangeTickerPath = "/api/v3/ticker/24hr"

// ExchangeSource reads 24h tickers from a Binance compatible REST API.
type ExchangeSource struct {
	name    string
	baseURL string
	client  *xhttp.Client
	now     func() time.Time
}

type ExchangeOption func(*ExchangeSource)

// WithExchangeName overrides the name reported in logs and metrics.
func WithExchangeName(name string) ExchangeOption {
	return func(s *ExchangeSource) { s.name = name }
}

func WithExchangeClock(now func() time.Time) ExchangeOption {
	return func(s *ExchangeSource) { s.now = now }
}

func NewExchangeSource(baseURL string, client *xhttp.Client, opts ...ExchangeOption) *ExchangeSource {
	s := &ExchangeSource{
		name:    "binance",
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExchangeSource) Name() string { return s.name }

type exchangeTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	CloseTime          int64  `json:"closeTime"`
}

func (t exchangeTicker) toQuote() (models.Quote, error) {
	var nums [5]float64
	for i, raw := range []string{t.LastPrice, t.PriceChangePercent, t.QuoteVolume, t.HighPrice, t.LowPrice} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.Quote{}, fmt.Errorf("ticker %s: parse %q: %w", t.Symbol, raw, err)
		}
		nums[i] = v
	}
	return models.Quote{
		Symbol:           t.Symbol,
		DisplaySymbol:    models.DisplaySymbolFor(t.Symbol),
		Price:            nums[0],
		ChangePercent24h: nums[1],
		Volume24h:        nums[2],
		High24h:          nums[3],
		Low24h:           nums[4],
		ObservedAt:       time.UnixMilli(t.CloseTime).UTC(),
	}, nil
}

// Fetch requests all symbols in one call.
func (s *ExchangeSource) Fetch(ctx context.Context, symbols []string) (*models.MarketSnapshot, error) {
	list, err := json.Marshal(symbols)
	if err != nil {
		return nil, err
	}

	var tickers []exchangeTicker
	err = s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         s.baseURL + exchangeTickerPath,
		QueryParams: map[string][]string{"symbols": {string(list)}},
	}, &tickers)
	if err != nil {
		return nil, fmt.Errorf("%s ticker: %w", s.name, err)
	}

	quotes := make([]models.Quote, 0, len(tickers))
	for _, t := range tickers {
		q, err := t.toQuote()
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}

	return models.NewMarketSnapshot(s.name, s.now().UTC(), quotes), nil
}
