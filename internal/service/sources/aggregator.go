package sources

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"CoinPulse/internal/domain/models"
	xhttp "CoinPulse/pkg/http"
)

// DefaultCoinIDs maps tickers to CoinGecko coin ids.
var DefaultCoinIDs = map[string]string{
	"BTCUSDT":  "bitcoin",
	"ETHUSDT":  "ethereum",
	"BNBUSDT":  "binancecoin",
	"ADAUSDT":  "cardano",
	"SOLUSDT":  "solana",
	"DOTUSDT":  "polkadot",
	"XRPUSDT":  "ripple",
	"DOGEUSDT": "dogecoin",
}

// AggregatorSource reads USD prices from the CoinGecko simple price API.
// The API has no 24h range, so high and low are estimated from the change.
type AggregatorSource struct {
	baseURL string
	apiKey  string
	coinIDs map[string]string
	client  *xhttp.Client
	now     func() time.Time
}

func NewAggregatorSource(baseURL, apiKey string, coinIDs map[string]string, client *xhttp.Client) *AggregatorSource {
	ids := make(map[string]string, len(DefaultCoinIDs)+len(coinIDs))
	for k, v := range DefaultCoinIDs {
		ids[k] = v
	}
	for k, v := range coinIDs {
		ids[strings.ToUpper(k)] = v
	}
	return &AggregatorSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		coinIDs: ids,
		client:  client,
		now:     time.Now,
	}
}

func (s *AggregatorSource) Name() string { return "coingecko" }

type coinPrice struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
	USD24hVol    float64 `json:"usd_24h_vol"`
}

func (s *AggregatorSource) Fetch(ctx context.Context, symbols []string) (*models.MarketSnapshot, error) {
	ids := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		id, ok := s.coinIDs[sym]
		if !ok {
			return nil, fmt.Errorf("coingecko: no coin id for %s", sym)
		}
		ids = append(ids, id)
	}

	headers := map[string]string{}
	if s.apiKey != "" {
		headers["x-cg-demo-api-key"] = s.apiKey
	}

	var prices map[string]coinPrice
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     s.baseURL + "/simple/price",
		Headers: headers,
		QueryParams: map[string][]string{
			"ids":                 {strings.Join(ids, ",")},
			"vs_currencies":       {"usd"},
			"include_24hr_change": {"true"},
			"include_24hr_vol":    {"true"},
		},
	}, &prices)
	if err != nil {
		return nil, fmt.Errorf("coingecko simple price: %w", err)
	}

	at := s.now().UTC()
	quotes := make([]models.Quote, 0, len(symbols))
	for _, sym := range symbols {
		p, ok := prices[s.coinIDs[sym]]
		if !ok {
			continue
		}
		high, low := estimateRange(p.USD, p.USD24hChange)
		quotes = append(quotes, models.Quote{
			Symbol:           sym,
			DisplaySymbol:    models.DisplaySymbolFor(sym),
			Price:            p.USD,
			ChangePercent24h: p.USD24hChange,
			Volume24h:        p.USD24hVol,
			High24h:          high,
			Low24h:           low,
			ObservedAt:       at,
		})
	}

	return models.NewMarketSnapshot(s.Name(), at, quotes), nil
}

// estimateRange widens the side the price moved towards by the change and
// uses a fixed 2% band on the other side.
func estimateRange(price, changePct float64) (high, low float64) {
	move := math.Abs(changePct) / 100
	high = price * 1.02
	low = price * 0.98
	if changePct > 0 {
		high = price * (1 + move)
	}
	if changePct < 0 {
		low = price * (1 - move)
	}
	return high, low
}
