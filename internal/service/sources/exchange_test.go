package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xhttp "CoinPulse/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeSourceFetch(t *testing.T) {
	var gotSymbols string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, exchangeTickerPath, r.URL.Path)
		gotSymbols = r.URL.Query().Get("symbols")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"symbol": "BTCUSDT", "lastPrice": "43000.10", "priceChangePercent": "2.50",
				"quoteVolume": "1000000", "highPrice": "44000", "lowPrice": "42000", "closeTime": 1700000000000,
			},
		})
	}))
	defer srv.Close()

	src := NewExchangeSource(srv.URL, xhttp.NewClient(xhttp.WithTimeout(time.Second)))
	snap, err := src.Fetch(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)

	assert.Equal(t, `["BTCUSDT"]`, gotSymbols)
	assert.Equal(t, "binance", snap.Source())
	q, ok := snap.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 43000.10, q.Price)
	assert.Equal(t, 2.5, q.ChangePercent24h)
	assert.Equal(t, "BTC/USDT", q.DisplaySymbol)
	assert.NoError(t, q.Validate())
}

func TestExchangeSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	src := NewExchangeSource(srv.URL, xhttp.NewClient())
	_, err := src.Fetch(context.Background(), []string{"NOPE"})
	var se *xhttp.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestAggregatorSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "key", r.Header.Get("x-cg-demo-api-key"))
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":100,"usd_24h_change":5,"usd_24h_vol":10},"ethereum":{"usd":50,"usd_24h_change":-4,"usd_24h_vol":3}}`))
	}))
	defer srv.Close()

	src := NewAggregatorSource(srv.URL, "key", nil, xhttp.NewClient())
	snap, err := src.Fetch(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)

	btc, _ := snap.Get("BTCUSDT")
	assert.InDelta(t, 105, btc.High24h, 1e-9)
	assert.InDelta(t, 98, btc.Low24h, 1e-9)

	eth, _ := snap.Get("ETHUSDT")
	assert.InDelta(t, 51, eth.High24h, 1e-9)
	assert.InDelta(t, 48, eth.Low24h, 1e-9)
	assert.NoError(t, snap.Covers([]string{"BTCUSDT", "ETHUSDT"}))
}

func TestAggregatorSourceUnknownCoin(t *testing.T) {
	src := NewAggregatorSource("http://127.0.0.1:0", "", nil, xhttp.NewClient())
	_, err := src.Fetch(context.Background(), []string{"FOOUSDT"})
	assert.Error(t, err)
}
