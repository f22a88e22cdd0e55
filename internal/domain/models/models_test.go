package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quote(sym string, price float64) Quote {
	return Quote{
		Symbol:        sym,
		DisplaySymbol: DisplaySymbolFor(sym),
		Price:         price,
		Volume24h:     1,
		High24h:       price * 1.02,
		Low24h:        price * 0.98,
	}
}

func TestQuoteValidate(t *testing.T) {
	assert.NoError(t, quote("BTCUSDT", 100).Validate())

	bad := quote("BTCUSDT", 100)
	bad.Price = 0
	assert.Error(t, bad.Validate())

	bad = quote("BTCUSDT", 100)
	bad.High24h = 99
	assert.Error(t, bad.Validate())

	bad = quote("BTCUSDT", 100)
	bad.Volume24h = -1
	assert.Error(t, bad.Validate())
}

func TestDisplaySymbolFor(t *testing.T) {
	assert.Equal(t, "BTC/USDT", DisplaySymbolFor("BTCUSDT"))
	assert.Equal(t, "ETH/BTC", DisplaySymbolFor("ETHBTC"))
	assert.Equal(t, "USDT", DisplaySymbolFor("USDT"))
}

func TestSnapshotIsDetachedFromInput(t *testing.T) {
	in := []Quote{quote("ETHUSDT", 2000), quote("BTCUSDT", 40000)}
	snap := NewMarketSnapshot("binance", time.Unix(0, 0), in)
	in[0].Price = 1

	q, ok := snap.Get("ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, 2000.0, q.Price)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, snap.Symbols())

	syms := snap.Symbols()
	syms[0] = "XXX"
	assert.Equal(t, "BTCUSDT", snap.Symbols()[0])
}

func TestSnapshotCovers(t *testing.T) {
	snap := NewMarketSnapshot("binance", time.Now(), []Quote{quote("BTCUSDT", 1)})
	assert.NoError(t, snap.Covers([]string{"BTCUSDT"}))
	assert.Error(t, snap.Covers([]string{"BTCUSDT", "ETHUSDT"}))
}

func TestSnapshotJSONAndSeq(t *testing.T) {
	snap := NewMarketSnapshot("binance", time.Now(), []Quote{quote("BTCUSDT", 1)})
	next := snap.WithSeq(7)
	assert.Equal(t, uint64(0), snap.Seq())
	assert.Equal(t, uint64(7), next.Seq())

	raw, err := json.Marshal(PriceUpdateEvent(next, 5, nil))
	require.NoError(t, err)

	var decoded struct {
		Type           string           `json:"type"`
		Data           map[string]Quote `json:"data"`
		UpdateInterval int              `json:"update_interval"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "price_update", decoded.Type)
	assert.Equal(t, 5, decoded.UpdateInterval)
	assert.Equal(t, "BTC/USDT", decoded.Data["BTCUSDT"].DisplaySymbol)
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 500.0, s.TradeAmount)
	assert.Equal(t, "5m", s.Timeframe)
	assert.Equal(t, 5, s.RefreshIntervalSeconds)
	assert.Equal(t, 5*time.Second, s.RefreshInterval())
	assert.NoError(t, s.Validate())
}

func TestSettingsValidateInterval(t *testing.T) {
	s := DefaultSettings()
	s.RefreshIntervalSeconds = 0
	assert.Error(t, s.Validate())
	s.RefreshIntervalSeconds = 3601
	assert.Error(t, s.Validate())
	s.RefreshIntervalSeconds = 3600
	assert.NoError(t, s.Validate())
}

func TestSourceErrorMatchesBoth(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := error(&SourceError{Source: "binance", Err: cause})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("buy")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, s)

	_, err = ParseSide("hold")
	assert.ErrorIs(t, err, ErrInvalidOrder)

	m, err := ParseMarketType("")
	require.NoError(t, err)
	assert.Equal(t, MarketSpot, m)
}
