package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSourceServesPushedTickers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`[{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"110","o":"100","h":"120","l":"90","q":"5000"}]`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	src := NewStreamSource(url, 50*time.Millisecond, time.Second, time.Minute, nil)

	_, err := src.Fetch(context.Background(), []string{"BTCUSDT"})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := src.Fetch(context.Background(), []string{"BTCUSDT"})
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	snap, err := src.Fetch(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)
	q, _ := snap.Get("BTCUSDT")
	assert.Equal(t, 110.0, q.Price)
	assert.InDelta(t, 10.0, q.ChangePercent24h, 1e-9)
	assert.NoError(t, q.Validate())

	_, err = src.Fetch(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	assert.Error(t, err)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
	assert.False(t, src.Connected())
}

func TestMiniTickerDecodesExchangeFrame(t *testing.T) {
	frame := `[{"e":"24hrMiniTicker","E":1700000000000,"s":"ETHUSDT","c":"2600.5","o":"2500","h":"2650","l":"2480","v":"1200.5","q":"3100000"}]`

	var batch []miniTicker
	require.NoError(t, json.Unmarshal([]byte(frame), &batch))
	require.Len(t, batch, 1)
	assert.Equal(t, "24hrMiniTicker", batch[0].EventType)
	assert.Equal(t, int64(1700000000000), batch[0].EventTime)

	q, err := batch[0].toQuote()
	require.NoError(t, err)
	assert.Equal(t, 2600.5, q.Price)
	assert.NoError(t, q.Validate())
}
