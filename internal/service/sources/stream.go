package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"CoinPulse/internal/domain/models"
	applogger "CoinPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// StreamSource keeps the latest mini tickers pushed by the Binance websocket
// stream and serves them on Fetch without a network round trip.
type StreamSource struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	maxAge         time.Duration
	dialer         *websocket.Dialer
	logger         *applogger.Logger
	now            func() time.Time

	mu        sync.RWMutex
	tickers   map[string]streamEntry
	connected atomic.Bool
}

type streamEntry struct {
	quote      models.Quote
	receivedAt time.Time
}

// miniTicker mirrors a 24hrMiniTicker payload. encoding/json matches keys
// case-insensitively, so "e" and "E" each need their own field.
type miniTicker struct {
	EventType   string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	Close       string `json:"c"`
	Open        string `json:"o"`
	High        string `json:"h"`
	Low         string `json:"l"`
	BaseVolume  string `json:"v"`
	QuoteVolume string `json:"q"`
}

func NewStreamSource(url string, reconnectDelay, pingInterval, maxAge time.Duration, l *applogger.Logger) *StreamSource {
	if l == nil {
		l = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &StreamSource{
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		maxAge:         maxAge,
		dialer:         websocket.DefaultDialer,
		logger:         l.With(applogger.String("source", "binance-stream")),
		now:            time.Now,
		tickers:        make(map[string]streamEntry),
	}
}

func (s *StreamSource) Name() string { return "binance-stream" }

// Connected reports whether a stream connection is currently open.
func (s *StreamSource) Connected() bool { return s.connected.Load() }

// Run connects and reads until ctx is cancelled, reconnecting after each
// failure.
func (s *StreamSource) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		s.connected.Store(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("market stream disconnected", applogger.Error(err), applogger.Duration("retry_in_ms", s.reconnectDelay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *StreamSource) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	s.connected.Store(true)
	s.logger.Info("market stream connected", applogger.String("url", s.url))

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-sessCtx.Done()
		_ = conn.Close()
	}()

	readWait := 3 * s.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	go s.pingLoop(sessCtx, conn)

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("stream read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var batch []miniTicker
		if err := json.Unmarshal(b, &batch); err != nil {
			var single miniTicker
			if json.Unmarshal(b, &single) != nil || single.Symbol == "" {
				continue
			}
			batch = []miniTicker{single}
		}
		s.store(batch)
	}
}

func (s *StreamSource) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.pingInterval)); err != nil {
				return
			}
		}
	}
}

func (s *StreamSource) store(batch []miniTicker) {
	at := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range batch {
		q, err := t.toQuote()
		if err != nil {
			continue
		}
		s.tickers[t.Symbol] = streamEntry{quote: q, receivedAt: at}
	}
}

// Fetch serves the cached tickers. It fails when the stream is down or any
// requested symbol has no ticker younger than maxAge.
func (s *StreamSource) Fetch(_ context.Context, symbols []string) (*models.MarketSnapshot, error) {
	if !s.Connected() {
		return nil, errors.New("stream not connected")
	}

	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]models.Quote, 0, len(symbols))
	for _, sym := range symbols {
		e, ok := s.tickers[sym]
		if !ok || now.Sub(e.receivedAt) > s.maxAge {
			return nil, fmt.Errorf("stream has no fresh ticker for %s", sym)
		}
		quotes = append(quotes, e.quote)
	}
	return models.NewMarketSnapshot(s.Name(), now.UTC(), quotes), nil
}

func (t miniTicker) toQuote() (models.Quote, error) {
	var nums [5]float64
	for i, raw := range []string{t.Close, t.Open, t.High, t.Low, t.QuoteVolume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.Quote{}, err
		}
		nums[i] = v
	}
	closePrice, openPrice := nums[0], nums[1]
	var change float64
	if openPrice > 0 {
		change = (closePrice - openPrice) / openPrice * 100
	}
	return models.Quote{
		Symbol:           t.Symbol,
		DisplaySymbol:    models.DisplaySymbolFor(t.Symbol),
		Price:            closePrice,
		ChangePercent24h: change,
		Volume24h:        nums[4],
		High24h:          nums[2],
		Low24h:           nums[3],
		ObservedAt:       time.UnixMilli(t.EventTime).UTC(),
	}, nil
}
