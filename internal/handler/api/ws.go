package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/service/broadcast"
	"CoinPulse/internal/usecase"
	xlogger "CoinPulse/pkg/logger"
)

// WSConfig tunes the subscriber connections.
type WSConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func DefaultWSConfig() WSConfig {
	return WSConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 4096,
	}
}

// WSHandler streams hub events to websocket subscribers.
type WSHandler struct {
	logger   *xlogger.Logger
	hub      *broadcast.Hub
	store    *usecase.MarketStore
	settings domrepo.SettingsStore
	cfg      WSConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *xlogger.Logger, hub *broadcast.Hub, store *usecase.MarketStore, settings domrepo.SettingsStore, cfg WSConfig) *WSHandler {
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	return &WSHandler{
		logger:   logger,
		hub:      hub,
		store:    store,
		settings: settings,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// origins are enforced by the CORS middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ws", h.Serve)
}

func (h *WSHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}

	sub := h.hub.Subscribe()
	l := h.logger.With(xlogger.Uint64("subscriber", sub.ID()), xlogger.String("remote", c.RealIP()))
	l.Debug("subscriber connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(conn, sub, h.initialEvent(c.Request().Context()), l)
	}()

	h.readPump(conn, sub)

	sub.Close()
	h.hub.Unsubscribe(sub)
	<-writerDone
	_ = conn.Close()
	l.Debug("subscriber disconnected", xlogger.Uint64("dropped", sub.Dropped()))
	return nil
}

// initialEvent lets a new subscriber render immediately instead of waiting
// for the next tick.
func (h *WSHandler) initialEvent(ctx context.Context) *models.Event {
	snap := h.store.Read()
	if snap == nil {
		return nil
	}
	interval := models.DefaultSettings().RefreshIntervalSeconds
	if st, err := h.settings.Get(ctx); err == nil {
		interval = st.RefreshIntervalSeconds
	}
	ev := models.PriceUpdateEvent(snap, interval, nil)
	return &ev
}

// readPump only watches for pongs and disconnects; clients send nothing we
// act on.
func (h *WSHandler) readPump(conn *websocket.Conn, sub *broadcast.Subscriber) {
	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		select {
		case <-sub.Done():
			return
		default:
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub *broadcast.Subscriber, first *models.Event, l *xlogger.Logger) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		// unblocks readPump
		_ = conn.SetReadDeadline(time.Now())
	}()

	write := func(ev models.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
		if err := conn.WriteJSON(ev); err != nil {
			l.Debug("websocket write failed", xlogger.Error(err))
			return false
		}
		return true
	}

	if first != nil && !write(*first) {
		return
	}

	for {
		select {
		case <-sub.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteWait))
			return
		case ev := <-sub.Events():
			if !write(ev) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteWait)); err != nil {
				return
			}
		}
	}
}
