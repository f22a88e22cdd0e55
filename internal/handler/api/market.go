package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/service/broadcast"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	xlogger "CoinPulse/pkg/logger"
)

// MarketHandler serves quotes, signals and the manual refresh trigger.
type MarketHandler struct {
	logger    *xlogger.Logger
	scheduler *usecase.UpdateScheduler
	store     *usecase.MarketStore
	engine    *usecase.SignalEngine
	settings  domrepo.SettingsStore
	hub       *broadcast.Hub
}

func NewMarketHandler(
	logger *xlogger.Logger,
	scheduler *usecase.UpdateScheduler,
	store *usecase.MarketStore,
	engine *usecase.SignalEngine,
	settings domrepo.SettingsStore,
	hub *broadcast.Hub,
) *MarketHandler {
	return &MarketHandler{
		logger:    logger,
		scheduler: scheduler,
		store:     store,
		engine:    engine,
		settings:  settings,
		hub:       hub,
	}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/pairs", h.Pairs)
	g.GET("/pairs/all", h.PairsWithSignals)
	g.GET("/ai-signals", h.Signals)
	g.POST("/generate-ai-signals", h.GenerateSignals)
	g.POST("/refresh-prices", h.RefreshPrices)
}

type healthResponse struct {
	Status      string    `json:"status"`
	Scheduler   string    `json:"scheduler"`
	Seq         uint64    `json:"seq"`
	Source      string    `json:"source,omitempty"`
	Synthetic   bool      `json:"synthetic"`
	LastUpdate  time.Time `json:"last_update"`
	Subscribers int       `json:"subscribers"`
	Timestamp   time.Time `json:"timestamp"`
}

func (h *MarketHandler) Health(c echo.Context) error {
	resp := healthResponse{
		Status:      "healthy",
		Scheduler:   h.scheduler.State().String(),
		LastUpdate:  h.store.LastUpdatedAt(),
		Subscribers: h.hub.Len(),
		Timestamp:   time.Now().UTC(),
	}
	if snap := h.store.Read(); snap != nil {
		resp.Seq = snap.Seq()
		resp.Source = snap.Source()
		resp.Synthetic = snap.Synthetic()
	}
	return xhttp.SuccessResponse(c, resp)
}

// current returns the stored snapshot, fetching one first when the store is
// still empty.
func (h *MarketHandler) current(c echo.Context) (*models.MarketSnapshot, error) {
	if snap := h.store.Read(); snap != nil {
		return snap, nil
	}
	return h.scheduler.EnsureFresh(c.Request().Context())
}

func (h *MarketHandler) Pairs(c echo.Context) error {
	snap, err := h.current(c)
	if err != nil {
		h.logger.Error("pairs: no snapshot", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, echo.Map{"pairs": snap})
}

func (h *MarketHandler) PairsWithSignals(c echo.Context) error {
	ctx := c.Request().Context()
	snap, err := h.current(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	st, err := h.settings.Get(ctx)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	resp := echo.Map{
		"pairs":           snap,
		"update_interval": st.RefreshIntervalSeconds,
		"last_update":     snap.CapturedAt(),
		"ai_enabled":      st.SignalsEnabled,
	}
	if st.SignalsEnabled {
		resp["signals"] = h.engine.DeriveAll(snap)
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *MarketHandler) Signals(c echo.Context) error {
	st, err := h.settings.Get(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	signals := map[string]models.Signal{}
	if st.SignalsEnabled {
		if snap := h.store.Read(); snap != nil {
			signals = h.engine.DeriveAll(snap)
		}
	}
	return xhttp.SuccessResponse(c, echo.Map{"enabled": st.SignalsEnabled, "signals": signals})
}

// GenerateSignals derives signals from a fresh snapshot and pushes them to
// every subscriber.
func (h *MarketHandler) GenerateSignals(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := h.settings.Get(ctx)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if !st.SignalsEnabled {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("AI signals are disabled").WithParam("setting", "enable_ai_signals"))
	}

	snap, err := h.scheduler.EnsureFresh(ctx)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	signals := h.engine.DeriveAll(snap)
	res := h.hub.Publish(models.SignalsUpdatedEvent(signals, time.Now().UTC()))
	h.logger.Info("signals generated",
		xlogger.Int("signals", len(signals)),
		xlogger.Int("delivered", res.Delivered),
	)
	return xhttp.SuccessResponse(c, echo.Map{"signals": signals})
}

func (h *MarketHandler) RefreshPrices(c echo.Context) error {
	snap, err := h.scheduler.Refresh(c.Request().Context())
	if err != nil {
		h.logger.Error("manual refresh failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, echo.Map{
		"status":    "success",
		"message":   "Prices updated",
		"seq":       snap.Seq(),
		"synthetic": snap.Synthetic(),
	})
}
