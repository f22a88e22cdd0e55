package api

import (
	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	xhttp "CoinPulse/pkg/http"
	xlogger "CoinPulse/pkg/logger"
)

type SettingsHandler struct {
	logger   *xlogger.Logger
	settings domrepo.SettingsStore
}

func NewSettingsHandler(logger *xlogger.Logger, settings domrepo.SettingsStore) *SettingsHandler {
	return &SettingsHandler{logger: logger, settings: settings}
}

func (h *SettingsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/settings", h.Get)
	g.POST("/settings", h.Update)
}

func (h *SettingsHandler) Get(c echo.Context) error {
	st, err := h.settings.Get(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, st)
}

// Update replaces the settings as a whole. Omitted trade_amount, timeframe
// and refresh_interval take their defaults; the percentage fields accept 0
// and are 0 when omitted. The update scheduler reads the refresh interval when a cycle
// completes, so a new interval applies from the wait after the pending one.
func (h *SettingsHandler) Update(c echo.Context) error {
	req := &models.Settings{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.settings.Set(c.Request().Context(), *req); err != nil {
		h.logger.Warn("settings rejected", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	h.logger.Info("settings updated",
		xlogger.Int("refresh_interval", req.RefreshIntervalSeconds),
		xlogger.Bool("ai_signals", req.SignalsEnabled),
	)
	return xhttp.SuccessResponse(c, echo.Map{"status": "updated", "settings": req})
}
