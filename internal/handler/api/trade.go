package api

import (
	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	xlogger "CoinPulse/pkg/logger"
)

// TradeHandler exposes the simulated ledger.
type TradeHandler struct {
	logger *xlogger.Logger
	ledger *usecase.TradeLedger
	rl     *ratelimit.Limiter
}

// NewTradeHandler builds the handler. rl may be nil to disable limiting.
func NewTradeHandler(logger *xlogger.Logger, ledger *usecase.TradeLedger, rl *ratelimit.Limiter) *TradeHandler {
	return &TradeHandler{logger: logger, ledger: ledger, rl: rl}
}

func (h *TradeHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/trade/:pair", h.Execute)
	g.POST("/emergency-sell", h.EmergencySell)
	g.GET("/trades", h.List)
}

func (h *TradeHandler) Execute(c echo.Context) error {
	if h.rl != nil && !h.rl.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("Too many trade requests"))
	}

	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	side, err := models.ParseSide(req.Side)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	market, err := models.ParseMarketType(req.MarketType)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	rec, err := h.ledger.Execute(c.Request().Context(), req.Pair, side, market)
	if err != nil {
		appErr := toAppError(err).WithParam("pair", req.Pair)
		if appErr.Status >= 500 {
			h.logger.Error("trade failed", xlogger.String("pair", req.Pair), xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, echo.Map{"status": "success", "trade": rec})
}

func (h *TradeHandler) EmergencySell(c echo.Context) error {
	closed, err := h.ledger.EmergencyCloseAll(c.Request().Context())
	if err != nil {
		h.logger.Error("emergency sell failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, echo.Map{
		"status":           "success",
		"closed_positions": len(closed),
		"closed_trades":    closed,
	})
}

func (h *TradeHandler) List(c echo.Context) error {
	req := &models.TradesQuery{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, echo.Map{"trades": h.ledger.History(req.Limit)})
}
