package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/usecase"
	xhttp "SignalPulse/pkg/http"
	"SignalPulse/pkg/http/middleware"
	xlogger "SignalPulse/pkg/logger"
	xutil "SignalPulse/pkg/util"
)

// SignalsHandler serves the signal feed and its lifecycle transitions.
type SignalsHandler struct {
	logger    *xlogger.Logger
	lifecycle *usecase.SignalLifecycle
	perf      *usecase.PerformanceService
	// tierFromToken makes the JWT claim authoritative over the tier query.
	tierFromToken bool
	now           func() time.Time
}

func NewSignalsHandler(logger *xlogger.Logger, lifecycle *usecase.SignalLifecycle, perf *usecase.PerformanceService, tierFromToken bool) *SignalsHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &SignalsHandler{
		logger:        logger,
		lifecycle:     lifecycle,
		perf:          perf,
		tierFromToken: tierFromToken,
		now:           time.Now,
	}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/signals")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/close", h.Close)
	g.POST("/:id/cancel", h.Cancel)
	g.GET("/:id/performance", h.Performance)
}

func (h *SignalsHandler) List(c echo.Context) error {
	req := &models.ListSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tier := models.Tier(req.Tier)
	if h.tierFromToken {
		tier = models.Tier(middleware.Tier(c))
	}
	if tier == "" {
		tier = models.TierBasic
	}

	day := h.now()
	if req.Date != "" {
		d, ok := xutil.ParseTime(req.Date)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid date %q", req.Date))
		}
		day = d
	}

	rows, err := h.lifecycle.ListForTier(c.Request().Context(), tier, models.Status(req.Status), day, req.Limit)
	if err != nil {
		return respondError(c, h.logger, "list signals", err)
	}
	if rows == nil {
		rows = []models.Signal{}
	}
	return xhttp.CachedListResponse(c, rows, int64(len(rows)), 15*time.Second)
}

func (h *SignalsHandler) Get(c echo.Context) error {
	req := &models.SignalIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.lifecycle.Get(c.Request().Context(), req.ID)
	if err != nil {
		return respondError(c, h.logger, "get signal", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *SignalsHandler) Close(c echo.Context) error {
	req := &models.CloseSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var exitTime time.Time
	if req.ExitTime != nil {
		exitTime = *req.ExitTime
	}

	s, err := h.lifecycle.Close(c.Request().Context(), req.ID, req.ExitPrice, exitTime)
	if err != nil {
		return respondError(c, h.logger, "close signal", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *SignalsHandler) Cancel(c echo.Context) error {
	req := &models.SignalIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.lifecycle.Cancel(c.Request().Context(), req.ID)
	if err != nil {
		return respondError(c, h.logger, "cancel signal", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *SignalsHandler) Performance(c echo.Context) error {
	req := &models.SignalIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.perf.Performance(c.Request().Context(), req.ID)
	if err != nil {
		return respondError(c, h.logger, "signal performance", err)
	}
	return xhttp.SuccessResponse(c, rec)
}
