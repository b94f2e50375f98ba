package api

import (
	"github.com/labstack/echo/v4"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/usecase"
	xhttp "SignalPulse/pkg/http"
	xlogger "SignalPulse/pkg/logger"
)

// Watcher is told about signals emitted outside the scheduler.
type Watcher interface {
	Watch(signals []models.Signal)
}

type CyclesHandler struct {
	logger  *xlogger.Logger
	cycle   *usecase.DetectionCycle
	watcher Watcher
}

func NewCyclesHandler(logger *xlogger.Logger, cycle *usecase.DetectionCycle, watcher Watcher) *CyclesHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &CyclesHandler{logger: logger, cycle: cycle, watcher: watcher}
}

func (h *CyclesHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/cycles/run", h.Run)
}

// Run executes one detection cycle synchronously and returns what it stored.
func (h *CyclesHandler) Run(c echo.Context) error {
	req := &models.RunCycleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.cycle.Run(c.Request().Context(), usecase.CycleOptions{
		Symbols:         req.Symbols,
		ForceInvestment: req.ForceInvestment,
	})
	if err != nil {
		return respondError(c, h.logger, "detection cycle", err)
	}
	if h.watcher != nil && len(res.Emitted) > 0 {
		h.watcher.Watch(res.Emitted)
	}
	return xhttp.SuccessResponse(c, toCycleResponse(res))
}
