package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"SignalPulse/internal/domain/models"
	"SignalPulse/internal/usecase"
	xhttp "SignalPulse/pkg/http"
	xlogger "SignalPulse/pkg/logger"
	xutil "SignalPulse/pkg/util"
)

const defaultReportDays = 30

// AnalyticsHandler serves aggregate metrics and performance reports.
type AnalyticsHandler struct {
	logger *xlogger.Logger
	perf   *usecase.PerformanceService
	now    func() time.Time
}

func NewAnalyticsHandler(logger *xlogger.Logger, perf *usecase.PerformanceService) *AnalyticsHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &AnalyticsHandler{logger: logger, perf: perf, now: time.Now}
}

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/metrics/aggregate", h.Aggregate)
	g.GET("/performance/report", h.Report)
}

func (h *AnalyticsHandler) Aggregate(c echo.Context) error {
	req := &models.AggregateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, ok := h.day(req.Date, h.now())
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid date %q", req.Date))
	}

	agg, err := h.perf.Aggregate(c.Request().Context(), date, scopeOf(req.Scope, req.Value))
	if err != nil {
		return respondError(c, h.logger, "aggregate metrics", err)
	}
	return xhttp.SuccessResponse(c, agg)
}

// Report defaults to the 30 days ending today.
func (h *AnalyticsHandler) Report(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	to, ok := h.day(req.To, h.now())
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid to %q", req.To))
	}
	from, ok := h.day(req.From, to.AddDate(0, 0, -defaultReportDays))
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid from %q", req.From))
	}

	rep, err := h.perf.Report(c.Request().Context(), from, to)
	if err != nil {
		return respondError(c, h.logger, "performance report", err)
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *AnalyticsHandler) day(s string, def time.Time) (time.Time, bool) {
	if s == "" {
		return xutil.Day(def), true
	}
	t, ok := xutil.ParseTime(s)
	return xutil.Day(t), ok
}
