package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"SignalPulse/internal/usecase"
	xhttp "SignalPulse/pkg/http"
	xlogger "SignalPulse/pkg/logger"
)

// toAppError maps use case errors onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrSignalNotFound):
		return xhttp.NotFoundError("ERR_SIGNAL_NOT_FOUND", err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrNotAttributed):
		return xhttp.NotFoundError("ERR_NOT_ATTRIBUTED", err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrInvalidTransition):
		return xhttp.ConflictError("ERR_INVALID_TRANSITION", err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrInvalidExit):
		return xhttp.UnprocessableError("ERR_INVALID_EXIT", err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrInvalidRange):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	}
	return nil
}

func respondError(c echo.Context, log *xlogger.Logger, op string, err error) error {
	if appErr := toAppError(err); appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	log.Error(op+" failed", xlogger.Error(err), xlogger.String("path", c.Path()))
	return xhttp.InternalServerErrorResponse(c)
}
