// Package handler exposes the HTTP handlers of the JSON API.  Handlers
// parse and validate transport input, call a service and translate its
// errors into status codes with a JSON {"error": ...} body.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/formbox/internal/repository"
	"github.com/iliyamo/formbox/internal/service"
)

// requestTimeout bounds the storage work of one request.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// parseFormID reads the :form_id path parameter.
func parseFormID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("form_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid form id")
	}
	return id, nil
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// writeError maps service and repository errors to a response.  Anything
// unexpected is logged and answered with a generic 500.
func writeError(c echo.Context, log *zap.Logger, err error, notFoundMsg string) error {
	status, msg := http.StatusInternalServerError, "internal server error"
	switch {
	case errors.Is(err, service.ErrValidation):
		status, msg = http.StatusBadRequest, "invalid input"
	case errors.Is(err, repository.ErrConflict):
		status, msg = http.StatusBadRequest, "already exists"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, msg = http.StatusBadRequest, "Invalid credentials"
	case errors.Is(err, service.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, repository.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		status, msg = http.StatusNotFound, notFoundMsg
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", zap.String("path", c.Request().URL.Path), zap.Error(err))
		status, msg = http.StatusServiceUnavailable, "request timed out"
	default:
		log.Error("request failed", zap.String("path", c.Request().URL.Path), zap.Error(err))
	}
	var se *service.Error
	if errors.As(err, &se) {
		msg = se.Msg
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func isForbidden(err error) bool { return errors.Is(err, repository.ErrForbidden) }
