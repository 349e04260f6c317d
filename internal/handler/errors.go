package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tableorder-service/internal/apperror"
	"tableorder-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var statusByKind = map[apperror.Kind]int{
	apperror.KindNotFound:   http.StatusNotFound,
	apperror.KindConflict:   http.StatusConflict,
	apperror.KindBadRequest: http.StatusBadRequest,
	apperror.KindInternal:   http.StatusInternalServerError,
}

// respondError writes err as {"error": msg}. Internal causes are logged, never returned.
func respondError(c echo.Context, err error) error {
	kind := apperror.KindOf(err)
	msg := "internal server error"
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		msg = appErr.Public()
	}
	if kind == apperror.KindInternal {
		logger.FromEcho(c).Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.JSON(statusByKind[kind], echo.Map{"error": msg})
}

func badRequest(c echo.Context, format string, args ...any) error {
	return respondError(c, apperror.BadRequest(format, args...))
}

// paramID parses a positive numeric path parameter
func paramID(c echo.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.BadRequest("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// queryID parses an optional numeric query parameter
func queryID(c echo.Context, name string) (*uint, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, apperror.BadRequest("invalid %s %q", name, raw)
	}
	v := uint(id)
	return &v, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates (UTC midnight)
func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperror.BadRequest("invalid %s %q", name, raw)
}
