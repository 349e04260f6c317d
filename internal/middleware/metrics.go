package middleware

import (
	"strconv"
	"time"

	"tableorder-service/prometheus"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware records request count and latency per route
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		prometheus.RecordHTTPRequest(c.Request().Method, c.Path(), strconv.Itoa(c.Response().Status), time.Since(start))
		return nil
	}
}
