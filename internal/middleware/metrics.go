package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/formbox/internal/metrics"
)

// Metrics records in-flight, count and latency per route.  The scrape
// endpoint itself is not counted.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			done := metrics.RequestStarted()
			defer done()
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			metrics.ObserveRequest(c.Request().Method, c.Path(), c.Response().Status, time.Since(start))
			return nil
		}
	}
}
