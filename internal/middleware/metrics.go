package middleware

import (
	"strconv"
	"time"

	"procurement-service/prometheus"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware records count and duration of every HTTP request
func MetricsMiddleware(m *prometheus.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			m.RecordHTTPRequest(c.Request().Method, c.Path(), strconv.Itoa(status), time.Since(start))

			return err
		}
	}
}
