package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itsaddyon/MediBridge/internal/platform/metrics"
)

// Metrics records request counts and latencies labelled by route template,
// so /api/patients/:id stays one series.
func Metrics(collector *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if collector == nil {
				return next(c)
			}

			collector.InFlightGauge.Inc()
			defer collector.InFlightGauge.Dec()

			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(responseStatus(c, err))
			method := c.Request().Method

			collector.RequestsTotal.WithLabelValues(method, path, status).Inc()
			collector.RequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
