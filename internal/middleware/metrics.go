package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/stoplist/internal/metrics"
)

// MetricsMiddleware records request counts and latency per route pattern.
// Requests slower than slow are logged at warn level.
func MetricsMiddleware(m *metrics.Collector, slow time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()
		if err != nil {
			// the error handler has not run yet
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		// route pattern, not raw path, to keep label cardinality bounded
		route := c.Route().Path
		m.ObserveRequest(c.Method(), route, status, duration)

		if slow > 0 && duration > slow {
			log.Warn().
				Str("method", c.Method()).
				Str("path", c.Path()).
				Int("status", status).
				Dur("duration", duration).
				Msg("slow request")
		}

		return err
	}
}
