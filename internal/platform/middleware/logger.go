package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebridge/hms/internal/platform/auth"
)

// Logger emits one structured line per request. Beyond the usual
// method/path/status fields the entry carries the request id, the resolved
// tenant and the acting user, so a single line is enough to correlate a call
// with the audit trail.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			method := c.Request().Method
			path := c.Request().URL.Path

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			rid, _ := c.Get("request_id").(string)
			evt = evt.
				Str("request_id", rid).
				Str("method", method).
				Str("path", path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Int64("bytes_out", c.Response().Size).
				Str("remote_ip", c.RealIP())

			if tenant, ok := c.Get("tenant_id").(string); ok && tenant != "" {
				evt = evt.Str("tenant", tenant)
			}
			// The auth middleware swaps the request in-place, so the identity
			// is visible here even though Logger wraps it.
			if actor, ok := auth.FromContext(c.Request().Context()); ok {
				evt = evt.Str("user_id", actor.ID.String()).Str("role", string(actor.Role))
			}

			evt.Msg("request")
			return err
		}
	}
}
