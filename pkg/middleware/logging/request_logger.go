// Package loggingmw attaches a request-scoped slog logger to every request
// and writes one access line when the request finishes.
package loggingmw

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/foodshop/pkg/logging"
)

const probePrefix = "/health/"

// RequestLogger stores a logger carrying the request id, route and client in
// the request context, so services log with the same fields. Handler errors
// are rendered here through echo's error handler. Successful health probes
// are logged at debug to keep readiness polling out of the info stream.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			l := base.With(
				"method", req.Method,
				"path", c.Path(),
				"url", req.URL.Path,
				"remote_ip", c.RealIP(),
				"user_agent", req.UserAgent(),
			)
			if rid != "" {
				l = l.With("request_id", rid)
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			res := c.Response()
			attrs := []any{"status", res.Status, "duration_ms", time.Since(start).Milliseconds()}
			switch {
			case err != nil || res.Status >= 500:
				l.Error("request completed", append(attrs, "error", err)...)
			case res.Status >= 400:
				l.Warn("request completed", attrs...)
			case strings.HasPrefix(req.URL.Path, probePrefix):
				l.Debug("request completed", attrs...)
			default:
				l.Info("request completed", append(attrs, "bytes", res.Size)...)
			}
			return nil
		}
	}
}
