package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request with method, path, status and
// latency.  Server errors log at error level, client errors at warn.
//
// A child logger tagged with the request id is stored in the request
// context, so handlers log through zerolog.Ctx and their lines can be
// joined with the access line.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			reqLog := log.With().Str("request_id", id).Logger()
			c.SetRequest(c.Request().WithContext(reqLog.WithContext(c.Request().Context())))

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			status := c.Response().Status

			var ev *zerolog.Event
			switch {
			case status >= 500:
				ev = reqLog.Error()
			case status >= 400:
				ev = reqLog.Warn()
			default:
				ev = reqLog.Info()
			}
			ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", c.Path()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())
			if e := CurrentEmail(c); e != "" {
				ev.Str("user", e)
			}
			if err != nil {
				ev.Err(err)
			}
			ev.Msg("request")
			return nil
		}
	}
}
