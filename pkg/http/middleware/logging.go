package middleware

import (
	"time"

	applogger "SignalForge/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs one line per request. Health probes log at debug.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", routeOf(c)),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("latency", time.Since(start)),
				applogger.String("remote", c.RealIP()),
			}
			switch {
			case c.Response().Status >= 500:
				l.Error("http request", append(fields, applogger.Error(err))...)
			case c.Path() == "/health":
				l.Debug("http request", fields...)
			default:
				l.Info("http request", fields...)
			}
			return nil
		}
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return c.Request().URL.Path
}
