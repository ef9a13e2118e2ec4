package api

import (
	"time"

	servicemetrics "SignalForge/internal/service/metrics"
	xhttp "SignalForge/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// TriggerLimiter guards the manual run route, keyed by client IP.
type TriggerLimiter echo.MiddlewareFunc

const limiterIdleExpiry = 10 * time.Minute

// NewTriggerLimiter allows bursts of burst triggers per client and refills
// perMinute of them every minute. Rejections use the AppError envelope.
func NewTriggerLimiter(perMinute, burst int) TriggerLimiter {
	if burst < 1 {
		burst = 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     burst,
		ExpiresIn: limiterIdleExpiry,
	})
	return TriggerLimiter(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return xhttp.AppErrorResponse(c, xhttp.InternalError("rate limiter unavailable").WithError(err))
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			servicemetrics.TriggersRejected.Inc()
			servicemetrics.APIErrors.WithLabelValues("run", "ERR_RATE_LIMITED").Inc()
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many workflow triggers, retry later"))
		},
	}))
}
