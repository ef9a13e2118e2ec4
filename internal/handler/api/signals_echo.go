package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	servicemetrics "SignalForge/internal/service/metrics"
	"SignalForge/internal/usecase"
	xhttp "SignalForge/pkg/http"
	applogger "SignalForge/pkg/logger"

	"github.com/labstack/echo/v4"
)

// LatestReader returns the newest stored signal of a category.
type LatestReader interface {
	Latest(ctx context.Context, category models.Category) (*models.Signal, error)
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RunResponse is the body of a successful manual run.
type RunResponse struct {
	Key        string         `json:"key"`
	Cron       string         `json:"cron"`
	Signal     *models.Signal `json:"signal"`
	DurationMS int64          `json:"duration_ms"`
}

// SignalsEchoHandler serves the operational API.
type SignalsEchoHandler struct {
	logger  *applogger.Logger
	latest  LatestReader
	runner  usecase.SlotRunner
	limiter TriggerLimiter
	checks  []HealthCheck
	now     func() time.Time
}

func NewSignalsEchoHandler(logger *applogger.Logger, latest LatestReader, runner usecase.SlotRunner, limiter TriggerLimiter, checks ...HealthCheck) *SignalsEchoHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	servicemetrics.Register()
	return &SignalsEchoHandler{
		logger:  logger,
		latest:  latest,
		runner:  runner,
		limiter: limiter,
		checks:  checks,
		now:     time.Now,
	}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.GET("/signals/latest", h.Latest)
	var guards []echo.MiddlewareFunc
	if h.limiter != nil {
		guards = append(guards, echo.MiddlewareFunc(h.limiter))
	}
	g.POST("/workflows/run", h.RunWorkflow, guards...)
}

const healthTimeout = 2 * time.Second

func (h *SignalsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			healthy = false
			status[chk.Name] = err.Error()
			h.logger.Warn("health check failed", applogger.String("check", chk.Name), applogger.Error(err))
			continue
		}
		status[chk.Name] = "ok"
	}
	if !healthy {
		return xhttp.ServiceUnavailableResponse(c, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *SignalsEchoHandler) Latest(c echo.Context) error {
	defer servicemetrics.ObserveSince("latest", time.Now())

	req := &models.LatestSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		servicemetrics.APIErrors.WithLabelValues("latest", "ERR_VALIDATION").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	sig, err := h.latest.Latest(c.Request().Context(), models.Category(req.Category))
	if err != nil {
		return h.fail(c, "latest", latestError(req.Category, err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=30")
	return xhttp.SuccessResponse(c, sig)
}

func (h *SignalsEchoHandler) RunWorkflow(c echo.Context) error {
	defer servicemetrics.ObserveSince("run", time.Now())

	req := &models.RunWorkflowRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		servicemetrics.APIErrors.WithLabelValues("run", "ERR_VALIDATION").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	wctx, err := usecase.ResolveSlot(req.Category, req.Date, req.TimeSlot, req.Cron, h.now())
	if err != nil {
		return h.fail(c, "run", xhttp.BadRequestError(err.Error()).WithError(err))
	}

	started := h.now()
	sig, err := h.runner.RunSlot(c.Request().Context(), wctx, nil)
	if errors.Is(err, usecase.ErrSlotBusy) {
		appErr := xhttp.ConflictError("ERR_SLOT_BUSY", "workflow already running for this slot").
			WithParam("key", wctx.Key()).
			WithError(err)
		return h.fail(c, "run", appErr)
	}
	if err != nil {
		h.logger.Error("manual run failed", applogger.String("key", wctx.Key()), applogger.Error(err))
		appErr := xhttp.UpstreamError("ERR_WORKFLOW_FAILED", "workflow run failed").
			WithParam("key", wctx.Key()).
			WithError(err)
		return h.fail(c, "run", appErr)
	}

	return xhttp.SuccessResponse(c, RunResponse{
		Key:        wctx.Key(),
		Cron:       wctx.Cron,
		Signal:     sig,
		DurationMS: h.now().Sub(started).Milliseconds(),
	})
}

func (h *SignalsEchoHandler) fail(c echo.Context, endpoint string, err *xhttp.AppError) error {
	servicemetrics.APIErrors.WithLabelValues(endpoint, err.Code).Inc()
	if err.Status >= http.StatusInternalServerError {
		h.logger.Error("api error", applogger.String("endpoint", endpoint), applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, err)
}

func latestError(category string, err error) *xhttp.AppError {
	switch {
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.NotFoundErrorf("no signal stored for %s", category).WithError(err)
	case errors.Is(err, usecase.ErrUnknownCategory):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("failed to load latest signal").WithError(err)
	}
}
