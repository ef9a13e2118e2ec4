package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/usecase"
	"SignalForge/internal/workflow"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLatest struct {
	sig *models.Signal
	err error
	got models.Category
}

func (f *fakeLatest) Latest(_ context.Context, c models.Category) (*models.Signal, error) {
	f.got = c
	return f.sig, f.err
}

type fakeRunner struct {
	calls []models.WorkflowContext
	err   error
}

func (f *fakeRunner) RunSlot(_ context.Context, wctx models.WorkflowContext, _ *workflow.SharedState) (*models.Signal, error) {
	f.calls = append(f.calls, wctx)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Signal{Category: wctx.Category, Date: wctx.Date, TimeSlot: wctx.TimeSlot, Importance: 40, Notify: true}, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

var fixedNow = time.Date(2024, 6, 3, 9, 41, 0, 0, time.UTC)

func newTestServer(latest LatestReader, runner *fakeRunner, limiter TriggerLimiter, checks ...HealthCheck) *echo.Echo {
	h := NewSignalsEchoHandler(nil, latest, runner, limiter, checks...)
	h.now = func() time.Time { return fixedNow }
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.RemoteAddr = "10.0.0.1:4000"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestLatest_ReturnsSignal(t *testing.T) {
	latest := &fakeLatest{sig: &models.Signal{Category: models.CategoryCrypto, Date: "2024-06-03", TimeSlot: "09:00", Importance: 55}}
	e := newTestServer(latest, &fakeRunner{}, nil)

	rec, env := do(t, e, http.MethodGet, "/api/signals/latest?category=crypto", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CategoryCrypto, latest.got)
	assert.Equal(t, "public, max-age=30", rec.Header().Get(echo.HeaderCacheControl))

	var sig models.Signal
	require.NoError(t, json.Unmarshal(env.Data, &sig))
	assert.Equal(t, 55, sig.Importance)
	assert.Equal(t, "09:00", sig.TimeSlot)
}

func TestLatest_Validation(t *testing.T) {
	e := newTestServer(&fakeLatest{}, &fakeRunner{}, nil)

	for _, target := range []string{"/api/signals/latest", "/api/signals/latest?category=bonds"} {
		rec, env := do(t, e, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, http.StatusBadRequest, env.Status, target)
	}
}

func TestLatest_NotFound(t *testing.T) {
	latest := &fakeLatest{err: fmt.Errorf("latest forex signal: %w", domrepo.ErrNotFound)}
	e := newTestServer(latest, &fakeRunner{}, nil)

	rec, env := do(t, e, http.MethodGet, "/api/signals/latest?category=forex", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var errs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_NOT_FOUND", errs[0]["code"])
	assert.Equal(t, "no signal stored for forex", errs[0]["message"])
}

func TestLatest_StoreFailure(t *testing.T) {
	e := newTestServer(&fakeLatest{err: errors.New("clickhouse down")}, &fakeRunner{}, nil)

	rec, _ := do(t, e, http.MethodGet, "/api/signals/latest?category=stocks", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunWorkflow_ResolvesSlot(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestServer(&fakeLatest{}, runner, nil)

	rec, env := do(t, e, http.MethodPost, "/api/workflows/run", `{"category":"Stocks"}`)
	// validation is case sensitive
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.calls)

	rec, env = do(t, e, http.MethodPost, "/api/workflows/run", `{"category":"stocks"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, runner.calls, 1)
	assert.Equal(t, models.WorkflowContext{Cron: "manual", Category: models.CategoryStocks, Date: "2024-06-03", TimeSlot: "09:00"}, runner.calls[0])

	var out RunResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "stocks:2024-06-03:09:00", out.Key)
	assert.Equal(t, "manual", out.Cron)
	require.NotNil(t, out.Signal)
	assert.True(t, out.Signal.Notify)
}

func TestRunWorkflow_ExplicitSlot(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestServer(&fakeLatest{}, runner, nil)

	rec, _ := do(t, e, http.MethodPost, "/api/workflows/run",
		`{"category":"forex","date":"2024-05-31","time_slot":"14:30","cron":"backfill"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "backfill", runner.calls[0].Cron)
	assert.Equal(t, "2024-05-31", runner.calls[0].Date)
	assert.Equal(t, "14:00", runner.calls[0].TimeSlot)
}

func TestRunWorkflow_BadSlot(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestServer(&fakeLatest{}, runner, nil)

	rec, _ := do(t, e, http.MethodPost, "/api/workflows/run", `{"category":"crypto","time_slot":"25:99"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.calls)
}

func TestRunWorkflow_RunFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("fetch-assets: upstream timeout")}
	e := newTestServer(&fakeLatest{}, runner, nil)

	rec, env := do(t, e, http.MethodPost, "/api/workflows/run", `{"category":"crypto"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var errs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_WORKFLOW_FAILED", errs[0]["code"])
	params, ok := errs[0]["params"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "crypto:2024-06-03:09:00", params["key"])
}

func TestRunWorkflow_SlotBusy(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("run crypto:2024-06-03:09:00: %w", usecase.ErrSlotBusy)}
	e := newTestServer(&fakeLatest{}, runner, nil)

	rec, env := do(t, e, http.MethodPost, "/api/workflows/run", `{"category":"crypto"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_SLOT_BUSY")
}

func TestRunWorkflow_RateLimited(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestServer(&fakeLatest{}, runner, NewTriggerLimiter(1, 2))

	for i := 0; i < 2; i++ {
		rec, _ := do(t, e, http.MethodPost, "/api/workflows/run", `{"category":"crypto"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := do(t, e, http.MethodPost, "/api/workflows/run", `{"category":"crypto"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_RATE_LIMITED")
	assert.Len(t, runner.calls, 2)

	// buckets are per client address
	req := httptest.NewRequest(http.MethodPost, "/api/workflows/run", strings.NewReader(`{"category":"crypto"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "10.0.0.2:5555"
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, runner.calls, 3)
}

func TestHealth(t *testing.T) {
	ok := HealthCheck{Name: "clickhouse", Check: func(context.Context) error { return nil }}
	bad := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}

	e := newTestServer(&fakeLatest{}, &fakeRunner{}, nil, ok)
	rec, env := do(t, e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clickhouse":"ok"}`, string(env.Data))

	e = newTestServer(&fakeLatest{}, &fakeRunner{}, nil, ok, bad)
	rec, env = do(t, e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"clickhouse":"ok","redis":"connection refused"}`, string(env.Data))
}
