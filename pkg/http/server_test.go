package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name  string `json:"name" validate:"required,min=3"`
	Limit int    `json:"limit" default:"10" validate:"lte=50"`
}

type sampleHandler struct{}

func (sampleHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/app-error", func(c echo.Context) error {
		return NotFoundErrorf("signal %s missing", "crypto")
	})
	e.GET("/plain-error", func(c echo.Context) error {
		return errors.New("boom")
	})
	e.GET("/panic", func(c echo.Context) error {
		panic("kaboom")
	})
	e.POST("/sample", func(c echo.Context) error {
		req := &sampleRequest{}
		if verr := ReadAndValidateRequest(c, req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		return SuccessResponse(c, req)
	})
}

func serve(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func newTestServer() *Server {
	return NewServer(nil, []Handler{sampleHandler{}}, WithCORS(false), WithMetricsPath(""))
}

func TestServer_ErrorEnvelopes(t *testing.T) {
	s := newTestServer()

	rec, resp := serve(t, s, http.MethodGet, "/app-error", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, rec.Body.String(), "signal crypto missing")

	rec, resp = serve(t, s, http.MethodGet, "/plain-error", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Something went wrong", resp.Data)

	rec, _ = serve(t, s, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RecoversPanics(t *testing.T) {
	rec, resp := serve(t, newTestServer(), http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
}

func TestReadAndValidateRequest(t *testing.T) {
	s := newTestServer()

	rec, resp := serve(t, s, http.MethodPost, "/sample", `{"name":"btc-run"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"name": "btc-run", "limit": float64(10)}, resp.Data)

	rec, _ = serve(t, s, http.MethodPost, "/sample", `{"name":"x","limit":99}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Data []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "ERR_MIN", body.Data[0].Code)
	assert.Equal(t, "name must be at least 3 characters", body.Data[0].Message)
	assert.Equal(t, "ERR_LTE", body.Data[1].Code)
	assert.Equal(t, "limit", body.Data[1].Field)

	rec, _ = serve(t, s, http.MethodPost, "/sample", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
