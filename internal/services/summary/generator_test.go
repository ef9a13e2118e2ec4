package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SignalForge/internal/domain/models"
	xhttp "SignalForge/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name      string
	available bool
	text      string
	err       error
	delay     time.Duration
	prompts   []string
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Model() string   { return s.name + "-model" }
func (s *stubProvider) Available() bool { return s.available }
func (s *stubProvider) Complete(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func promptData(c models.Category) PromptData {
	return PromptData{
		Context: models.WorkflowContext{Category: c, Date: "2024-05-01", TimeSlot: "08:00"},
		Bias: models.CategoryBias{
			Category: c, Bias: models.Bullish, Confidence: 67, BullishCount: 2, BearishCount: 1,
			Assets: []models.AssetSignal{
				{Ticker: "BTC", Price: 55000, Bias: models.Bullish, Confluence: "3/3 bullish"},
				{Ticker: "ETH", Price: 3300, Bias: models.Bullish, Confluence: "2/3 bullish"},
				{Ticker: "SOL", Price: 140, Bias: models.Bearish, Confluence: "2/3 bearish"},
			},
		},
		Regime: models.RegimeSnapshot{Macro: models.MacroSignal{Overall: models.RiskOn}},
	}
}

func TestRouteFor(t *testing.T) {
	assert.Equal(t, BackendRemote, RouteFor(models.CategoryStocks))
	assert.Equal(t, BackendEmbedded, RouteFor(models.CategoryCrypto))
	assert.Equal(t, BackendEmbedded, RouteFor(models.CategoryForex))
}

func TestGenerate_Success(t *testing.T) {
	embedded := &stubProvider{name: "embedded", available: true, text: "  " + good + "  "}
	remote := &stubProvider{name: "remote", available: true}
	g := NewGenerator(DefaultPrompts(), NewRouter(remote, embedded))

	res := g.Generate(context.Background(), promptData(models.CategoryCrypto))
	assert.Equal(t, models.LLMSuccess, res.Status)
	assert.Equal(t, good, res.Summary)
	assert.Equal(t, "embedded", res.Provider)
	assert.Equal(t, "embedded-model", res.Model)
	assert.Equal(t, DailyBiasPrompt, res.PromptName)
	assert.Equal(t, 2, res.PromptVersion)
	assert.True(t, res.Validation.Valid)
	assert.False(t, res.Sanitized)
	require.Len(t, embedded.prompts, 1)
	assert.Contains(t, embedded.prompts[0], "BTC at 55000.00")
	assert.Empty(t, remote.prompts)
}

func TestGenerate_SanitizesOnce(t *testing.T) {
	remote := &stubProvider{name: "remote", available: true, text: "**Stocks** lean bullish as SPY and QQQ hold above their averages 📈"}
	g := NewGenerator(DefaultPrompts(), NewRouter(remote, nil), WithPrompt(DailyBiasPrompt, 1))

	res := g.Generate(context.Background(), promptData(models.CategoryStocks))
	assert.Equal(t, models.LLMSuccess, res.Status)
	assert.True(t, res.Sanitized)
	assert.Equal(t, "Stocks lean bullish as SPY and QQQ hold above their averages", res.Summary)
	assert.Equal(t, 1, res.PromptVersion)
}

func TestGenerate_FallbackPaths(t *testing.T) {
	want := "Crypto bias is Bullish with 2 of 3 assets bullish and 1 bearish. Macro backdrop is Risk-on."

	cases := []struct {
		name     string
		provider *stubProvider
		status   models.LLMStatus
		errPart  string
	}{
		{"unavailable", &stubProvider{name: "embedded"}, models.LLMFallback, "unavailable"},
		{"provider error", &stubProvider{name: "embedded", available: true, err: errors.New("502")}, models.LLMError, "502"},
		{"empty text", &stubProvider{name: "embedded", available: true, text: "   "}, models.LLMError, "empty"},
		{"rejected", &stubProvider{name: "embedded", available: true, text: "Use Fibonacci levels, DYOR, this is a long enough sentence."}, models.LLMFallback, "rejected"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGenerator(DefaultPrompts(), NewRouter(nil, tc.provider))
			res := g.Generate(context.Background(), promptData(models.CategoryCrypto))
			assert.Equal(t, want, res.Summary)
			assert.Equal(t, tc.status, res.Status)
			assert.Contains(t, res.Error, tc.errPart)
			assert.True(t, res.Validation.Valid)
		})
	}
}

func TestGenerate_TimeoutFallsBack(t *testing.T) {
	slow := &stubProvider{name: "embedded", available: true, text: good, delay: time.Second}
	g := NewGenerator(DefaultPrompts(), NewRouter(nil, slow), WithTimeout(20*time.Millisecond))

	res := g.Generate(context.Background(), promptData(models.CategoryForex))
	assert.Equal(t, models.LLMError, res.Status)
	assert.Contains(t, res.Summary, "Forex bias is Bullish")
	assert.Positive(t, res.Latency)
}

func TestGenerate_UnknownPromptFallsBack(t *testing.T) {
	p := &stubProvider{name: "embedded", available: true, text: good}
	g := NewGenerator(DefaultPrompts(), NewRouter(nil, p), WithPrompt(DailyBiasPrompt, 9))

	res := g.Generate(context.Background(), promptData(models.CategoryCrypto))
	assert.Equal(t, models.LLMFallback, res.Status)
	assert.Contains(t, res.Error, "prompt not found")
	assert.Empty(t, p.prompts)
}

func TestPromptRegistry(t *testing.T) {
	r := DefaultPrompts()
	p, err := r.Latest(DailyBiasPrompt)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Version)

	_, err = r.Get(DailyBiasPrompt, 3)
	assert.ErrorIs(t, err, ErrPromptNotFound)
	_, err = r.Latest("nope")
	assert.ErrorIs(t, err, ErrPromptNotFound)
	assert.ErrorIs(t, r.Register(DailyBiasPrompt, 1, dailyBiasV1), ErrPromptDuplicate)
}

func TestRemoteProvider_ChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 1)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" hello "}}]}`))
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL+"/v1/", "secret", "gpt-test", time.Second,
		WithRemoteClient(xhttp.NewClient(xhttp.WithTimeout(time.Second))))
	assert.True(t, p.Available())
	text, err := p.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	assert.False(t, NewRemoteProvider(srv.URL, "", "m", time.Second).Available())
}

func TestEmbeddedProvider_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai/run/@cf/meta/llama", r.URL.Path)
		var req runRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "prompt", req.Prompt)
		_, _ = w.Write([]byte(`{"success":true,"result":{"response":"text"}}`))
	}))
	defer srv.Close()

	p := NewEmbeddedProvider(srv.URL+"/ai", "", "@cf/meta/llama", time.Second,
		WithEmbeddedClient(xhttp.NewClient(xhttp.WithTimeout(time.Second))))
	text, err := p.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "text", text)
}

func TestEmbeddedProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewEmbeddedProvider(srv.URL, "", "m", time.Second)
	_, err := p.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
