package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SignalForge/internal/domain/models"
	applogger "SignalForge/pkg/logger"
)

// LLMMetrics observes provider calls.
type LLMMetrics interface {
	RecordLLM(provider, status string, seconds float64)
}

// Generator produces the category summary. It never fails: every error
// path ends in the deterministic fallback.
type Generator struct {
	prompts       *PromptRegistry
	router        *Router
	promptName    string
	promptVersion int
	timeout       time.Duration
	log           *applogger.Logger
	metrics       LLMMetrics
}

type Option func(*Generator)

// WithPrompt pins the prompt; version 0 means latest.
func WithPrompt(name string, version int) Option {
	return func(g *Generator) {
		g.promptName = name
		g.promptVersion = version
	}
}

func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

func WithLogger(l *applogger.Logger) Option {
	return func(g *Generator) { g.log = l }
}

func WithMetrics(m LLMMetrics) Option {
	return func(g *Generator) { g.metrics = m }
}

func NewGenerator(prompts *PromptRegistry, router *Router, opts ...Option) *Generator {
	g := &Generator{
		prompts:    prompts,
		router:     router,
		promptName: DailyBiasPrompt,
		timeout:    20 * time.Second,
		log:        applogger.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns the summary and its provenance.
func (g *Generator) Generate(ctx context.Context, in PromptData) models.LLMRunResult {
	category := in.Context.Category
	fallback := Fallback(category, in.Bias, in.Regime.Macro.Overall)
	log := g.log.With(applogger.String("category", string(category)))

	res := models.LLMRunResult{PromptName: g.promptName, PromptVersion: g.promptVersion}

	prompt, err := g.prompts.Resolve(g.promptName, g.promptVersion)
	if err != nil {
		log.Error("resolve prompt failed", applogger.Error(err))
		return g.fallback(res, fallback, models.LLMFallback, err)
	}
	res.PromptVersion = prompt.Version

	provider := g.router.Select(category)
	if provider == nil || !provider.Available() {
		name := string(RouteFor(category))
		log.Warn("llm provider unavailable, using fallback", applogger.String("provider", name))
		res.Provider = name
		return g.fallback(res, fallback, models.LLMFallback, fmt.Errorf("%s: %w", name, ErrProviderUnavailable))
	}
	res.Provider = provider.Name()
	res.Model = provider.Model()

	text, latency, err := g.call(ctx, provider, prompt.Render(in))
	res.Latency = latency
	if err == nil && text == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		g.observe(res.Provider, models.LLMError, latency)
		log.Warn("llm call failed, using fallback", applogger.String("provider", res.Provider), applogger.Error(err))
		return g.fallback(res, fallback, models.LLMError, err)
	}

	v := ValidateSummary(text)
	if !v.Valid {
		cleaned := SanitizeSummary(text)
		cv := ValidateSummary(cleaned)
		if !cv.Valid {
			g.observe(res.Provider, models.LLMFallback, latency)
			rejected := fmt.Errorf("summary rejected: %s", strings.Join(cv.Errors, "; "))
			log.Warn("llm text failed validation, using fallback", applogger.Strings("errors", cv.Errors))
			return g.fallback(res, fallback, models.LLMFallback, rejected)
		}
		text, v = cleaned, cv
		res.Sanitized = true
	}

	g.observe(res.Provider, models.LLMSuccess, latency)
	res.Summary = text
	res.Status = models.LLMSuccess
	res.Validation = v
	return res
}

func (g *Generator) call(ctx context.Context, p Provider, prompt string) (string, time.Duration, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := p.Complete(cctx, prompt)
	latency := time.Since(start)
	if err == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		err = cctx.Err()
	}
	return strings.TrimSpace(text), latency, err
}

// fallback keeps the provenance of res and swaps in the deterministic text.
func (g *Generator) fallback(res models.LLMRunResult, text string, status models.LLMStatus, cause error) models.LLMRunResult {
	res.Summary = text
	res.Status = status
	res.Validation = ValidateSummary(text)
	if cause != nil {
		res.Error = cause.Error()
	}
	return res
}

func (g *Generator) observe(provider string, status models.LLMStatus, latency time.Duration) {
	if g.metrics != nil {
		g.metrics.RecordLLM(provider, string(status), latency.Seconds())
	}
}
