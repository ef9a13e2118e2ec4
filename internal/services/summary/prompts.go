package summary

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"SignalForge/internal/domain/models"
)

var (
	ErrPromptNotFound  = errors.New("prompt not found")
	ErrPromptDuplicate = errors.New("prompt already registered")
)

const DailyBiasPrompt = "daily-bias"

// PromptData is what every template renders from.
type PromptData struct {
	Context models.WorkflowContext
	Bias    models.CategoryBias
	Regime  models.RegimeSnapshot
}

type Template func(PromptData) string

// Prompt is a resolved template with its identity.
type Prompt struct {
	Name    string
	Version int
	Render  Template
}

// PromptRegistry maps (name, version) to a template. Build it once at
// startup and share it read-only.
type PromptRegistry struct {
	mu      sync.RWMutex
	prompts map[string]map[int]Template
}

func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{prompts: make(map[string]map[int]Template)}
}

func (r *PromptRegistry) Register(name string, version int, t Template) error {
	if name == "" || version <= 0 || t == nil {
		return fmt.Errorf("register prompt %q v%d: invalid arguments", name, version)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prompts[name] == nil {
		r.prompts[name] = make(map[int]Template)
	}
	if _, ok := r.prompts[name][version]; ok {
		return fmt.Errorf("register prompt %s v%d: %w", name, version, ErrPromptDuplicate)
	}
	r.prompts[name][version] = t
	return nil
}

func (r *PromptRegistry) Get(name string, version int) (Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.prompts[name][version]
	if !ok {
		return Prompt{}, fmt.Errorf("%s v%d: %w", name, version, ErrPromptNotFound)
	}
	return Prompt{Name: name, Version: version, Render: t}, nil
}

// Latest returns the highest registered version of name.
func (r *PromptRegistry) Latest(name string) (Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := r.prompts[name]
	if len(versions) == 0 {
		return Prompt{}, fmt.Errorf("%s: %w", name, ErrPromptNotFound)
	}
	best := 0
	for v := range versions {
		if v > best {
			best = v
		}
	}
	return Prompt{Name: name, Version: best, Render: versions[best]}, nil
}

// Resolve picks an exact version, or the latest when version is 0.
func (r *PromptRegistry) Resolve(name string, version int) (Prompt, error) {
	if version == 0 {
		return r.Latest(name)
	}
	return r.Get(name, version)
}

// DefaultPrompts returns a registry with the built-in templates.
func DefaultPrompts() *PromptRegistry {
	r := NewPromptRegistry()
	_ = r.Register(DailyBiasPrompt, 1, dailyBiasV1)
	_ = r.Register(DailyBiasPrompt, 2, dailyBiasV2)
	return r
}

const styleRules = "Write plain prose in 2 sentences, under 280 characters. " +
	"No markdown, no emoji, no disclaimers, no indicators other than the ones given."

func dailyBiasV1(d PromptData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a markets analyst. Summarize the %s outlook for %s %s UTC.\n",
		strings.ToLower(d.Context.Category.Title()), d.Context.Date, d.Context.TimeSlot)
	fmt.Fprintf(&b, "Category bias: %s (confidence %d%%).\n", d.Bias.Bias, d.Bias.Confidence)
	for _, a := range d.Bias.Assets {
		fmt.Fprintf(&b, "- %s %s: %s\n", a.Ticker, a.Bias, a.Confluence)
	}
	fmt.Fprintf(&b, "Macro backdrop: %s.\n", d.Regime.Macro.Overall)
	b.WriteString(styleRules)
	return b.String()
}

func dailyBiasV2(d PromptData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a concise markets analyst writing a %s briefing for %s %s UTC.\n",
		strings.ToLower(d.Context.Category.Title()), d.Context.Date, d.Context.TimeSlot)
	fmt.Fprintf(&b, "Verdict: %s, confidence %d%%, %d bullish / %d bearish / %d neutral assets.\n",
		d.Bias.Bias, d.Bias.Confidence, d.Bias.BullishCount, d.Bias.BearishCount, d.Bias.NeutralCount)

	assets := append([]models.AssetSignal(nil), d.Bias.Assets...)
	sort.Slice(assets, func(i, j int) bool { return assets[i].Ticker < assets[j].Ticker })
	for _, a := range assets {
		fmt.Fprintf(&b, "- %s at %s: %s (%s)\n", a.Ticker, formatLevel(a.Price), a.Bias, a.Reasoning)
	}

	fmt.Fprintf(&b, "Macro: %s, stress %.1f/10, posture %s.\n",
		d.Regime.Macro.Overall, d.Regime.Macro.StressScore, d.Regime.Posture)
	if len(d.Regime.Calendar.ActiveEvents) > 0 {
		fmt.Fprintf(&b, "Scheduled events in window: %s.\n", strings.Join(d.Regime.Calendar.ActiveEvents, ", "))
	}
	if len(d.Bias.Risks) > 0 {
		fmt.Fprintf(&b, "Risks: %s.\n", strings.Join(d.Bias.Risks, "; "))
	}
	b.WriteString(styleRules)
	return b.String()
}

func formatLevel(p float64) string {
	if p < 10 {
		return fmt.Sprintf("%.4f", p)
	}
	return fmt.Sprintf("%.2f", p)
}
