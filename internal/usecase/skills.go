package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/domain/service"
	"SignalForge/internal/services/bias"
	"SignalForge/internal/services/delta"
	"SignalForge/internal/services/quality"
	"SignalForge/internal/services/regime"
	"SignalForge/internal/services/summary"
	"SignalForge/internal/workflow"
	applogger "SignalForge/pkg/logger"
)

// ErrEmptyUniverse is returned when a category has no configured tickers.
var ErrEmptyUniverse = errors.New("no tickers configured")

// Shared keys memoized once per scheduling tick.
const (
	SharedMacro  = "macro"
	SharedRegime = "regime"
)

// RegimeClassifier fuses the macro snapshot with the calendar, news and
// prediction feeds.
type RegimeClassifier interface {
	Classify(ctx context.Context, in regime.Inputs) models.RegimeSnapshot
	EventRules() []regime.EventRule
}

// SummaryGenerator never fails; errors end in a deterministic fallback.
type SummaryGenerator interface {
	Generate(ctx context.Context, in summary.PromptData) models.LLMRunResult
}

// SkillDeps are the collaborators injected into the signal skills. Prices,
// Publisher, Notifier, Webhooks and the three context feeds are optional.
type SkillDeps struct {
	Assets     service.AssetFetcher
	Macro      service.MacroFetcher
	Calendar   service.CalendarFetcher
	News       service.NewsFetcher
	Prediction service.PredictionFetcher
	Prices     service.PriceSnapshotter
	Classifier RegimeClassifier
	Summaries  SummaryGenerator
	Store      domrepo.SignalStore
	Publisher  domrepo.EventPublisher
	Notifier   service.Notifier
	Webhooks   service.WebhookDispatcher
	Universe   func(models.Category) []string
	Metrics    domrepo.Metrics
	Logger     *applogger.Logger
	Now        func() time.Time
}

// BiasInput feeds compute-bias.
type BiasInput struct {
	Assets []models.AssetData
	Regime models.RegimeSnapshot
}

// QualityInput feeds assess-quality.
type QualityInput struct {
	Assets []models.AssetData
	Macro  models.MacroData
}

// DeltaOutcome is the compute-delta output: the diff and the delivery gate.
type DeltaOutcome struct {
	Delta      models.SignalDelta
	Summary    string
	Importance int
	Notify     bool
	SkipReason string
}

// Delivery records a best-effort side effect of a stored signal.
type Delivery struct {
	Channel string
	Skipped bool
	Reason  string
	Error   string
	Results []models.DeliveryResult
}

// SignalSkills implements every skill of the signal workflow.
type SignalSkills struct {
	d   SkillDeps
	log *applogger.Logger
}

func NewSignalSkills(d SkillDeps) *SignalSkills {
	if d.Logger == nil {
		d.Logger = applogger.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Universe == nil {
		d.Universe = func(models.Category) []string { return nil }
	}
	return &SignalSkills{d: d, log: d.Logger}
}

// Register adds every signal skill to reg.
func (s *SignalSkills) Register(reg *workflow.Registry) error {
	skills := []workflow.Skill{
		workflow.NewSkill(SkillFetchAssets, SkillVersion, s.fetchAssets),
		workflow.NewSkill(SkillFetchMacro, SkillVersion, s.fetchMacro),
		workflow.NewSkill(SkillClassifyRegime, SkillVersion, s.classifyRegime),
		workflow.NewSkill(SkillComputeBias, SkillVersion, s.computeBias),
		workflow.NewSkill(SkillAssessQuality, SkillVersion, s.assessQuality),
		workflow.NewSkill(SkillGenerateSummary, SkillVersion, s.generateSummary),
		workflow.NewSkill(SkillComputeDelta, SkillVersion, s.computeDelta),
		workflow.NewSkill(SkillStoreSignal, SkillVersion, s.storeSignal),
		workflow.NewSkill(SkillPublishEvent, SkillVersion, s.publishEvent),
		workflow.NewSkill(SkillNotify, SkillVersion, s.notify),
		workflow.NewSkill(SkillWebhooks, SkillVersion, s.dispatchWebhooks),
	}
	for _, sk := range skills {
		if err := reg.Register(sk); err != nil {
			return err
		}
	}
	return nil
}

func (s *SignalSkills) fetchAssets(ctx context.Context, in workflow.Input, _ struct{}) ([]models.AssetData, error) {
	cat := in.Context.Category
	tickers := s.d.Universe(cat)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%s: %w", cat, ErrEmptyUniverse)
	}

	assets, err := s.d.Assets.FetchAssets(ctx, cat, tickers)
	if err != nil {
		s.d.Metrics.RecordError("fetch_assets")
		return nil, fmt.Errorf("fetch %s assets: %w", cat, err)
	}
	if cat == models.CategoryStocks && s.d.Prices != nil {
		s.overlayLivePrices(ctx, assets)
	}
	return assets, nil
}

// overlayLivePrices replaces gateway closes with last trades. A failed
// snapshot keeps the closes.
func (s *SignalSkills) overlayLivePrices(ctx context.Context, assets []models.AssetData) {
	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.Ticker
	}
	prices, err := s.d.Prices.Snapshot(ctx, symbols)
	if err != nil {
		s.log.Warn("live price snapshot failed", applogger.Error(err))
		return
	}
	now := s.d.Now().UTC()
	for i := range assets {
		if p, ok := prices[assets[i].Ticker]; ok && p > 0 {
			assets[i].Price = p
			assets[i].AsOf = now
			assets[i].Stale = false
		}
	}
	s.log.Debug("live prices applied", applogger.Int("symbols", len(prices)))
}

func (s *SignalSkills) fetchMacro(ctx context.Context, in workflow.Input, _ struct{}) (models.MacroData, error) {
	return workflow.Memoize(ctx, in.Shared, SharedMacro, s.d.Macro.FetchMacro)
}

func (s *SignalSkills) classifyRegime(ctx context.Context, in workflow.Input, macro models.MacroData) (models.RegimeSnapshot, error) {
	return workflow.Memoize(ctx, in.Shared, SharedRegime, func(ctx context.Context) (models.RegimeSnapshot, error) {
		now := s.d.Now().UTC()
		window := regime.MaxEventWindow(s.d.Classifier.EventRules())

		var (
			events  []models.EconomicEvent
			news    []models.NewsArticle
			markets []models.PredictionMarket
			err     error
		)
		if s.d.Calendar != nil {
			if events, err = s.d.Calendar.FetchCalendar(ctx, now.Add(-window), now.Add(window)); err != nil {
				s.log.Warn("calendar unavailable", applogger.Error(err))
			}
		}
		if s.d.News != nil {
			if news, err = s.d.News.FetchGeopoliticalNews(ctx); err != nil {
				s.log.Warn("geopolitical news unavailable", applogger.Error(err))
			}
		}
		if s.d.Prediction != nil {
			if markets, err = s.d.Prediction.FetchPredictionMarkets(ctx); err != nil {
				s.log.Warn("prediction markets unavailable", applogger.Error(err))
			}
		}

		return s.d.Classifier.Classify(ctx, regime.Inputs{
			Macro:   macro,
			Events:  events,
			News:    news,
			Markets: markets,
			At:      now,
		}), nil
	})
}

func (s *SignalSkills) computeBias(_ context.Context, in workflow.Input, v BiasInput) (models.CategoryBias, error) {
	return bias.Compute(in.Context.Category, v.Assets, v.Regime), nil
}

func (s *SignalSkills) assessQuality(_ context.Context, in workflow.Input, v QualityInput) (models.QualityFlags, error) {
	cat := in.Context.Category
	flags := quality.Assess(quality.Input{
		Category:      cat,
		Expected:      s.d.Universe(cat),
		Assets:        v.Assets,
		MacroFallback: v.Macro.Fallback,
		MacroStale:    v.Macro.Stale,
	})
	if !flags.IsEmpty() {
		s.log.Warn("data quality degraded",
			applogger.String("category", string(cat)),
			applogger.Strings("missing", flags.MissingTickers),
			applogger.Strings("stale", flags.StaleAssets),
			applogger.Int("outliers", len(flags.Outliers)),
			applogger.Bool("macro_fallback", flags.MacroFallback),
		)
	}
	return flags, nil
}

func (s *SignalSkills) generateSummary(ctx context.Context, _ workflow.Input, v summary.PromptData) (models.LLMRunResult, error) {
	return s.d.Summaries.Generate(ctx, v), nil
}

func (s *SignalSkills) computeDelta(ctx context.Context, in workflow.Input, b models.CategoryBias) (DeltaOutcome, error) {
	wctx := in.Context
	prev, err := s.d.Store.Previous(ctx, wctx.Category, wctx.Date, wctx.TimeSlot)
	if err != nil {
		return DeltaOutcome{}, fmt.Errorf("load previous signal: %w", err)
	}

	d := delta.ComputeDelta(b, prev)
	score, ok, reason := delta.Gate(d)
	return DeltaOutcome{
		Delta:      d,
		Summary:    delta.FormatDeltaSummary(d),
		Importance: score,
		Notify:     ok,
		SkipReason: reason,
	}, nil
}

func (s *SignalSkills) storeSignal(ctx context.Context, _ workflow.Input, sig *models.Signal) (*models.Signal, error) {
	if sig == nil {
		return nil, fmt.Errorf("store signal: %w", workflow.ErrMissingOutput)
	}
	sig.CreatedAt = s.d.Now().UTC()
	if err := s.d.Store.Save(ctx, sig); err != nil {
		s.d.Metrics.RecordError("store_signal")
		return nil, fmt.Errorf("store signal: %w", err)
	}
	s.d.Metrics.RecordImportance(string(sig.Category), sig.Importance)
	s.log.Info("signal stored",
		applogger.String("category", string(sig.Category)),
		applogger.String("slot", sig.Date+" "+sig.TimeSlot),
		applogger.String("bias", string(sig.Bias.Bias)),
		applogger.Int("confidence", sig.Bias.Confidence),
		applogger.Int("importance", sig.Importance),
		applogger.Bool("notify", sig.Notify),
	)
	return sig, nil
}

func (s *SignalSkills) publishEvent(ctx context.Context, _ workflow.Input, sig *models.Signal) (Delivery, error) {
	out := Delivery{Channel: "kafka"}
	if s.d.Publisher == nil {
		out.Skipped, out.Reason = true, "publisher disabled"
		return out, nil
	}
	if err := s.d.Publisher.PublishSignal(ctx, sig); err != nil {
		s.d.Metrics.RecordError("publish_signal")
		s.log.Warn("signal event not published", applogger.String("category", string(sig.Category)), applogger.Error(err))
		out.Error = err.Error()
	}
	return out, nil
}

func (s *SignalSkills) notify(ctx context.Context, _ workflow.Input, sig *models.Signal) (Delivery, error) {
	out := Delivery{Channel: "telegram"}
	if reason, skip := s.gate(sig, s.d.Notifier != nil, "notifier disabled"); skip {
		out.Skipped, out.Reason = true, reason
		return out, nil
	}
	if err := s.d.Notifier.Notify(ctx, sig, delta.FormatDeltaSummary(sig.Delta)); err != nil {
		s.log.Warn("notification failed", applogger.String("category", string(sig.Category)), applogger.Error(err))
		out.Error = err.Error()
	}
	return out, nil
}

func (s *SignalSkills) dispatchWebhooks(ctx context.Context, _ workflow.Input, sig *models.Signal) (Delivery, error) {
	out := Delivery{Channel: "webhooks"}
	if reason, skip := s.gate(sig, s.d.Webhooks != nil, "webhooks disabled"); skip {
		out.Skipped, out.Reason = true, reason
		return out, nil
	}
	out.Results = s.d.Webhooks.Dispatch(ctx, sig)

	failed := 0
	for _, r := range out.Results {
		if !r.Success {
			failed++
		}
	}
	s.log.Info("webhooks dispatched",
		applogger.String("category", string(sig.Category)),
		applogger.Int("subscribers", len(out.Results)),
		applogger.Int("failed", failed),
	)
	return out, nil
}

// gate reports whether delivery must be skipped and why.
func (s *SignalSkills) gate(sig *models.Signal, configured bool, disabledReason string) (string, bool) {
	if !sig.Notify {
		return sig.SkipReason, true
	}
	if !configured {
		return disabledReason, true
	}
	return "", false
}

type nopMetrics struct{}

func (nopMetrics) RecordStep(string, string, string, float64) {}
func (nopMetrics) RecordRun(string, string, float64)          {}
func (nopMetrics) RecordLLM(string, string, float64)          {}
func (nopMetrics) RecordDelivery(string, string)              {}
func (nopMetrics) RecordImportance(string, int)               {}
func (nopMetrics) RecordError(string)                         {}
