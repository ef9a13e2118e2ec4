package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/services/delta"
	"SignalForge/internal/services/regime"
	"SignalForge/internal/services/summary"
	"SignalForge/internal/workflow"
	pkgcache "SignalForge/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

var fixedNow = time.Date(2024, 6, 3, 13, 5, 0, 0, time.UTC)

type fakeAssets struct {
	mu    sync.Mutex
	data  map[models.Category][]models.AssetData
	err   error
	calls int
}

func (f *fakeAssets) FetchAssets(_ context.Context, c models.Category, _ []string) ([]models.AssetData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.AssetData, len(f.data[c]))
	copy(out, f.data[c])
	return out, nil
}

type fakeMacro struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeMacro) FetchMacro(context.Context) (models.MacroData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return models.MacroData{DXY: 104, DXYMA20: 104, VIX: 14, US10Y: 4.2, US2Y: 4.0, AsOf: fixedNow}, nil
}

type fakePrices struct{ prices map[string]float64 }

func (f fakePrices) Snapshot(context.Context, []string) (map[string]float64, error) {
	return f.prices, nil
}

type fakeSummaries struct{}

func (fakeSummaries) Generate(_ context.Context, in summary.PromptData) models.LLMRunResult {
	return models.LLMRunResult{
		Summary:    in.Bias.Category.Title() + " bias is " + string(in.Bias.Bias) + " across the tracked assets.",
		PromptName: "daily-bias",
		Status:     models.LLMSuccess,
		Validation: models.ValidationResult{Valid: true},
	}
}

// memStore keeps the last saved signal per category.
type memStore struct {
	mu    sync.Mutex
	saved []*models.Signal
	last  map[models.Category]*models.Signal
	err   error
}

func newMemStore() *memStore { return &memStore{last: make(map[models.Category]*models.Signal)} }

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) Save(_ context.Context, sig *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, sig)
	s.last[sig.Category] = sig
	return nil
}

func (s *memStore) Previous(_ context.Context, c models.Category, date, slot string) (*models.SignalSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.last[c]
	if !ok || prev.Date+prev.TimeSlot >= date+slot {
		return nil, nil
	}
	snap := &models.SignalSnapshot{
		Category: c,
		Date:     prev.Date,
		TimeSlot: prev.TimeSlot,
		Bias:     prev.Bias.Bias,
		Assets:   make(map[string]models.AssetSnapshot),
	}
	for _, a := range prev.Bias.Assets {
		snap.Assets[a.Ticker] = models.AssetSnapshot{Price: a.Price, Bias: a.Bias}
	}
	return snap, nil
}

func (s *memStore) Latest(_ context.Context, c models.Category) (*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sig, ok := s.last[c]; ok {
		return sig, nil
	}
	return nil, domrepo.ErrNotFound
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.Signal
	err    error
}

func (p *fakePublisher) PublishSignal(_ context.Context, s *models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, s)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeNotifier struct {
	mu      sync.Mutex
	deltas  []string
	err     error
	signals []*models.Signal
}

func (n *fakeNotifier) Notify(_ context.Context, s *models.Signal, deltaSummary string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signals = append(n.signals, s)
	n.deltas = append(n.deltas, deltaSummary)
	return n.err
}

type fakeWebhooks struct {
	mu    sync.Mutex
	calls int
}

func (w *fakeWebhooks) Dispatch(context.Context, *models.Signal) []models.DeliveryResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return []models.DeliveryResult{{SubscriberID: "a", Success: true}, {SubscriberID: "b", Error: "timeout"}}
}

type harness struct {
	assets    *fakeAssets
	macro     *fakeMacro
	store     *memStore
	publisher *fakePublisher
	notifier  *fakeNotifier
	webhooks  *fakeWebhooks
	deps      SkillDeps
}

func cryptoAssets() []models.AssetData {
	return []models.AssetData{
		{Ticker: "BTC", Price: 55000, MA20: 50000, Volume: 150, AvgVolume: 100},
		{Ticker: "ETH", Price: 3300, MA20: 3000, Volume: 150, AvgVolume: 100},
		{Ticker: "SOL", Price: 140, MA20: 150, Volume: 150, AvgVolume: 100},
	}
}

func newHarness() *harness {
	h := &harness{
		assets: &fakeAssets{data: map[models.Category][]models.AssetData{
			models.CategoryCrypto: cryptoAssets(),
			models.CategoryStocks: {
				{Ticker: "SPY", Price: 480, MA20: 470, Volume: 100, AvgVolume: 100},
				{Ticker: "QQQ", Price: 410, MA20: 400, Volume: 100, AvgVolume: 100},
			},
		}},
		macro:     &fakeMacro{},
		store:     newMemStore(),
		publisher: &fakePublisher{},
		notifier:  &fakeNotifier{},
		webhooks:  &fakeWebhooks{},
	}
	h.deps = SkillDeps{
		Assets:     h.assets,
		Macro:      h.macro,
		Classifier: regime.NewClassifier(),
		Summaries:  fakeSummaries{},
		Store:      h.store,
		Publisher:  h.publisher,
		Notifier:   h.notifier,
		Webhooks:   h.webhooks,
		Universe: func(c models.Category) []string {
			switch c {
			case models.CategoryCrypto:
				return []string{"BTC", "ETH", "SOL"}
			case models.CategoryStocks:
				return []string{"SPY", "QQQ"}
			}
			return nil
		},
		Now: func() time.Time { return fixedNow },
	}
	return h
}

func (h *harness) runner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner(workflow.NewEngine(), NewSignalSkills(h.deps), nil)
	require.NoError(t, err)
	return r
}

func TestRunner_StepOrder(t *testing.T) {
	r := newHarness().runner(t)

	assert.Equal(t, []string{
		SkillFetchAssets, SkillFetchMacro, SkillAssessQuality, SkillClassifyRegime,
		SkillComputeBias, SkillComputeDelta, SkillGenerateSummary, SkillStoreSignal,
		SkillWebhooks, SkillNotify, SkillPublishEvent,
	}, r.Steps())
}

func TestRunSlot_FirstSignalDelivers(t *testing.T) {
	h := newHarness()
	r := h.runner(t)
	wctx := models.NewWorkflowContext("0 13 * * *", models.CategoryCrypto, fixedNow)

	sig, err := r.RunSlot(context.Background(), wctx, workflow.NewSharedState())
	require.NoError(t, err)

	assert.Equal(t, models.CategoryCrypto, sig.Category)
	assert.Equal(t, "2024-06-03", sig.Date)
	assert.Equal(t, "13:00", sig.TimeSlot)
	assert.Equal(t, fixedNow, sig.CreatedAt)
	assert.True(t, sig.Delta.FirstSignal)
	assert.Equal(t, delta.ScoreFirstSignal, sig.Importance)
	assert.True(t, sig.Notify)
	assert.Empty(t, sig.SkipReason)
	assert.Equal(t, models.LLMSuccess, sig.Summary.Status)

	require.Len(t, h.store.saved, 1)
	require.Len(t, h.notifier.deltas, 1)
	assert.Equal(t, delta.NoSignificantChanges, h.notifier.deltas[0])
	assert.Equal(t, 1, h.webhooks.calls)
	assert.Len(t, h.publisher.events, 1)
}

func TestRunSlot_BelowThresholdStillStores(t *testing.T) {
	h := newHarness()
	r := h.runner(t)
	ctx := context.Background()

	first := models.NewWorkflowContext("cron", models.CategoryCrypto, fixedNow)
	_, err := r.RunSlot(ctx, first, nil)
	require.NoError(t, err)

	next := models.NewWorkflowContext("cron", models.CategoryCrypto, fixedNow.Add(4*time.Hour))
	sig, err := r.RunSlot(ctx, next, nil)
	require.NoError(t, err)

	assert.False(t, sig.Delta.FirstSignal)
	assert.False(t, sig.Delta.BiasChanged)
	assert.Equal(t, 0, sig.Importance)
	assert.False(t, sig.Notify)
	assert.Equal(t, "importance 0 below threshold 30", sig.SkipReason)

	assert.Len(t, h.store.saved, 2)
	assert.Len(t, h.notifier.deltas, 1, "second run must not notify")
	assert.Equal(t, 1, h.webhooks.calls)
	assert.Len(t, h.publisher.events, 2, "events are published regardless of importance")
}

func TestRunSlot_AssetFailureSkipsStore(t *testing.T) {
	h := newHarness()
	h.assets.err = errBoom
	r := h.runner(t)

	sig, err := r.RunSlot(context.Background(), models.NewWorkflowContext("cron", models.CategoryCrypto, fixedNow), nil)
	require.Error(t, err)
	assert.Nil(t, sig)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), SkillFetchAssets)
	assert.Empty(t, h.store.saved)
	assert.Empty(t, h.notifier.deltas)
}

func TestRunSlot_StoreFailureFailsRun(t *testing.T) {
	h := newHarness()
	h.store.err = errBoom
	r := h.runner(t)

	_, err := r.RunSlot(context.Background(), models.NewWorkflowContext("cron", models.CategoryCrypto, fixedNow), nil)
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, h.notifier.deltas)
	assert.Empty(t, h.publisher.events)
}

func TestRunSlot_DeliveryFailuresAreSwallowed(t *testing.T) {
	h := newHarness()
	h.notifier.err = errBoom
	h.publisher.err = errBoom
	r := h.runner(t)

	sig, err := r.RunSlot(context.Background(), models.NewWorkflowContext("cron", models.CategoryCrypto, fixedNow), nil)
	require.NoError(t, err)
	assert.NotNil(t, sig)
	assert.Len(t, h.notifier.deltas, 1)
}

func TestRunSlot_MissingCollaboratorsAreSkipped(t *testing.T) {
	h := newHarness()
	h.deps.Notifier = nil
	h.deps.Webhooks = nil
	h.deps.Publisher = nil
	r := h.runner(t)

	sig, err := r.RunSlot(context.Background(), models.NewWorkflowContext("cron", models.CategoryCrypto, fixedNow), nil)
	require.NoError(t, err)
	assert.True(t, sig.Notify)
}

func TestRunSlot_SharedMacroFetchedOncePerTick(t *testing.T) {
	h := newHarness()
	r := h.runner(t)
	shared := workflow.NewSharedState()
	ctx := context.Background()

	_, err := r.RunSlot(ctx, models.NewWorkflowContext("cron", models.CategoryCrypto, fixedNow), shared)
	require.NoError(t, err)
	_, err = r.RunSlot(ctx, models.NewWorkflowContext("cron", models.CategoryStocks, fixedNow), shared)
	require.NoError(t, err)

	assert.Equal(t, 1, h.macro.calls)
	assert.True(t, shared.Has(SharedRegime))

	_, err = r.RunSlot(ctx, models.NewWorkflowContext("cron", models.CategoryCrypto, fixedNow.Add(time.Hour)), workflow.NewSharedState())
	require.NoError(t, err)
	assert.Equal(t, 2, h.macro.calls, "a new tick fetches again")
}

func TestRunSlot_StocksUseLivePrices(t *testing.T) {
	h := newHarness()
	h.deps.Prices = fakePrices{prices: map[string]float64{"SPY": 500}}
	r := h.runner(t)

	sig, err := r.RunSlot(context.Background(), models.NewWorkflowContext("cron", models.CategoryStocks, fixedNow), nil)
	require.NoError(t, err)

	prices := map[string]float64{}
	for _, a := range sig.Bias.Assets {
		prices[a.Ticker] = a.Price
	}
	assert.Equal(t, 500.0, prices["SPY"])
	assert.Equal(t, 410.0, prices["QQQ"])
}

func TestRunSlot_MissingTickersFlagged(t *testing.T) {
	h := newHarness()
	h.assets.data[models.CategoryCrypto] = cryptoAssets()[:2]
	r := h.runner(t)

	sig, err := r.RunSlot(context.Background(), models.NewWorkflowContext("cron", models.CategoryCrypto, fixedNow), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOL"}, sig.Quality.MissingTickers)
}

func TestRunSlot_EmptyUniverseFails(t *testing.T) {
	h := newHarness()
	r := h.runner(t)

	_, err := r.RunSlot(context.Background(), models.NewWorkflowContext("cron", models.CategoryForex, fixedNow), nil)
	assert.ErrorIs(t, err, ErrEmptyUniverse)
}

func TestRunSlot_RejectsUnknownCategory(t *testing.T) {
	r := newHarness().runner(t)

	_, err := r.RunSlot(context.Background(), models.WorkflowContext{Category: "bonds"}, nil)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

type flakyLocker struct{ err error }

func (f flakyLocker) TryLock(context.Context, string, time.Duration) (bool, error) {
	return false, f.err
}

func (f flakyLocker) Unlock(context.Context, string) error { return nil }

func TestRunSlot_SlotLockExcludesConcurrentRuns(t *testing.T) {
	h := newHarness()
	locks := pkgcache.NewMemoryCache()
	defer locks.Close()
	r, err := NewRunner(workflow.NewEngine(), NewSignalSkills(h.deps), nil, WithSlotLock(locks, time.Minute))
	require.NoError(t, err)
	wctx := models.NewWorkflowContext("manual", models.CategoryCrypto, fixedNow)

	held, err := locks.TryLock(context.Background(), "lock:run:"+wctx.Key(), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = r.RunSlot(context.Background(), wctx, nil)
	assert.ErrorIs(t, err, ErrSlotBusy)
	assert.Empty(t, h.store.saved)

	require.NoError(t, locks.Unlock(context.Background(), "lock:run:"+wctx.Key()))
	_, err = r.RunSlot(context.Background(), wctx, nil)
	require.NoError(t, err)
	assert.Len(t, h.store.saved, 1)

	// released after the run, so a rerun of the slot proceeds
	_, err = r.RunSlot(context.Background(), wctx, nil)
	require.NoError(t, err)
	assert.Len(t, h.store.saved, 2)
}

func TestRunSlot_LockBackendFailureRunsUnlocked(t *testing.T) {
	h := newHarness()
	r, err := NewRunner(workflow.NewEngine(), NewSignalSkills(h.deps), nil, WithSlotLock(flakyLocker{err: errBoom}, 0))
	require.NoError(t, err)

	_, err = r.RunSlot(context.Background(), models.NewWorkflowContext("manual", models.CategoryCrypto, fixedNow), nil)
	require.NoError(t, err)
	assert.Len(t, h.store.saved, 1)
}

func TestResolveSlot(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 41, 0, 0, time.UTC)

	w, err := ResolveSlot("Crypto", "", "", "", now)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowContext{Cron: "manual", Category: models.CategoryCrypto, Date: "2024-06-03", TimeSlot: "09:00"}, w)

	w, err = ResolveSlot("forex", "2024-05-31", "17:30", "api", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-31", w.Date)
	assert.Equal(t, "17:00", w.TimeSlot)
	assert.Equal(t, "api", w.Cron)

	_, err = ResolveSlot("bonds", "", "", "", now)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = ResolveSlot("stocks", "2024-13-01", "", "", now)
	assert.ErrorIs(t, err, ErrInvalidSlot)
}
