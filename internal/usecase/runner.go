package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/workflow"
	applogger "SignalForge/pkg/logger"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidSlot     = errors.New("invalid time slot")
	ErrSlotBusy        = errors.New("slot already running")
)

const slotLockPrefix = "lock:run:"

// SlotRunner runs the signal workflow for one category slot.
type SlotRunner interface {
	RunSlot(ctx context.Context, wctx models.WorkflowContext, shared *workflow.SharedState) (*models.Signal, error)
}

// Runner owns the compiled signal plan and executes it per slot.
type Runner struct {
	engine   *workflow.Engine
	plan     *workflow.Plan
	recorder domrepo.RunRecorder
	metrics  domrepo.Metrics
	log      *applogger.Logger
	timeout  time.Duration
	now      func() time.Time
	locker   domrepo.SlotLocker
	lockTTL  time.Duration
}

type RunnerOption func(*Runner)

func WithRunnerLogger(l *applogger.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

func WithRunnerMetrics(m domrepo.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithRunTimeout bounds a single category run; zero disables the bound.
func WithRunTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithSlotLock makes RunSlot hold a lock on the slot key for the run. A
// second run of the same slot fails with ErrSlotBusy. ttl bounds how long
// a crashed holder blocks the slot; zero uses the run timeout.
func WithSlotLock(l domrepo.SlotLocker, ttl time.Duration) RunnerOption {
	return func(r *Runner) {
		r.locker = l
		r.lockTTL = ttl
	}
}

// NewRunner registers the skills and compiles the signal workflow. A
// wiring mistake surfaces here, before any run starts.
func NewRunner(engine *workflow.Engine, skills *SignalSkills, recorder domrepo.RunRecorder, opts ...RunnerOption) (*Runner, error) {
	reg := workflow.NewRegistry()
	if err := skills.Register(reg); err != nil {
		return nil, fmt.Errorf("register skills: %w", err)
	}
	plan, err := workflow.Compile(SignalWorkflow(), reg)
	if err != nil {
		return nil, fmt.Errorf("compile workflow: %w", err)
	}

	r := &Runner{
		engine:   engine,
		plan:     plan,
		recorder: recorder,
		metrics:  nopMetrics{},
		log:      applogger.Nop(),
		timeout:  5 * time.Minute,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.recorder == nil {
		r.recorder = workflow.NopRecorder{}
	}
	if r.lockTTL <= 0 {
		r.lockTTL = r.timeout
	}
	if r.lockTTL <= 0 {
		r.lockTTL = 5 * time.Minute
	}
	return r, nil
}

// Steps returns the step ids in execution order.
func (r *Runner) Steps() []string { return r.plan.IDs() }

// RunSlot executes the workflow for wctx. A nil shared state gets a fresh
// one, which is what manual triggers want.
func (r *Runner) RunSlot(ctx context.Context, wctx models.WorkflowContext, shared *workflow.SharedState) (*models.Signal, error) {
	if !models.IsValidCategory(wctx.Category) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, wctx.Category)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	release, err := r.lockSlot(ctx, wctx)
	if err != nil {
		return nil, err
	}
	defer release()

	started := r.now()
	state, err := r.engine.Execute(ctx, r.plan, wctx, shared, r.recorder)
	elapsed := r.now().Sub(started).Seconds()
	if err != nil {
		r.metrics.RecordRun(string(wctx.Category), "error", elapsed)
		r.metrics.RecordError("workflow")
		return nil, fmt.Errorf("run %s: %w", wctx.Key(), err)
	}

	sig, err := workflow.Output[*models.Signal](state, SkillStoreSignal)
	if err != nil {
		r.metrics.RecordRun(string(wctx.Category), "error", elapsed)
		return nil, fmt.Errorf("run %s: %w", wctx.Key(), err)
	}
	r.metrics.RecordRun(string(wctx.Category), "success", elapsed)
	return sig, nil
}

// lockSlot takes the slot lock. A lock backend failure is logged and the
// run proceeds unlocked; the store upserts by slot either way.
func (r *Runner) lockSlot(ctx context.Context, wctx models.WorkflowContext) (func(), error) {
	if r.locker == nil {
		return func() {}, nil
	}
	key := slotLockPrefix + wctx.Key()
	ok, err := r.locker.TryLock(ctx, key, r.lockTTL)
	if err != nil {
		r.log.Warn("slot lock unavailable, running unlocked", applogger.String("key", key), applogger.Error(err))
		r.metrics.RecordError("slot_lock")
		return func() {}, nil
	}
	if !ok {
		r.metrics.RecordRun(string(wctx.Category), "skipped", 0)
		return nil, fmt.Errorf("run %s: %w", wctx.Key(), ErrSlotBusy)
	}
	return func() {
		if err := r.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
			r.log.Warn("slot unlock failed", applogger.String("key", key), applogger.Error(err))
		}
	}, nil
}

// ResolveSlot builds the run context for a manual trigger. Missing date or
// slot parts are taken from now; the slot is truncated to its hour.
func ResolveSlot(category, date, timeSlot, cron string, now time.Time) (models.WorkflowContext, error) {
	cat, ok := models.ParseCategory(strings.ToLower(strings.TrimSpace(category)))
	if !ok {
		return models.WorkflowContext{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if cron == "" {
		cron = "manual"
	}

	u := now.UTC()
	if date == "" {
		date = u.Format("2006-01-02")
	}
	if timeSlot == "" {
		timeSlot = u.Format("15:04")
	}
	at, err := time.Parse("2006-01-02 15:04", date+" "+timeSlot)
	if err != nil {
		return models.WorkflowContext{}, fmt.Errorf("%w: %s %s", ErrInvalidSlot, date, timeSlot)
	}
	return models.NewWorkflowContext(cron, cat, at), nil
}
