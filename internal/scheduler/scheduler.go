package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/usecase"
	"SignalForge/internal/workflow"
	"SignalForge/pkg/config"
	applogger "SignalForge/pkg/logger"

	"github.com/robfig/cron/v3"
)

// TickResult is the outcome of one category within a tick.
type TickResult struct {
	Category models.Category
	Signal   *models.Signal
	Err      error
}

// Scheduler launches category workflows on cron ticks. Every tick gets its
// own SharedState, dropped once all of its categories finish.
type Scheduler struct {
	cron    *cron.Cron
	runner  usecase.SlotRunner
	log     *applogger.Logger
	metrics domrepo.Metrics
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Scheduler)

func WithLogger(l *applogger.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithRunTimeout bounds each category run of a tick.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(runner usecase.SlotRunner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:  runner,
		log:     applogger.Nop(),
		timeout: 5 * time.Minute,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(applogger.String("component", "scheduler"))

	cl := cronLogger{l: s.log}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// AddJob validates job and schedules it.
func (s *Scheduler) AddJob(job config.Job) error {
	cats := make([]models.Category, 0, len(job.Categories))
	for _, raw := range job.Categories {
		c, ok := models.ParseCategory(raw)
		if !ok {
			return fmt.Errorf("job %s: %w: %q", job.Label, usecase.ErrUnknownCategory, raw)
		}
		cats = append(cats, c)
	}
	if len(cats) == 0 {
		return fmt.Errorf("job %s: no categories", job.Label)
	}

	spec := job.Spec
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(context.Background(), spec, cats) }); err != nil {
		return fmt.Errorf("job %s: parse %q: %w", job.Label, spec, err)
	}
	s.log.Info("job registered",
		applogger.String("job", job.Label),
		applogger.String("spec", spec),
		applogger.Strings("categories", job.Categories),
	)
	return nil
}

// Register adds every job, stopping at the first invalid one.
func (s *Scheduler) Register(jobs []config.Job) error {
	for _, j := range jobs {
		if err := s.AddJob(j); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", applogger.Int("jobs", len(s.cron.Entries())))
}

// Stop stops new ticks and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Tick runs categories concurrently against one shared state. A failing
// category never affects its siblings.
func (s *Scheduler) Tick(ctx context.Context, spec string, categories []models.Category) []TickResult {
	shared := workflow.NewSharedState()
	at := s.now()
	results := make([]TickResult, len(categories))

	var wg sync.WaitGroup
	for i, cat := range categories {
		wg.Add(1)
		go func(i int, cat models.Category) {
			defer wg.Done()
			results[i] = s.runOne(ctx, models.NewWorkflowContext(spec, cat, at), shared)
		}(i, cat)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil && !errors.Is(r.Err, usecase.ErrSlotBusy) {
			failed++
		}
	}
	s.log.Info("tick finished",
		applogger.String("spec", spec),
		applogger.Int("categories", len(categories)),
		applogger.Int("failed", failed),
	)
	return results
}

func (s *Scheduler) runOne(ctx context.Context, wctx models.WorkflowContext, shared *workflow.SharedState) (res TickResult) {
	res.Category = wctx.Category
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("category %s panicked: %v", wctx.Category, r)
			s.log.Error("category run panicked", applogger.String("category", string(wctx.Category)), applogger.Any("panic", r))
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res.Signal, res.Err = s.runner.RunSlot(ctx, wctx, shared)
	if errors.Is(res.Err, usecase.ErrSlotBusy) {
		s.log.Info("slot already running, tick skipped",
			applogger.String("category", string(wctx.Category)),
			applogger.String("slot", wctx.Date+" "+wctx.TimeSlot),
		)
		return res
	}
	if res.Err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("scheduled_run")
		}
		s.log.Error("category run failed",
			applogger.String("category", string(wctx.Category)),
			applogger.String("slot", wctx.Date+" "+wctx.TimeSlot),
			applogger.Error(res.Err),
		)
	}
	return res
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
