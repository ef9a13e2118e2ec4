package workflow

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	applogger "SignalForge/pkg/logger"

	"github.com/google/uuid"
)

// StepMetrics receives one observation per finished step.
type StepMetrics interface {
	RecordStep(workflow, step, status string, seconds float64)
}

// Engine runs compiled workflows one step at a time.
type Engine struct {
	log     *applogger.Logger
	metrics StepMetrics
	now     func() time.Time
	newID   func() string
}

type Option func(*Engine)

func WithLogger(l *applogger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(m StepMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithRunIDs(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		log:   applogger.Nop(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run compiles def and executes it sequentially. Nothing runs if the
// definition is invalid. The first failing step aborts the run; the
// returned state holds every output produced before that point.
func (e *Engine) Run(
	ctx context.Context,
	def Definition,
	reg *Registry,
	wctx models.WorkflowContext,
	shared *SharedState,
	rec repository.RunRecorder,
) (*PipelineState, error) {
	plan, err := Compile(def, reg)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan, wctx, shared, rec)
}

// Execute runs an already compiled plan.
func (e *Engine) Execute(
	ctx context.Context,
	plan *Plan,
	wctx models.WorkflowContext,
	shared *SharedState,
	rec repository.RunRecorder,
) (*PipelineState, error) {
	if rec == nil {
		rec = NopRecorder{}
	}
	if shared == nil {
		shared = NewSharedState()
	}

	run := models.RunRecord{
		RunID:     e.newID(),
		Workflow:  plan.Name,
		Context:   wctx,
		Status:    models.StatusRunning,
		StartedAt: e.now(),
	}
	log := e.log.With(
		applogger.String("run_id", run.RunID),
		applogger.String("workflow", plan.Name),
		applogger.String("category", string(wctx.Category)),
		applogger.String("slot", wctx.Date+" "+wctx.TimeSlot),
	)
	if err := rec.RunStarted(ctx, run); err != nil {
		log.Warn("record run start failed", applogger.Error(err))
	}

	state := NewPipelineState()
	runErr := e.execute(ctx, plan, wctx, state, shared, rec, run.RunID, log)

	run.Duration = e.now().Sub(run.StartedAt)
	run.Status = models.StatusSuccess
	if runErr != nil {
		run.Status = models.StatusFailed
		run.Error = runErr.Error()
	}
	if err := rec.RunFinished(ctx, run); err != nil {
		log.Warn("record run finish failed", applogger.Error(err))
	}

	if runErr != nil {
		log.Error("workflow failed", applogger.Error(runErr), applogger.Duration("duration_ms", run.Duration))
		return state, runErr
	}
	log.Info("workflow completed", applogger.Int("steps", len(plan.Order)), applogger.Duration("duration_ms", run.Duration))
	return state, nil
}

func (e *Engine) execute(
	ctx context.Context,
	plan *Plan,
	wctx models.WorkflowContext,
	state *PipelineState,
	shared *SharedState,
	rec repository.RunRecorder,
	runID string,
	log *applogger.Logger,
) error {
	for _, step := range plan.Order {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("step %s (%s): %w", step.ID, step.Skill.Key(), err)
		}

		skill := plan.skills[step.Skill.Key()]
		sr := models.StepRecord{
			RunID:     runID,
			StepID:    step.ID,
			Skill:     step.Skill.Key(),
			Status:    models.StatusRunning,
			StartedAt: e.now(),
		}
		if recErr := rec.StepStarted(ctx, sr); recErr != nil {
			log.Warn("record step start failed", applogger.String("step", step.ID), applogger.Error(recErr))
		}

		out, err := e.runStep(ctx, step, skill, wctx, state, shared)
		if err == nil {
			err = state.Set(step.ID, out)
		}
		elapsed := e.now().Sub(sr.StartedAt)

		sr.Status = models.StatusSuccess
		sr.Duration = elapsed
		if err != nil {
			sr.Status = models.StatusFailed
			sr.Error = err.Error()
		}
		if recErr := rec.StepFinished(ctx, sr); recErr != nil {
			log.Warn("record step failed", applogger.String("step", step.ID), applogger.Error(recErr))
		}
		if e.metrics != nil {
			e.metrics.RecordStep(plan.Name, step.ID, string(sr.Status), elapsed.Seconds())
		}

		if err != nil {
			return fmt.Errorf("step %s (%s): %w", step.ID, step.Skill.Key(), err)
		}
		log.Debug("step completed", applogger.String("step", step.ID), applogger.Duration("duration_ms", elapsed))
	}
	return nil
}

func (e *Engine) runStep(
	ctx context.Context,
	step Step,
	skill Skill,
	wctx models.WorkflowContext,
	state *PipelineState,
	shared *SharedState,
) (any, error) {
	var value any
	switch {
	case step.Input != nil:
		v, err := step.Input(wctx, state, shared)
		if err != nil {
			return nil, fmt.Errorf("map input: %w", err)
		}
		value = v
	case step.From != "":
		v, ok := state.Get(step.From)
		if !ok {
			return nil, fmt.Errorf("input from %s: %w", step.From, ErrMissingOutput)
		}
		value = v
	}
	return skill.Run(ctx, Input{Context: wctx, State: state, Shared: shared, Value: value})
}
