package workflow

import (
	"context"
	"errors"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
)

// NopRecorder drops all telemetry.
type NopRecorder struct{}

var _ repository.RunRecorder = NopRecorder{}

func (NopRecorder) RunStarted(context.Context, models.RunRecord) error    { return nil }
func (NopRecorder) StepStarted(context.Context, models.StepRecord) error  { return nil }
func (NopRecorder) StepFinished(context.Context, models.StepRecord) error { return nil }
func (NopRecorder) RunFinished(context.Context, models.RunRecord) error   { return nil }

// MultiRecorder forwards to every recorder and joins their errors.
type MultiRecorder []repository.RunRecorder

var _ repository.RunRecorder = MultiRecorder(nil)

func (m MultiRecorder) RunStarted(ctx context.Context, r models.RunRecord) error {
	var errs []error
	for _, rec := range m {
		errs = append(errs, rec.RunStarted(ctx, r))
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) StepStarted(ctx context.Context, s models.StepRecord) error {
	var errs []error
	for _, rec := range m {
		errs = append(errs, rec.StepStarted(ctx, s))
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) StepFinished(ctx context.Context, s models.StepRecord) error {
	var errs []error
	for _, rec := range m {
		errs = append(errs, rec.StepFinished(ctx, s))
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) RunFinished(ctx context.Context, r models.RunRecord) error {
	var errs []error
	for _, rec := range m {
		errs = append(errs, rec.RunFinished(ctx, r))
	}
	return errors.Join(errs...)
}
