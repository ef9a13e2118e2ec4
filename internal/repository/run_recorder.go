package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	pkgch "SignalForge/pkg/clickhouse"
)

// CHRunRecorder appends workflow run and step telemetry. Runs and steps are
// written twice, once when they start and once when they finish; readers
// take the row with the latest recorded_at.
type CHRunRecorder struct {
	db       *sql.DB
	database string
	now      func() time.Time
}

var _ domrepo.RunRecorder = (*CHRunRecorder)(nil)

func NewCHRunRecorder(ch *pkgch.Client, database string) *CHRunRecorder {
	return &CHRunRecorder{db: ch.DB(), database: database, now: time.Now}
}

func (r *CHRunRecorder) RunStarted(ctx context.Context, rec models.RunRecord) error {
	return r.insertRun(ctx, rec)
}

func (r *CHRunRecorder) RunFinished(ctx context.Context, rec models.RunRecord) error {
	return r.insertRun(ctx, rec)
}

func (r *CHRunRecorder) insertRun(ctx context.Context, rec models.RunRecord) error {
	day, err := time.Parse(dateLayout, rec.Context.Date)
	if err != nil {
		return fmt.Errorf("record run: date %q: %w", rec.Context.Date, err)
	}
	q := fmt.Sprintf(`INSERT INTO %s.%s (run_id, workflow, category, date, time_slot, cron, status, error,
        started_at, duration_ms, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.database, TableRuns)
	_, err = r.db.ExecContext(ctx, q,
		rec.RunID, rec.Workflow, string(rec.Context.Category), day, rec.Context.TimeSlot, rec.Context.Cron,
		string(rec.Status), rec.Error, rec.StartedAt, uint64(rec.Duration.Milliseconds()), r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.RunID, err)
	}
	return nil
}

func (r *CHRunRecorder) StepStarted(ctx context.Context, rec models.StepRecord) error {
	return r.insertStep(ctx, rec)
}

func (r *CHRunRecorder) StepFinished(ctx context.Context, rec models.StepRecord) error {
	return r.insertStep(ctx, rec)
}

func (r *CHRunRecorder) insertStep(ctx context.Context, rec models.StepRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s.%s (run_id, step_id, skill, status, error, started_at, duration_ms, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.database, TableSteps)
	_, err := r.db.ExecContext(ctx, q,
		rec.RunID, rec.StepID, rec.Skill, string(rec.Status), rec.Error, rec.StartedAt,
		uint64(rec.Duration.Milliseconds()), r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record step %s/%s: %w", rec.RunID, rec.StepID, err)
	}
	return nil
}
