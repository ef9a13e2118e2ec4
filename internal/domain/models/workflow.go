package models

import (
	"fmt"
	"time"
)

// WorkflowContext is the immutable input of one category run.
type WorkflowContext struct {
	Cron     string   `json:"cron"`
	Category Category `json:"category"`
	Date     string   `json:"date"`      // YYYY-MM-DD
	TimeSlot string   `json:"time_slot"` // HH:00, UTC
}

// NewWorkflowContext derives date and hourly slot from t in UTC.
func NewWorkflowContext(cron string, category Category, t time.Time) WorkflowContext {
	u := t.UTC()
	return WorkflowContext{
		Cron:     cron,
		Category: category,
		Date:     u.Format("2006-01-02"),
		TimeSlot: fmt.Sprintf("%02d:00", u.Hour()),
	}
}

// SlotTime returns the start of the slot as a UTC time.
func (w WorkflowContext) SlotTime() (time.Time, error) {
	return time.Parse("2006-01-02 15:04", w.Date+" "+w.TimeSlot)
}

// Key identifies the persisted signal row.
func (w WorkflowContext) Key() string {
	return fmt.Sprintf("%s:%s:%s", w.Category, w.Date, w.TimeSlot)
}

// RunStatus is the terminal state of a run or step.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
)

// RunRecord is an append-only telemetry row for a workflow run.
type RunRecord struct {
	RunID     string
	Workflow  string
	Context   WorkflowContext
	Status    RunStatus
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// StepRecord is an append-only telemetry row for a single step.
type StepRecord struct {
	RunID     string
	StepID    string
	Skill     string
	Status    RunStatus
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}
