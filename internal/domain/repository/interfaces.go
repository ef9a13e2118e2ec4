package repository

import (
	"context"
	"errors"
	"time"

	"SignalForge/internal/domain/models"
)

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("not found")

// SignalStore persists one signal row per (category, date, time slot).
type SignalStore interface {
	Init(ctx context.Context) error // ensure tables
	// Save upserts the signal row and replaces its asset rows.
	Save(ctx context.Context, s *models.Signal) error
	// Previous returns the latest signal strictly before the given slot, or nil when none exists.
	Previous(ctx context.Context, category models.Category, date, timeSlot string) (*models.SignalSnapshot, error)
	// Latest returns the newest stored signal or ErrNotFound.
	Latest(ctx context.Context, category models.Category) (*models.Signal, error)
	Health(ctx context.Context) error
	Close() error
}

// RunRecorder receives append-only workflow telemetry.
type RunRecorder interface {
	RunStarted(ctx context.Context, r models.RunRecord) error
	StepStarted(ctx context.Context, s models.StepRecord) error
	StepFinished(ctx context.Context, s models.StepRecord) error
	RunFinished(ctx context.Context, r models.RunRecord) error
}

// WebhookStore keeps subscribers and their failure streaks.
type WebhookStore interface {
	Upsert(ctx context.Context, s models.WebhookSubscriber) error
	ListActive(ctx context.Context, category models.Category) ([]models.WebhookSubscriber, error)
	RecordSuccess(ctx context.Context, id string) error
	// RecordFailure bumps the streak and disables the subscriber once it reaches maxFailures.
	RecordFailure(ctx context.Context, id string, maxFailures int) (disabled bool, err error)
}

// EventPublisher emits stored signals to downstream consumers.
type EventPublisher interface {
	PublishSignal(ctx context.Context, s *models.Signal) error
	Close() error
}

// KVCache is the cross-run key/value store used for small state.
type KVCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

// SlotLocker grants exclusive, expiring ownership of a key.
type SlotLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordStep(workflow, step, status string, seconds float64)
	RecordRun(category, status string, seconds float64)
	RecordLLM(provider, status string, seconds float64)
	RecordDelivery(kind, status string)
	RecordImportance(category string, score int)
	RecordError(kind string)
}
