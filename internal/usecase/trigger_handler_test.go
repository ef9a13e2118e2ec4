package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/workflow"
	pkgcache "SignalForge/pkg/cache"
	pkgkafka "SignalForge/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	runs   []models.WorkflowContext
	shared []*workflow.SharedState
	err    error
}

func (r *recordingRunner) RunSlot(_ context.Context, wctx models.WorkflowContext, shared *workflow.SharedState) (*models.Signal, error) {
	r.runs = append(r.runs, wctx)
	r.shared = append(r.shared, shared)
	if r.err != nil {
		return nil, r.err
	}
	return &models.Signal{Category: wctx.Category}, nil
}

func newTestTrigger(r SlotRunner) *TriggerHandler {
	h := NewTriggerHandler("workflow.triggers", r, nil, nil)
	h.now = func() time.Time { return fixedNow }
	return h
}

func TestTriggerHandler_ExplicitSlot(t *testing.T) {
	r := &recordingRunner{}
	h := newTestTrigger(r)

	err := h.Handle(context.Background(), pkgkafka.Message{Value: []byte(`{"category":"forex","date":"2024-06-01","time_slot":"07:00"}`)})
	require.NoError(t, err)

	require.Len(t, r.runs, 1)
	assert.Equal(t, models.WorkflowContext{Cron: "kafka", Category: models.CategoryForex, Date: "2024-06-01", TimeSlot: "07:00"}, r.runs[0])
	assert.Nil(t, r.shared[0], "manual runs get a fresh shared state")
	assert.Equal(t, "workflow.triggers", h.Topic())
}

func TestTriggerHandler_AtAndDefaults(t *testing.T) {
	r := &recordingRunner{}
	h := newTestTrigger(r)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, pkgkafka.Message{Value: []byte(`{"category":"crypto","at":"1717405200","cron":"ops"}`)}))
	require.NoError(t, h.Handle(ctx, pkgkafka.Message{Value: []byte(`{"category":"stocks"}`)}))

	require.Len(t, r.runs, 2)
	assert.Equal(t, "2024-06-03", r.runs[0].Date)
	assert.Equal(t, "09:00", r.runs[0].TimeSlot)
	assert.Equal(t, "ops", r.runs[0].Cron)
	assert.Equal(t, "13:00", r.runs[1].TimeSlot)
}

func TestTriggerHandler_RejectsBadPayloads(t *testing.T) {
	r := &recordingRunner{}
	h := newTestTrigger(r)
	ctx := context.Background()

	for _, body := range []string{`not json`, `{"category":"bonds"}`, `{"category":"crypto","at":"soon"}`} {
		assert.Error(t, h.Handle(ctx, pkgkafka.Message{Value: []byte(body)}), body)
	}
	assert.Empty(t, r.runs)
}

func TestTriggerHandler_PropagatesRunErrors(t *testing.T) {
	r := &recordingRunner{err: errBoom}
	h := newTestTrigger(r)

	err := h.Handle(context.Background(), pkgkafka.Message{Value: []byte(`{"category":"crypto"}`)})
	assert.ErrorIs(t, err, errBoom)
}

func TestTriggerHandler_BusySlotIsNotRetried(t *testing.T) {
	r := &recordingRunner{err: fmt.Errorf("run: %w", ErrSlotBusy)}
	h := newTestTrigger(r)

	err := h.Handle(context.Background(), pkgkafka.Message{Value: []byte(`{"category":"crypto"}`)})
	assert.NoError(t, err)
	assert.Len(t, r.runs, 1)
}

type countingStore struct {
	*memStore
	latest int
}

func (s *countingStore) Latest(ctx context.Context, c models.Category) (*models.Signal, error) {
	s.latest++
	return s.memStore.Latest(ctx, c)
}

func TestSignalQuery_ReadThroughCache(t *testing.T) {
	store := &countingStore{memStore: newMemStore()}
	require.NoError(t, store.Save(context.Background(), &models.Signal{Category: models.CategoryCrypto, Date: "2024-06-03", TimeSlot: "13:00", Importance: 50}))

	c := pkgcache.NewMemoryCache()
	defer c.Close()
	q := NewSignalQuery(store, c, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sig, err := q.Latest(ctx, models.CategoryCrypto)
		require.NoError(t, err)
		assert.Equal(t, "13:00", sig.TimeSlot)
		assert.Equal(t, 50, sig.Importance)
	}
	assert.Equal(t, 1, store.latest)
}

func TestSignalQuery_Errors(t *testing.T) {
	q := NewSignalQuery(newMemStore(), nil, 0, nil)

	_, err := q.Latest(context.Background(), models.CategoryForex)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	_, err = q.Latest(context.Background(), "bonds")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}
