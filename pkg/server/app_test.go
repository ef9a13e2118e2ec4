package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/scheduler"
	"SignalForge/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleRunner struct{}

func (idleRunner) RunSlot(context.Context, models.WorkflowContext, *workflow.SharedState) (*models.Signal, error) {
	return &models.Signal{}, nil
}

func TestShutdown_ClosesInReverseOrder(t *testing.T) {
	var order []string
	closer := func(name string, err error) Closer {
		return Closer{Name: name, Close: func() error {
			order = append(order, name)
			return err
		}}
	}

	app := New(nil, Options{
		Closers: Closers{
			closer("clickhouse", nil),
			closer("redis", errors.New("already closed")),
			{Name: "noop"},
			closer("kafka-producer", nil),
		},
	})

	err := app.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close redis: already closed")
	assert.Equal(t, []string{"kafka-producer", "redis", "clickhouse"}, order)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	sched := scheduler.New(idleRunner{})
	closed := make(chan struct{})
	app := New(nil, Options{
		Scheduler: sched,
		Closers:   Closers{{Name: "store", Close: func() error { close(closed); return nil }}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	select {
	case <-closed:
	default:
		t.Fatal("closer not invoked")
	}
}
