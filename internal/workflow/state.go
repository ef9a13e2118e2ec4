package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrStateOverwrite = errors.New("step output already set")
	ErrMissingOutput  = errors.New("step output not found")
	ErrOutputType     = errors.New("unexpected step output type")
	ErrSharedPanic    = errors.New("shared computation panicked")
)

// PipelineState holds step outputs for a single run. Entries are write-once.
type PipelineState struct {
	mu      sync.RWMutex
	outputs map[string]any
	order   []string
}

func NewPipelineState() *PipelineState {
	return &PipelineState{outputs: make(map[string]any)}
}

func (s *PipelineState) Set(stepID string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outputs[stepID]; ok {
		return fmt.Errorf("set %s: %w", stepID, ErrStateOverwrite)
	}
	s.outputs[stepID] = v
	s.order = append(s.order, stepID)
	return nil
}

func (s *PipelineState) Get(stepID string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.outputs[stepID]
	return v, ok
}

// Steps returns step ids in the order their outputs were stored.
func (s *PipelineState) Steps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Output returns the typed output of stepID.
func Output[T any](s *PipelineState, stepID string) (T, error) {
	var zero T
	if s == nil {
		return zero, fmt.Errorf("%s: %w", stepID, ErrMissingOutput)
	}
	v, ok := s.Get(stepID)
	if !ok {
		return zero, fmt.Errorf("%s: %w", stepID, ErrMissingOutput)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s: %w: want %T, got %T", stepID, ErrOutputType, zero, v)
	}
	return t, nil
}

type memoEntry struct {
	done chan struct{}
	val  any
	err  error
}

// SharedState is shared by all category runs of one scheduling tick.
// Memo computes each key at most once while it succeeds; concurrent callers
// wait for the in-flight computation.
type SharedState struct {
	mu      sync.Mutex
	entries map[string]*memoEntry
}

func NewSharedState() *SharedState {
	return &SharedState{entries: make(map[string]*memoEntry)}
}

// Memo returns the value for key, computing it with fn if no successful
// value exists. A failed or panicking computation is dropped and waiters
// retry it themselves.
func (s *SharedState) Memo(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			e = &memoEntry{done: make(chan struct{})}
			s.entries[key] = e
			s.mu.Unlock()
			return s.compute(ctx, key, e, fn)
		}
		s.mu.Unlock()

		select {
		case <-e.done:
			if e.err == nil {
				return e.val, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (s *SharedState) compute(ctx context.Context, key string, e *memoEntry, fn func(ctx context.Context) (any, error)) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			val, err = nil, fmt.Errorf("shared %s: %w: %v", key, ErrSharedPanic, r)
		}
		e.val, e.err = val, err
		if err != nil {
			s.mu.Lock()
			delete(s.entries, key)
			s.mu.Unlock()
		}
		close(e.done)
	}()
	return fn(ctx)
}

// Has reports whether key holds a completed value.
func (s *SharedState) Has(key string) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-e.done:
		return e.err == nil
	default:
		return false
	}
}

// Memoize is the typed form of SharedState.Memo.
func Memoize[T any](ctx context.Context, s *SharedState, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := s.Memo(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("shared %s: %w: want %T, got %T", key, ErrOutputType, zero, v)
	}
	return t, nil
}
