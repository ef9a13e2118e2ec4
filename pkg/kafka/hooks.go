package kafka

import (
	"context"
)

// ConsumerHook observes message handling. A BeforeHandle error skips the
// handler and counts as a failed attempt.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, msg Message) (context.Context, error)
	AfterHandle(ctx context.Context, msg Message, err error)
	OnError(ctx context.Context, msg Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, Message, error) {}
func (NoopHook) OnError(context.Context, Message, error)     {}

// HookFuncs adapts plain functions; nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, Message) (context.Context, error)
	After  func(context.Context, Message, error)
	Err    func(context.Context, Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, msg Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, msg)
}

func (h HookFuncs) AfterHandle(ctx context.Context, msg Message, err error) {
	if h.After != nil {
		h.After(ctx, msg, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, msg Message, err error) {
	if h.Err != nil {
		h.Err(ctx, msg, err)
	}
}

type ctxKey string

const ctxTraceID ctxKey = "kafka_trace_id"

// TraceHeader carries a correlation id across producer and consumer.
const TraceHeader = "trace_id"

// TraceHook copies the trace header into the handler context.
func TraceHook() ConsumerHook {
	return HookFuncs{Before: func(ctx context.Context, msg Message) (context.Context, error) {
		return WithTraceID(ctx, msg.Headers[TraceHeader]), nil
	}}
}

// WithTraceID stores id in ctx; empty ids are ignored.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxTraceID, id)
}

// TraceID returns the id stored by WithTraceID, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(ctxTraceID).(string)
	return id
}

func safeAfter(h ConsumerHook, ctx context.Context, msg Message, err error) {
	defer func() { _ = recover() }()
	h.AfterHandle(ctx, msg, err)
}

func safeOnError(h ConsumerHook, ctx context.Context, msg Message, err error) {
	defer func() { _ = recover() }()
	h.OnError(ctx, msg, err)
}
