package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type fakeReader struct {
	in        chan kafka.Message
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	committed []int64
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{in: make(chan kafka.Message, len(msgs)), done: make(chan struct{})}
	for _, m := range msgs {
		r.in <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.in:
		return m, nil
	case <-r.done:
		return kafka.Message{}, io.EOF
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type funcHandler struct {
	topic string
	fn    func(context.Context, Message) error
}

func (h funcHandler) Topic() string                                 { return h.topic }
func (h funcHandler) Handle(ctx context.Context, msg Message) error { return h.fn(ctx, msg) }

func TestProducer_PublishEncodesJSONAndHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "gzip")

	err := p.Publish(context.Background(), "signals.published", []byte("crypto"),
		map[string]string{"bias": "Bullish"}, map[string]string{"event": "signal"})
	require.NoError(t, err)
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "raw"))

	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.Equal(t, "signals.published", msgs[0].Topic)
	assert.Equal(t, []byte("crypto"), msgs[0].Key)
	assert.JSONEq(t, `{"bias":"Bullish"}`, string(msgs[0].Value))
	assert.Equal(t, []kafka.Header{{Key: "event", Value: []byte("signal")}}, msgs[0].Headers)
	assert.Equal(t, "raw", string(msgs[1].Value))
}

func TestProducer_WrapsWriteError(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, "gzip")
	err := p.Publish(context.Background(), "t", nil, "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish t: broker down")
}

func newTestConsumer(t *testing.T, reader *fakeReader, dlq Writer, h MessageHandler, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(opts...)
	require.NoError(t, err)
	c.WithReaderFactory(func(*ConsumerConfig, string) Reader { return reader })
	c.WithDLQWriter(dlq)
	require.NoError(t, c.RegisterHandler(h))
	return c
}

func stop(t *testing.T, c *Consumer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	reader := newFakeReader(kafka.Message{
		Topic:   "workflow.triggers",
		Offset:  7,
		Value:   []byte(`{"category":"crypto"}`),
		Headers: []kafka.Header{{Key: TraceHeader, Value: []byte("abc")}},
	})
	got := make(chan string, 1)
	h := funcHandler{topic: "workflow.triggers", fn: func(ctx context.Context, msg Message) error {
		got <- TraceID(ctx) + " " + string(msg.Value)
		return nil
	}}

	c := newTestConsumer(t, reader, nil, h)
	c.WithConsumerHook(TraceHook())
	require.NoError(t, c.Start())
	defer stop(t, c)

	select {
	case s := <-got:
		assert.Equal(t, `abc {"category":"crypto"}`, s)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "workflow.triggers", Offset: 3, Value: []byte("bad")})
	dlq := &fakeWriter{}
	var mu sync.Mutex
	calls := 0
	h := funcHandler{topic: "workflow.triggers", fn: func(context.Context, Message) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("invalid trigger")
	}}

	c := newTestConsumer(t, reader, dlq, h, WithConsumerDLQ("workflow.triggers.dlq"))
	require.NoError(t, c.Start())
	defer stop(t, c)

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()

	parked := dlq.written()
	require.Len(t, parked, 1)
	assert.Equal(t, "workflow.triggers.dlq", parked[0].Topic)
	assert.Equal(t, "bad", string(parked[0].Value))
}

func TestConsumer_PanicIsRecoveredWithoutDLQ(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "workflow.triggers", Offset: 1})
	var errMu sync.Mutex
	var seen error
	h := funcHandler{topic: "workflow.triggers", fn: func(context.Context, Message) error { panic("boom") }}

	c := newTestConsumer(t, reader, nil, h)
	c.WithConsumerHook(HookFuncs{Err: func(_ context.Context, _ Message, err error) {
		errMu.Lock()
		seen = err
		errMu.Unlock()
	}})
	require.NoError(t, c.Start())
	defer stop(t, c)

	assert.Eventually(t, func() bool {
		errMu.Lock()
		defer errMu.Unlock()
		return seen != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, reader.commits())
}

func TestRegisterHandler_Duplicate(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"b"}))
	require.NoError(t, err)
	h := funcHandler{topic: "x", fn: func(context.Context, Message) error { return nil }}
	require.NoError(t, c.RegisterHandler(h))
	assert.Error(t, c.RegisterHandler(h))
	assert.Error(t, (&Consumer{handlers: map[string]MessageHandler{}}).Start())
}
