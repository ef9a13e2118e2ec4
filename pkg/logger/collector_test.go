package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	digests []Digest
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.digests = append(p.digests, payload.(Digest))
	return nil
}

func TestLogCollector_FoldsRepeats(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 50, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "fetch failed", map[string]interface{}{"ticker": "BTC"}, "assets.go:10")
	}
	c.AddLog("warn", "macro stale", nil, "macro.go:5")
	c.Close()

	require.Len(t, pub.digests, 1)
	assert.Equal(t, "logs", pub.topics[0])
	d := pub.digests[0]
	require.Len(t, d.Entries, 2)
	assert.Equal(t, "fetch failed", d.Entries[0].Message)
	assert.Equal(t, 3, d.Entries[0].Count)
	assert.Equal(t, 1, d.Entries[1].Count)
}

func TestLogCollector_ThresholdFlush(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	c.AddLog("error", "c", nil, "x.go:3")
	c.Close()

	require.Len(t, pub.digests, 2)
	assert.Len(t, pub.digests[0].Entries, 2)
	assert.Len(t, pub.digests[1].Entries, 1)
}

func TestFingerprint_FieldOrderIndependent(t *testing.T) {
	a := fingerprint("error", "m", map[string]interface{}{"a": 1, "b": 2}, "c")
	b := fingerprint("error", "m", map[string]interface{}{"b": 2, "a": 1}, "c")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, fingerprint("warn", "m", nil, "c"))
}

func TestLogger_CollectsWarnings(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "logs", Publisher: pub})

	l.Warn("slow provider", String("provider", "remote"))
	l.Info("ignored")
	l.RemoveCollector()

	require.Len(t, pub.digests, 1)
	require.Len(t, pub.digests[0].Entries, 1)
	assert.Equal(t, "warn", pub.digests[0].Entries[0].Level)
	assert.Equal(t, "remote", pub.digests[0].Entries[0].Fields["provider"])
}
