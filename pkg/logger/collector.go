package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a digest batch to a topic. The Kafka producer satisfies it.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig controls how warn/error entries are folded into digests.
type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct fingerprints before an early flush
	Topic          string
	Publisher      Publisher
	PublishTimeout time.Duration
}

// DigestEntry is one fingerprint with its occurrence count inside a window.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Digest is the payload published per flush.
type Digest struct {
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	Entries     []DigestEntry `json:"entries"`
}

// LogCollector deduplicates repeated warnings and errors so a failing
// upstream produces one digest row instead of a log storm.
type LogCollector struct {
	cfg     CollectionConfig
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]*DigestEntry
	started time.Time
	closed  bool
	flushCh chan Digest
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}

	c := &LogCollector{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*DigestEntry),
		flushCh: make(chan Digest, 8),
		stop:    make(chan struct{}),
	}
	c.started = c.now()

	c.wg.Add(2)
	go c.tick()
	go c.ship()
	return c
}

// AddLog folds one entry into the current window.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	key := fingerprint(level, message, fields, caller)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	c.entries[key] = &DigestEntry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(c.entries) >= c.cfg.CountThreshold {
		c.enqueueLocked()
	}
}

// Flush closes the current window immediately.
func (c *LogCollector) Flush() {
	c.mu.Lock()
	c.enqueueLocked()
	c.mu.Unlock()
}

// Close flushes what is left and waits for the shipper to drain. Entries
// added afterwards are dropped.
func (c *LogCollector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.enqueueLocked()
	c.mu.Unlock()

	close(c.stop)
	c.wg.Wait()
}

func (c *LogCollector) tick() {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.Flush()
		case <-c.stop:
			return
		}
	}
}

func (c *LogCollector) ship() {
	defer c.wg.Done()
	for {
		select {
		case d := <-c.flushCh:
			c.publish(d)
		case <-c.stop:
			for {
				select {
				case d := <-c.flushCh:
					c.publish(d)
				default:
					return
				}
			}
		}
	}
}

func (c *LogCollector) publish(d Digest) {
	if c.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
	defer cancel()
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, d); err != nil {
		// The logger itself cannot be used here without feeding the collector.
		fmt.Fprintf(os.Stderr, "log digest publish failed: %v\n", err)
	}
}

// enqueueLocked must be called with c.mu held.
func (c *LogCollector) enqueueLocked() {
	if len(c.entries) == 0 {
		return
	}
	end := c.now()
	d := Digest{WindowStart: c.started, WindowEnd: end, Entries: make([]DigestEntry, 0, len(c.entries))}
	for _, e := range c.entries {
		d.Entries = append(d.Entries, *e)
	}
	sort.Slice(d.Entries, func(i, j int) bool {
		if d.Entries[i].Count != d.Entries[j].Count {
			return d.Entries[i].Count > d.Entries[j].Count
		}
		return d.Entries[i].Message < d.Entries[j].Message
	})
	c.entries = make(map[string]*DigestEntry)
	c.started = end

	select {
	case c.flushCh <- d:
	default:
		fmt.Fprintf(os.Stderr, "log digest dropped: %d entries\n", len(d.Entries))
	}
}

// fingerprint hashes the entry; json.Marshal sorts map keys so equal
// field sets always hash the same.
func fingerprint(level, message string, fields map[string]interface{}, caller string) string {
	raw, _ := json.Marshal(struct {
		L string                 `json:"l"`
		M string                 `json:"m"`
		F map[string]interface{} `json:"f"`
		C string                 `json:"c"`
	}{level, message, fields, caller})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
