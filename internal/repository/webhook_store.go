package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/pkg/cache"

	"github.com/redis/go-redis/v9"
)

const (
	webhookIndexKey = "webhooks:ids"

	fieldConfig   = "config"
	fieldFailures = "failures"
	fieldActive   = "active"
	fieldDisabled = "disabled_at"
)

// RedisWebhookStore keeps each subscriber in a hash: its JSON config plus
// the failure streak and active flag, which are updated atomically.
type RedisWebhookStore struct {
	rc  *cache.RedisCache
	now func() time.Time
}

var _ domrepo.WebhookStore = (*RedisWebhookStore)(nil)

func NewRedisWebhookStore(rc *cache.RedisCache) *RedisWebhookStore {
	return &RedisWebhookStore{rc: rc, now: time.Now}
}

func (s *RedisWebhookStore) key(id string) string { return s.rc.Key("webhooks:" + id) }

func (s *RedisWebhookStore) Upsert(ctx context.Context, sub models.WebhookSubscriber) error {
	if sub.ID == "" || sub.URL == "" {
		return errors.New("upsert webhook: id and url are required")
	}
	cfg := sub
	cfg.ConsecutiveFailures = 0
	cfg.DisabledAt = nil
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("upsert webhook %s: %w", sub.ID, err)
	}

	pipe := s.rc.Client().TxPipeline()
	pipe.HSet(ctx, s.key(sub.ID),
		fieldConfig, b,
		fieldFailures, sub.ConsecutiveFailures,
		fieldActive, boolToUInt8(sub.Active),
	)
	if sub.Active {
		pipe.HDel(ctx, s.key(sub.ID), fieldDisabled)
	}
	pipe.SAdd(ctx, s.rc.Key(webhookIndexKey), sub.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert webhook %s: %w", sub.ID, err)
	}
	return nil
}

func (s *RedisWebhookStore) ListActive(ctx context.Context, category models.Category) ([]models.WebhookSubscriber, error) {
	ids, err := s.rc.Client().SMembers(ctx, s.rc.Key(webhookIndexKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	sort.Strings(ids)

	pipe := s.rc.Client().Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}

	var out []models.WebhookSubscriber
	for _, cmd := range cmds {
		sub, ok, err := subscriberFromHash(cmd.Val())
		if err != nil {
			return nil, fmt.Errorf("list webhooks: %w", err)
		}
		if ok && sub.Active && sub.Wants(category) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func subscriberFromHash(h map[string]string) (models.WebhookSubscriber, bool, error) {
	raw, ok := h[fieldConfig]
	if !ok {
		return models.WebhookSubscriber{}, false, nil
	}
	var sub models.WebhookSubscriber
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return sub, false, fmt.Errorf("decode subscriber: %w", err)
	}
	sub.ConsecutiveFailures, _ = strconv.Atoi(h[fieldFailures])
	sub.Active = h[fieldActive] == "1"
	if ts, err := time.Parse(time.RFC3339Nano, h[fieldDisabled]); err == nil {
		sub.DisabledAt = &ts
	}
	return sub, true, nil
}

func (s *RedisWebhookStore) RecordSuccess(ctx context.Context, id string) error {
	if err := s.rc.Client().HSet(ctx, s.key(id), fieldFailures, 0).Err(); err != nil {
		return fmt.Errorf("reset webhook %s: %w", id, err)
	}
	return nil
}

func (s *RedisWebhookStore) RecordFailure(ctx context.Context, id string, maxFailures int) (bool, error) {
	n, err := s.rc.Client().HIncrBy(ctx, s.key(id), fieldFailures, 1).Result()
	if err != nil {
		return false, fmt.Errorf("record webhook failure %s: %w", id, err)
	}
	if maxFailures <= 0 || n < int64(maxFailures) {
		return false, nil
	}
	err = s.rc.Client().HSet(ctx, s.key(id),
		fieldActive, 0,
		fieldDisabled, s.now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return false, fmt.Errorf("disable webhook %s: %w", id, err)
	}
	return true, nil
}

// MemoryWebhookStore is the process-local store used when Redis is not
// configured.
type MemoryWebhookStore struct {
	mu   sync.Mutex
	subs map[string]models.WebhookSubscriber
	now  func() time.Time
}

var _ domrepo.WebhookStore = (*MemoryWebhookStore)(nil)

func NewMemoryWebhookStore() *MemoryWebhookStore {
	return &MemoryWebhookStore{subs: make(map[string]models.WebhookSubscriber), now: time.Now}
}

func (m *MemoryWebhookStore) Upsert(_ context.Context, sub models.WebhookSubscriber) error {
	if sub.ID == "" || sub.URL == "" {
		return errors.New("upsert webhook: id and url are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.Active {
		sub.DisabledAt = nil
	}
	m.subs[sub.ID] = sub
	return nil
}

func (m *MemoryWebhookStore) ListActive(_ context.Context, category models.Category) ([]models.WebhookSubscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WebhookSubscriber
	for _, s := range m.subs {
		if s.Active && s.Wants(category) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryWebhookStore) RecordSuccess(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return domrepo.ErrNotFound
	}
	s.ConsecutiveFailures = 0
	m.subs[id] = s
	return nil
}

func (m *MemoryWebhookStore) RecordFailure(_ context.Context, id string, maxFailures int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return false, domrepo.ErrNotFound
	}
	s.ConsecutiveFailures++
	disabled := maxFailures > 0 && s.ConsecutiveFailures >= maxFailures
	if disabled {
		s.Active = false
		t := m.now().UTC()
		s.DisabledAt = &t
	}
	m.subs[id] = s
	return disabled, nil
}
