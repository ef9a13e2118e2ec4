package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	applogger "SignalForge/pkg/logger"
)

const latestKeyPrefix = "signals:latest:"

// SignalQuery serves the newest stored signal per category through a short
// read-through cache.
type SignalQuery struct {
	store domrepo.SignalStore
	cache domrepo.KVCache
	ttl   time.Duration
	log   *applogger.Logger
}

// NewSignalQuery builds the query; a nil cache or non-positive ttl reads
// the store every time.
func NewSignalQuery(store domrepo.SignalStore, cache domrepo.KVCache, ttl time.Duration, l *applogger.Logger) *SignalQuery {
	if l == nil {
		l = applogger.Nop()
	}
	return &SignalQuery{store: store, cache: cache, ttl: ttl, log: l}
}

// Latest returns the newest signal or an error wrapping domrepo.ErrNotFound.
func (q *SignalQuery) Latest(ctx context.Context, category models.Category) (*models.Signal, error) {
	if !models.IsValidCategory(category) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	key := latestKeyPrefix + string(category)

	if q.cached() {
		var sig models.Signal
		if err := q.cache.Get(ctx, key, &sig); err == nil {
			return &sig, nil
		}
	}

	sig, err := q.store.Latest(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("latest %s signal: %w", category, err)
	}

	if q.cached() {
		if err := q.cache.Set(ctx, key, sig, q.ttl); err != nil {
			q.log.Warn("cache latest signal failed", applogger.String("category", string(category)), applogger.Error(err))
		}
	}
	return sig, nil
}

func (q *SignalQuery) cached() bool { return q.cache != nil && q.ttl > 0 }
