package marketdata

import (
	"context"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	"SignalForge/internal/domain/service"
	applogger "SignalForge/pkg/logger"
)

const (
	lastGoodMacroKey = "marketdata:macro:last_good"
	lastGoodMacroTTL = 7 * 24 * time.Hour
)

// NeutralMacro is used when neither the gateway nor the cache has data.
// Every field classifies as neutral.
func NeutralMacro(now time.Time) models.MacroData {
	return models.MacroData{AsOf: now, Fallback: true}
}

// MacroService fetches the macro snapshot and never fails: on upstream
// errors it serves the last good snapshot, then a neutral one.
type MacroService struct {
	base       *HTTPServiceBase
	cache      repository.KVCache
	staleAfter time.Duration
}

var _ service.MacroFetcher = (*MacroService)(nil)

func NewMacroService(base *HTTPServiceBase, cache repository.KVCache, staleAfter time.Duration) *MacroService {
	if staleAfter <= 0 {
		staleAfter = 36 * time.Hour
	}
	return &MacroService{base: base, cache: cache, staleAfter: staleAfter}
}

func (s *MacroService) FetchMacro(ctx context.Context) (models.MacroData, error) {
	now := s.base.now()

	var m models.MacroData
	err := s.base.GetJSONWithRetry(ctx, "/v1/macro", nil, &m)
	if err == nil {
		if m.AsOf.IsZero() {
			m.AsOf = now
		}
		m.Fallback = false
		m.Stale = now.Sub(m.AsOf) > s.staleAfter
		if s.cache != nil {
			if cerr := s.cache.Set(ctx, lastGoodMacroKey, m, lastGoodMacroTTL); cerr != nil {
				s.base.log.Warn("cache last good macro failed", applogger.Error(cerr))
			}
		}
		return m, nil
	}

	s.base.log.Warn("macro fetch failed, degrading", applogger.Error(err))
	if s.cache != nil {
		var cached models.MacroData
		if cerr := s.cache.Get(ctx, lastGoodMacroKey, &cached); cerr == nil {
			cached.Fallback = true
			cached.Stale = now.Sub(cached.AsOf) > s.staleAfter
			return cached, nil
		}
	}
	return NeutralMacro(now), nil
}
