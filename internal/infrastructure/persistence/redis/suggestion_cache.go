package redis

import (
	"context"
	"errors"
	"time"

	"github.com/natija-hub/results-engine/internal/suggest"
	"github.com/natija-hub/results-engine/pkg/logger"
)

// SuggestionCache is the Redis tier of the suggestion cache. Misses and
// Redis failures are both reported as plain misses: typeahead must never
// fail because the shared cache is down.
type SuggestionCache struct {
	cache *Cache
	log   *logger.Logger
}

// NewSuggestionCache wraps a connected Cache as a suggest.RemoteCache.
func NewSuggestionCache(cache *Cache, log *logger.Logger) *SuggestionCache {
	if log == nil {
		log = logger.Default()
	}
	return &SuggestionCache{
		cache: cache,
		log:   log.With(logger.Component("redis.suggestion_cache")),
	}
}

// Get implements suggest.RemoteCache.
func (s *SuggestionCache) Get(ctx context.Context, key string) ([]suggest.Suggestion, bool) {
	var out []suggest.Suggestion
	err := s.cache.Get(ctx, SuggestionKey(key), &out)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("suggestion cache read failed", logger.Err(err))
		}
		return nil, false
	}
	return out, true
}

// Set implements suggest.RemoteCache.
func (s *SuggestionCache) Set(ctx context.Context, key string, suggestions []suggest.Suggestion, ttl time.Duration) {
	if ttl <= 0 {
		ttl = TTLSuggestions
	}
	if err := s.cache.Set(ctx, SuggestionKey(key), suggestions, ttl); err != nil {
		s.log.Warn("suggestion cache write failed", logger.Err(err))
	}
}

// Clear implements suggest.RemoteCache by dropping every suggestion key.
func (s *SuggestionCache) Clear(ctx context.Context) error {
	return s.cache.DeleteByPattern(ctx, PrefixSuggestion+"*")
}
