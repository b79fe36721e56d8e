package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-threeds/core"
)

const idempotencyCacheKeyPrefix = "go-threeds::idempotency::v1"

type cachedIdempotencyLookup struct {
	Record core.IdempotencyRecord
	Found  bool
}

// CachedIdempotencyStore fronts an idempotency store with a read-through
// cache. Remember always reaches the base store and invalidates the key.
type CachedIdempotencyStore struct {
	base  core.IdempotencyStore
	cache repositorycache.CacheService
	Now   func() time.Time
}

func NewCachedIdempotencyStore(
	base core.IdempotencyStore,
	cacheService repositorycache.CacheService,
) (*CachedIdempotencyStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base idempotency store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: idempotency cache service is required")
	}
	return &CachedIdempotencyStore{base: base, cache: cacheService}, nil
}

// IdempotencyCacheKey returns go-threeds::idempotency::v1::<operation>::<key>
// with each segment URL-path escaped.
func IdempotencyCacheKey(operation core.Operation, key string) (string, error) {
	key = strings.TrimSpace(key)
	if !operation.Valid() {
		return "", fmt.Errorf("sqlstore: unknown idempotency operation %q", operation)
	}
	if key == "" {
		return "", fmt.Errorf("sqlstore: idempotency key is required")
	}
	return strings.Join([]string{
		idempotencyCacheKeyPrefix,
		url.PathEscape(string(operation)),
		url.PathEscape(key),
	}, "::"), nil
}

func (s *CachedIdempotencyStore) Remember(ctx context.Context, record core.IdempotencyRecord) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached idempotency store is not configured")
	}
	cacheKey, err := IdempotencyCacheKey(record.Operation, record.Key)
	if err != nil {
		return false, err
	}
	created, err := s.base.Remember(ctx, record)
	if err != nil {
		return false, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return created, err
	}
	return created, nil
}

func (s *CachedIdempotencyStore) Lookup(ctx context.Context, operation core.Operation, key string) (core.IdempotencyRecord, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.IdempotencyRecord{}, false, fmt.Errorf("sqlstore: cached idempotency store is not configured")
	}
	cacheKey, err := IdempotencyCacheKey(operation, key)
	if err != nil {
		return core.IdempotencyRecord{}, false, nil
	}
	lookup, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedIdempotencyLookup, error) {
		record, found, fetchErr := s.base.Lookup(ctx, operation, key)
		if fetchErr != nil {
			return cachedIdempotencyLookup{}, fetchErr
		}
		return cachedIdempotencyLookup{Record: record, Found: found}, nil
	})
	if err != nil {
		return core.IdempotencyRecord{}, false, err
	}
	if !lookup.Found {
		return core.IdempotencyRecord{}, false, nil
	}
	if !lookup.Record.ExpiresAt.IsZero() && !s.now().Before(lookup.Record.ExpiresAt) {
		return core.IdempotencyRecord{}, false, nil
	}
	return lookup.Record, true, nil
}

func (s *CachedIdempotencyStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
