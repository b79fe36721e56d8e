package sqlstore

import (
	"fmt"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-threeds/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db             *bun.DB
	idempotencyTTL time.Duration
	cacheService   repositorycache.CacheService

	idempotencyStore       *IdempotencyStore
	cachedIdempotencyStore *CachedIdempotencyStore
	snapshotStore          *SnapshotStore
}

type FactoryOption func(*RepositoryFactory)

// WithIdempotencyTTL sets how long remembered keys stay held.
func WithIdempotencyTTL(ttl time.Duration) FactoryOption {
	return func(f *RepositoryFactory) {
		f.idempotencyTTL = ttl
	}
}

// WithCacheService fronts idempotency lookups with the given cache.
func WithCacheService(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cacheService = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (*RepositoryFactory, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.idempotencyStore != nil && f.snapshotStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// IdempotencyStore returns the cached ledger when a cache service was
// configured and the plain SQL ledger otherwise.
func (f *RepositoryFactory) IdempotencyStore() core.IdempotencyStore {
	if f == nil {
		return nil
	}
	if f.cachedIdempotencyStore != nil {
		return f.cachedIdempotencyStore
	}
	if f.idempotencyStore == nil {
		return nil
	}
	return f.idempotencyStore
}

func (f *RepositoryFactory) SQLIdempotencyStore() *IdempotencyStore {
	if f == nil {
		return nil
	}
	return f.idempotencyStore
}

func (f *RepositoryFactory) SnapshotStore() *SnapshotStore {
	if f == nil {
		return nil
	}
	return f.snapshotStore
}

func (f *RepositoryFactory) initStores() error {
	idempotencyStore, err := NewIdempotencyStore(f.db, f.idempotencyTTL)
	if err != nil {
		return err
	}
	f.idempotencyStore = idempotencyStore
	if f.cacheService != nil {
		cached, cacheErr := NewCachedIdempotencyStore(idempotencyStore, f.cacheService)
		if cacheErr != nil {
			return cacheErr
		}
		f.cachedIdempotencyStore = cached
	}
	snapshotStore, err := NewSnapshotStore(f.db)
	if err != nil {
		return err
	}
	f.snapshotStore = snapshotStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: persistence client is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
