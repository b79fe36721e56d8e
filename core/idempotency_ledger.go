package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultIdempotencyTTL = 24 * time.Hour
const defaultIdempotencyMaxEntries = 8192

// MemoryIdempotencyLedger remembers which transaction first used a key within
// an operation. It is only consulted to annotate duplicate errors.
type MemoryIdempotencyLedger struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	maxEntries int
	entries    map[string]IdempotencyRecord
	Now        func() time.Time
}

func NewMemoryIdempotencyLedger(defaultTTL time.Duration) *MemoryIdempotencyLedger {
	return NewMemoryIdempotencyLedgerWithLimits(defaultTTL, defaultIdempotencyMaxEntries)
}

func NewMemoryIdempotencyLedgerWithLimits(defaultTTL time.Duration, maxEntries int) *MemoryIdempotencyLedger {
	if defaultTTL <= 0 {
		defaultTTL = defaultIdempotencyTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultIdempotencyMaxEntries
	}
	return &MemoryIdempotencyLedger{
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		entries:    map[string]IdempotencyRecord{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Remember stores record unless the scoped key is already held. The first
// writer wins and later calls report created=false.
func (l *MemoryIdempotencyLedger) Remember(_ context.Context, record IdempotencyRecord) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("core: idempotency ledger is not configured")
	}
	record, err := normalizeIdempotencyRecord(record)
	if err != nil {
		return false, err
	}
	now := l.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(l.defaultTTL)
	}
	scope := IdempotencyScope(record.Operation, record.Key)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneExpiredLocked(now)
	if _, ok := l.entries[scope]; ok {
		return false, nil
	}
	l.enforceCapacityLocked(1)
	l.entries[scope] = record
	return true, nil
}

func (l *MemoryIdempotencyLedger) Lookup(_ context.Context, operation Operation, key string) (IdempotencyRecord, bool, error) {
	if l == nil {
		return IdempotencyRecord{}, false, fmt.Errorf("core: idempotency ledger is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return IdempotencyRecord{}, false, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.entries[IdempotencyScope(operation, key)]
	if !ok {
		return IdempotencyRecord{}, false, nil
	}
	if !now.Before(record.ExpiresAt) {
		delete(l.entries, IdempotencyScope(operation, key))
		return IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (l *MemoryIdempotencyLedger) PurgeExpired(_ context.Context) (int, error) {
	if l == nil {
		return 0, fmt.Errorf("core: idempotency ledger is not configured")
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	before := len(l.entries)
	l.pruneExpiredLocked(now)
	return before - len(l.entries), nil
}

func (l *MemoryIdempotencyLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryIdempotencyLedger) pruneExpiredLocked(now time.Time) {
	for scope, record := range l.entries {
		if !now.Before(record.ExpiresAt) {
			delete(l.entries, scope)
		}
	}
}

func (l *MemoryIdempotencyLedger) enforceCapacityLocked(incoming int) {
	target := max(l.maxEntries-incoming, 0)
	for len(l.entries) > target {
		var oldestScope string
		var oldest time.Time
		for scope, record := range l.entries {
			if oldestScope == "" || record.CreatedAt.Before(oldest) {
				oldestScope = scope
				oldest = record.CreatedAt
			}
		}
		delete(l.entries, oldestScope)
	}
}

func normalizeIdempotencyRecord(record IdempotencyRecord) (IdempotencyRecord, error) {
	record.Key = strings.TrimSpace(record.Key)
	record.ServerTransactionID = strings.TrimSpace(record.ServerTransactionID)
	if !record.Operation.Valid() {
		return IdempotencyRecord{}, fmt.Errorf("core: invalid idempotency operation %q", record.Operation)
	}
	if record.Key == "" {
		return IdempotencyRecord{}, fmt.Errorf("core: idempotency key is required")
	}
	if !record.CreatedAt.IsZero() {
		record.CreatedAt = record.CreatedAt.UTC()
	}
	if !record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.ExpiresAt.UTC()
	}
	return record, nil
}
