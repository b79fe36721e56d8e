package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-threeds/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore is the durable idempotency ledger. Keys are scoped per
// operation and the first unexpired writer wins.
type IdempotencyStore struct {
	db   *bun.DB
	repo repository.Repository[*idempotencyKeyRecord]
	ttl  time.Duration
	Now  func() time.Time
}

var errIdempotencyKeyHeld = errors.New("sqlstore: idempotency key already held")

func NewIdempotencyStore(db *bun.DB, ttl time.Duration) (*IdempotencyStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	repo := repository.NewRepository[*idempotencyKeyRecord](db, modelHandlers[idempotencyKeyRecord]())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid idempotency repository wiring: %w", err)
		}
	}
	return &IdempotencyStore{
		db:   db,
		repo: repo,
		ttl:  ttl,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *IdempotencyStore) Remember(ctx context.Context, record core.IdempotencyRecord) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: idempotency store is not configured")
	}
	record, err := normalizeIdempotencyRecord(record)
	if err != nil {
		return false, err
	}
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, findErr := findIdempotencyKeyTx(ctx, tx, record.Operation, record.Key)
		if findErr != nil {
			return findErr
		}
		if existing != nil {
			if now.Before(existing.ExpiresAt.UTC()) {
				return errIdempotencyKeyHeld
			}
			if _, delErr := tx.NewDelete().
				Model((*idempotencyKeyRecord)(nil)).
				Where("id = ?", existing.ID).
				Exec(ctx); delErr != nil {
				return delErr
			}
		}
		row := newIdempotencyKeyRecord(record)
		row.ID = uuid.NewString()
		if _, insertErr := tx.NewInsert().Model(row).Exec(ctx); insertErr != nil {
			if isUniqueViolation(insertErr) {
				return errIdempotencyKeyHeld
			}
			return insertErr
		}
		return nil
	})
	if errors.Is(err, errIdempotencyKeyHeld) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *IdempotencyStore) Lookup(ctx context.Context, operation core.Operation, key string) (core.IdempotencyRecord, bool, error) {
	if s == nil || s.repo == nil {
		return core.IdempotencyRecord{}, false, fmt.Errorf("sqlstore: idempotency store is not configured")
	}
	key = strings.TrimSpace(key)
	if !operation.Valid() || key == "" {
		return core.IdempotencyRecord{}, false, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("operation", "=", string(operation)),
		repository.SelectBy("idempotency_key", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.IdempotencyRecord{}, false, err
	}
	if len(records) == 0 || records[0] == nil {
		return core.IdempotencyRecord{}, false, nil
	}
	record := records[0].toDomain()
	if !s.now().Before(record.ExpiresAt) {
		return core.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

// PurgeExpired removes every key whose expiry has passed and reports how many
// rows were deleted.
func (s *IdempotencyStore) PurgeExpired(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: idempotency store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*idempotencyKeyRecord)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *IdempotencyStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func findIdempotencyKeyTx(
	ctx context.Context,
	tx bun.Tx,
	operation core.Operation,
	key string,
) (*idempotencyKeyRecord, error) {
	record := &idempotencyKeyRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.operation = ?", string(operation)).
		Where("?TableAlias.idempotency_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func normalizeIdempotencyRecord(record core.IdempotencyRecord) (core.IdempotencyRecord, error) {
	record.Key = strings.TrimSpace(record.Key)
	record.ServerTransactionID = strings.TrimSpace(record.ServerTransactionID)
	if !record.Operation.Valid() {
		return core.IdempotencyRecord{}, fmt.Errorf("sqlstore: unknown idempotency operation %q", record.Operation)
	}
	if record.Key == "" {
		return core.IdempotencyRecord{}, fmt.Errorf("sqlstore: idempotency key is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.ExpiresAt = record.ExpiresAt.UTC()
	return record, nil
}
