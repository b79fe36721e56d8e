package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-threeds/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SnapshotStore appends one row per observed authentication context. It backs
// core.AuthenticationRecorder and never stores cryptograms in clear.
type SnapshotStore struct {
	db   *bun.DB
	repo repository.Repository[*authenticationSnapshotRecord]
	Now  func() time.Time
}

func NewSnapshotStore(db *bun.DB) (*SnapshotStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*authenticationSnapshotRecord](db, modelHandlers[authenticationSnapshotRecord]())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid authentication snapshot repository wiring: %w", err)
		}
	}
	return &SnapshotStore{
		db:   db,
		repo: repo,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *SnapshotStore) Record(ctx context.Context, operation core.Operation, authentication core.AuthenticationContext) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: authentication snapshot store is not configured")
	}
	if !operation.Valid() {
		return fmt.Errorf("sqlstore: unknown snapshot operation %q", operation)
	}
	if strings.TrimSpace(authentication.ServerTransactionID) == "" {
		return fmt.Errorf("sqlstore: server transaction id is required")
	}
	recordedAt := authentication.UpdatedAt
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}
	record := newAuthenticationSnapshotRecord(operation, authentication, recordedAt)
	record.ID = uuid.NewString()
	_, err := s.repo.Create(ctx, record)
	return err
}

// Latest returns the most recent snapshot of a transaction.
func (s *SnapshotStore) Latest(ctx context.Context, serverTransactionID string) (AuthenticationSnapshot, error) {
	if s == nil || s.repo == nil {
		return AuthenticationSnapshot{}, fmt.Errorf("sqlstore: authentication snapshot store is not configured")
	}
	serverTransactionID = strings.TrimSpace(serverTransactionID)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("server_transaction_id", "=", serverTransactionID),
		repository.OrderBy("recorded_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return AuthenticationSnapshot{}, err
	}
	if len(records) == 0 || records[0] == nil {
		return AuthenticationSnapshot{}, core.NewResourceNotFoundError(serverTransactionID)
	}
	return records[0].toDomain(), nil
}

// History lists every snapshot of a transaction, oldest first.
func (s *SnapshotStore) History(ctx context.Context, serverTransactionID string) ([]AuthenticationSnapshot, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: authentication snapshot store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("server_transaction_id", "=", strings.TrimSpace(serverTransactionID)),
		repository.OrderBy("recorded_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]AuthenticationSnapshot, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *SnapshotStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
