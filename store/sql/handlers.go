package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRecord is a bun model whose primary key is a textual UUID column
// named id.
type keyedRecord[R any] interface {
	*R
	recordID() string
	setRecordID(id string)
}

func modelHandlers[R any, P keyedRecord[R]]() repository.ModelHandlers[P] {
	return repository.ModelHandlers[P]{
		NewRecord: func() P {
			return P(new(R))
		},
		GetID: func(record P) uuid.UUID {
			if (*R)(record) == nil {
				return uuid.Nil
			}
			return parseUUID(record.recordID())
		},
		SetID: func(record P, id uuid.UUID) {
			if (*R)(record) != nil {
				record.setRecordID(id.String())
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record P) string {
			if (*R)(record) == nil {
				return ""
			}
			return strings.TrimSpace(record.recordID())
		},
	}
}

func (r *idempotencyKeyRecord) recordID() string { return r.ID }

func (r *idempotencyKeyRecord) setRecordID(id string) { r.ID = id }

func (r *authenticationSnapshotRecord) recordID() string { return r.ID }

func (r *authenticationSnapshotRecord) setRecordID(id string) { r.ID = id }

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
