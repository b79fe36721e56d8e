package query

import (
	"strings"

	"github.com/goliatone/go-threeds/core"
)

const (
	TypeGetAuthenticationData = "threeds.query.authentication.data"
	TypeCheckLiabilityShift   = "threeds.query.liability_shift.check"
	TypeLookupIdempotency     = "threeds.query.idempotency.lookup"
)

type GetAuthenticationDataMessage struct {
	Request core.GetAuthenticationDataRequest
}

func (GetAuthenticationDataMessage) Type() string { return TypeGetAuthenticationData }

func (m GetAuthenticationDataMessage) Validate() error {
	return requireTransactionID(m.Request.ServerTransactionID)
}

type CheckLiabilityShiftMessage struct {
	ServerTransactionID string
}

func (CheckLiabilityShiftMessage) Type() string { return TypeCheckLiabilityShift }

func (m CheckLiabilityShiftMessage) Validate() error {
	return requireTransactionID(m.ServerTransactionID)
}

type LookupIdempotencyMessage struct {
	Operation core.Operation
	Key       string
}

func (LookupIdempotencyMessage) Type() string { return TypeLookupIdempotency }

func (m LookupIdempotencyMessage) Validate() error {
	var problems core.FieldProblems
	if !m.Operation.Valid() {
		problems.Add("operation", "operation is not recognized")
	}
	if strings.TrimSpace(m.Key) == "" {
		problems.Add("key", "idempotency key is required")
	}
	return problems.Err("query")
}

func requireTransactionID(serverTransactionID string) error {
	var problems core.FieldProblems
	if strings.TrimSpace(serverTransactionID) == "" {
		problems.Add("server_transaction_id", "server transaction id is required")
	}
	return problems.Err("query")
}

// IdempotencyLookup is the ledger answer for one key. Found is false when the
// key was never seen or has expired.
type IdempotencyLookup struct {
	Record core.IdempotencyRecord
	Found  bool
}
