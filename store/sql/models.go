package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-threeds/core"
	"github.com/uptrace/bun"
)

type idempotencyKeyRecord struct {
	bun.BaseModel `bun:"table:threeds_idempotency_keys,alias:tik"`

	ID                  string    `bun:"id,pk"`
	Operation           string    `bun:"operation,notnull"`
	IdempotencyKey      string    `bun:"idempotency_key,notnull"`
	ServerTransactionID string    `bun:"server_transaction_id,notnull"`
	Status              string    `bun:"status,notnull"`
	CreatedAt           time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt           time.Time `bun:"expires_at,notnull"`
}

func newIdempotencyKeyRecord(record core.IdempotencyRecord) *idempotencyKeyRecord {
	return &idempotencyKeyRecord{
		Operation:           string(record.Operation),
		IdempotencyKey:      strings.TrimSpace(record.Key),
		ServerTransactionID: strings.TrimSpace(record.ServerTransactionID),
		Status:              string(record.Status),
		CreatedAt:           record.CreatedAt.UTC(),
		ExpiresAt:           record.ExpiresAt.UTC(),
	}
}

func (r *idempotencyKeyRecord) toDomain() core.IdempotencyRecord {
	if r == nil {
		return core.IdempotencyRecord{}
	}
	return core.IdempotencyRecord{
		Operation:           core.Operation(r.Operation),
		Key:                 r.IdempotencyKey,
		ServerTransactionID: r.ServerTransactionID,
		Status:              core.AuthenticationStatus(r.Status),
		CreatedAt:           r.CreatedAt.UTC(),
		ExpiresAt:           r.ExpiresAt.UTC(),
	}
}

type authenticationSnapshotRecord struct {
	bun.BaseModel `bun:"table:threeds_authentication_snapshots,alias:tas"`

	ID                  string         `bun:"id,pk"`
	ServerTransactionID string         `bun:"server_transaction_id,notnull"`
	Operation           string         `bun:"operation,notnull"`
	ProtocolVersion     string         `bun:"protocol_version,notnull"`
	EnrolledStatus      string         `bun:"enrolled_status,notnull"`
	Status              string         `bun:"status,notnull"`
	Stage               string         `bun:"stage,notnull"`
	LiabilityShift      string         `bun:"liability_shift,notnull"`
	ECI                 string         `bun:"eci,notnull"`
	ChallengeMandated   bool           `bun:"challenge_mandated,notnull"`
	Amount              string         `bun:"amount,notnull"`
	Currency            string         `bun:"currency,notnull"`
	Details             map[string]any `bun:"details,type:jsonb,notnull"`
	RecordedAt          time.Time      `bun:"recorded_at,nullzero,notnull,default:current_timestamp"`
}

func newAuthenticationSnapshotRecord(
	operation core.Operation,
	authentication core.AuthenticationContext,
	recordedAt time.Time,
) *authenticationSnapshotRecord {
	return &authenticationSnapshotRecord{
		ServerTransactionID: strings.TrimSpace(authentication.ServerTransactionID),
		Operation:           string(operation),
		ProtocolVersion:     string(authentication.ProtocolVersion),
		EnrolledStatus:      string(authentication.EnrolledStatus),
		Status:              string(authentication.Status),
		Stage:               string(authentication.Stage),
		LiabilityShift:      string(authentication.LiabilityShift),
		ECI:                 authentication.ECI,
		ChallengeMandated:   authentication.ChallengeMandated,
		Amount:              authentication.Amount,
		Currency:            authentication.Currency,
		Details:             RedactDetails(snapshotDetails(authentication)),
		RecordedAt:          recordedAt.UTC(),
	}
}

func snapshotDetails(authentication core.AuthenticationContext) map[string]any {
	details := map[string]any{}
	put := func(key string, value string) {
		if value = strings.TrimSpace(value); value != "" {
			details[key] = value
		}
	}
	put("message_version", authentication.MessageVersion)
	put("message_type", authentication.MessageType)
	put("issuer_acs_url", authentication.IssuerAcsURL)
	put("challenge_return_url", authentication.ChallengeReturnURL)
	put("session_data_field_name", authentication.SessionDataFieldName)
	put("acs_transaction_id", authentication.AcsTransactionID)
	put("ds_transaction_id", authentication.DirectoryServerTransactionID)
	put("authentication_value", authentication.AuthenticationValue)
	put("payer_authentication_request", authentication.PayerAuthenticationRequest)
	return details
}

// AuthenticationSnapshot is one persisted view of a context. Cryptograms and
// challenge payloads are stored redacted.
type AuthenticationSnapshot struct {
	ID             string
	Operation      core.Operation
	Authentication core.AuthenticationContext
	Details        map[string]any
	RecordedAt     time.Time
}

func (r *authenticationSnapshotRecord) toDomain() AuthenticationSnapshot {
	if r == nil {
		return AuthenticationSnapshot{}
	}
	details := copyAnyMap(r.Details)
	return AuthenticationSnapshot{
		ID:        r.ID,
		Operation: core.Operation(r.Operation),
		Authentication: core.AuthenticationContext{
			ServerTransactionID:          r.ServerTransactionID,
			ProtocolVersion:              core.Version(r.ProtocolVersion),
			EnrolledStatus:               core.EnrolledStatus(r.EnrolledStatus),
			Status:                       core.AuthenticationStatus(r.Status),
			ChallengeMandated:            r.ChallengeMandated,
			LiabilityShift:               core.LiabilityShift(r.LiabilityShift),
			ECI:                          r.ECI,
			Stage:                        core.FlowStage(r.Stage),
			IssuerAcsURL:                 detailString(details, "issuer_acs_url"),
			ChallengeReturnURL:           detailString(details, "challenge_return_url"),
			MessageType:                  detailString(details, "message_type"),
			SessionDataFieldName:         detailString(details, "session_data_field_name"),
			MessageVersion:               detailString(details, "message_version"),
			AcsTransactionID:             detailString(details, "acs_transaction_id"),
			DirectoryServerTransactionID: detailString(details, "ds_transaction_id"),
			Amount:                       r.Amount,
			Currency:                     r.Currency,
			UpdatedAt:                    r.RecordedAt.UTC(),
		},
		Details:    details,
		RecordedAt: r.RecordedAt.UTC(),
	}
}

func detailString(details map[string]any, key string) string {
	value, ok := details[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
