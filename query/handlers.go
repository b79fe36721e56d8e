package query

import (
	"context"

	"github.com/goliatone/go-threeds/core"
)

type AuthenticationReader interface {
	GetAuthenticationData(ctx context.Context, req core.GetAuthenticationDataRequest) (core.AuthenticationContext, error)
	CheckLiabilityShift(ctx context.Context, serverTransactionID string) (core.LiabilityShift, error)
}

type IdempotencyReader interface {
	Lookup(ctx context.Context, operation core.Operation, key string) (core.IdempotencyRecord, bool, error)
}

type GetAuthenticationDataQuery struct {
	reader AuthenticationReader
}

func NewGetAuthenticationDataQuery(reader AuthenticationReader) *GetAuthenticationDataQuery {
	return &GetAuthenticationDataQuery{reader: reader}
}

func (q *GetAuthenticationDataQuery) Query(
	ctx context.Context,
	msg GetAuthenticationDataMessage,
) (core.AuthenticationContext, error) {
	if q == nil || q.reader == nil {
		return core.AuthenticationContext{}, core.NewDependencyError("query: authentication reader is required")
	}
	return q.reader.GetAuthenticationData(ctx, msg.Request)
}

type CheckLiabilityShiftQuery struct {
	reader AuthenticationReader
}

func NewCheckLiabilityShiftQuery(reader AuthenticationReader) *CheckLiabilityShiftQuery {
	return &CheckLiabilityShiftQuery{reader: reader}
}

func (q *CheckLiabilityShiftQuery) Query(ctx context.Context, msg CheckLiabilityShiftMessage) (core.LiabilityShift, error) {
	if q == nil || q.reader == nil {
		return "", core.NewDependencyError("query: authentication reader is required")
	}
	return q.reader.CheckLiabilityShift(ctx, msg.ServerTransactionID)
}

type LookupIdempotencyQuery struct {
	reader IdempotencyReader
}

func NewLookupIdempotencyQuery(reader IdempotencyReader) *LookupIdempotencyQuery {
	return &LookupIdempotencyQuery{reader: reader}
}

func (q *LookupIdempotencyQuery) Query(ctx context.Context, msg LookupIdempotencyMessage) (IdempotencyLookup, error) {
	if q == nil || q.reader == nil {
		return IdempotencyLookup{}, core.NewDependencyError("query: idempotency reader is required")
	}
	record, found, err := q.reader.Lookup(ctx, msg.Operation, msg.Key)
	if err != nil {
		return IdempotencyLookup{}, err
	}
	return IdempotencyLookup{Record: record, Found: found}, nil
}
