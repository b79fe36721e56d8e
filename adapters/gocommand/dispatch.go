package gocommand

import (
	"context"
	"fmt"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	threedscommand "github.com/goliatone/go-threeds/command"
	"github.com/goliatone/go-threeds/core"
	threedsquery "github.com/goliatone/go-threeds/query"
)

// CheckEnrollment dispatches the command and returns the context the
// handler stored on the result collector.
func CheckEnrollment(ctx context.Context, req core.CheckEnrollmentRequest) (core.AuthenticationContext, error) {
	return dispatchForContext(ctx, threedscommand.CheckEnrollmentMessage{Request: req})
}

func InitiateAuthentication(ctx context.Context, req core.InitiateAuthenticationRequest) (core.AuthenticationContext, error) {
	return dispatchForContext(ctx, threedscommand.InitiateAuthenticationMessage{Request: req})
}

func GetAuthenticationData(ctx context.Context, req core.GetAuthenticationDataRequest) (core.AuthenticationContext, error) {
	return Query[threedsquery.GetAuthenticationDataMessage, core.AuthenticationContext](ctx,
		threedsquery.GetAuthenticationDataMessage{Request: req})
}

func CheckLiabilityShift(ctx context.Context, serverTransactionID string) (core.LiabilityShift, error) {
	return Query[threedsquery.CheckLiabilityShiftMessage, core.LiabilityShift](ctx,
		threedsquery.CheckLiabilityShiftMessage{ServerTransactionID: serverTransactionID})
}

func LookupIdempotency(ctx context.Context, operation core.Operation, key string) (threedsquery.IdempotencyLookup, error) {
	return Query[threedsquery.LookupIdempotencyMessage, threedsquery.IdempotencyLookup](ctx,
		threedsquery.LookupIdempotencyMessage{Operation: operation, Key: key})
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func dispatchForContext[T any](ctx context.Context, msg T) (core.AuthenticationContext, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	collector := command.NewResult[core.AuthenticationContext]()
	if err := Dispatch(command.ContextWithResult(ctx, collector), msg); err != nil {
		return core.AuthenticationContext{}, err
	}
	result, ok := collector.Load()
	if !ok {
		return core.AuthenticationContext{}, fmt.Errorf("gocommand: handler stored no result")
	}
	return result, nil
}
