package transport

import (
	"context"
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-threeds/core"
)

// Exchange failure reasons reported in error metadata.
const (
	FailureDeadline  = "deadline_exceeded"
	FailureCancelled = "cancelled"
	FailureNetwork   = "network"
)

func transportError(message string, category goerrors.Category, code int, metadata map[string]any) error {
	return withTransportCodes(goerrors.New(message, category), category, code, metadata)
}

func transportWrapError(source error, category goerrors.Category, message string, code int, metadata map[string]any) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	return withTransportCodes(goerrors.Wrap(source, category, message), category, code, metadata)
}

func withTransportCodes(err *goerrors.Error, category goerrors.Category, code int, metadata map[string]any) *goerrors.Error {
	err = err.WithCode(code).WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// Unreachable gateways are Transport errors. Anything else is a caller or
// wiring mistake.
func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadInput
	case goerrors.CategoryExternal:
		return core.ErrorTransport
	default:
		return core.ErrorInternal
	}
}

// exchangeMetadata describes a failed round trip without the request body
// or credentials.
func exchangeMetadata(ctx context.Context, req *http.Request, extra map[string]any) map[string]any {
	metadata := map[string]any{
		"adapter": KindREST,
		"method":  req.Method,
		"host":    req.URL.Host,
		"path":    req.URL.Path,
		"failure": FailureNetwork,
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		metadata["failure"] = FailureDeadline
	case errors.Is(ctx.Err(), context.Canceled):
		metadata["failure"] = FailureCancelled
	}
	for _, key := range []string{"operation", "config_name"} {
		if value, ok := extra[key]; ok {
			metadata[key] = value
		}
	}
	return metadata
}

// FailureReason reports why a gateway exchange failed, or "" when err did
// not come from a failed exchange.
func FailureReason(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Metadata == nil {
		return ""
	}
	reason, _ := rich.Metadata["failure"].(string)
	return reason
}
