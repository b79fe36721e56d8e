package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorMandatoryFieldMissing = "THREEDS_MANDATORY_FIELD_MISSING"
	ErrorMandatoryDataMissing  = "THREEDS_MANDATORY_DATA_MISSING"
	ErrorDuplicateAction       = "THREEDS_DUPLICATE_ACTION"
	ErrorResourceNotFound      = "THREEDS_RESOURCE_NOT_FOUND"
	ErrorUnsupportedVersion    = "THREEDS_UNSUPPORTED_VERSION"
	ErrorDownstreamProtocol    = "THREEDS_DOWNSTREAM_PROTOCOL"
	ErrorTransport             = "THREEDS_TRANSPORT"
	ErrorInvalidState          = "THREEDS_INVALID_STATE"
	ErrorGateway               = "THREEDS_GATEWAY_ERROR"
	ErrorBadInput              = "THREEDS_BAD_INPUT"
	ErrorInternal              = "THREEDS_INTERNAL_ERROR"
)

// Gateway response codes the classifier understands.
const (
	ResponseCodeInvalidRequestData    = "INVALID_REQUEST_DATA"
	ResponseCodeMandatoryDataMissing  = "MANDATORY_DATA_MISSING"
	ResponseCodeDuplicateAction       = "DUPLICATE_ACTION"
	ResponseCodeResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResponseCodeSystemErrorDownstream = "SYSTEM_ERROR_DOWNSTREAM"
)

// ResponseTextDuplicateAction is the detailed code the gateway pairs with
// DUPLICATE_ACTION.
const ResponseTextDuplicateAction = "40039"

// GatewayError holds the gateway's own error triplet. Locally detected
// precondition failures reuse the codes the gateway would have answered with.
type GatewayError struct {
	ResponseCode          string
	ResponseText          string
	Message               string
	StatusCode            int
	ServerTransactionID   string
	OriginalTransactionID string
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return fmt.Sprintf("Status Code: %d - %s", e.StatusCode, e.ResponseCode)
}

// GatewayMessage formats a gateway message the way the gateway reports it.
func GatewayMessage(statusCode int, description string) string {
	return fmt.Sprintf("Status Code: %d - %s", statusCode, strings.TrimSpace(description))
}

func AsGatewayError(err error) (*GatewayError, bool) {
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) && gatewayErr != nil {
		return gatewayErr, true
	}
	return nil, false
}

// ErrorKind returns the taxonomy text code of err, or "" for foreign errors.
func ErrorKind(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return rich.TextCode
	}
	return ""
}

func IsKind(err error, kind string) bool {
	return err != nil && ErrorKind(err) == kind
}

func NewMandatoryFieldMissingError(missing []string) error {
	description := "Request expects the following conditionally mandatory fields " + strings.Join(missing, ",") + "."
	return newGatewayKindError(ErrorMandatoryFieldMissing, &GatewayError{
		ResponseCode: ResponseCodeInvalidRequestData,
		ResponseText: "40007",
		Message:      GatewayMessage(http.StatusBadRequest, description),
		StatusCode:   http.StatusBadRequest,
	}, map[string]any{"missing_fields": append([]string(nil), missing...)})
}

func NewMandatoryDataMissingError(missing []string) error {
	description := "Request expects the following fields " + strings.Join(missing, ",")
	return newGatewayKindError(ErrorMandatoryDataMissing, &GatewayError{
		ResponseCode: ResponseCodeMandatoryDataMissing,
		ResponseText: "40005",
		Message:      GatewayMessage(http.StatusBadRequest, description),
		StatusCode:   http.StatusBadRequest,
	}, map[string]any{"missing_fields": append([]string(nil), missing...)})
}

func NewResourceNotFoundError(serverTransactionID string) error {
	serverTransactionID = strings.TrimSpace(serverTransactionID)
	return newGatewayKindError(ErrorResourceNotFound, &GatewayError{
		ResponseCode:        ResponseCodeResourceNotFound,
		ResponseText:        "40118",
		Message:             GatewayMessage(http.StatusNotFound, fmt.Sprintf("Authentication %s not found at this location.", serverTransactionID)),
		StatusCode:          http.StatusNotFound,
		ServerTransactionID: serverTransactionID,
	}, nil)
}

// NewDuplicateActionError reports a second authentication attempt on a
// transaction that already reached a terminal status.
func NewDuplicateActionError(serverTransactionID string, status AuthenticationStatus) error {
	return newGatewayKindError(ErrorDuplicateAction, &GatewayError{
		ResponseCode:          ResponseCodeDuplicateAction,
		ResponseText:          ResponseTextDuplicateAction,
		Message:               GatewayMessage(http.StatusConflict, fmt.Sprintf("Authentication %s already completed with status %s.", serverTransactionID, status)),
		StatusCode:            http.StatusConflict,
		ServerTransactionID:   serverTransactionID,
		OriginalTransactionID: serverTransactionID,
	}, map[string]any{"status": string(status)})
}

func NewUnsupportedVersionError(version Version, reason string) error {
	message := fmt.Sprintf("core: unsupported 3DS version %q: %s", string(version), strings.TrimSpace(reason))
	if version == "" {
		message = fmt.Sprintf("core: unsupported 3DS version: %s", strings.TrimSpace(reason))
	}
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorUnsupportedVersion).
		WithMetadata(map[string]any{"version": string(version)})
}

func NewInvalidStateError(authentication AuthenticationContext, reason string) error {
	return goerrors.New("core: "+strings.TrimSpace(reason), goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorInvalidState).
		WithMetadata(map[string]any{
			"server_transaction_id": authentication.ServerTransactionID,
			"status":                string(authentication.Status),
			"enrolled_status":       string(authentication.EnrolledStatus),
		})
}

// NewDownstreamProtocolError reports a response that breaks the protocol
// contract without the gateway flagging it as an error.
func NewDownstreamProtocolError(serverTransactionID string, reason string) error {
	return newGatewayKindError(ErrorDownstreamProtocol, &GatewayError{
		ResponseCode:        ResponseCodeSystemErrorDownstream,
		Message:             "core: " + strings.TrimSpace(reason),
		StatusCode:          http.StatusBadGateway,
		ServerTransactionID: serverTransactionID,
	}, nil)
}

// classificationHint carries what the caller knew about the attempt when the
// gateway answered with an error.
type classificationHint struct {
	Operation           Operation
	ServerTransactionID string
	TerminalContext     bool
}

// ClassifyGatewayError maps a gateway error triplet onto the taxonomy.
func ClassifyGatewayError(gatewayErr *GatewayError, operation Operation) error {
	return classifyGatewayError(gatewayErr, classificationHint{Operation: operation})
}

func classifyGatewayError(gatewayErr *GatewayError, hint classificationHint) error {
	if gatewayErr == nil {
		return nil
	}
	if gatewayErr.ServerTransactionID == "" {
		gatewayErr.ServerTransactionID = hint.ServerTransactionID
	}
	code := strings.ToUpper(strings.TrimSpace(gatewayErr.ResponseCode))
	message := strings.ToLower(gatewayErr.Message)

	kind := ErrorGateway
	switch {
	case code == ResponseCodeDuplicateAction:
		kind = ErrorDuplicateAction
	case code == ResponseCodeResourceNotFound:
		kind = ErrorResourceNotFound
	case code == ResponseCodeMandatoryDataMissing:
		kind = ErrorMandatoryDataMissing
	case code == ResponseCodeInvalidRequestData && strings.Contains(message, "mandatory fields"):
		kind = ErrorMandatoryFieldMissing
	case code == ResponseCodeSystemErrorDownstream && hint.TerminalContext:
		// A consumed transaction answers a second initiation as a downstream
		// failure; it is the same outcome as an explicit duplicate.
		kind = ErrorDuplicateAction
		if gatewayErr.OriginalTransactionID == "" {
			gatewayErr.OriginalTransactionID = hint.ServerTransactionID
		}
	case code == ResponseCodeSystemErrorDownstream:
		kind = ErrorDownstreamProtocol
	}
	return newGatewayKindError(kind, gatewayErr, map[string]any{"operation": string(hint.Operation)})
}

func newGatewayKindError(kind string, gatewayErr *GatewayError, extra map[string]any) error {
	category := kindCategory(kind, gatewayErr.StatusCode)
	code := gatewayErr.StatusCode
	if code == 0 {
		code = threeDSHTTPStatus(category)
	}
	metadata := map[string]any{
		"response_code": gatewayErr.ResponseCode,
		"response_text": gatewayErr.ResponseText,
		"status_code":   gatewayErr.StatusCode,
	}
	if gatewayErr.ServerTransactionID != "" {
		metadata["server_transaction_id"] = gatewayErr.ServerTransactionID
	}
	if gatewayErr.OriginalTransactionID != "" {
		metadata["original_transaction_id"] = gatewayErr.OriginalTransactionID
	}
	for key, value := range extra {
		if value == nil || value == "" {
			continue
		}
		metadata[key] = value
	}
	return goerrors.Wrap(gatewayErr, category, gatewayErr.Error()).
		WithCode(code).
		WithTextCode(kind).
		WithMetadata(metadata)
}

func kindCategory(kind string, statusCode int) goerrors.Category {
	switch kind {
	case ErrorMandatoryFieldMissing, ErrorMandatoryDataMissing:
		return goerrors.CategoryValidation
	case ErrorDuplicateAction:
		return goerrors.CategoryConflict
	case ErrorResourceNotFound:
		return goerrors.CategoryNotFound
	case ErrorUnsupportedVersion, ErrorInvalidState, ErrorBadInput:
		return goerrors.CategoryBadInput
	case ErrorDownstreamProtocol, ErrorTransport:
		return goerrors.CategoryExternal
	case ErrorGateway:
		if statusCode >= 400 && statusCode < 500 {
			return goerrors.CategoryBadInput
		}
		return goerrors.CategoryExternal
	default:
		return goerrors.CategoryInternal
	}
}

// MapError converts plain errors into taxonomy envelopes. Errors that already
// carry an envelope keep their text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unsupported") && strings.Contains(msg, "version"):
		return newTaxonomyError(err.Error(), goerrors.CategoryBadInput, ErrorUnsupportedVersion)
	case strings.Contains(msg, "not found"):
		return newTaxonomyError(err.Error(), goerrors.CategoryNotFound, ErrorResourceNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "expected"):
		return newTaxonomyError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newTaxonomyError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = threeDSHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorResourceNotFound
	case goerrors.CategoryConflict:
		return ErrorDuplicateAction
	case goerrors.CategoryExternal:
		return ErrorTransport
	default:
		return ErrorInternal
	}
}

func threeDSHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FieldProblems collects field failures while validating a message so the
// caller sees every bad field at once.
type FieldProblems []goerrors.FieldError

func (p *FieldProblems) Add(field string, message string) {
	*p = append(*p, goerrors.FieldError{Field: field, Message: message})
}

// Err returns nil when nothing was collected. subject prefixes the message,
// e.g. "command" or "query".
func (p FieldProblems) Err(subject string) error {
	if len(p) == 0 {
		return nil
	}
	return goerrors.NewValidation(subject+": validation failed", p...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// NewDependencyError reports a handler wired without a collaborator.
func NewDependencyError(message string) error {
	return newTaxonomyError(message, goerrors.CategoryInternal, ErrorInternal)
}
