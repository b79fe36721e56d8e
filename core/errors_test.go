package core

import (
	stderrors "errors"
	"net/http"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestClassifyGatewayError_MapsResponseCodes(t *testing.T) {
	cases := []struct {
		name     string
		code     string
		message  string
		status   int
		expected string
	}{
		{"duplicate", ResponseCodeDuplicateAction, "Idempotency Key seen before: id=tx_1", http.StatusConflict, ErrorDuplicateAction},
		{"not found", ResponseCodeResourceNotFound, "Authentication tx_1 not found at this location.", http.StatusNotFound, ErrorResourceNotFound},
		{"mandatory data", ResponseCodeMandatoryDataMissing, "Request expects the following fields number", http.StatusBadRequest, ErrorMandatoryDataMissing},
		{"mandatory fields", ResponseCodeInvalidRequestData, "Request expects the following conditionally mandatory fields number.", http.StatusBadRequest, ErrorMandatoryFieldMissing},
		{"other invalid data", ResponseCodeInvalidRequestData, "amount is malformed", http.StatusBadRequest, ErrorGateway},
		{"downstream", ResponseCodeSystemErrorDownstream, "upstream failed", http.StatusBadGateway, ErrorDownstreamProtocol},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ClassifyGatewayError(&GatewayError{
				ResponseCode: tc.code,
				ResponseText: "40000",
				Message:      GatewayMessage(tc.status, tc.message),
				StatusCode:   tc.status,
			}, OperationCheckEnrollment)
			if got := ErrorKind(err); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
			gatewayErr, ok := AsGatewayError(err)
			if !ok {
				t.Fatalf("expected gateway triplet to survive classification")
			}
			if gatewayErr.ResponseCode != tc.code || gatewayErr.ResponseText != "40000" {
				t.Fatalf("unexpected triplet %+v", gatewayErr)
			}
			if !strings.HasPrefix(gatewayErr.Message, "Status Code: ") {
				t.Fatalf("expected gateway formatted message, got %q", gatewayErr.Message)
			}
		})
	}
}

func TestClassifyGatewayError_DownstreamOnTerminalContextIsDuplicate(t *testing.T) {
	err := classifyGatewayError(&GatewayError{
		ResponseCode: ResponseCodeSystemErrorDownstream,
		ResponseText: "50139",
		Message:      GatewayMessage(http.StatusBadGateway, "The Authentication Response is invalid"),
		StatusCode:   http.StatusBadGateway,
	}, classificationHint{
		Operation:           OperationInitiateAuthentication,
		ServerTransactionID: "tx_1",
		TerminalContext:     true,
	})
	if !IsKind(err, ErrorDuplicateAction) {
		t.Fatalf("expected duplicate action, got %v", err)
	}
	gatewayErr, _ := AsGatewayError(err)
	if gatewayErr.OriginalTransactionID != "tx_1" {
		t.Fatalf("expected original transaction id, got %q", gatewayErr.OriginalTransactionID)
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryConflict {
		t.Fatalf("expected conflict category, got %q", rich.Category)
	}
	if rich.Metadata["response_text"] != "50139" {
		t.Fatalf("expected response text metadata, got %v", rich.Metadata["response_text"])
	}
}

func TestLocalErrors_CarryGatewayTriplets(t *testing.T) {
	err := NewMandatoryDataMissingError([]string{FieldNumber})
	gatewayErr, ok := AsGatewayError(err)
	if !ok {
		t.Fatalf("expected gateway error")
	}
	if gatewayErr.ResponseCode != ResponseCodeMandatoryDataMissing || gatewayErr.ResponseText != "40005" {
		t.Fatalf("unexpected triplet %+v", gatewayErr)
	}
	if gatewayErr.Message != "Status Code: 400 - Request expects the following fields number" {
		t.Fatalf("unexpected message %q", gatewayErr.Message)
	}

	err = NewMandatoryFieldMissingError([]string{FieldExpiryMonth, FieldExpiryYear})
	if !IsKind(err, ErrorMandatoryFieldMissing) {
		t.Fatalf("expected mandatory field kind, got %q", ErrorKind(err))
	}
	if !strings.Contains(err.Error(), "expiry_month,expiry_year") {
		t.Fatalf("expected missing field names in message, got %q", err.Error())
	}

	err = NewResourceNotFoundError("tx_404")
	gatewayErr, _ = AsGatewayError(err)
	if gatewayErr.ResponseText != "40118" || gatewayErr.ServerTransactionID != "tx_404" {
		t.Fatalf("unexpected not found triplet %+v", gatewayErr)
	}
}

func TestMapError_AssignsStableCodes(t *testing.T) {
	mapped := MapError(stderrors.New("core: unsupported 3DS version for card"))
	if mapped.TextCode != ErrorUnsupportedVersion {
		t.Fatalf("expected unsupported version text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", mapped.Code)
	}

	mapped = MapError(stderrors.New("authentication not found"))
	if mapped.TextCode != ErrorResourceNotFound || mapped.Category != goerrors.CategoryNotFound {
		t.Fatalf("expected not found mapping, got %q %q", mapped.TextCode, mapped.Category)
	}

	original := NewInvalidStateError(AuthenticationContext{ServerTransactionID: "tx_1"}, "not enrolled")
	mapped = MapError(original)
	if mapped.TextCode != ErrorInvalidState {
		t.Fatalf("expected envelope text code to survive, got %q", mapped.TextCode)
	}

	if MapError(nil) != nil {
		t.Fatalf("expected nil mapping for nil error")
	}
}

func TestNewDuplicateActionError_MatchesGatewayShape(t *testing.T) {
	err := NewDuplicateActionError("tx_1", StatusSuccessAuthenticated)
	if !IsKind(err, ErrorDuplicateAction) {
		t.Fatalf("expected duplicate action, got %q", ErrorKind(err))
	}
	gatewayErr, ok := AsGatewayError(err)
	if !ok {
		t.Fatalf("expected gateway triplet")
	}
	if gatewayErr.ResponseCode != ResponseCodeDuplicateAction || gatewayErr.ResponseText != ResponseTextDuplicateAction {
		t.Fatalf("unexpected triplet %+v", gatewayErr)
	}
	if !strings.HasPrefix(gatewayErr.Message, "Status Code: 409 - ") {
		t.Fatalf("expected gateway formatted message, got %q", gatewayErr.Message)
	}
	if gatewayErr.OriginalTransactionID != "tx_1" {
		t.Fatalf("expected original transaction id, got %q", gatewayErr.OriginalTransactionID)
	}
}
