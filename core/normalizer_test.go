package core

import (
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestResponseNormalizer_AuthenticationLayouts(t *testing.T) {
	normalizer := NewResponseNormalizer(nil)

	available, err := normalizer.Normalize(OperationCheckEnrollment, RawResponse{StatusCode: 200, Body: []byte(availableBody)})
	if err != nil {
		t.Fatalf("normalize available: %v", err)
	}
	if available.Status != StatusAvailable || available.EnrolledStatus != EnrolledStatusEnrolled {
		t.Fatalf("unexpected available context %+v", available)
	}
	if available.ProtocolVersion != VersionTwo || available.MessageVersion != "2.2.0" {
		t.Fatalf("expected version two, got %s %s", available.ProtocolVersion, available.MessageVersion)
	}
	if available.IssuerAcsURL != "https://acs.test/method" || available.PayerAuthenticationRequest != "bWV0aG9k" {
		t.Fatalf("expected method endpoints, got %q %q", available.IssuerAcsURL, available.PayerAuthenticationRequest)
	}
	if available.Amount != "10.01" || available.Currency != "USD" {
		t.Fatalf("expected amount and currency, got %q %q", available.Amount, available.Currency)
	}

	challenge, err := normalizer.Normalize(OperationInitiateAuthentication, RawResponse{StatusCode: 200, Body: []byte(challengeBody)})
	if err != nil {
		t.Fatalf("normalize challenge: %v", err)
	}
	if !challenge.ChallengeMandated || challenge.ECI != "" || challenge.LiabilityShift != "" {
		t.Fatalf("unexpected challenge invariants %+v", challenge)
	}
	if !challenge.ChallengeEndpoints() || challenge.MessageType != "CReq" {
		t.Fatalf("expected challenge endpoints, got %+v", challenge)
	}

	success, err := normalizer.Normalize(OperationInitiateAuthentication, RawResponse{StatusCode: 200, Body: []byte(successBody)})
	if err != nil {
		t.Fatalf("normalize success: %v", err)
	}
	if success.ECI != "05" || success.LiabilityShift != LiabilityShiftYes || success.ChallengeMandated {
		t.Fatalf("unexpected success invariants %+v", success)
	}

	failed, err := normalizer.Normalize(OperationInitiateAuthentication, RawResponse{StatusCode: 200, Body: []byte(failedBody)})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if failed.Status != StatusFailed || failed.LiabilityShift != LiabilityShiftNo || failed.ECI != "" {
		t.Fatalf("unexpected failed invariants %+v", failed)
	}
}

func TestResponseNormalizer_LegacyLayout(t *testing.T) {
	normalizer := NewResponseNormalizer(nil)
	enrolled, err := normalizer.Normalize(OperationCheckEnrollment, RawResponse{StatusCode: 200, Body: []byte(
		`{"id":"tx_v1","message_version":"1.0.2","enrolled":"Y","challenge":true,"url":"https://acs.test/pareq",` +
			`"pareq":"cGFyZXE=","md":"md-1","term_url":"https://merchant.test/term"}`,
	)})
	if err != nil {
		t.Fatalf("normalize legacy: %v", err)
	}
	if enrolled.ProtocolVersion != VersionOne || enrolled.EnrolledStatus != EnrolledStatusEnrolled {
		t.Fatalf("unexpected legacy enrollment %+v", enrolled)
	}
	if enrolled.Status != StatusChallengeRequired || enrolled.MessageType != "PaReq" || enrolled.SessionDataFieldName != "MD" {
		t.Fatalf("unexpected legacy challenge %+v", enrolled)
	}

	result, err := normalizer.Normalize(OperationGetAuthenticationData, RawResponse{StatusCode: 200, Body: []byte(
		`{"id":"tx_v1","enrolled":"Y","pares_status":"Y","eci":"05"}`,
	)})
	if err != nil {
		t.Fatalf("normalize legacy result: %v", err)
	}
	if result.Status != StatusSuccessAuthenticated || result.LiabilityShift != LiabilityShiftYes {
		t.Fatalf("unexpected legacy result %+v", result)
	}

	notEnrolled, err := normalizer.Normalize(OperationCheckEnrollment, RawResponse{StatusCode: 200, Body: []byte(`{"id":"tx_v1","enrolled":"N"}`)})
	if err != nil {
		t.Fatalf("normalize not enrolled: %v", err)
	}
	if notEnrolled.EnrolledStatus != EnrolledStatusNotEnrolled || notEnrolled.Status != StatusAvailable {
		t.Fatalf("unexpected not enrolled context %+v", notEnrolled)
	}
}

func TestResponseNormalizer_ErrorsAndProtocolViolations(t *testing.T) {
	normalizer := NewResponseNormalizer(nil)

	_, err := normalizer.Normalize(OperationInitiateAuthentication, RawResponse{
		StatusCode: http.StatusBadRequest,
		Body:       []byte(`{"error_code":"MANDATORY_DATA_MISSING","detailed_error_code":"40005","detailed_error_description":"Request expects the following fields number"}`),
	})
	gatewayErr, ok := AsGatewayError(err)
	if !ok || !IsKind(err, ErrorMandatoryDataMissing) {
		t.Fatalf("expected mandatory data missing, got %v", err)
	}
	if gatewayErr.Message != "Status Code: 400 - Request expects the following fields number" {
		t.Fatalf("unexpected message %q", gatewayErr.Message)
	}

	_, err = normalizer.Normalize(OperationCheckEnrollment, RawResponse{StatusCode: http.StatusServiceUnavailable, Body: []byte("upstream down")})
	gatewayErr, ok = AsGatewayError(err)
	if !ok || gatewayErr.ResponseCode != "503" || !IsKind(err, ErrorGateway) {
		t.Fatalf("expected generic gateway error for non JSON reply, got %v", err)
	}

	violations := map[string]string{
		"success without eci": `{"id":"tx_1","status":"SUCCESS_AUTHENTICATED","three_ds":{}}`,
		"unknown status":      `{"id":"tx_1","status":"PENDING"}`,
		"missing id":          `{"status":"AVAILABLE"}`,
		"not json":            `<html></html>`,
		"unknown enrolled":    `{"id":"tx_1","enrolled":"X"}`,
	}
	for name, body := range violations {
		_, err := normalizer.Normalize(OperationInitiateAuthentication, RawResponse{StatusCode: 200, Body: []byte(body)})
		if !IsKind(err, ErrorDownstreamProtocol) {
			t.Fatalf("%s: expected downstream protocol error, got %v", name, err)
		}
	}
}

func TestResponseNormalizer_CustomDecoder(t *testing.T) {
	normalizer := NewResponseNormalizer(func(RawResponse) (ResponseLayout, error) {
		return LegacyEnrollmentLayout{ID: "tx_custom", Enrolled: "U"}, nil
	})
	out, err := normalizer.Normalize(OperationCheckEnrollment, RawResponse{StatusCode: 200})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.ServerTransactionID != "tx_custom" || out.EnrolledStatus != EnrolledStatusUnknown {
		t.Fatalf("unexpected context %+v", out)
	}
}

func TestDeriveLiabilityShift(t *testing.T) {
	cases := map[string]struct {
		in       AuthenticationContext
		expected LiabilityShift
	}{
		"success":           {AuthenticationContext{Status: StatusSuccessAuthenticated}, LiabilityShiftYes},
		"failed":            {AuthenticationContext{Status: StatusFailed, LiabilityShift: LiabilityShiftNo}, LiabilityShiftNo},
		"failed unknown":    {AuthenticationContext{Status: StatusNotAuthenticated, LiabilityShift: LiabilityShiftUnknown}, LiabilityShiftUnknown},
		"terminal no value": {AuthenticationContext{Status: StatusFailed}, LiabilityShiftNo},
		"pending":           {AuthenticationContext{Status: StatusChallengeRequired}, LiabilityShiftUnknown},
	}
	for name, tc := range cases {
		if got := DeriveLiabilityShift(tc.in); got != tc.expected {
			t.Fatalf("%s: expected %s, got %s", name, tc.expected, got)
		}
	}
}

func TestAuthenticationStatus_Transitions(t *testing.T) {
	if !StatusAvailable.CanTransition(StatusChallengeRequired) || !StatusChallengeRequired.CanTransition(StatusSuccessAuthenticated) {
		t.Fatalf("expected forward transitions to be allowed")
	}
	if StatusSuccessAuthenticated.CanTransition(StatusAvailable) || StatusFailed.CanTransition(StatusSuccessAuthenticated) {
		t.Fatalf("expected terminal statuses to be final")
	}
	if StatusChallengeRequired.CanTransition(StatusAvailable) {
		t.Fatalf("expected challenge to never regress")
	}
}

func TestDecodeErrorLayout_PreviewKeepsRunesWhole(t *testing.T) {
	body := "a" + strings.Repeat("é", maxErrorBodyPreview)
	layout := decodeErrorLayout(http.StatusBadGateway, []byte(body))
	if layout.ErrorCode != "502" {
		t.Fatalf("expected status as error code, got %q", layout.ErrorCode)
	}
	preview := layout.DetailedErrorDescription
	if !utf8.ValidString(preview) {
		t.Fatalf("expected valid UTF-8 preview, got %q", preview)
	}
	if len(preview) > maxErrorBodyPreview || !strings.HasPrefix(preview, "aé") {
		t.Fatalf("unexpected preview of %d bytes", len(preview))
	}
}
