package core

import "testing"

func TestAuthenticationContext_ChallengeRequest(t *testing.T) {
	challenged := AuthenticationContext{
		ServerTransactionID:        "tx_1",
		ProtocolVersion:            VersionTwo,
		Status:                     StatusChallengeRequired,
		IssuerAcsURL:               "https://acs.test/challenge",
		PayerAuthenticationRequest: "creq",
		ChallengeReturnURL:         "https://merchant.test/challenge",
		MessageType:                "CReq",
		SessionDataFieldName:       "threeDSSessionData",
	}
	req, ok := challenged.ChallengeRequest("session-1")
	if !ok {
		t.Fatalf("expected challenge request")
	}
	if req.IssuerAcsURL != challenged.IssuerAcsURL || req.PayerAuthenticationRequest != "creq" || req.MerchantData != "session-1" {
		t.Fatalf("unexpected challenge request %+v", req)
	}
	if req.TermURL != "" {
		t.Fatalf("expected no term url for version TWO, got %q", req.TermURL)
	}

	legacy := challenged
	legacy.ProtocolVersion = VersionOne
	req, _ = legacy.ChallengeRequest("md")
	if req.TermURL != "https://merchant.test/challenge" {
		t.Fatalf("expected term url for version ONE, got %q", req.TermURL)
	}

	missing := challenged
	missing.PayerAuthenticationRequest = ""
	if _, ok := missing.ChallengeRequest(""); ok {
		t.Fatalf("expected incomplete endpoints to be rejected")
	}
}

func TestOperation_ValidAndScope(t *testing.T) {
	for _, operation := range []Operation{
		OperationCheckEnrollment,
		OperationInitiateAuthentication,
		OperationGetAuthenticationData,
		OperationCheckLiabilityShift,
	} {
		if !operation.Valid() {
			t.Fatalf("expected %q to be valid", operation)
		}
	}
	if Operation("refund").Valid() {
		t.Fatalf("expected unknown operation to be invalid")
	}
	if IdempotencyScope(OperationCheckEnrollment, " key ") == IdempotencyScope(OperationInitiateAuthentication, "key") {
		t.Fatalf("expected scopes to differ per operation")
	}
}
