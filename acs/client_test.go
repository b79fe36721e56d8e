package acs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-threeds/core"
	"github.com/goliatone/go-threeds/sandbox"
)

func TestParseForm_ReadsFirstFormOnly(t *testing.T) {
	page := `<html><body>
<form method="post" action="https://merchant.test/return">
<input type="hidden" name="PaRes" value="a&#43;b="/>
<input type="hidden" name="MD" value="md-1">
</form>
<form action="https://other.test"><input name="PaRes" value="ignored"/></form>
</body></html>`

	form, found, err := ParseForm(strings.NewReader(page))
	if err != nil || !found {
		t.Fatalf("parse form: found=%v err=%v", found, err)
	}
	if form.Action != "https://merchant.test/return" || form.Method != http.MethodPost {
		t.Fatalf("unexpected form target %q %q", form.Method, form.Action)
	}
	if form.Value("PaRes") != "a+b=" || form.Value("MD") != "md-1" {
		t.Fatalf("unexpected fields %+v", form.Fields)
	}

	_, found, err = ParseForm(strings.NewReader("<html><body>no form</body></html>"))
	if err != nil || found {
		t.Fatalf("expected no form, found=%v err=%v", found, err)
	}
}

func sandboxCall(t *testing.T, adapter *sandbox.Adapter, path string, payload map[string]any, target any) {
	t.Helper()
	body, _ := json.Marshal(payload)
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		Method: http.MethodPost,
		URL:    "http://sandbox.test" + path,
		Body:   body,
	})
	if err != nil {
		t.Fatalf("sandbox call %s: %v", path, err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sandbox call %s: status %d: %s", path, res.StatusCode, res.Body)
	}
	if err := json.Unmarshal(res.Body, target); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}

func TestClient_CompletesVersionTwoChallenge(t *testing.T) {
	gateway := sandbox.NewGateway()
	adapter := sandbox.NewAdapter(gateway)

	enrolled := core.AuthenticationLayout{}
	sandboxCall(t, adapter, sandbox.PathAuthentications, map[string]any{
		"version":        "TWO",
		"payment_method": map[string]any{"number": sandbox.CardChallenge, "expiry_month": "12", "expiry_year": "25"},
	}, &enrolled)
	challenged := core.AuthenticationLayout{}
	sandboxCall(t, adapter, sandbox.PathAuthentications+"/"+enrolled.ID+"/initiate", map[string]any{
		"payment_method": map[string]any{"number": sandbox.CardChallenge},
	}, &challenged)

	client := NewClient(sandbox.NewClient(gateway))
	result, err := client.Authenticate(context.Background(), core.ChallengeRequest{
		Version:                    core.VersionTwo,
		ServerTransactionID:        enrolled.ID,
		IssuerAcsURL:               challenged.ThreeDS.AcsChallengeRequestURL,
		PayerAuthenticationRequest: challenged.ThreeDS.ChallengeValue,
		SessionDataFieldName:       challenged.ThreeDS.SessionDataFieldName,
		MerchantData:               "session-9",
	})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if result.AuthenticationResponse == "" || result.MerchantData != "session-9" {
		t.Fatalf("unexpected challenge result %+v", result)
	}
	if status, _ := gateway.Status(enrolled.ID); status != core.StatusSuccessAuthenticated {
		t.Fatalf("expected challenge to authenticate transaction, got %q", status)
	}
}

func TestClient_CompletesVersionOneChallenge(t *testing.T) {
	gateway := sandbox.NewGateway()
	adapter := sandbox.NewAdapter(gateway)

	legacy := core.LegacyEnrollmentLayout{}
	sandboxCall(t, adapter, sandbox.PathAuthentications, map[string]any{
		"version":        "ONE",
		"payment_method": map[string]any{"number": sandbox.CardV1Enrolled, "expiry_month": "12", "expiry_year": "25"},
		"notifications":  map[string]any{"challenge_return_url": "https://merchant.test/term"},
	}, &legacy)

	client := NewClient(sandbox.NewClient(gateway))
	result, err := client.Authenticate(context.Background(), core.ChallengeRequest{
		Version:                    core.VersionOne,
		ServerTransactionID:        legacy.ID,
		IssuerAcsURL:               legacy.URL,
		PayerAuthenticationRequest: legacy.PaReq,
		MerchantData:               legacy.MD,
		TermURL:                    legacy.TermURL,
	})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if result.AuthenticationResponse == "" || result.MerchantData != legacy.MD {
		t.Fatalf("unexpected challenge result %+v", result)
	}
}

func TestClient_ClassifiesFailures(t *testing.T) {
	client := NewClient(nil)
	if _, err := client.Authenticate(context.Background(), core.ChallengeRequest{Version: core.VersionTwo}); core.ErrorKind(err) != core.ErrorBadInput {
		t.Fatalf("expected bad input for missing acs url, got %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<html><body><form action=\"/x\"></form></body></html>"))
	}))
	defer server.Close()
	client = NewClient(server.Client())

	_, err := client.Authenticate(context.Background(), core.ChallengeRequest{
		Version:                    core.VersionTwo,
		IssuerAcsURL:               server.URL + "/down",
		PayerAuthenticationRequest: "creq",
	})
	if core.ErrorKind(err) != core.ErrorDownstreamProtocol {
		t.Fatalf("expected downstream protocol error for 503, got %v", err)
	}

	_, err = client.Authenticate(context.Background(), core.ChallengeRequest{
		Version:                    core.VersionTwo,
		IssuerAcsURL:               server.URL + "/empty",
		PayerAuthenticationRequest: "creq",
	})
	if core.ErrorKind(err) != core.ErrorDownstreamProtocol {
		t.Fatalf("expected downstream protocol error for missing cres, got %v", err)
	}
}
