package core

import (
	"testing"
	"time"
)

func TestVersionNegotiator_SelectsShapes(t *testing.T) {
	negotiator := NewVersionNegotiator(nil)
	cases := []struct {
		name      string
		requested Version
		source    AuthenticationSource
		method    PaymentMethodSource
		version   Version
		shape     RequestShape
	}{
		{"default prefers two", "", "", testCard(), VersionTwo, ShapeV2Browser},
		{"explicit one", VersionOne, AuthenticationSourceBrowser, testCard(), VersionOne, ShapeV1Enrollment},
		{"merchant initiated", VersionTwo, AuthenticationSourceMerchantInitiated, testCard(), VersionTwo, ShapeV2Merchant},
		{"mobile sdk", "", AuthenticationSourceMobileSDK, testCard(), VersionTwo, ShapeV2SDK},
		{"v1 only card", "", "", Card{Number: "4012001037141112", ExpMonth: "12", ExpYear: "25", Versions: []Version{VersionOne}}, VersionOne, ShapeV1Enrollment},
		{"token", VersionTwo, "", TokenizedCard{Token: "PMT_1"}, VersionTwo, ShapeV2Browser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			negotiation, err := negotiator.Negotiate(tc.requested, tc.source, tc.method)
			if err != nil {
				t.Fatalf("negotiate: %v", err)
			}
			if negotiation.Version != tc.version || negotiation.Shape != tc.shape {
				t.Fatalf("expected %s/%s, got %s/%s", tc.version, tc.shape, negotiation.Version, negotiation.Shape)
			}
		})
	}
}

func TestVersionNegotiator_RejectsUnsupportedCombinations(t *testing.T) {
	negotiator := NewVersionNegotiator(nil)
	v1Only := Card{Number: "4012001037141112", ExpMonth: "12", ExpYear: "25", Versions: []Version{VersionOne}}

	if _, err := negotiator.Negotiate(VersionTwo, "", v1Only); !IsKind(err, ErrorUnsupportedVersion) {
		t.Fatalf("expected unsupported version for v1 only card, got %v", err)
	}
	if _, err := negotiator.Negotiate(VersionOne, AuthenticationSourceMobileSDK, testCard()); !IsKind(err, ErrorUnsupportedVersion) {
		t.Fatalf("expected unsupported version for sdk on v1, got %v", err)
	}
	if _, err := negotiator.Negotiate("THREE", "", testCard()); !IsKind(err, ErrorUnsupportedVersion) {
		t.Fatalf("expected unsupported version for unknown version, got %v", err)
	}
	if _, err := negotiator.Negotiate("", "", nil); !IsKind(err, ErrorUnsupportedVersion) {
		t.Fatalf("expected unsupported version for missing method, got %v", err)
	}
	none := Card{Number: "1", Versions: []Version{"ZERO"}}
	if _, err := negotiator.Negotiate("", "", none); !IsKind(err, ErrorUnsupportedVersion) {
		t.Fatalf("expected unsupported version for method without 3DS, got %v", err)
	}
}

func TestVersionNegotiator_CustomStrategy(t *testing.T) {
	preferOne := func(supported []Version) (Version, bool) {
		for _, version := range supported {
			if version == VersionOne {
				return VersionOne, true
			}
		}
		return "", false
	}
	negotiation, err := NewVersionNegotiator(preferOne).Negotiate("", "", testCard())
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if negotiation.Version != VersionOne {
		t.Fatalf("expected strategy to pick ONE, got %s", negotiation.Version)
	}
}

func TestParseVersion(t *testing.T) {
	for input, expected := range map[string]Version{
		"ONE": VersionOne, "1": VersionOne, "1.0.2": VersionOne,
		"two": VersionTwo, "2.2.0": VersionTwo, " 2 ": VersionTwo,
	} {
		got, ok := ParseVersion(input)
		if !ok || got != expected {
			t.Fatalf("ParseVersion(%q) = %s, %v", input, got, ok)
		}
	}
	if _, ok := ParseVersion("3"); ok {
		t.Fatalf("expected unknown version to be rejected")
	}
}

func TestAuthenticationParams_TypedSetters(t *testing.T) {
	created := time.Date(2025, 2, 1, 15, 30, 0, 0, time.FixedZone("CET", 3600))
	params, err := NewParamsBuilder().
		WithAuthenticationSource(AuthenticationSourceBrowser).
		WithChallengeRequestIndicator(ChallengeMandated).
		WithOrderCreateDate(created).
		WithShippingAddress(Address{StreetAddress1: "Apartment 852", City: "Chicago", CountryCode: "840"}).
		With(ParamDeliveryEmail, " james@example.com ").
		With(ParamShippingNameMatchesCardHolderName, true).
		WithGiftCard(GiftCard{Count: 1, Amount: "25.00", Currency: "USD"}).
		Build()
	if err != nil {
		t.Fatalf("build params: %v", err)
	}
	if params.ChallengeRequestIndicator != ChallengeMandated {
		t.Fatalf("expected challenge indicator, got %q", params.ChallengeRequestIndicator)
	}
	if params.OrderCreateDate == nil || params.OrderCreateDate.Location() != time.UTC {
		t.Fatalf("expected order create date normalized to UTC, got %v", params.OrderCreateDate)
	}
	if params.DeliveryEmail != "james@example.com" {
		t.Fatalf("expected trimmed delivery email, got %q", params.DeliveryEmail)
	}
	if params.ShippingNameMatchesCardHolderName == nil || !*params.ShippingNameMatchesCardHolderName {
		t.Fatalf("expected shipping name match flag")
	}

	_, err = NewParamsBuilder().
		With(ParamChallengeRequestIndicator, "CHALLENGE_MANDATED").
		WithAuthenticationSource(AuthenticationSourceBrowser).
		Build()
	if err == nil {
		t.Fatalf("expected untyped string to be rejected")
	}

	var direct AuthenticationParams
	if err := direct.Set(ParamKind(99), "x"); err == nil {
		t.Fatalf("expected unknown param kind to be rejected")
	}
	if ParamKind(99).String() != "param(99)" {
		t.Fatalf("unexpected unknown kind name %q", ParamKind(99).String())
	}
}

func TestInitiatePayload_EncodesParams(t *testing.T) {
	created := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	params, err := NewParamsBuilder().
		WithOrderCreateDate(created).
		WithShippingAddress(Address{StreetAddress1: "Apartment 852", PostalCode: "50001"}).
		WithBrowserData(BrowserData{AcceptHeader: "text/html", ColorDepth: 24, JavaScriptEnabled: true}).
		WithStoredCredential(StoredCredential{Initiator: "CARDHOLDER", Type: "ONEOFF"}).
		Build()
	if err != nil {
		t.Fatalf("build params: %v", err)
	}
	payload := initiatePayload(
		Negotiation{Version: VersionTwo, Shape: ShapeV2Browser},
		AuthenticationContext{ServerTransactionID: "tx_1", Amount: "10.01", Currency: "USD"},
		InitiateAuthenticationRequest{PaymentMethod: testCard(), Params: params},
		GatewayConfig{Country: "GB", ChallengeNotificationURL: "https://merchant.test/challenge"},
	)
	if payload["id"] != "tx_1" || payload["amount"] != "10.01" || payload["country"] != "GB" {
		t.Fatalf("unexpected envelope %v", payload)
	}
	order, ok := payload["order"].(map[string]any)
	if !ok || order["create_date"] != "2025-02-01" {
		t.Fatalf("expected order create date, got %v", payload["order"])
	}
	address, ok := order["shipping_address"].(map[string]any)
	if !ok || address["line1"] != "Apartment 852" || address["postal_code"] != "50001" {
		t.Fatalf("unexpected shipping address %v", order["shipping_address"])
	}
	browser, ok := payload["browser_data"].(map[string]any)
	if !ok || browser["color_depth"] != 24 || browser["javascript_enabled"] != true {
		t.Fatalf("unexpected browser data %v", payload["browser_data"])
	}
	method, ok := payload["payment_method"].(map[string]any)
	if !ok || method[FieldNumber] != "4263970000005262" || method[FieldExpiryYear] != "25" {
		t.Fatalf("unexpected payment method %v", payload["payment_method"])
	}
}
