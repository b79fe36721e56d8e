package core

import (
	"strings"
	"time"
)

const payloadDateLayout = "2006-01-02"

func enrollmentPayload(negotiation Negotiation, req CheckEnrollmentRequest, gateway GatewayConfig) map[string]any {
	payload := map[string]any{
		"version":        string(negotiation.Version),
		"shape":          string(negotiation.Shape),
		"payment_method": req.PaymentMethod.IdentifyingFields(),
	}
	putString(payload, "amount", req.Amount)
	putString(payload, "currency", req.Currency)
	putString(payload, "country", gateway.Country)
	putString(payload, "merchant_contact_url", gateway.MerchantContactURL)
	if notifications := notificationPayload(gateway); len(notifications) > 0 {
		payload["notifications"] = notifications
	}
	return payload
}

func initiatePayload(
	negotiation Negotiation,
	authentication AuthenticationContext,
	req InitiateAuthenticationRequest,
	gateway GatewayConfig,
) map[string]any {
	payload := map[string]any{
		"id":             authentication.ServerTransactionID,
		"version":        string(negotiation.Version),
		"shape":          string(negotiation.Shape),
		"payment_method": req.PaymentMethod.IdentifyingFields(),
	}
	putString(payload, "amount", firstNonEmpty(req.Amount, authentication.Amount))
	putString(payload, "currency", firstNonEmpty(req.Currency, authentication.Currency))
	putString(payload, "country", gateway.Country)
	putString(payload, "merchant_contact_url", gateway.MerchantContactURL)
	if notifications := notificationPayload(gateway); len(notifications) > 0 {
		payload["notifications"] = notifications
	}

	params := req.Params
	putString(payload, "authentication_source", string(params.AuthenticationSource))
	putString(payload, "method_url_completion", string(params.MethodURLCompletion))
	putString(payload, "message_category", string(params.MessageCategory))
	putString(payload, "challenge_request_indicator", string(params.ChallengeRequestIndicator))
	if order := orderPayload(params); len(order) > 0 {
		payload["order"] = order
	}
	if browser := params.BrowserData; browser != nil {
		payload["browser_data"] = browserPayload(*browser)
	}
	if credential := params.StoredCredential; credential != nil {
		stored := map[string]any{}
		putString(stored, "initiator", credential.Initiator)
		putString(stored, "type", credential.Type)
		putString(stored, "sequence", credential.Sequence)
		putString(stored, "reason", credential.Reason)
		payload["stored_credential"] = stored
	}
	return payload
}

func authenticationDataPayload(req GetAuthenticationDataRequest) map[string]any {
	payload := map[string]any{"id": strings.TrimSpace(req.ServerTransactionID)}
	putString(payload, "pares", req.PayerAuthenticationResponse)
	putString(payload, "md", req.MerchantData)
	return payload
}

func notificationPayload(gateway GatewayConfig) map[string]any {
	out := map[string]any{}
	putString(out, "challenge_return_url", gateway.ChallengeNotificationURL)
	putString(out, "three_ds_method_return_url", gateway.MethodNotificationURL)
	return out
}

func orderPayload(params AuthenticationParams) map[string]any {
	order := map[string]any{}
	putDate(order, "create_date", params.OrderCreateDate)
	putString(order, "shipping_method", string(params.ShippingMethod))
	putDate(order, "shipping_address_create_date", params.ShippingAddressCreateDate)
	putString(order, "shipping_address_usage_indicator", string(params.ShippingAddressUsageIndicator))
	putString(order, "delivery_email", params.DeliveryEmail)
	putString(order, "delivery_timeframe", string(params.DeliveryTimeFrame))
	if params.ShippingNameMatchesCardHolderName != nil {
		order["shipping_name_matches_cardholder_name"] = *params.ShippingNameMatchesCardHolderName
	}
	if address := params.ShippingAddress; address != nil && !address.Empty() {
		order["shipping_address"] = addressPayload(*address)
	}
	if gift := params.GiftCard; gift != nil {
		card := map[string]any{}
		if gift.Count > 0 {
			card["count"] = gift.Count
		}
		putString(card, "amount", gift.Amount)
		putString(card, "currency", gift.Currency)
		if len(card) > 0 {
			order["gift_card"] = card
		}
	}
	return order
}

func addressPayload(address Address) map[string]any {
	out := map[string]any{}
	putString(out, "line1", address.StreetAddress1)
	putString(out, "line2", address.StreetAddress2)
	putString(out, "line3", address.StreetAddress3)
	putString(out, "city", address.City)
	putString(out, "state", address.State)
	putString(out, "postal_code", address.PostalCode)
	putString(out, "country", address.CountryCode)
	return out
}

func browserPayload(browser BrowserData) map[string]any {
	out := map[string]any{
		"java_enabled":       browser.JavaEnabled,
		"javascript_enabled": browser.JavaScriptEnabled,
	}
	putString(out, "accept_header", browser.AcceptHeader)
	putString(out, "ip", browser.IPAddress)
	putString(out, "language", browser.Language)
	putString(out, "timezone", browser.Timezone)
	putString(out, "user_agent", browser.UserAgent)
	putString(out, "challenge_window_size", string(browser.ChallengeWindowSize))
	if browser.ColorDepth > 0 {
		out["color_depth"] = browser.ColorDepth
	}
	if browser.ScreenHeight > 0 {
		out["screen_height"] = browser.ScreenHeight
	}
	if browser.ScreenWidth > 0 {
		out["screen_width"] = browser.ScreenWidth
	}
	return out
}

func putString(target map[string]any, key string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		target[key] = value
	}
}

func putDate(target map[string]any, key string, value *time.Time) {
	if value != nil && !value.IsZero() {
		target[key] = value.UTC().Format(payloadDateLayout)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
