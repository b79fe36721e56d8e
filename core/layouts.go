package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type LayoutKind string

const (
	LayoutAuthentication   LayoutKind = "authentication"
	LayoutLegacyEnrollment LayoutKind = "legacy_enrollment"
	LayoutError            LayoutKind = "error"
)

// ResponseLayout is one of the known gateway reply shapes. The set is closed:
// AuthenticationLayout, LegacyEnrollmentLayout and ErrorLayout.
type ResponseLayout interface {
	Kind() LayoutKind
	layout()
}

// AuthenticationLayout is the 3DS2 reply: a transaction envelope with a
// three_ds section and optional notifications and payment method sections.
type AuthenticationLayout struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	Amount        json.Number          `json:"amount,omitempty"`
	Currency      string               `json:"currency,omitempty"`
	ThreeDS       *ThreeDSSection      `json:"three_ds,omitempty"`
	Notifications *NotificationSection `json:"notifications,omitempty"`
	PaymentMethod *PaymentSection      `json:"payment_method,omitempty"`
}

type ThreeDSSection struct {
	MessageVersion         string         `json:"message_version,omitempty"`
	EnrolledStatus         string         `json:"enrolled_status,omitempty"`
	ChallengeMandated      *bool          `json:"challenge_mandated,omitempty"`
	ECI                    string         `json:"eci,omitempty"`
	LiabilityShift         string         `json:"liability_shift,omitempty"`
	MethodURL              string         `json:"method_url,omitempty"`
	MethodData             *MethodSection `json:"method_data,omitempty"`
	AcsChallengeRequestURL string         `json:"acs_challenge_request_url,omitempty"`
	ChallengeValue         string         `json:"challenge_value,omitempty"`
	MessageType            string         `json:"message_type,omitempty"`
	SessionDataFieldName   string         `json:"session_data_field_name,omitempty"`
	AcsTransactionID       string         `json:"acs_trans_ref,omitempty"`
	DSTransactionID        string         `json:"ds_trans_ref,omitempty"`
	AuthenticationValue    string         `json:"authentication_value,omitempty"`
}

type MethodSection struct {
	EncodedMethodData string `json:"encoded_method_data,omitempty"`
}

type NotificationSection struct {
	ChallengeReturnURL string `json:"challenge_return_url,omitempty"`
	ThreeDSMethodURL   string `json:"three_ds_method_return_url,omitempty"`
}

type PaymentSection struct {
	Brand       string `json:"brand,omitempty"`
	MaskedPAN   string `json:"masked_number_last4,omitempty"`
	FingerPrint string `json:"fingerprint,omitempty"`
}

func (AuthenticationLayout) Kind() LayoutKind { return LayoutAuthentication }
func (AuthenticationLayout) layout()          {}

// LegacyEnrollmentLayout is the 3DS1 verify-enrolled reply with the optional
// payer authentication result once the ACS round trip completed.
type LegacyEnrollmentLayout struct {
	ID             string      `json:"id"`
	MessageVersion string      `json:"message_version,omitempty"`
	Enrolled       string      `json:"enrolled"`
	Challenge      bool        `json:"challenge,omitempty"`
	URL            string      `json:"url,omitempty"`
	PaReq          string      `json:"pareq,omitempty"`
	MD             string      `json:"md,omitempty"`
	TermURL        string      `json:"term_url,omitempty"`
	PaResStatus    string      `json:"pares_status,omitempty"`
	ECI            string      `json:"eci,omitempty"`
	Amount         json.Number `json:"amount,omitempty"`
	Currency       string      `json:"currency,omitempty"`
}

func (LegacyEnrollmentLayout) Kind() LayoutKind { return LayoutLegacyEnrollment }
func (LegacyEnrollmentLayout) layout()          {}

type ErrorLayout struct {
	StatusCode               int    `json:"-"`
	ErrorCode                string `json:"error_code"`
	DetailedErrorCode        string `json:"detailed_error_code"`
	DetailedErrorDescription string `json:"detailed_error_description"`
}

func (ErrorLayout) Kind() LayoutKind { return LayoutError }
func (ErrorLayout) layout()          {}

// LayoutDecoder turns raw bytes into one of the known layouts.
type LayoutDecoder func(raw RawResponse) (ResponseLayout, error)

const maxErrorBodyPreview = 256

// DecodeLayout recognizes the JSON layouts spoken by the default transport.
func DecodeLayout(raw RawResponse) (ResponseLayout, error) {
	body := bytes.TrimSpace(raw.Body)
	if raw.StatusCode >= 400 {
		return decodeErrorLayout(raw.StatusCode, body), nil
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("core: gateway returned an empty response")
	}

	probe := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("core: decode gateway response: %w", err)
	}
	switch {
	case probe["error_code"] != nil:
		return decodeErrorLayout(raw.StatusCode, body), nil
	case probe["enrolled"] != nil:
		layout := LegacyEnrollmentLayout{}
		if err := decodeLayoutBody(body, &layout); err != nil {
			return nil, err
		}
		return layout, nil
	default:
		layout := AuthenticationLayout{}
		if err := decodeLayoutBody(body, &layout); err != nil {
			return nil, err
		}
		return layout, nil
	}
}

func decodeErrorLayout(statusCode int, body []byte) ErrorLayout {
	layout := ErrorLayout{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &layout)
	}
	layout.StatusCode = statusCode
	if strings.TrimSpace(layout.ErrorCode) == "" {
		layout.ErrorCode = strconv.Itoa(statusCode)
		if strings.TrimSpace(layout.DetailedErrorDescription) == "" {
			preview := string(body)
			if len(preview) > maxErrorBodyPreview {
				cut := maxErrorBodyPreview
				for cut > 0 && !utf8.RuneStart(preview[cut]) {
					cut--
				}
				preview = preview[:cut]
			}
			layout.DetailedErrorDescription = strings.TrimSpace(preview)
		}
	}
	return layout
}

func decodeLayoutBody(body []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("core: decode gateway response: %w", err)
	}
	return nil
}
