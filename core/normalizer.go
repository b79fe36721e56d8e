package core

import (
	"fmt"
	"strings"
)

// ResponseNormalizer maps raw gateway replies to AuthenticationContext values
// or classified errors. It performs no I/O.
type ResponseNormalizer struct {
	Decoder LayoutDecoder
}

func NewResponseNormalizer(decoder LayoutDecoder) ResponseNormalizer {
	return ResponseNormalizer{Decoder: decoder}
}

func (n ResponseNormalizer) Normalize(operation Operation, raw RawResponse) (AuthenticationContext, error) {
	return n.NormalizeFor(operation, raw, nil)
}

// NormalizeFor normalizes a reply to an operation on previous. previous is
// only consulted to classify errors and is never modified.
func (n ResponseNormalizer) NormalizeFor(
	operation Operation,
	raw RawResponse,
	previous *AuthenticationContext,
) (AuthenticationContext, error) {
	decoder := n.Decoder
	if decoder == nil {
		decoder = DecodeLayout
	}
	hint := classificationHint{Operation: operation}
	if previous != nil {
		hint.ServerTransactionID = previous.ServerTransactionID
		hint.TerminalContext = previous.Terminal()
	}

	layout, err := decoder(raw)
	if err != nil {
		return AuthenticationContext{}, NewDownstreamProtocolError(hint.ServerTransactionID, err.Error())
	}

	var out AuthenticationContext
	switch typed := layout.(type) {
	case ErrorLayout:
		return AuthenticationContext{}, classifyGatewayError(&GatewayError{
			ResponseCode: strings.TrimSpace(typed.ErrorCode),
			ResponseText: strings.TrimSpace(typed.DetailedErrorCode),
			Message:      GatewayMessage(typed.StatusCode, typed.DetailedErrorDescription),
			StatusCode:   typed.StatusCode,
		}, hint)
	case AuthenticationLayout:
		out, err = normalizeAuthentication(typed)
	case LegacyEnrollmentLayout:
		out, err = normalizeLegacy(typed)
	default:
		err = fmt.Errorf("unknown response layout %T", layout)
	}
	if err != nil {
		return AuthenticationContext{}, NewDownstreamProtocolError(hint.ServerTransactionID, err.Error())
	}
	if err := enforceContextInvariants(&out); err != nil {
		return AuthenticationContext{}, NewDownstreamProtocolError(out.ServerTransactionID, err.Error())
	}
	return out, nil
}

func normalizeAuthentication(layout AuthenticationLayout) (AuthenticationContext, error) {
	out := AuthenticationContext{
		ServerTransactionID: strings.TrimSpace(layout.ID),
		Status:              AuthenticationStatus(strings.ToUpper(strings.TrimSpace(layout.Status))),
		Amount:              layout.Amount.String(),
		Currency:            strings.TrimSpace(layout.Currency),
		ProtocolVersion:     VersionTwo,
	}
	if out.ServerTransactionID == "" {
		return AuthenticationContext{}, fmt.Errorf("authentication response has no id")
	}
	if notifications := layout.Notifications; notifications != nil {
		out.ChallengeReturnURL = strings.TrimSpace(notifications.ChallengeReturnURL)
	}

	section := layout.ThreeDS
	if section == nil {
		return out, nil
	}
	if version, ok := ParseVersion(section.MessageVersion); ok {
		out.ProtocolVersion = version
	}
	out.MessageVersion = strings.TrimSpace(section.MessageVersion)
	out.EnrolledStatus = parseEnrolledStatus(section.EnrolledStatus)
	out.ECI = strings.TrimSpace(section.ECI)
	out.LiabilityShift = parseLiabilityShift(section.LiabilityShift)
	out.MessageType = strings.TrimSpace(section.MessageType)
	out.SessionDataFieldName = strings.TrimSpace(section.SessionDataFieldName)
	out.AcsTransactionID = strings.TrimSpace(section.AcsTransactionID)
	out.DirectoryServerTransactionID = strings.TrimSpace(section.DSTransactionID)
	out.AuthenticationValue = strings.TrimSpace(section.AuthenticationValue)
	if section.ChallengeMandated != nil {
		out.ChallengeMandated = *section.ChallengeMandated
	}

	// The ACS endpoint is the method URL until a challenge is demanded.
	if out.Status == StatusChallengeRequired {
		out.IssuerAcsURL = strings.TrimSpace(section.AcsChallengeRequestURL)
		out.PayerAuthenticationRequest = strings.TrimSpace(section.ChallengeValue)
	} else {
		out.IssuerAcsURL = strings.TrimSpace(section.MethodURL)
		if section.MethodData != nil {
			out.PayerAuthenticationRequest = strings.TrimSpace(section.MethodData.EncodedMethodData)
		}
	}
	return out, nil
}

func normalizeLegacy(layout LegacyEnrollmentLayout) (AuthenticationContext, error) {
	out := AuthenticationContext{
		ServerTransactionID:        strings.TrimSpace(layout.ID),
		ProtocolVersion:            VersionOne,
		MessageVersion:             strings.TrimSpace(layout.MessageVersion),
		Amount:                     layout.Amount.String(),
		Currency:                   strings.TrimSpace(layout.Currency),
		IssuerAcsURL:               strings.TrimSpace(layout.URL),
		PayerAuthenticationRequest: strings.TrimSpace(layout.PaReq),
		ChallengeReturnURL:         strings.TrimSpace(layout.TermURL),
		ECI:                        strings.TrimSpace(layout.ECI),
	}
	if out.ServerTransactionID == "" {
		return AuthenticationContext{}, fmt.Errorf("enrollment response has no id")
	}
	if strings.TrimSpace(layout.MD) != "" || out.PayerAuthenticationRequest != "" {
		out.MessageType = "PaReq"
		out.SessionDataFieldName = "MD"
	}

	switch strings.ToUpper(strings.TrimSpace(layout.Enrolled)) {
	case "Y":
		out.EnrolledStatus = EnrolledStatusEnrolled
	case "N":
		out.EnrolledStatus = EnrolledStatusNotEnrolled
	case "U":
		out.EnrolledStatus = EnrolledStatusUnknown
	case "":
	default:
		return AuthenticationContext{}, fmt.Errorf("unknown enrolled flag %q", layout.Enrolled)
	}

	switch strings.ToUpper(strings.TrimSpace(layout.PaResStatus)) {
	case "Y", "A":
		out.Status = StatusSuccessAuthenticated
	case "N":
		out.Status = StatusFailed
	case "U":
		out.Status = StatusNotAuthenticated
	case "":
		out.Status = StatusAvailable
		if layout.Challenge {
			out.Status = StatusChallengeRequired
		}
	default:
		return AuthenticationContext{}, fmt.Errorf("unknown payer authentication status %q", layout.PaResStatus)
	}
	return out, nil
}

func enforceContextInvariants(out *AuthenticationContext) error {
	if !out.Status.Valid() {
		return fmt.Errorf("authentication %s has unknown status %q", out.ServerTransactionID, out.Status)
	}
	switch out.Status {
	case StatusSuccessAuthenticated:
		if out.ECI == "" {
			return fmt.Errorf("authentication %s succeeded without an eci", out.ServerTransactionID)
		}
		out.LiabilityShift = LiabilityShiftYes
		out.ChallengeMandated = false
	case StatusChallengeRequired:
		out.ECI = ""
		out.ChallengeMandated = true
		out.LiabilityShift = ""
	case StatusFailed, StatusNotAuthenticated:
		out.ECI = ""
		if out.LiabilityShift != LiabilityShiftUnknown {
			out.LiabilityShift = LiabilityShiftNo
		}
	default:
		out.ECI = ""
		out.LiabilityShift = ""
	}
	return nil
}

func parseEnrolledStatus(value string) EnrolledStatus {
	switch EnrolledStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case EnrolledStatusEnrolled:
		return EnrolledStatusEnrolled
	case EnrolledStatusNotEnrolled:
		return EnrolledStatusNotEnrolled
	case EnrolledStatusBypassed:
		return EnrolledStatusBypassed
	case EnrolledStatusUnknown:
		return EnrolledStatusUnknown
	default:
		return ""
	}
}

func parseLiabilityShift(value string) LiabilityShift {
	switch LiabilityShift(strings.ToUpper(strings.TrimSpace(value))) {
	case LiabilityShiftYes:
		return LiabilityShiftYes
	case LiabilityShiftNo:
		return LiabilityShiftNo
	case LiabilityShiftUnknown:
		return LiabilityShiftUnknown
	default:
		return ""
	}
}
