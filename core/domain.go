package core

import (
	"strings"
	"time"
)

type Version string

const (
	VersionOne Version = "ONE"
	VersionTwo Version = "TWO"
)

func (v Version) Valid() bool {
	return v == VersionOne || v == VersionTwo
}

// ParseVersion accepts the canonical names plus the numeric protocol
// generations used on the wire ("1", "2", "2.2.0").
func ParseVersion(value string) (Version, bool) {
	value = strings.TrimSpace(strings.ToUpper(value))
	switch {
	case value == string(VersionOne), value == "1", strings.HasPrefix(value, "1."):
		return VersionOne, true
	case value == string(VersionTwo), value == "2", strings.HasPrefix(value, "2."):
		return VersionTwo, true
	default:
		return "", false
	}
}

type EnrolledStatus string

const (
	EnrolledStatusEnrolled    EnrolledStatus = "ENROLLED"
	EnrolledStatusNotEnrolled EnrolledStatus = "NOT_ENROLLED"
	EnrolledStatusBypassed    EnrolledStatus = "BYPASSED"
	EnrolledStatusUnknown     EnrolledStatus = "UNKNOWN"
)

type AuthenticationStatus string

const (
	StatusAvailable            AuthenticationStatus = "AVAILABLE"
	StatusChallengeRequired    AuthenticationStatus = "CHALLENGE_REQUIRED"
	StatusSuccessAuthenticated AuthenticationStatus = "SUCCESS_AUTHENTICATED"
	StatusFailed               AuthenticationStatus = "FAILED"
	StatusNotAuthenticated     AuthenticationStatus = "NOT_AUTHENTICATED"
)

func (s AuthenticationStatus) Terminal() bool {
	switch s {
	case StatusSuccessAuthenticated, StatusFailed, StatusNotAuthenticated:
		return true
	default:
		return false
	}
}

func (s AuthenticationStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusChallengeRequired, StatusSuccessAuthenticated, StatusFailed, StatusNotAuthenticated:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a context may move from s to next within one
// attempt. Statuses only move forward and terminal statuses are final.
func (s AuthenticationStatus) CanTransition(next AuthenticationStatus) bool {
	if !next.Valid() {
		return false
	}
	switch s {
	case "":
		return true
	case StatusAvailable:
		return true
	case StatusChallengeRequired:
		return next == StatusChallengeRequired || next.Terminal()
	default:
		return next == s
	}
}

type LiabilityShift string

const (
	LiabilityShiftYes     LiabilityShift = "YES"
	LiabilityShiftNo      LiabilityShift = "NO"
	LiabilityShiftUnknown LiabilityShift = "UNKNOWN"
)

type FlowStage string

const (
	StageInitial           FlowStage = "INITIAL"
	StageEnrollmentChecked FlowStage = "ENROLLMENT_CHECKED"
	StageAuthInitiated     FlowStage = "AUTH_INITIATED"
	StageAuthDataRetrieved FlowStage = "AUTH_DATA_RETRIEVED"
)

type Operation string

const (
	OperationCheckEnrollment        Operation = "check_enrollment"
	OperationInitiateAuthentication Operation = "initiate_authentication"
	OperationGetAuthenticationData  Operation = "get_authentication_data"
	OperationCheckLiabilityShift    Operation = "check_liability_shift"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationCheckEnrollment, OperationInitiateAuthentication,
		OperationGetAuthenticationData, OperationCheckLiabilityShift:
		return true
	default:
		return false
	}
}

// AuthenticationContext is the record threaded through one authentication
// attempt. It is owned by the caller; the service never retains it.
type AuthenticationContext struct {
	ServerTransactionID string
	ProtocolVersion     Version
	EnrolledStatus      EnrolledStatus
	Status              AuthenticationStatus
	ChallengeMandated   bool
	LiabilityShift      LiabilityShift
	ECI                 string
	Stage               FlowStage

	IssuerAcsURL               string
	PayerAuthenticationRequest string
	ChallengeReturnURL         string
	MessageType                string
	SessionDataFieldName       string

	MessageVersion               string
	AcsTransactionID             string
	DirectoryServerTransactionID string
	AuthenticationValue          string

	Amount    string
	Currency  string
	UpdatedAt time.Time
}

func (c AuthenticationContext) Terminal() bool {
	return c.Status.Terminal()
}

// ChallengeEndpoints reports whether every endpoint needed to run an
// interactive challenge is present.
func (c AuthenticationContext) ChallengeEndpoints() bool {
	return strings.TrimSpace(c.IssuerAcsURL) != "" &&
		strings.TrimSpace(c.PayerAuthenticationRequest) != "" &&
		strings.TrimSpace(c.ChallengeReturnURL) != ""
}

// ChallengeRequest describes the interactive step for this context. ok is
// false when the gateway did not hand out every challenge endpoint.
func (c AuthenticationContext) ChallengeRequest(merchantData string) (req ChallengeRequest, ok bool) {
	if !c.ChallengeEndpoints() {
		return ChallengeRequest{}, false
	}
	req = ChallengeRequest{
		Version:                    c.ProtocolVersion,
		ServerTransactionID:        c.ServerTransactionID,
		IssuerAcsURL:               c.IssuerAcsURL,
		PayerAuthenticationRequest: c.PayerAuthenticationRequest,
		MessageType:                c.MessageType,
		SessionDataFieldName:       c.SessionDataFieldName,
		MerchantData:               merchantData,
	}
	if c.ProtocolVersion == VersionOne {
		req.TermURL = c.ChallengeReturnURL
	}
	return req, true
}

// IdempotencyRecord remembers the first outcome observed for a caller key
// within one operation kind.
type IdempotencyRecord struct {
	Operation           Operation
	Key                 string
	ServerTransactionID string
	Status              AuthenticationStatus
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// IdempotencyScope builds the ledger key for an operation kind so that
// check_enrollment and initiate_authentication never share keys.
func IdempotencyScope(operation Operation, key string) string {
	return string(operation) + "::" + strings.TrimSpace(key)
}
