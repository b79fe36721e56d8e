package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type CheckEnrollmentRequest struct {
	PaymentMethod  PaymentMethodSource
	Amount         string
	Currency       string
	Version        Version
	IdempotencyKey string
	ConfigName     string
}

type InitiateAuthenticationRequest struct {
	PaymentMethod  PaymentMethodSource
	Context        *AuthenticationContext
	Params         AuthenticationParams
	Amount         string
	Currency       string
	IdempotencyKey string
	ConfigName     string
}

type GetAuthenticationDataRequest struct {
	ServerTransactionID         string
	PayerAuthenticationResponse string
	MerchantData                string
	ConfigName                  string
}

// CheckEnrollment asks the gateway whether the card is enrolled and returns a
// new context for the transaction.
func (s *Service) CheckEnrollment(ctx context.Context, req CheckEnrollmentRequest) (result AuthenticationContext, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"config_name":     s.configName(req.ConfigName),
		"idempotency_key": strings.TrimSpace(req.IdempotencyKey),
	}
	defer func() {
		mergeFields(fields, authenticationFields(result))
		s.observeOperation(ctx, startedAt, OperationCheckEnrollment, err, fields)
	}()

	if req.PaymentMethod == nil {
		return AuthenticationContext{}, NewMandatoryFieldMissingError([]string{FieldNumber, FieldExpiryMonth, FieldExpiryYear})
	}
	if !req.PaymentMethod.HasThreeDSData() {
		return AuthenticationContext{}, NewMandatoryFieldMissingError(req.PaymentMethod.MissingThreeDSFields())
	}

	requested := req.Version
	if requested == "" {
		requested = s.config.DefaultVersion
	}
	negotiation, err := s.negotiator.Negotiate(requested, AuthenticationSourceBrowser, req.PaymentMethod)
	if err != nil {
		return AuthenticationContext{}, err
	}
	fields["shape"] = string(negotiation.Shape)

	gateway, _ := s.config.Gateway(req.ConfigName)
	raw, err := s.send(ctx, GatewayRequest{
		Operation:      OperationCheckEnrollment,
		ConfigName:     s.configName(req.ConfigName),
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Payload:        enrollmentPayload(negotiation, req, gateway),
	})
	if err != nil {
		return AuthenticationContext{}, err
	}

	updated, err := s.normalizer.NormalizeFor(OperationCheckEnrollment, raw, nil)
	if err != nil {
		return AuthenticationContext{}, s.annotateDuplicate(ctx, OperationCheckEnrollment, req.IdempotencyKey, err)
	}
	if updated.ProtocolVersion == "" {
		updated.ProtocolVersion = negotiation.Version
	}
	if !enrollmentStatusAllowed(updated.ProtocolVersion, updated.Status) {
		return AuthenticationContext{}, NewDownstreamProtocolError(updated.ServerTransactionID,
			fmt.Sprintf("enrollment check answered with status %s", updated.Status))
	}
	updated.Amount = firstNonEmpty(updated.Amount, req.Amount)
	updated.Currency = firstNonEmpty(updated.Currency, req.Currency)
	updated.Stage = StageEnrollmentChecked
	updated.UpdatedAt = s.now()

	s.remember(ctx, OperationCheckEnrollment, req.IdempotencyKey, updated)
	s.record(ctx, OperationCheckEnrollment, updated)
	return updated, nil
}

// InitiateAuthentication runs the issuer authentication for an enrolled
// transaction. On success the caller's context is replaced with the result;
// on failure it is left untouched.
func (s *Service) InitiateAuthentication(ctx context.Context, req InitiateAuthenticationRequest) (result AuthenticationContext, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"config_name":     s.configName(req.ConfigName),
		"idempotency_key": strings.TrimSpace(req.IdempotencyKey),
	}
	defer func() {
		mergeFields(fields, authenticationFields(result))
		s.observeOperation(ctx, startedAt, OperationInitiateAuthentication, err, fields)
	}()

	if req.Context == nil || strings.TrimSpace(req.Context.ServerTransactionID) == "" {
		return AuthenticationContext{}, NewResourceNotFoundError("")
	}
	previous := *req.Context
	fields["server_transaction_id"] = previous.ServerTransactionID

	if req.PaymentMethod == nil {
		return AuthenticationContext{}, NewMandatoryDataMissingError([]string{FieldNumber})
	}
	if !req.PaymentMethod.HasThreeDSData() {
		missing := req.PaymentMethod.MissingThreeDSFields()
		if len(missing) == 0 {
			missing = []string{FieldNumber}
		}
		return AuthenticationContext{}, NewMandatoryDataMissingError(missing)
	}
	if previous.EnrolledStatus != "" && previous.EnrolledStatus != EnrolledStatusEnrolled {
		return AuthenticationContext{}, NewInvalidStateError(previous,
			fmt.Sprintf("authentication %s is not enrolled (%s)", previous.ServerTransactionID, previous.EnrolledStatus))
	}

	requested := previous.ProtocolVersion
	if requested == "" {
		requested = s.config.DefaultVersion
	}
	negotiation, err := s.negotiator.Negotiate(requested, req.Params.AuthenticationSource, req.PaymentMethod)
	if err != nil {
		return AuthenticationContext{}, err
	}
	if negotiation.Version != VersionTwo {
		return AuthenticationContext{}, NewUnsupportedVersionError(negotiation.Version, "initiating authentication requires 3DS version TWO")
	}
	fields["shape"] = string(negotiation.Shape)

	// A terminal context is still sent: the gateway decides whether the
	// transaction was consumed and answers with its own error.
	gateway, _ := s.config.Gateway(req.ConfigName)
	raw, err := s.send(ctx, GatewayRequest{
		Operation:           OperationInitiateAuthentication,
		ConfigName:          s.configName(req.ConfigName),
		ServerTransactionID: previous.ServerTransactionID,
		IdempotencyKey:      strings.TrimSpace(req.IdempotencyKey),
		Payload:             initiatePayload(negotiation, previous, req, gateway),
	})
	if err != nil {
		return AuthenticationContext{}, err
	}

	updated, err := s.normalizer.NormalizeFor(OperationInitiateAuthentication, raw, &previous)
	if err != nil {
		return AuthenticationContext{}, s.annotateDuplicate(ctx, OperationInitiateAuthentication, req.IdempotencyKey, err)
	}
	if updated.ServerTransactionID != previous.ServerTransactionID {
		return AuthenticationContext{}, NewDownstreamProtocolError(previous.ServerTransactionID,
			fmt.Sprintf("gateway answered for transaction %s", updated.ServerTransactionID))
	}
	if !previous.Status.CanTransition(updated.Status) {
		if previous.Terminal() {
			return AuthenticationContext{}, NewDuplicateActionError(previous.ServerTransactionID, previous.Status)
		}
		return AuthenticationContext{}, NewDownstreamProtocolError(previous.ServerTransactionID,
			fmt.Sprintf("status moved from %s to %s", previous.Status, updated.Status))
	}
	if updated.Status == StatusAvailable {
		return AuthenticationContext{}, NewDownstreamProtocolError(previous.ServerTransactionID,
			"initiate answered without advancing past AVAILABLE")
	}

	if previous.ProtocolVersion != "" {
		updated.ProtocolVersion = previous.ProtocolVersion
	}
	if updated.EnrolledStatus == "" {
		updated.EnrolledStatus = previous.EnrolledStatus
	}
	updated.Amount = firstNonEmpty(updated.Amount, req.Amount, previous.Amount)
	updated.Currency = firstNonEmpty(updated.Currency, req.Currency, previous.Currency)
	updated.Stage = StageAuthInitiated
	updated.UpdatedAt = s.now()

	s.remember(ctx, OperationInitiateAuthentication, req.IdempotencyKey, updated)
	s.record(ctx, OperationInitiateAuthentication, updated)
	*req.Context = updated
	return updated, nil
}

// enrollmentStatusAllowed reports whether an enrollment check may leave a
// context in status. 3DS1 enrolled cards come back already waiting on the
// PaReq challenge.
func enrollmentStatusAllowed(version Version, status AuthenticationStatus) bool {
	if status == StatusAvailable {
		return true
	}
	return version == VersionOne && status == StatusChallengeRequired
}

// GetAuthenticationData reads the current state of a transaction. It does
// not advance the protocol.
func (s *Service) GetAuthenticationData(ctx context.Context, req GetAuthenticationDataRequest) (result AuthenticationContext, err error) {
	startedAt := time.Now().UTC()
	id := strings.TrimSpace(req.ServerTransactionID)
	fields := map[string]any{
		"config_name":           s.configName(req.ConfigName),
		"server_transaction_id": id,
	}
	defer func() {
		mergeFields(fields, authenticationFields(result))
		s.observeOperation(ctx, startedAt, OperationGetAuthenticationData, err, fields)
	}()

	result, err = s.fetch(ctx, OperationGetAuthenticationData, req)
	if err != nil {
		return AuthenticationContext{}, err
	}
	result.Stage = StageAuthDataRetrieved
	s.record(ctx, OperationGetAuthenticationData, result)
	return result, nil
}

// CheckLiabilityShift reports whether liability moved to the issuer for a
// transaction. Transactions without a final outcome report UNKNOWN.
func (s *Service) CheckLiabilityShift(ctx context.Context, serverTransactionID string) (shift LiabilityShift, err error) {
	startedAt := time.Now().UTC()
	id := strings.TrimSpace(serverTransactionID)
	fields := map[string]any{
		"config_name":           s.configName(""),
		"server_transaction_id": id,
	}
	defer func() {
		fields["liability_shift"] = string(shift)
		s.observeOperation(ctx, startedAt, OperationCheckLiabilityShift, err, fields)
	}()

	authentication, err := s.fetch(ctx, OperationCheckLiabilityShift, GetAuthenticationDataRequest{ServerTransactionID: id})
	if err != nil {
		return "", err
	}
	fields["authentication_status"] = string(authentication.Status)
	return DeriveLiabilityShift(authentication), nil
}

// DeriveLiabilityShift computes the liability outcome from a context.
func DeriveLiabilityShift(authentication AuthenticationContext) LiabilityShift {
	switch {
	case authentication.Status == StatusSuccessAuthenticated:
		return LiabilityShiftYes
	case authentication.Terminal() && authentication.LiabilityShift != "":
		return authentication.LiabilityShift
	case authentication.Terminal():
		return LiabilityShiftNo
	default:
		return LiabilityShiftUnknown
	}
}

func (s *Service) fetch(ctx context.Context, operation Operation, req GetAuthenticationDataRequest) (AuthenticationContext, error) {
	id := strings.TrimSpace(req.ServerTransactionID)
	if id == "" {
		return AuthenticationContext{}, NewResourceNotFoundError("")
	}
	raw, err := s.send(ctx, GatewayRequest{
		Operation:           operation,
		ConfigName:          s.configName(req.ConfigName),
		ServerTransactionID: id,
		Payload:             authenticationDataPayload(req),
	})
	if err != nil {
		return AuthenticationContext{}, err
	}
	updated, err := s.normalizer.NormalizeFor(operation, raw, &AuthenticationContext{ServerTransactionID: id})
	if err != nil {
		return AuthenticationContext{}, err
	}
	if updated.ServerTransactionID != id {
		return AuthenticationContext{}, NewDownstreamProtocolError(id,
			fmt.Sprintf("gateway answered for transaction %s", updated.ServerTransactionID))
	}
	updated.UpdatedAt = s.now()
	return updated, nil
}

func (s *Service) send(ctx context.Context, req GatewayRequest) (RawResponse, error) {
	if s == nil || s.transport == nil {
		return RawResponse{}, goerrors.Wrap(ErrTransportNotConfigured, goerrors.CategoryInternal, ErrTransportNotConfigured.Error()).
			WithTextCode(ErrorInternal)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.transport.Send(ctx, req)
}

// annotateDuplicate attaches the transaction that first used key to a
// duplicate error. The gateway error itself is returned unchanged otherwise.
func (s *Service) annotateDuplicate(ctx context.Context, operation Operation, key string, err error) error {
	key = strings.TrimSpace(key)
	if key == "" || s.idempotency == nil || !IsKind(err, ErrorDuplicateAction) {
		return err
	}
	gatewayErr, ok := AsGatewayError(err)
	if !ok || gatewayErr.OriginalTransactionID != "" {
		return err
	}
	record, found, lookupErr := s.idempotency.Lookup(ctx, operation, key)
	if lookupErr != nil {
		s.logError(ctx, "idempotency lookup failed", map[string]any{
			"operation":       string(operation),
			"idempotency_key": key,
			"error":           lookupErr.Error(),
		})
		return err
	}
	if !found || record.ServerTransactionID == "" {
		return err
	}
	gatewayErr.OriginalTransactionID = record.ServerTransactionID
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		if rich.Metadata == nil {
			rich.Metadata = map[string]any{}
		}
		rich.Metadata["original_transaction_id"] = record.ServerTransactionID
	}
	return err
}

func (s *Service) remember(ctx context.Context, operation Operation, key string, authentication AuthenticationContext) {
	key = strings.TrimSpace(key)
	if key == "" || s.idempotency == nil {
		return
	}
	_, err := s.idempotency.Remember(ctx, IdempotencyRecord{
		Operation:           operation,
		Key:                 key,
		ServerTransactionID: authentication.ServerTransactionID,
		Status:              authentication.Status,
		CreatedAt:           s.now(),
	})
	if err != nil {
		s.logError(ctx, "idempotency record failed", map[string]any{
			"operation":             string(operation),
			"idempotency_key":       key,
			"server_transaction_id": authentication.ServerTransactionID,
			"error":                 err.Error(),
		})
	}
}

func (s *Service) record(ctx context.Context, operation Operation, authentication AuthenticationContext) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, operation, authentication); err != nil {
		s.logError(ctx, "authentication snapshot failed", map[string]any{
			"operation":             string(operation),
			"server_transaction_id": authentication.ServerTransactionID,
			"error":                 err.Error(),
		})
	}
}

func (s *Service) configName(name string) string {
	if s == nil {
		return strings.TrimSpace(name)
	}
	return s.config.ResolveConfigName(name)
}
