package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-threeds/core"
)

const (
	PathAuthentications       = "/authentications"
	PathTokens                = "/tokens"
	PathACSMethod             = "/acs/v2/method"
	PathACSChallenge          = "/acs/v2/challenge"
	PathACSPaReq              = "/acs/v1/pareq"
	PathChallengeNotification = "/notifications/challenge"

	IdempotencyKeyHeader = "Idempotency-Key"

	ECIAuthenticated  = "05"
	MessageVersionOne = "1.0.2"
	MessageVersionTwo = "2.2.0"
)

const downstreamFailureDescription = "The Authentication Response is invalid, indicates an error occurred or no response was returned. The request should be considered as not authenticated."

type transaction struct {
	id                  string
	version             core.Version
	outcome             Outcome
	enrolled            core.EnrolledStatus
	status              core.AuthenticationStatus
	eci                 string
	liability           core.LiabilityShift
	amount              string
	currency            string
	challengeReturnURL  string
	methodReturnURL     string
	pareq               string
	md                  string
	pares               string
	acsTransactionID    string
	dsTransactionID     string
	authenticationValue string
}

type storedCard struct {
	number   string
	expMonth string
	expYear  string
}

// Gateway is an in-process 3DS gateway with an attached ACS. It keeps every
// transaction in memory and answers with the same error triplets as the
// hosted gateway.
type Gateway struct {
	mu           sync.Mutex
	transactions map[string]*transaction
	idempotency  map[string]string
	tokens       map[string]storedCard
	challenges   map[string]string
	pareqs       map[string]string
	calls        map[string]int
	handler      http.Handler

	NewID func() string
}

func NewGateway() *Gateway {
	g := &Gateway{
		transactions: map[string]*transaction{},
		idempotency:  map[string]string{},
		tokens:       map[string]storedCard{},
		challenges:   map[string]string{},
		pareqs:       map[string]string{},
		calls:        map[string]int{},
		NewID:        uuid.NewString,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathAuthentications, g.handleCheckEnrollment)
	mux.HandleFunc("POST "+PathAuthentications+"/{id}/initiate", g.handleInitiate)
	mux.HandleFunc("POST "+PathAuthentications+"/{id}/result", g.handleResult)
	mux.HandleFunc("GET "+PathAuthentications+"/{id}", g.handleResult)
	mux.HandleFunc("POST "+PathTokens, g.handleTokenize)
	mux.HandleFunc("POST "+PathACSMethod, g.handleMethod)
	mux.HandleFunc("POST "+PathACSChallenge, g.handleChallenge)
	mux.HandleFunc("POST "+PathACSPaReq, g.handlePaReq)
	g.handler = mux
	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

// Calls reports how many requests reached the named operation.
func (g *Gateway) Calls(operation core.Operation) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[string(operation)]
}

// Status reports the current status of a transaction.
func (g *Gateway) Status(id string) (core.AuthenticationStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tx, ok := g.transactions[strings.TrimSpace(id)]
	if !ok {
		return "", false
	}
	return tx.status, true
}

type gatewayRequest struct {
	ID                        string         `json:"id"`
	Version                   string         `json:"version"`
	Amount                    string         `json:"amount"`
	Currency                  string         `json:"currency"`
	PaymentMethod             map[string]any `json:"payment_method"`
	ChallengeRequestIndicator string         `json:"challenge_request_indicator"`
	PaRes                     string         `json:"pares"`
	MD                        string         `json:"md"`
	Notifications             struct {
		ChallengeReturnURL string `json:"challenge_return_url"`
		MethodReturnURL    string `json:"three_ds_method_return_url"`
	} `json:"notifications"`
}

func (g *Gateway) handleCheckEnrollment(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[string(core.OperationCheckEnrollment)]++

	req, ok := decodeGatewayRequest(w, r)
	if !ok {
		return
	}
	card, ok := g.resolveCard(w, req.PaymentMethod, core.OperationCheckEnrollment)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if g.rejectDuplicate(w, core.OperationCheckEnrollment, key) {
		return
	}

	version, _ := core.ParseVersion(req.Version)
	if version == "" {
		version = core.VersionTwo
	}
	outcome := OutcomeFor(card.number)
	base := baseURL(r)
	tx := &transaction{
		id:                 g.NewID(),
		version:            version,
		outcome:            outcome,
		status:             core.StatusAvailable,
		amount:             numericAmount(req.Amount),
		currency:           strings.TrimSpace(req.Currency),
		challengeReturnURL: strings.TrimSpace(req.Notifications.ChallengeReturnURL),
		methodReturnURL:    strings.TrimSpace(req.Notifications.MethodReturnURL),
	}
	if tx.challengeReturnURL == "" {
		tx.challengeReturnURL = base + PathChallengeNotification
	}

	switch {
	case version == core.VersionOne && outcome.enrolledV1():
		tx.enrolled = core.EnrolledStatusEnrolled
		tx.status = core.StatusChallengeRequired
		tx.pareq = base64.StdEncoding.EncodeToString([]byte("pareq:" + tx.id))
		tx.md = g.NewID()
		g.pareqs[tx.pareq] = tx.id
	case version == core.VersionOne:
		tx.enrolled = core.EnrolledStatusNotEnrolled
	case outcome.enrolledV2():
		tx.enrolled = core.EnrolledStatusEnrolled
	default:
		tx.enrolled = core.EnrolledStatusNotEnrolled
	}

	g.transactions[tx.id] = tx
	g.rememberKey(core.OperationCheckEnrollment, key, tx.id)
	writeLayout(w, tx, base)
}

func (g *Gateway) handleInitiate(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[string(core.OperationInitiateAuthentication)]++

	tx, ok := g.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}
	req, ok := decodeGatewayRequest(w, r)
	if !ok {
		return
	}
	card, ok := g.resolveCard(w, req.PaymentMethod, core.OperationInitiateAuthentication)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if g.rejectDuplicate(w, core.OperationInitiateAuthentication, key) {
		return
	}
	if tx.status.Terminal() {
		writeError(w, http.StatusBadGateway, core.ResponseCodeSystemErrorDownstream, "50139", downstreamFailureDescription)
		return
	}
	if tx.version != core.VersionTwo || tx.enrolled != core.EnrolledStatusEnrolled {
		writeError(w, http.StatusBadRequest, core.ResponseCodeInvalidRequestData, "40107",
			fmt.Sprintf("Authentication %s is not available for 3DS2 authentication.", tx.id))
		return
	}

	if tx.status == core.StatusAvailable {
		outcome := OutcomeFor(card.number)
		if outcome == OutcomeFrictionless &&
			strings.EqualFold(req.ChallengeRequestIndicator, string(core.ChallengeMandated)) {
			outcome = OutcomeChallenge
		}
		tx.acsTransactionID = g.NewID()
		tx.dsTransactionID = g.NewID()
		switch outcome {
		case OutcomeChallenge:
			tx.status = core.StatusChallengeRequired
			g.challenges[tx.acsTransactionID] = tx.id
		case OutcomeFailed:
			tx.status = core.StatusFailed
			tx.liability = core.LiabilityShiftNo
		default:
			tx.authenticate()
		}
	}

	g.rememberKey(core.OperationInitiateAuthentication, key, tx.id)
	writeLayout(w, tx, baseURL(r))
}

func (g *Gateway) handleResult(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.Method == http.MethodGet {
		g.calls[string(core.OperationCheckLiabilityShift)]++
	} else {
		g.calls[string(core.OperationGetAuthenticationData)]++
	}

	tx, ok := g.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		req, ok := decodeGatewayRequest(w, r)
		if !ok {
			return
		}
		pares := strings.TrimSpace(req.PaRes)
		if tx.version == core.VersionOne && pares != "" && tx.status == core.StatusChallengeRequired {
			if tx.pares != "" && pares == tx.pares {
				tx.authenticate()
			} else {
				tx.status = core.StatusFailed
				tx.liability = core.LiabilityShiftNo
			}
		}
	}
	writeLayout(w, tx, baseURL(r))
}

func (g *Gateway) handleTokenize(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fields := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, core.ResponseCodeInvalidRequestData, "40001", "Request body is not valid JSON.")
		return
	}
	card, ok := g.resolveCard(w, fields, core.OperationCheckEnrollment)
	if !ok {
		return
	}
	token := "PMT_" + g.NewID()
	g.tokens[token] = card
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": token, "usage_mode": "MULTIPLE"})
}

// Tokenize stores a card and returns its token without an HTTP round trip.
func (g *Gateway) Tokenize(number, expMonth, expYear string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	token := "PMT_" + g.NewID()
	g.tokens[token] = storedCard{number: number, expMonth: expMonth, expYear: expYear}
	return token
}

func (g *Gateway) lookup(w http.ResponseWriter, id string) (*transaction, bool) {
	id = strings.TrimSpace(id)
	tx, ok := g.transactions[id]
	if !ok {
		writeError(w, http.StatusNotFound, core.ResponseCodeResourceNotFound, "40118",
			fmt.Sprintf("Authentication %s not found at this location.", id))
		return nil, false
	}
	return tx, true
}

func (g *Gateway) resolveCard(w http.ResponseWriter, fields map[string]any, operation core.Operation) (storedCard, bool) {
	if token := fieldString(fields, core.FieldToken); token != "" {
		card, ok := g.tokens[token]
		if !ok {
			writeError(w, http.StatusNotFound, core.ResponseCodeResourceNotFound, "40116",
				fmt.Sprintf("Payment method %s not found at this location.", token))
			return storedCard{}, false
		}
		return card, true
	}

	card := storedCard{
		number:   fieldString(fields, core.FieldNumber),
		expMonth: fieldString(fields, core.FieldExpiryMonth),
		expYear:  fieldString(fields, core.FieldExpiryYear),
	}
	if operation == core.OperationInitiateAuthentication {
		if card.number == "" {
			writeError(w, http.StatusBadRequest, core.ResponseCodeMandatoryDataMissing, "40005",
				"Request expects the following fields "+core.FieldNumber)
			return storedCard{}, false
		}
		return card, true
	}

	missing := make([]string, 0, 3)
	if card.number == "" {
		missing = append(missing, core.FieldNumber)
	}
	if card.expMonth == "" {
		missing = append(missing, core.FieldExpiryMonth)
	}
	if card.expYear == "" {
		missing = append(missing, core.FieldExpiryYear)
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, core.ResponseCodeInvalidRequestData, "40007",
			"Request expects the following conditionally mandatory fields "+strings.Join(missing, ",")+".")
		return storedCard{}, false
	}
	return card, true
}

func (g *Gateway) rejectDuplicate(w http.ResponseWriter, operation core.Operation, key string) bool {
	if key == "" {
		return false
	}
	id, seen := g.idempotency[core.IdempotencyScope(operation, key)]
	if !seen {
		return false
	}
	status := core.AuthenticationStatus("")
	if tx, ok := g.transactions[id]; ok {
		status = tx.status
	}
	writeError(w, http.StatusConflict, core.ResponseCodeDuplicateAction, core.ResponseTextDuplicateAction,
		fmt.Sprintf("Idempotency Key seen before: id=%s, status=%s", id, status))
	return true
}

func (g *Gateway) rememberKey(operation core.Operation, key string, id string) {
	if key == "" {
		return
	}
	g.idempotency[core.IdempotencyScope(operation, key)] = id
}

func (tx *transaction) authenticate() {
	tx.status = core.StatusSuccessAuthenticated
	tx.eci = ECIAuthenticated
	tx.liability = core.LiabilityShiftYes
	tx.authenticationValue = base64.StdEncoding.EncodeToString([]byte("cavv:" + tx.id))
}

func writeLayout(w http.ResponseWriter, tx *transaction, base string) {
	var layout core.ResponseLayout
	if tx.version == core.VersionOne {
		layout = legacyLayout(tx, base)
	} else {
		layout = authenticationLayout(tx, base)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(layout)
}

func legacyLayout(tx *transaction, base string) core.LegacyEnrollmentLayout {
	layout := core.LegacyEnrollmentLayout{
		ID:             tx.id,
		MessageVersion: MessageVersionOne,
		Enrolled:       "N",
		Amount:         json.Number(tx.amount),
		Currency:       tx.currency,
	}
	if tx.enrolled == core.EnrolledStatusEnrolled {
		layout.Enrolled = "Y"
		layout.URL = base + PathACSPaReq
		layout.PaReq = tx.pareq
		layout.MD = tx.md
		layout.TermURL = tx.challengeReturnURL
		layout.Challenge = tx.status == core.StatusChallengeRequired
	}
	switch tx.status {
	case core.StatusSuccessAuthenticated:
		layout.PaResStatus = "Y"
		layout.ECI = tx.eci
	case core.StatusFailed:
		layout.PaResStatus = "N"
	case core.StatusNotAuthenticated:
		layout.PaResStatus = "U"
	}
	return layout
}

func authenticationLayout(tx *transaction, base string) core.AuthenticationLayout {
	section := &core.ThreeDSSection{
		MessageVersion:   MessageVersionTwo,
		EnrolledStatus:   string(tx.enrolled),
		AcsTransactionID: tx.acsTransactionID,
		DSTransactionID:  tx.dsTransactionID,
	}
	layout := core.AuthenticationLayout{
		ID:       tx.id,
		Status:   string(tx.status),
		Amount:   json.Number(tx.amount),
		Currency: tx.currency,
		ThreeDS:  section,
		Notifications: &core.NotificationSection{
			ChallengeReturnURL: tx.challengeReturnURL,
			ThreeDSMethodURL:   tx.methodReturnURL,
		},
	}

	switch tx.status {
	case core.StatusAvailable:
		if tx.enrolled == core.EnrolledStatusEnrolled {
			section.MethodURL = base + PathACSMethod
			section.MethodData = &core.MethodSection{EncodedMethodData: encodeJSON(map[string]string{
				"threeDSServerTransID":         tx.id,
				"threeDSMethodNotificationURL": tx.methodReturnURL,
			})}
		}
	case core.StatusChallengeRequired:
		mandated := true
		section.ChallengeMandated = &mandated
		section.AcsChallengeRequestURL = base + PathACSChallenge
		section.ChallengeValue = encodeJSON(map[string]string{
			"threeDSServerTransID": tx.id,
			"acsTransID":           tx.acsTransactionID,
			"messageType":          "CReq",
			"messageVersion":       MessageVersionTwo,
			"challengeWindowSize":  "05",
		})
		section.MessageType = "CReq"
		section.SessionDataFieldName = "threeDSSessionData"
	case core.StatusSuccessAuthenticated:
		section.ECI = tx.eci
		section.LiabilityShift = string(tx.liability)
		section.AuthenticationValue = tx.authenticationValue
	default:
		section.LiabilityShift = string(tx.liability)
	}
	return layout
}

func writeError(w http.ResponseWriter, status int, code string, detailedCode string, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(core.ErrorLayout{
		ErrorCode:                code,
		DetailedErrorCode:        detailedCode,
		DetailedErrorDescription: description,
	})
}

func decodeGatewayRequest(w http.ResponseWriter, r *http.Request) (gatewayRequest, bool) {
	req := gatewayRequest{}
	if r.Body == nil || r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, core.ResponseCodeInvalidRequestData, "40001", "Request body is not valid JSON.")
		return gatewayRequest{}, false
	}
	return req, true
}

func fieldString(fields map[string]any, key string) string {
	value, ok := fields[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func numericAmount(amount string) string {
	amount = strings.TrimSpace(amount)
	if _, err := strconv.ParseFloat(amount, 64); err != nil {
		return ""
	}
	return amount
}

func encodeJSON(value any) string {
	encoded, _ := json.Marshal(value)
	return base64.RawURLEncoding.EncodeToString(encoded)
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
