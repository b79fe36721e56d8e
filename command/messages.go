package command

import (
	"strings"

	"github.com/goliatone/go-threeds/core"
)

const (
	TypeCheckEnrollment        = "threeds.command.enrollment.check"
	TypeInitiateAuthentication = "threeds.command.authentication.initiate"
)

type CheckEnrollmentMessage struct {
	Request core.CheckEnrollmentRequest
}

func (CheckEnrollmentMessage) Type() string { return TypeCheckEnrollment }

func (m CheckEnrollmentMessage) Validate() error {
	var problems core.FieldProblems
	if m.Request.PaymentMethod == nil {
		problems.Add("payment_method", "payment method is required")
	}
	if version := m.Request.Version; version != "" && !version.Valid() {
		problems.Add("version", "version must be ONE or TWO")
	}
	return problems.Err("command")
}

type InitiateAuthenticationMessage struct {
	Request core.InitiateAuthenticationRequest
}

func (InitiateAuthenticationMessage) Type() string { return TypeInitiateAuthentication }

func (m InitiateAuthenticationMessage) Validate() error {
	var problems core.FieldProblems
	if m.Request.PaymentMethod == nil {
		problems.Add("payment_method", "payment method is required")
	}
	switch {
	case m.Request.Context == nil:
		problems.Add("context", "authentication context is required")
	case strings.TrimSpace(m.Request.Context.ServerTransactionID) == "":
		problems.Add("context.server_transaction_id", "server transaction id is required")
	}
	return problems.Err("command")
}
