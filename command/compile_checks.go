package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CheckEnrollmentMessage]        = (*CheckEnrollmentCommand)(nil)
	_ gocmd.Commander[InitiateAuthenticationMessage] = (*InitiateAuthenticationCommand)(nil)
)
