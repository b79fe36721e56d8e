package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-threeds/core"
)

type MutatingService interface {
	CheckEnrollment(ctx context.Context, req core.CheckEnrollmentRequest) (core.AuthenticationContext, error)
	InitiateAuthentication(ctx context.Context, req core.InitiateAuthenticationRequest) (core.AuthenticationContext, error)
}

type CheckEnrollmentCommand struct {
	service MutatingService
}

func NewCheckEnrollmentCommand(service MutatingService) *CheckEnrollmentCommand {
	return &CheckEnrollmentCommand{service: service}
}

func (c *CheckEnrollmentCommand) Execute(ctx context.Context, msg CheckEnrollmentMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: check enrollment service is required")
	}
	out, err := c.service.CheckEnrollment(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type InitiateAuthenticationCommand struct {
	service MutatingService
}

func NewInitiateAuthenticationCommand(service MutatingService) *InitiateAuthenticationCommand {
	return &InitiateAuthenticationCommand{service: service}
}

// Execute stores the advanced context in the result collector.
func (c *InitiateAuthenticationCommand) Execute(ctx context.Context, msg InitiateAuthenticationMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: initiate authentication service is required")
	}
	out, err := c.service.InitiateAuthentication(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
