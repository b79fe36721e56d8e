package threeds

import (
	"fmt"

	threedscommand "github.com/goliatone/go-threeds/command"
	"github.com/goliatone/go-threeds/core"
	threedsquery "github.com/goliatone/go-threeds/query"
)

type CommandQueryService interface {
	threedscommand.MutatingService
	threedsquery.AuthenticationReader
}

type Commands struct {
	CheckEnrollment        *threedscommand.CheckEnrollmentCommand
	InitiateAuthentication *threedscommand.InitiateAuthenticationCommand
}

type Queries struct {
	GetAuthenticationData *threedsquery.GetAuthenticationDataQuery
	CheckLiabilityShift   *threedsquery.CheckLiabilityShiftQuery
	// LookupIdempotency is nil when no idempotency reader could be resolved.
	LookupIdempotency *threedsquery.LookupIdempotencyQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	idempotencyReader threedsquery.IdempotencyReader
}

func WithIdempotencyReader(reader threedsquery.IdempotencyReader) FacadeOption {
	return func(options *facadeOptions) {
		options.idempotencyReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("threeds: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.idempotencyReader
	if reader == nil {
		reader = resolveIdempotencyReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CheckEnrollment:        threedscommand.NewCheckEnrollmentCommand(service),
		InitiateAuthentication: threedscommand.NewInitiateAuthenticationCommand(service),
	}
	facade.queries = Queries{
		GetAuthenticationData: threedsquery.NewGetAuthenticationDataQuery(service),
		CheckLiabilityShift:   threedsquery.NewCheckLiabilityShiftQuery(service),
	}
	if reader != nil {
		facade.queries.LookupIdempotency = threedsquery.NewLookupIdempotencyQuery(reader)
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveIdempotencyReader(service CommandQueryService) threedsquery.IdempotencyReader {
	if reader, ok := service.(threedsquery.IdempotencyReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		IdempotencyStore() core.IdempotencyStore
	})
	if !ok {
		return nil
	}
	store := provider.IdempotencyStore()
	if store == nil {
		return nil
	}
	return store
}
