package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-threeds/core"
)

var (
	_ gocmd.Querier[GetAuthenticationDataMessage, core.AuthenticationContext] = (*GetAuthenticationDataQuery)(nil)
	_ gocmd.Querier[CheckLiabilityShiftMessage, core.LiabilityShift]          = (*CheckLiabilityShiftQuery)(nil)
	_ gocmd.Querier[LookupIdempotencyMessage, IdempotencyLookup]              = (*LookupIdempotencyQuery)(nil)
)
