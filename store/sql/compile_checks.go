package sqlstore

import "github.com/goliatone/go-threeds/core"

var (
	_ core.IdempotencyStore       = (*IdempotencyStore)(nil)
	_ core.IdempotencyStore       = (*CachedIdempotencyStore)(nil)
	_ core.AuthenticationRecorder = (*SnapshotStore)(nil)
)
