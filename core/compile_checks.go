package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ VersionNegotiator = DefaultVersionNegotiator{}
	_ IdempotencyStore  = (*MemoryIdempotencyLedger)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
