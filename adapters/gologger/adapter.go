package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-threeds/core"
)

const (
	LoggerName       = "threeds"
	PollerLoggerName = "threeds.challenge.poll"
)

// Resolve uses precedence provider > logger > nop. A blank name falls back
// to LoggerName.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	if strings.TrimSpace(name) == "" {
		name = LoggerName
	}
	return glog.Resolve(name, provider, logger)
}

// ResolveForService resolves under the configured service name.
func ResolveForService(cfg core.Config, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return Resolve(cfg.ServiceName, provider, logger)
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolvePoller returns the logger used by the challenge poller together
// with the go-job views of the same sink, so worker and poller logs line up.
func ResolvePoller(provider glog.LoggerProvider, logger glog.Logger) (core.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(LoggerName, provider, logger)
	pollerLogger := glog.Ensure(resolvedLogger)
	if resolvedProvider != nil {
		pollerLogger = glog.Ensure(resolvedProvider.GetLogger(PollerLoggerName))
	}
	return pollerLogger, ToJobProvider(resolvedProvider), ToJobLogger(pollerLogger)
}
