package gologger

import (
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-vcagent/core"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ProfileOptions resolves a logger for name and returns the profile options
// installing it, so every profile of an application logs the same way.
func ProfileOptions(name string, provider glog.LoggerProvider, logger glog.Logger) []core.ProfileOption {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return []core.ProfileOption{
		core.WithLoggerProvider(resolvedProvider),
		core.WithLogger(resolvedLogger),
	}
}
