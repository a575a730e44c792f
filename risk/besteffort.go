package risk

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bestEffort runs fn and logs its error at the given level instead of
// propagating it. Every log-and-continue side effect in this package (lease
// payload writes, stale-lease removal, incident persistence, slot release)
// goes through here so the swallow sites stay uniform and auditable.
func bestEffort(log *zap.Logger, level zapcore.Level, msg string, fn func() error) {
	err := fn()
	if err == nil {
		return
	}
	if ce := log.Check(level, msg); ce != nil {
		ce.Write(zap.Error(err))
	}
}
