// Package quadlog holds the module's default structured logger, in the
// same spirit as tempo's pkg/util/log: a single package-level logger the
// rest of the module logs through, swappable by the embedding application.
package quadlog

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is the logger that store, atom, reasoner and update derive their
// component loggers from (bptree does not log). Replace it at process
// start if the embedding application wants its own sink.
var Logger = newDefault()

func newDefault() log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = level.NewFilter(l, level.AllowInfo())
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return l
}

// With returns a context-scoped logger, mirroring the teacher's
// log.With(logger, "component", name) convention.
func With(keyvals ...interface{}) log.Logger {
	return log.With(Logger, keyvals...)
}
