// Package rtlog is the runtime's structured logging backbone.
//
// Every component logger is scoped with a "component" field (ap, ta,
// dispatcher-harness) so a single process's logs can be filtered per
// collaborator, the way the rest of the corpus scopes its loggers per
// package rather than writing one undifferentiated stream.
package rtlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a component-scoped logger writing to w (os.Stderr if nil).
func New(component string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
