package types

import (
	"log"
	"os"
)

// Logger is the minimal logging contract the engine depends on. Any
// type satisfying it — including the standard library's *log.Logger —
// can be plugged in as Config.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// this is a safeguard, breaking on compile time in case
// `log.Logger` does not adhere to our `Logger` interface.
var _ Logger = &log.Logger{}

// DefaultLogger returns a Logger implementation that writes to stdout.
func DefaultLogger() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags)
}

// NewLogger returns custom if non-nil, else DefaultLogger().
func NewLogger(custom Logger) Logger {
	if custom != nil {
		return custom
	}
	return DefaultLogger()
}
