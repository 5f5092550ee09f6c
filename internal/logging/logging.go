// Package logging configures the process-wide zerolog logger and hands
// out component-scoped children, the same shape the teacher's logger
// package is invoked with throughout auto_trader.go (one global logger,
// contextual Infof/Errorf-style calls per subsystem).
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Init configures the global zerolog logger. In dev mode it writes a
// human-readable console stream; otherwise structured JSON to stdout.
func Init(dev bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	var w = os.Stdout
	if dev {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		zerolog.DefaultContextLogger = &zerolog.Logger{}
		log := zerolog.New(cw).With().Timestamp().Logger()
		zerolog.DefaultContextLogger = &log
		globalLogger = log
		return
	}
	log := zerolog.New(w).With().Timestamp().Logger()
	globalLogger = log
}

var globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// For returns a child logger tagged with component=name, e.g.
// logging.For("brain.ingest") or logging.For("gate.actor").
func For(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}
