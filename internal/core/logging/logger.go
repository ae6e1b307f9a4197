package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentKey tags every log line with the subsystem that wrote it.
const ComponentKey = "cmp"

// Component returns a child of the global logger for the named component.
func Component(name string) zerolog.Logger {
	return Sub(log.Logger, name)
}

// Sub returns a child of base for the named component. Sessions use it to
// derive per-component loggers from the logger they were built with.
func Sub(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str(ComponentKey, name).Logger()
}
