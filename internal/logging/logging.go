// Package logging configures the process-wide zerolog logger.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Environment selects logger behavior.
type Environment string

const (
	// Development uses a console writer with debug level.
	Development Environment = "development"
	// Production emits leveled JSON at info level.
	Production Environment = "production"
)

// New builds the root logger for the given environment.
func New(env Environment) zerolog.Logger {
	if env == Production {
		return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	}
	writer := zerolog.NewConsoleWriter()
	return zerolog.New(writer).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}

// ParseEnvironment normalizes a configured value. Unknown values fall
// back to Development so the process can still start.
func ParseEnvironment(value string) Environment {
	if Environment(value) == Production {
		return Production
	}
	return Development
}
