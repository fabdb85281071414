// Package svslog provides the single structured logger every component
// logs through. Output routing and level configuration from a config file
// are left to the hosting application; this package only fixes the logger
// every other package imports.
package svslog

import (
	"os"

	"github.com/rs/zerolog"
)

// L is the package-wide logger. Tests and hosting applications may
// reassign it (e.g. to zerolog.Nop()) before running.
var L = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
	With().Timestamp().Logger()

// Component returns a child logger tagged with the originating component,
// mirroring the way virtual-vectorfs scopes its service loggers.
func Component(name string) zerolog.Logger {
	return L.With().Str("component", name).Logger()
}
