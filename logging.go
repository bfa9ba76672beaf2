package main

import (
	"os"

	"github.com/rs/zerolog"
)

// newLogger builds the process-wide zerolog.Logger used for every
// internal log line (§7 EXPANSION): transport failures, malformed-input
// drops, sweeper evictions, registry mutations. Consistent field names
// (component, addr, name, cmd, req_id) replace the teacher's ad-hoc
// `[tag]` prefixes with structured fields a log pipeline can index.
func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
			With().Timestamp().Str("component", "chatd").Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("component", "chatd").Logger()
}
