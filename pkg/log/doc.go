/*
Package log provides structured logging for Starhold using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific child loggers and configurable log levels. All logs
include timestamps and support filtering by severity.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	regLog := log.WithComponent("registry")
	regLog.Info().Str("module_id", id).Msg("module created")

Context helpers add module_id, building_id, or rule_id fields. Bind the
child logger to a variable before logging; zerolog's level methods need
an addressable logger:

	modLog := log.WithModuleID("module-abc")
	modLog.Warn().Msg("resource shortage")

Use Info level in production; Debug is verbose and intended for development.
Never log in the event bus hot path below Debug level.
*/
package log
