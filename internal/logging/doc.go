// Package logging assembles structured slog loggers and formatting helpers used
// across streamclean.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and carries request correlation identifiers on contexts so HTTP
// calls and their log lines share one id. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
