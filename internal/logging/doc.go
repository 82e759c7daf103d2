// Package logging builds the slog loggers used by the orbix daemon and CLI.
//
// It provides console and JSON handlers, attribute helpers and the
// standardized field keys. WithContext tags a logger with the stage, item ID
// and correlation ID carried on a context so stage code never has to thread
// them by hand.
package logging
