/*
Package log provides structured logging for Burrow using zerolog.

A single global Logger is configured once by Init from the log section of
the configuration. Packages derive child loggers with a component field at
construction time and attach task ids per call:

	logger := log.WithComponent("scheduler")
	logger.Info().
		Str("task_id", task.ID).
		Float64("priority", score).
		Msg("Task scheduled")

Console output is the default for interactive use; JSON output is meant for
log shippers. Until Init runs the logger discards everything, so library
code and tests never need to set it up.

Conventions: messages start with a capital letter and carry no trailing
punctuation, errors go through Err(), and debug level is reserved for
per-task detail such as individual predictions.
*/
package log
