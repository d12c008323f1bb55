// Package logging builds the slog loggers used across dadcam.
//
// Records go to a console handler on stderr and, when a file path is
// configured, to a JSON handler appending to the daily log file. Component
// loggers carry a component attribute and run-scoped loggers carry run_id.
// WarnWithContext and ErrorWithContext guarantee every warning names its
// event type and a hint for the operator.
package logging
