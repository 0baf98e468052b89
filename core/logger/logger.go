// Package logger is the logging contract shared by the matcher packages.
// Adapters live in infra/logger.
package logger

// Logger is a leveled, printf-style logger. Debugw attaches fields such as
// responder or session ids to a debug line.
type Logger interface {
	Debugf(format string, args ...any)
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
