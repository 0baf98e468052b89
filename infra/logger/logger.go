package logger

import corelogger "github.com/kilianp07/crisismatch/core/logger"

type Logger = corelogger.Logger

// NopLogger discards everything. Tests and library callers without a logger
// use it.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns the process logger for one component, such as "matcher" or
// "registry". Output format follows APP_ENV and LOG_LEVEL.
func New(component string) Logger {
	return NewZerologLogger(component)
}
