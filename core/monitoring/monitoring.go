// Package monitoring defines the error reporting hook used by the matcher.
// Implementations are injected; there is no package-level monitor.
package monitoring

import "time"

// Monitor receives errors that operators must see even when the request that
// caused them was answered, such as a failed alert publish. Tags carry the
// module and ids, never caller details.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Recover is deferred at goroutine roots; it reports and re-panics.
	Recover()
	Flush(timeout time.Duration)
}

// NopMonitor is used when no error tracker is configured.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}
