// Package monitoring provides the package-level diagnostic logger shared by
// the tracking and adjudication packages.
package monitoring

import "log"

// Logf is the diagnostic logger. It defaults to log.Printf and may be
// replaced via SetLogger so tests or embedding applications can redirect
// or mute pipeline diagnostics.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
