// Package monitoring holds the process-wide diagnostic log hooks.
package monitoring

import "log"

// Logf is the package-level diagnostic logger used by the estimator, the
// hub session and the frame acquirer. It defaults to log.Printf; tests can
// capture or mute it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf receives per-frame detail. It is muted unless SetVerbose(true).
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose routes Debugf to the current Logf when on, and mutes it when off.
func SetVerbose(on bool) {
	if !on {
		Debugf = func(string, ...interface{}) {}
		return
	}
	Debugf = func(format string, v ...interface{}) {
		Logf("[debug] "+format, v...)
	}
}
