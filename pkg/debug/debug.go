// Package debug provides global debug logging flags
package debug

import "fmt"

// Enabled controls whether debug logging is active
var Enabled bool

// Detect controls per-frame detection traces (face boxes, crop sizes).
// These are very verbose at camera frame rates.
var Detect bool

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Printf(format, args...)
	}
}

// Logln prints a message with newline only if debug mode is enabled
func Logln(msg string) {
	if Enabled {
		fmt.Println(msg)
	}
}

// DetectLog prints a message only if detection tracing is enabled
func DetectLog(format string, args ...interface{}) {
	if Detect {
		fmt.Printf(format, args...)
	}
}
