package robust

import (
	"io"
	"log"
)

var (
	opsLogger  *log.Logger
	diagLogger *log.Logger
)

// SetLogWriters configures the two logging streams for the robust
// package. Pass nil for any writer to disable that stream. Logging is
// disabled by default; estimation results are reported through return
// values and listener callbacks, not logs.
func SetLogWriters(ops, diag io.Writer) {
	opsLogger = newLogger("[robust] ", ops)
	diagLogger = newLogger("[robust] ", diag)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (estimation failures, refinement fallback).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (per-call diagnostics, tuning context).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}
