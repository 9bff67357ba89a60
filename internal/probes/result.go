package probes

import (
	"time"

	"supplier-conformance/internal/transport"
)

type Severity int

const (
	Pass Severity = iota
	Warning
	Fail
)

func (s Severity) String() string {
	switch s {
	case Pass:
		return "OK"
	case Warning:
		return "WARNING"
	case Fail:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Result is the outcome of one probe. Title and Duration are filled in by
// the harness, never by the probe itself.
type Result struct {
	Title    string
	Severity Severity
	Message  string
	Duration time.Duration
	// HTTP exchange attached only on fail/warning for diagnostics.
	Response *transport.Snapshot
}
