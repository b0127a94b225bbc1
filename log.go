package lattice

import (
	"fmt"
	"log"
)

// A Logger is the logging interface used by the node runtime, for
// reporting connection and handshake events at four severities. It wraps
// the standard library's log package rather than a structured-logging
// library (see DESIGN.md for why).
//
// Info is for situations that are not problems: discovery progress,
// successful handshakes. Warn is for situations that are "expected" and
// may resolve on their own: a connection lost to a peer, a transient
// reconnect failure, a failed inbound handshake. Error is for situations
// unlikely to resolve without intervention: an inbound message that
// cannot be decoded.
type Logger interface {
	Trace(interface{}, ...interface{})
	Info(interface{}, ...interface{})
	Warn(interface{}, ...interface{})
	Error(interface{}, ...interface{})
}

// WrapLogger takes a standard *log.Logger and returns a Logger that uses
// it.
func WrapLogger(l *log.Logger) Logger {
	return wrapLogger{l}
}

type wrapLogger struct {
	logger *log.Logger
}

func (wl wrapLogger) Trace(s interface{}, vals ...interface{}) {
	wl.logger.Output(2, fmt.Sprintf("[TRAC] lattice: "+fmt.Sprintf("%v", s), vals...))
}

func (wl wrapLogger) Info(s interface{}, vals ...interface{}) {
	wl.logger.Output(2, fmt.Sprintf("[INFO] lattice: "+fmt.Sprintf("%v", s), vals...))
}

func (wl wrapLogger) Warn(s interface{}, vals ...interface{}) {
	wl.logger.Output(2, fmt.Sprintf("[WARN] lattice: "+fmt.Sprintf("%v", s), vals...))
}

func (wl wrapLogger) Error(s interface{}, vals ...interface{}) {
	wl.logger.Output(2, fmt.Sprintf("[ERR] lattice: "+fmt.Sprintf("%v", s), vals...))
}

// StdLogger is a Logger that uses the default log package's Output.
var StdLogger Logger = stdLogger{}

type stdLogger struct{}

func (sl stdLogger) Trace(s interface{}, vals ...interface{}) {
	log.Printf("[TRAC] lattice: "+fmt.Sprintf("%v", s), vals...)
}
func (sl stdLogger) Info(s interface{}, vals ...interface{}) {
	log.Printf("[INFO] lattice: "+fmt.Sprintf("%v", s), vals...)
}
func (sl stdLogger) Warn(s interface{}, vals ...interface{}) {
	log.Printf("[WARN] lattice: "+fmt.Sprintf("%v", s), vals...)
}
func (sl stdLogger) Error(s interface{}, vals ...interface{}) {
	log.Printf("[ERR] lattice: "+fmt.Sprintf("%v", s), vals...)
}

// NullLogger implements Logger and discards everything.
var NullLogger Logger = nullLogger{}

type nullLogger struct{}

func (nl nullLogger) Trace(s interface{}, vals ...interface{}) {}
func (nl nullLogger) Info(s interface{}, vals ...interface{})  {}
func (nl nullLogger) Warn(s interface{}, vals ...interface{})  {}
func (nl nullLogger) Error(s interface{}, vals ...interface{}) {}

func resolveLogger(l Logger) Logger {
	if l == nil {
		return StdLogger
	}
	return l
}
