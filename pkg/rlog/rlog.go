// Package rlog is the shared logger for the download engine. It generalizes
// pkg/logger's console Logger interface with the category tags the engine's
// components need to stay distinguishable in one process-wide log stream:
// DL (downloader), API (catalog facade), UI, INPUT, COVER, DBG, APP.
package rlog

import (
	"log"

	"github.com/dustin/go-humanize"
)

// Category tags a log line with the subsystem that emitted it, per the
// event categories an out-of-process observer may grep for.
type Category string

const (
	DL    Category = "DL"
	API   Category = "API"
	UI    Category = "UI"
	INPUT Category = "INPUT"
	COVER Category = "COVER"
	DBG   Category = "DBG"
	APP   Category = "APP"
)

// Logger is the interface every component logs through.
type Logger interface {
	Info(cat Category, format string, args ...interface{})
	Warning(cat Category, format string, args ...interface{})
	Error(cat Category, format string, args ...interface{})
	Close() error
}

// Standard wraps the stdlib *log.Logger, printing "[CAT] [LEVEL] message".
type Standard struct {
	l *log.Logger
}

// New wraps an existing *log.Logger.
func New(l *log.Logger) *Standard {
	return &Standard{l: l}
}

func (s *Standard) Info(cat Category, format string, args ...interface{}) {
	s.l.Printf("[%s] [INFO] "+format, append([]interface{}{cat}, args...)...)
}

func (s *Standard) Warning(cat Category, format string, args ...interface{}) {
	s.l.Printf("[%s] [WARNING] "+format, append([]interface{}{cat}, args...)...)
}

func (s *Standard) Error(cat Category, format string, args ...interface{}) {
	s.l.Printf("[%s] [ERROR] "+format, append([]interface{}{cat}, args...)...)
}

func (s *Standard) Close() error { return nil }

// Nop discards every message. Used in tests and by callers that don't want
// engine chatter.
type Nop struct{}

func (Nop) Info(Category, string, ...interface{})    {}
func (Nop) Warning(Category, string, ...interface{}) {}
func (Nop) Error(Category, string, ...interface{})   {}
func (Nop) Close() error                             { return nil }

var (
	_ Logger = (*Standard)(nil)
	_ Logger = Nop{}
)

// Bytes renders a byte count the way heartbeat and retry-rollback log lines
// present it to an operator, e.g. "128 MB" rather than a raw integer.
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
