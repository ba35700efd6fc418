package logger

import (
	"io"
	"log"
	"sync"
)

// Logger provides structured logging with levels

type Logger struct {
	MinLevel LogLevel
	mu       sync.Mutex
	out      *log.Logger
}

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// New returns a logger writing to w. A nil writer keeps the standard
// library's default output.
func New(level LogLevel, w io.Writer) *Logger {
	l := &Logger{MinLevel: level}
	if w != nil {
		l.out = log.New(w, "", 0)
	}
	return l
}

// Discard returns a logger that drops everything, for tests and dry runs.
func Discard() *Logger {
	return New(LevelError+1, io.Discard)
}
