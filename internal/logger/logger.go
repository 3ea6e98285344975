// Package logger provides leveled logging for the monitor.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel maps a config string to a Level; unknown strings default
// to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger writes leveled lines through a stdlib log.Logger.
type Logger struct {
	mu     sync.Mutex
	level  Level
	logger *log.Logger
}

var defaultLogger = &Logger{
	level:  InfoLevel,
	logger: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
}

// Init configures the default logger. The text format adds caller
// file:line to each entry.
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	defaultLogger.mu.Lock()
	defaultLogger.level = ParseLevel(level)
	defaultLogger.logger = log.New(os.Stderr, "", flags)
	defaultLogger.mu.Unlock()
}

// SetOutput redirects the default logger, primarily for tests.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defaultLogger.logger.SetOutput(w)
	defaultLogger.mu.Unlock()
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	enabled := l.level <= level
	out := l.logger
	l.mu.Unlock()
	if !enabled {
		return
	}
	msg := fmt.Sprintf("["+level.String()+"] "+format, args...)
	_ = out.Output(3, msg)
}

func Debug(format string, args ...interface{}) {
	defaultLogger.log(DebugLevel, format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.log(InfoLevel, format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.log(WarnLevel, format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.log(ErrorLevel, format, args...)
}

func Fatal(format string, args ...interface{}) {
	defaultLogger.mu.Lock()
	out := defaultLogger.logger
	defaultLogger.mu.Unlock()
	_ = out.Output(2, fmt.Sprintf("[FATAL] "+format, args...))
	os.Exit(1)
}
