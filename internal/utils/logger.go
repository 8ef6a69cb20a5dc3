package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger writes leveled lines to stderr and, when a path is given, to an
// append-only log file as well.
type Logger struct {
	file   *os.File
	logger *log.Logger
}

// NewLogger creates a logger. An empty path logs to stderr only.
func NewLogger(path string) (*Logger, error) {
	out := io.Writer(os.Stderr)
	var file *os.File
	if path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
		file = f
		out = io.MultiWriter(os.Stderr, f)
	}
	return &Logger{file: file, logger: log.New(out, "", log.LstdFlags)}, nil
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.SetPrefix("INFO: ")
	l.logger.Printf(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.logger.SetPrefix("WARN: ")
	l.logger.Printf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.SetPrefix("ERROR: ")
	l.logger.Printf(format, args...)
}

func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}

// RotateDaily reopens the log file every 24 hours. Run in its own
// goroutine; returns when the file cannot be reopened.
func (l *Logger) RotateDaily() {
	if l.file == nil {
		return
	}
	for {
		now := time.Now()
		next := now.Add(24 * time.Hour)
		time.Sleep(next.Sub(now))
		name := l.file.Name()
		_ = l.file.Close()
		file, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			fmt.Printf("log rotate failed: %v\n", err)
			return
		}
		l.file = file
		l.logger.SetOutput(io.MultiWriter(os.Stderr, file))
	}
}
