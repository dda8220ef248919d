// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the file-backed logger for the haven application.
//
// A terminal UI owns stdout and stderr, so all diagnostics go to a log file
// under the app directory instead. The logger is leveled and printf-style;
// callers obtain a tagged sub-logger per subsystem.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// LEVELS
// =============================================================================

// Level controls which messages reach the log file.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level name as written to the log file.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level. Unknown strings fall back to
// info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger writes leveled, tagged lines to a shared log file.
type Logger struct {
	tag string
	out *output
}

// output is the shared sink behind every tagged Logger.
type output struct {
	mu    sync.Mutex
	file  *os.File
	level Level
}

var (
	shared   = &output{level: LevelInfo}
	initOnce sync.Once
	initErr  error
)

// Init opens (or creates) the log file and sets the minimum level. Safe to
// call more than once; only the first call takes effect.
func Init(path string, level Level) error {
	initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			initErr = fmt.Errorf("failed to open log file: %w", err)
			return
		}
		shared.mu.Lock()
		shared.file = f
		shared.level = level
		shared.mu.Unlock()
	})
	return initErr
}

// Close flushes and closes the log file. Loggers created before Close become
// no-ops after it.
func Close() {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.file != nil {
		shared.file.Close()
		shared.file = nil
	}
}

// New returns a logger tagged with the given subsystem name.
func New(tag string) *Logger {
	return &Logger{tag: tag, out: shared}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.file == nil || level < l.out.level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out.file, "%s [%s] %s: %s\n", ts, l.tag, level, msg)
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}
