// Package logger provides jacin's structured logging: one named logger
// per long-lived goroutine with a component prefix, backed by
// charmbracelet/log, following the LOG_LEVEL convention the teacher's
// daemon used.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// Logger is the root logger; component loggers are derived from it
	// with For().
	Logger        *log.Logger
	currentWriter io.Writer = os.Stderr
)

func init() {
	Logger = log.New(os.Stderr)
	Logger.SetLevel(levelFromEnv())
}

func levelFromEnv() log.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN", "WARNING":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	case "FATAL":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// For returns a component-scoped logger (e.g. "main", "engine",
// "wayland"), sharing the root logger's output and level.
func For(component string) *log.Logger {
	return Logger.With("component", component)
}

// Convenience functions operating on the root logger, kept for call
// sites that don't need a component tag (CLI bootstrap, config errors
// before a component logger exists).
func Info(msg interface{}, keyvals ...interface{})  { Logger.Info(msg, keyvals...) }
func Debug(msg interface{}, keyvals ...interface{}) { Logger.Debug(msg, keyvals...) }
func Warn(msg interface{}, keyvals ...interface{})  { Logger.Warn(msg, keyvals...) }
func Error(msg interface{}, keyvals ...interface{}) { Logger.Error(msg, keyvals...) }
func Fatal(msg interface{}, keyvals ...interface{}) { Logger.Fatal(msg, keyvals...) }

func Infof(format string, args ...interface{})  { Logger.Infof(format, args...) }
func Debugf(format string, args ...interface{}) { Logger.Debugf(format, args...) }
func Warnf(format string, args ...interface{})  { Logger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { Logger.Fatalf(format, args...) }

// SetLevel sets the log level from a string (DEBUG/INFO/WARN/ERROR/FATAL).
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		Logger.SetLevel(log.DebugLevel)
	case "INFO":
		Logger.SetLevel(log.InfoLevel)
	case "WARN", "WARNING":
		Logger.SetLevel(log.WarnLevel)
	case "ERROR":
		Logger.SetLevel(log.ErrorLevel)
	case "FATAL":
		Logger.SetLevel(log.FatalLevel)
	}
}

// SetOutput redirects the logger to a different writer, preserving the
// current level.
func SetOutput(w io.Writer) {
	currentWriter = w
	level := Logger.GetLevel()
	Logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	Logger.SetLevel(level)
}

// SetupFileLogging redirects logging to
// $XDG_STATE_HOME/jacin/jacin.log (falling back to
// ~/.local/state/jacin, then .jacin in the current directory). The main IME process has no
// interactive terminal of its own once the compositor grabs it, so
// stderr is not a usable sink once running.
func SetupFileLogging() (*os.File, error) {
	var logDir string
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		logDir = filepath.Join(xdg, "jacin")
	} else if home, err := os.UserHomeDir(); err == nil {
		logDir = filepath.Join(home, ".local", "state", "jacin")
	} else {
		logDir = filepath.Join(".", ".jacin")
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		logDir = filepath.Join(".", ".jacin")
		if err := os.MkdirAll(logDir, 0750); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	logPath := filepath.Join(logDir, "jacin.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	if _, err := fmt.Fprintf(logFile, "\n%s === new session ===\n", time.Now().Format("15:04:05")); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write to log file: %v\n", err)
	}

	level := Logger.GetLevel()
	currentWriter = logFile
	Logger = log.NewWithOptions(logFile, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	Logger.SetLevel(level)
	log.SetDefault(Logger)

	Info("file logging initialized", "path", logPath)
	return logFile, nil
}

// Get returns the root logger instance.
func Get() *log.Logger {
	return Logger
}
