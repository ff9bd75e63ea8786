// Package logger provides leveled structured logging.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

// Init initializes the default logger with the specified level and format
// ("json" or "text"). Safe to call more than once; the last call wins.
func Init(level string, format string) {
	var lvl zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	switch strings.ToLower(format) {
	case "text", "console":
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		base = zap.NewNop()
	}
	sugar = base.Sugar()
}

func active() *zap.SugaredLogger {
	if sugar == nil {
		Init("info", "console")
	}
	return sugar
}

func Debug(format string, args ...interface{}) {
	active().Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	active().Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	active().Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	active().Errorf(format, args...)
}

// Fatal logs the message and exits the process.
func Fatal(format string, args ...interface{}) {
	active().Fatalf(format, args...)
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
