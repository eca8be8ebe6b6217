// Package log builds the zap loggers used across dronearm.
package log

import (
	"io"
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ParseLevel maps "debug", "info", "warn" and "error" to a zap level.
// Unknown values fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05.000"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// New returns a console logger writing to w at the given level.
func New(name, level string, w io.Writer) *zap.SugaredLogger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(ParseLevel(level)),
	)
	return zap.New(core).Named(name).Sugar()
}

// NewStdout returns a console logger writing to stdout.
func NewStdout(name, level string) *zap.SugaredLogger {
	return New(name, level, os.Stdout)
}

// NewTestLogger returns a debug logger whose entries are captured for
// assertions, and echoed through tb.Log.
func NewTestLogger(tb testing.TB) (*zap.SugaredLogger, *observer.ObservedLogs) {
	tb.Helper()
	observed, logs := observer.New(zapcore.DebugLevel)
	echo := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(testWriter{tb}),
		zapcore.DebugLevel,
	)
	return zap.New(zapcore.NewTee(observed, echo)).Sugar(), logs
}

type testWriter struct {
	tb testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(string(p))
	return len(p), nil
}
