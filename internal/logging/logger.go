package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar = newSugar()
)

func newSugar() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.WithCaller(false))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// SetDebug enables or disables debug logging
func SetDebug(debug bool) {
	if debug {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = sugar.Sync()
}

// Debug logs a debug-level message
func Debug(format string, v ...interface{}) {
	sugar.Debugf(format, v...)
}

// Info logs an info-level message
func Info(format string, v ...interface{}) {
	sugar.Infof(format, v...)
}

// Warn logs a warning-level message
func Warn(format string, v ...interface{}) {
	sugar.Warnf(format, v...)
}

// Error logs an error-level message
func Error(format string, v ...interface{}) {
	sugar.Errorf(format, v...)
}
