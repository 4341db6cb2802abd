package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init configures the process-wide logger. Development mode switches to a
// human readable console encoder; everything else logs JSON to stdout.
func Init(env string) {
	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewExample()
	}

	Set(l)
	Info("logger initialized", map[string]any{"env": env})
}

// Set replaces the underlying zap logger. Tests use it to capture output.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

// L returns the underlying zap logger for components that log with typed fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func fieldsOf(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func Info(msg string, fields map[string]any) {
	L().Info(msg, fieldsOf(fields)...)
}

func Warn(msg string, fields map[string]any) {
	L().Warn(msg, fieldsOf(fields)...)
}

func Error(msg string, fields map[string]any) {
	L().Error(msg, fieldsOf(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	L().Error(msg, fieldsOf(fields)...)
	_ = L().Sync()
	os.Exit(1)
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}
