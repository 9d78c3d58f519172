package logging

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields carries structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

var (
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	baseOnce sync.Once
	base     *zap.Logger
)

// SetLevel changes the level of every logger in the process.
// Unknown values leave the current level untouched.
func SetLevel(name string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return
	}
	level.SetLevel(l)
}

func root() *zap.Logger {
	baseOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: falling back to no-op logger: %v\n", err)
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// LoggerV2 is a component-scoped structured logger.
type LoggerV2 struct {
	z *zap.Logger
}

// NewLoggerV2 creates a logger tagged with the given component name.
func NewLoggerV2(component string) *LoggerV2 {
	return &LoggerV2{z: root().With(zap.String("component", component))}
}

// NewNopLogger returns a logger that discards everything. Used by tests.
func NewNopLogger() *LoggerV2 {
	return &LoggerV2{z: zap.NewNop()}
}

// With returns a child logger that always includes fields.
func (l *LoggerV2) With(fields Fields) *LoggerV2 {
	return &LoggerV2{z: l.z.With(toZap(fields)...)}
}

// WithContext attaches the request ID carried by ctx, if any.
func (l *LoggerV2) WithContext(ctx context.Context) *LoggerV2 {
	if id := RequestIDFrom(ctx); id != "" {
		return &LoggerV2{z: l.z.With(zap.String("request_id", id))}
	}
	return l
}

func (l *LoggerV2) Debug(msg string, fields ...Fields) { l.z.Debug(msg, merge(fields)...) }
func (l *LoggerV2) Info(msg string, fields ...Fields)  { l.z.Info(msg, merge(fields)...) }
func (l *LoggerV2) Warn(msg string, fields ...Fields)  { l.z.Warn(msg, merge(fields)...) }
func (l *LoggerV2) Error(msg string, fields ...Fields) { l.z.Error(msg, merge(fields)...) }
func (l *LoggerV2) Fatal(msg string, fields ...Fields) { l.z.Fatal(msg, merge(fields)...) }

// Info logs through the process-wide logger.
func Info(msg string, fields ...Fields) { root().Info(msg, merge(fields)...) }

// Error logs through the process-wide logger.
func Error(msg string, fields ...Fields) { root().Error(msg, merge(fields)...) }

// Infof logs a formatted message through the process-wide logger.
func Infof(format string, args ...interface{}) { root().Sugar().Infof(format, args...) }

// Sync flushes buffered entries. Call before exit.
func Sync() {
	_ = root().Sync()
}

func merge(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields[0]))
	for _, f := range fields {
		out = append(out, toZap(f)...)
	}
	return out
}

func toZap(f Fields) []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
