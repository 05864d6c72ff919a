// Package logging is the structured logger every MAGI component receives
// by injection. Only this package imports zap.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is one key/value attached to a log entry.
type Field struct{ zf zap.Field }

// Key is the field name.
func (f Field) Key() string { return f.zf.Key }

// Value decodes the field the way an encoder would see it.
func (f Field) Value() interface{} {
	enc := zapcore.NewMapObjectEncoder()
	f.zf.AddTo(enc)
	return enc.Fields[f.zf.Key]
}

func String(key, val string) Field                 { return Field{zap.String(key, val)} }
func Strings(key string, val []string) Field       { return Field{zap.Strings(key, val)} }
func Int(key string, val int) Field                { return Field{zap.Int(key, val)} }
func Int64(key string, val int64) Field            { return Field{zap.Int64(key, val)} }
func Float64(key string, val float64) Field        { return Field{zap.Float64(key, val)} }
func Bool(key string, val bool) Field              { return Field{zap.Bool(key, val)} }
func Duration(key string, val time.Duration) Field { return Field{zap.Duration(key, val)} }
func Any(key string, val interface{}) Field        { return Field{zap.Any(key, val)} }

// Err logs err's message under "error". A nil error logs as "<nil>".
func Err(err error) Field {
	if err == nil {
		return String("error", "<nil>")
	}
	return String("error", err.Error())
}

// Logger is what components log through.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	// Warn marks a recoverable condition, such as a lookup miss or a tool
	// failure the run was told to tolerate.
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	// Named appends a dotted segment to the logger name.
	Named(name string) Logger
	Sync() error
}

// LevelSetter is implemented by loggers whose threshold can move after
// construction.
type LevelSetter interface {
	SetLevel(level string)
}

// LogConfig is the log section of magi.yaml.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	// OutputPaths defaults to stderr, leaving stdout to result tables.
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

type zapLogger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

func unwrap(fields []Field) []zap.Field {
	zfs := make([]zap.Field, len(fields))
	for i, f := range fields {
		zfs[i] = f.zf
	}
	return zfs
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, unwrap(fields)...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, unwrap(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, unwrap(fields)...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, unwrap(fields)...) }
func (l *zapLogger) Sync() error                       { return l.z.Sync() }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(unwrap(fields)...), level: l.level}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{z: l.z.Named(name), level: l.level}
}

// SetLevel moves the threshold of l and every logger derived from it.
func (l *zapLogger) SetLevel(level string) { l.level.SetLevel(parseLevel(level)) }

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func orStderr(paths []string) []string {
	if len(paths) == 0 {
		return []string{"stderr"}
	}
	return paths
}

// NewLogger builds a zap logger from cfg.
func NewLogger(cfg LogConfig) (Logger, error) {
	console := cfg.Format == "console"
	enc, encoding := zap.NewProductionEncoderConfig(), "json"
	if console {
		enc, encoding = zap.NewDevelopmentEncoderConfig(), "console"
	}
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	z, err := zap.Config{
		Level:            level,
		Development:      console,
		Encoding:         encoding,
		EncoderConfig:    enc,
		OutputPaths:      orStderr(cfg.OutputPaths),
		ErrorOutputPaths: orStderr(cfg.ErrorOutputPaths),
	}.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logging: build %s logger: %w", encoding, err)
	}
	return &zapLogger{z: z, level: level}, nil
}

// NewLoggerFromCore wraps core, typically a zaptest observer.
func NewLoggerFromCore(core zapcore.Core) Logger {
	return &zapLogger{z: zap.New(core, zap.AddCallerSkip(1)), level: zap.NewAtomicLevel()}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}
func (n nopLogger) With(...Field) Logger { return n }
func (n nopLogger) Named(string) Logger  { return n }
func (nopLogger) Sync() error            { return nil }

// NewNopLogger returns a Logger that drops everything.
func NewNopLogger() Logger { return nopLogger{} }
