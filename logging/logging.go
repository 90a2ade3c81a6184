// Package logging provides the structured, leveled logger used across the
// node. It wraps zap rather than exposing it directly so call sites depend
// on a small interface instead of a concrete third-party type.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the leveled, structured logger implemented by this package.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})

	// Sublogger returns a child logger whose name is prefixed by this
	// logger's name, e.g. "node".Sublogger("clock") -> "node.clock".
	Sublogger(name string) Logger
}

type impl struct {
	name string
	zl   *zap.SugaredLogger
}

func newZapConfig() zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true
	return cfg
}

// NewLogger returns a new logger that outputs Info+ logs to stderr.
func NewLogger(name string) Logger {
	zl := zap.Must(newZapConfig().Build()).Sugar().Named(name)
	return &impl{name: name, zl: zl}
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stderr.
func NewDebugLogger(name string) Logger {
	cfg := newZapConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	zl := zap.Must(cfg.Build()).Sugar().Named(name)
	return &impl{name: name, zl: zl}
}

// NewTestLogger returns a Debug+ logger that also writes to the test's own
// output via tb.Log, so failures show logs inline with the failing test.
func NewTestLogger(tb testing.TB) Logger {
	zl := zaptest.NewLogger(tb, zaptest.Level(zapcore.DebugLevel)).Sugar()
	tb.Cleanup(func() { _ = zl.Sync() })
	return &impl{name: "", zl: zl}
}

func (l *impl) Debugw(msg string, kv ...interface{}) { l.zl.Debugw(msg, kv...) }
func (l *impl) Infow(msg string, kv ...interface{})  { l.zl.Infow(msg, kv...) }
func (l *impl) Warnw(msg string, kv ...interface{})  { l.zl.Warnw(msg, kv...) }
func (l *impl) Errorw(msg string, kv ...interface{}) { l.zl.Errorw(msg, kv...) }

func (l *impl) Debugf(t string, a ...interface{}) { l.zl.Debugf(t, a...) }
func (l *impl) Infof(t string, a ...interface{})  { l.zl.Infof(t, a...) }
func (l *impl) Warnf(t string, a ...interface{})  { l.zl.Warnf(t, a...) }
func (l *impl) Errorf(t string, a ...interface{}) { l.zl.Errorf(t, a...) }

func (l *impl) Sublogger(name string) Logger {
	newName := name
	if l.name != "" {
		newName = l.name + "." + name
	}
	return &impl{name: newName, zl: l.zl.Named(name)}
}
