// Package log wraps a zap sugared logger behind the small leveled interface
// used across the sigma packages.
package log

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a leveled, structured logger.
//
//nolint:interfacebloat
type Logger interface {
	Info(keyvals ...interface{})
	Debug(keyvals ...interface{})
	Warn(keyvals ...interface{})
	Error(keyvals ...interface{})
	Fatal(keyvals ...interface{})
	Infow(msg string, keyvals ...interface{})
	Debugw(msg string, keyvals ...interface{})
	Warnw(msg string, keyvals ...interface{})
	Errorw(msg string, keyvals ...interface{})
	Fatalw(msg string, keyvals ...interface{})
	With(args ...interface{}) Logger
	Named(s string) Logger
}

type log struct {
	*zap.SugaredLogger
}

func (l *log) With(args ...interface{}) Logger {
	return &log{l.SugaredLogger.With(args...)}
}

func (l *log) Named(s string) Logger {
	return &log{l.SugaredLogger.Named(s)}
}

const (
	DebugLevel = int(zapcore.DebugLevel)
	InfoLevel  = int(zapcore.InfoLevel)
	WarnLevel  = int(zapcore.WarnLevel)
	ErrorLevel = int(zapcore.ErrorLevel)
	FatalLevel = int(zapcore.FatalLevel)
)

// TestLogsEnv is the environment variable which, set to "DEBUG", lowers the
// default level to debug.
const TestLogsEnv = "SIGMA_TEST_LOGS"

// DefaultLevel is the level of the default logger. Change it before the first
// call to DefaultLogger.
var DefaultLevel = InfoLevel

//nolint:gochecknoinits
func init() {
	if v, ok := os.LookupEnv(TestLogsEnv); ok && v == "DEBUG" {
		DefaultLevel = DebugLevel
	}
}

var defaultOnce sync.Once

// DefaultLogger returns the process wide logger, printing JSON on stdout at
// DefaultLevel.
func DefaultLogger() Logger {
	defaultOnce.Do(func() {
		zap.ReplaceGlobals(newZapLogger(nil, jsonEncoder(), DefaultLevel))
	})
	return &log{zap.S()}
}

// ConfigureDefaultLogger replaces the process wide logger.
func ConfigureDefaultLogger(output zapcore.WriteSyncer, level int, isJSON bool) {
	defaultOnce.Do(func() {})
	zap.ReplaceGlobals(newZapLogger(output, encoder(isJSON), level))
}

// New returns a logger writing to output (stdout when nil) at the given level.
func New(output zapcore.WriteSyncer, level int, isJSON bool) Logger {
	return &log{newZapLogger(output, encoder(isJSON), level).Sugar()}
}

func newZapLogger(output zapcore.WriteSyncer, enc zapcore.Encoder, level int) *zap.Logger {
	if output == nil {
		output = os.Stdout
	}
	core := zapcore.NewCore(enc, output, zapcore.Level(level))
	return zap.New(core, zap.WithCaller(true))
}

func encoder(isJSON bool) zapcore.Encoder {
	if isJSON {
		return jsonEncoder()
	}
	cfg := encoderConfig()
	return zapcore.NewConsoleEncoder(cfg)
}

func jsonEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(encoderConfig())
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

type ctxKey struct{}

// ToContext stores l on ctx.
func ToContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContextOrDefault returns the logger stored with ToContext, or the
// default logger when there is none.
func FromContextOrDefault(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return DefaultLogger()
}
