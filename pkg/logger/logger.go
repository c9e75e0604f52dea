// Package logger is the structured logging surface of the agent: a small
// key/value interface backed by a zap SugaredLogger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
	Named(name string) Logger
	Sync() error
}

type zapLogger struct {
	logger *zap.SugaredLogger
}

type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddCaller  bool   `mapstructure:"add_caller"`
	Stacktrace bool   `mapstructure:"stacktrace"`

	// Service is attached to every entry as "service" when set
	Service string `mapstructure:"service"`
}

// New builds a logger from cfg. An unparseable level means info; a config
// zap refuses to build falls back to zap's example logger.
func New(cfg Config) Logger {
	zl, err := buildConfig(cfg).Build()
	if err != nil {
		zl = zap.NewExample()
	}
	return &zapLogger{logger: zl.Sugar()}
}

func buildConfig(cfg Config) zap.Config {
	zc := zap.NewProductionConfig()

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	zc.Encoding = "json"
	if cfg.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc.OutputPaths, zc.ErrorOutputPaths = outputPaths(cfg.Output)

	zc.DisableCaller = !cfg.AddCaller
	if cfg.AddCaller {
		zc.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}

	// Development turns on stack traces at warn and above.
	zc.Development = cfg.Stacktrace
	zc.DisableStacktrace = !cfg.Stacktrace

	if cfg.Service != "" {
		zc.InitialFields = map[string]interface{}{"service": cfg.Service}
	}
	return zc
}

func outputPaths(output string) ([]string, []string) {
	switch output {
	case "", "stdout":
		return []string{"stdout"}, []string{"stderr"}
	case "stderr":
		return []string{"stderr"}, []string{"stderr"}
	default:
		return []string{output}, []string{output}
	}
}

func NewDefault() Logger {
	return New(Config{
		Level:     "info",
		Format:    "json",
		Output:    "stdout",
		AddCaller: true,
	})
}

func NewNop() Logger {
	return &zapLogger{logger: zap.NewNop().Sugar()}
}

// NewFromZap wraps an existing zap logger, e.g. one built on an observer core in tests.
func NewFromZap(l *zap.Logger) Logger {
	return &zapLogger{logger: l.Sugar()}
}

func (l *zapLogger) Debug(msg string, fields ...interface{}) {
	l.logger.Debugw(msg, fields...)
}

func (l *zapLogger) Info(msg string, fields ...interface{}) {
	l.logger.Infow(msg, fields...)
}

func (l *zapLogger) Warn(msg string, fields ...interface{}) {
	l.logger.Warnw(msg, fields...)
}

func (l *zapLogger) Error(msg string, fields ...interface{}) {
	l.logger.Errorw(msg, fields...)
}

// Fatal logs and exits the process.
func (l *zapLogger) Fatal(msg string, fields ...interface{}) {
	l.logger.Fatalw(msg, fields...)
}

func (l *zapLogger) With(fields ...interface{}) Logger {
	return &zapLogger{logger: l.logger.With(fields...)}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{logger: l.logger.Named(name)}
}

func (l *zapLogger) Sync() error {
	return l.logger.Sync()
}
