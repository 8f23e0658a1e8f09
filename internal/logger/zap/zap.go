// Package zap wires the logger.Logger interface to go.uber.org/zap, with
// optional file rotation via lumberjack.
package zap

import (
	"os"

	"github.com/kunwarpradip/distributedchord-dht/internal/config"
	"github.com/kunwarpradip/distributedchord-dht/internal/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a *zap.Logger from logging config: console output by
// default, or a rotating file sink when cfg.File is set.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	var sink zapcore.WriteSyncer
	if cfg.File != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	} else {
		sink = zapcore.Lock(zapcore.AddSync(os.Stdout))
	}

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller()), nil
}

// ZapAdapter satisfies logger.Logger on top of a *zap.Logger.
type ZapAdapter struct {
	l *zap.Logger
}

// NewZapAdapter wraps an existing *zap.Logger.
func NewZapAdapter(l *zap.Logger) *ZapAdapter {
	return &ZapAdapter{l: l}
}

func toZapFields(fields []logger.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func (a *ZapAdapter) Debug(msg string, fields ...logger.Field) {
	a.l.Debug(msg, toZapFields(fields)...)
}

func (a *ZapAdapter) Info(msg string, fields ...logger.Field) {
	a.l.Info(msg, toZapFields(fields)...)
}

func (a *ZapAdapter) Warn(msg string, fields ...logger.Field) {
	a.l.Warn(msg, toZapFields(fields)...)
}

func (a *ZapAdapter) Error(msg string, fields ...logger.Field) {
	a.l.Error(msg, toZapFields(fields)...)
}

func (a *ZapAdapter) Named(name string) logger.Logger {
	return &ZapAdapter{l: a.l.Named(name)}
}

func (a *ZapAdapter) With(fields ...logger.Field) logger.Logger {
	return &ZapAdapter{l: a.l.With(toZapFields(fields)...)}
}

// Sync flushes any buffered log entries.
func (a *ZapAdapter) Sync() error {
	return a.l.Sync()
}
