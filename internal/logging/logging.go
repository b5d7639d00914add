// Package logging builds the process-wide zap logger. Daemon runs log to a
// size/age-rotated file under the data directory plus stderr; one-shot CLI
// commands log to stderr only.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level string // debug, info, warn, error
	File  string // rotated log file path; empty disables the file sink
}

// New builds a sugared logger per opts. The file sink rotates daily (MaxAge 1
// compacts old days) and caps size so a chatty daemon cannot fill the disk.
func New(opts Options) (*zap.SugaredLogger, error) {
	level := parseLevel(opts.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, err
		}
		sink := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxAge:     14, // days
			MaxBackups: 14,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(sink), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger.Sugar(), nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func parseLevel(s string) zapcore.Level {
	switch s {
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
