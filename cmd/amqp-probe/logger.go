package main

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type logConfig struct {
	Level  string
	Format string
	// File adds a rotated log file next to stderr when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

func newLogger(c logConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(c.Level))); err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)}
	if c.File != "" {
		ws := zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    max(c.MaxSizeMB, 10),
			MaxBackups: max(c.MaxBackups, 1),
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
