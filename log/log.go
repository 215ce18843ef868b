//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package log implements the leveled logger of the compiler and the
// job dispatcher.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger logs messages at different levels.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugw(msg string, keyvals ...interface{})
	Infow(msg string, keyvals ...interface{})
	Warnw(msg string, keyvals ...interface{})
	Errorw(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
	Named(name string) Logger
	Sync() error
}

type logger struct {
	*zap.SugaredLogger
}

func (l *logger) With(keyvals ...interface{}) Logger {
	return &logger{l.SugaredLogger.With(keyvals...)}
}

func (l *logger) Named(name string) Logger {
	return &logger{l.SugaredLogger.Named(name)}
}

// Level specifies a log level.
type Level int8

// Log levels.
const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	WarnLevel  = Level(zapcore.WarnLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
)

// Levels define the level names.
var Levels = map[string]Level{
	"debug": DebugLevel,
	"info":  InfoLevel,
	"warn":  WarnLevel,
	"error": ErrorLevel,
}

func (l Level) String() string {
	for k, v := range Levels {
		if v == l {
			return k
		}
	}
	return zapcore.Level(l).String()
}

// ParseLevel parses the log level name.
func ParseLevel(name string) (Level, error) {
	l, ok := Levels[strings.ToLower(name)]
	if !ok {
		return InfoLevel, errors.Newf("unknown log level: %s", name)
	}
	return l, nil
}

// New creates a logger that writes messages of the level and above
// to out. If out is nil, messages are written to os.Stderr.
func New(out io.Writer, level Level, json bool) Logger {
	if out == nil {
		out = os.Stderr
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(out),
		zapcore.Level(level))

	return &logger{zap.New(core).Sugar()}
}

// Nop returns a logger that discards all messages.
func Nop() Logger {
	return &logger{zap.NewNop().Sugar()}
}

// Default returns a console logger writing info level messages to
// os.Stderr.
func Default() Logger {
	return New(os.Stderr, InfoLevel, false)
}
