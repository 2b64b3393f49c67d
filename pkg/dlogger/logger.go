// Package dlogger builds the zap loggers of pacbox, from a log level string
package dlogger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oneconcern/pacbox/pkg/errors"
)

const (
	// LogLevelInfo sets the log level to info
	LogLevelInfo = "info"

	// LogLevelDebug sets the log level to debug
	LogLevelDebug = "debug"

	// LogLevelNone disables logging
	LogLevelNone = "none"

	serviceName = "pacboxd"
)

// ErrInvalidLevel is returned for a log level which is neither none nor a zap level
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a zap level. An empty level stands for info.
func ParseLevel(logLevel string) (zapcore.Level, error) {
	if logLevel == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return lvl, ErrInvalidLevel.Describe("%q", logLevel).Wrap(err)
	}
	return lvl, nil
}

// GetLogger returns a JSON production logger with the specified level, and ISO8601 timestamps
func GetLogger(logLevel string) (*zap.Logger, error) {
	if logLevel == LogLevelNone {
		return zap.NewNop(), nil
	}
	lvl, err := ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	zapConfig.EncoderConfig.TimeKey = "time"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zapConfig.Build(zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// MustGetLogger returns a zap logger with the specified level or panics
func MustGetLogger(logLevel string) *zap.Logger {
	l, err := GetLogger(logLevel)
	if err != nil {
		panic(err)
	}
	return l
}
