package logger

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FACorreiaa/medical-record/internal/pkg/config"
)

// New builds the process logger. Production emits JSON, everything else a
// colored console encoder.
func New(environment string, meta ...zap.Field) (*zap.Logger, error) {
	cfg := configure(environment)

	instance, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, errors.Wrap(err, "build zap logger")
	}

	return instance.With(meta...), nil
}

func configure(environment string) zap.Config {
	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "timestamp"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeCaller = zapcore.ShortCallerEncoder
	encoder.EncodeDuration = zapcore.SecondsDurationEncoder
	encoder.CallerKey = "caller"

	level := zapcore.InfoLevel
	encoding := "json"
	if environment != config.EnvProduction {
		level = zapcore.DebugLevel
		encoding = "console"
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       environment != config.EnvProduction,
		DisableStacktrace: environment == config.EnvProduction,
		Encoding:          encoding,
		EncoderConfig:     encoder,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}
