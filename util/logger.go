package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLogLevel accepts a level name ("debug", "WARN") or a zap numeric
// level ("-1", "1"). Empty input means info.
func ParseLogLevel(s string) (zapcore.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		lvl := zapcore.Level(n)
		if lvl < zapcore.DebugLevel || lvl > zapcore.FatalLevel {
			return zapcore.InfoLevel, fmt.Errorf("log level %d out of range", n)
		}
		return lvl, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, err
	}
	return lvl, nil
}

func initLogger(service string, level zapcore.Level) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.CallerKey = "ln"
	zapCfg.EncoderConfig.FunctionKey = ""
	zapCfg.EncoderConfig.LevelKey = "severity"
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	if service != "" {
		zapCfg.InitialFields = map[string]any{"service": service}
	}
	return zapCfg.Build()
}

// NewLogger builds the production logger at LOG_LEVEL and installs it as the
// zap global. The returned func restores the previous globals and flushes.
func NewLogger(service string) (*zap.Logger, func(), error) {
	level, err := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	logger, err := initLogger(service, level)
	if err != nil {
		return nil, nil, fmt.Errorf("fail to init logger: %w", err)
	}

	undo := zap.ReplaceGlobals(logger)

	return logger, func() {
		undo()
		_ = logger.Sync()
	}, nil
}
