// Package logger provides the global structured logger for waops.
//
// All packages log through the shared *zap.SugaredLogger. The logger is
// a safe no-op until Initialize is called, so library code may log
// unconditionally without nil checks.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global logger instance
	Logger *zap.SugaredLogger
	// JSONOutput tracks whether JSON output is enabled
	JSONOutput bool
)

func init() {
	// Initialize with a safe no-op logger at package load time
	// This prevents nil pointer panics if logger is used before Initialize() is called
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger based on the JSON output preference.
// JSON output is structured production logging; otherwise a human-readable
// console encoder is used.
func Initialize(jsonOutput bool) error {
	return InitializeWithLevel(jsonOutput, zapcore.InfoLevel)
}

// InitializeWithLevel sets up the global logger at an explicit level.
func InitializeWithLevel(jsonOutput bool, level zapcore.Level) error {
	JSONOutput = jsonOutput

	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		// JSON structured output for machine consumption
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		zapLogger, err = config.Build()
		if err != nil {
			return err
		}
	} else {
		// Human-readable console output
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapLogger = zap.New(
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(encCfg),
				zapcore.AddSync(os.Stdout),
				level,
			),
		)
	}

	Logger = zapLogger.Sugar()
	return nil
}

// VerbosityToLevel maps CLI verbosity flag counts (-v, -vv) to zap levels.
//
//	0 (none) -> InfoLevel
//	1 (-v)   -> DebugLevel
//	2+ (-vv) -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	if verbosity >= 1 {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// Sync flushes any buffered log entries. Safe to call on shutdown.
func Sync() {
	_ = Logger.Sync()
}
