package spanreq

import (
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig describes the logger built by NewLogger.
type LogConfig struct {
	Debug bool
	JSON  bool

	// File, when set, receives the log through size-based rotation
	// instead of stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger builds a zap logger. The returned function flushes buffered
// entries and closes the log file, if any.
func NewLogger(cfg LogConfig) (*zap.Logger, func() error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	var (
		ws      zapcore.WriteSyncer
		closeFn = func() error { return nil }
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		ws = zapcore.AddSync(lj)
		closeFn = lj.Close
	} else {
		ws = zapcore.Lock(os.Stderr)
	}

	logger := zap.New(zapcore.NewCore(enc, ws, level), zap.AddCaller())
	sync := func() error {
		// Sync on a terminal stderr reports EINVAL; only the file matters.
		if cfg.File == "" {
			return nil
		}
		return multierr.Append(logger.Sync(), closeFn())
	}
	return logger.Named("spanreq"), sync
}
