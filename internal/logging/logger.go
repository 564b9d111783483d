// Package logging builds the diagnostic logger. Output goes to
// .workbench/logs/workbench.log so the terminal UI keeps the screen and
// failures can still be inspected after the session closes.
package logging

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kingrea/claims-workbench/internal/config"
)

// New creates (or appends to) the log file described by cfg and returns a
// logger writing to it.
func New(cfg *config.Config) (*zap.Logger, error) {
	if cfg == nil {
		return nil, eris.New("logging: config is required")
	}
	return NewAt(cfg.LogPath(), cfg.Log)
}

// NewAt builds a file logger at path.
func NewAt(path string, lc config.LogConfig) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "logging: ensure log dir")
	}

	var zapCfg zap.Config
	if lc.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	level := zapcore.InfoLevel
	if lc.Level != "" {
		parsed, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, eris.Wrap(err, "logging: parse log level")
		}
		level = parsed
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	zapCfg.OutputPaths = []string{path}
	zapCfg.ErrorOutputPaths = []string{path}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "logging: build logger")
	}
	return logger, nil
}
