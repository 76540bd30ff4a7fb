package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ogurasousui/payroll-orchestrator/internal/platform/config"
	"github.com/rs/zerolog"
)

// New は設定に従って zerolog.Logger を構築します。出力先は標準エラーです。
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter は出力先を指定して zerolog.Logger を構築します。
func NewWithWriter(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("logging: parse level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	out := w
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "payroll-orchestrator").
		Logger(), nil
}
