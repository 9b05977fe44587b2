// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, encoder and destination.
//
// With File empty, logs go to stderr. Otherwise they are appended to File and
// rotated once it grows past MaxSizeMB.
type Config struct {
	Level       string `json:"level,omitempty"`
	Format      string `json:"format,omitempty"`
	Development bool   `json:"development,omitempty"`

	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// ParseLevel accepts debug, info, warn (or warning) and error. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel, nil
	case "", "info":
		return zap.InfoLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Format)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("logging: rotation limits must not be negative")
	}
	return nil
}

// New builds a logger from c. The caller should defer logger.Sync().
func New(c Config) (*zap.Logger, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := ParseLevel(c.Level)
	level := zap.NewAtomicLevelAt(lvl)

	encCfg := zap.NewProductionEncoderConfig()
	if c.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
	if c.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewCore(encoder, c.writer(), level), opts...), nil
}

func (c Config) writer() zapcore.WriteSyncer {
	if strings.TrimSpace(c.File) == "" {
		return zapcore.Lock(zapcore.AddSync(os.Stderr))
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    atLeast(c.MaxSizeMB, 10),
		MaxBackups: atLeast(c.MaxBackups, 1),
		MaxAge:     atLeast(c.MaxAgeDays, 7),
		Compress:   c.Compress,
	})
}

func atLeast(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}
