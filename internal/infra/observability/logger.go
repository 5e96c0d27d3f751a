package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/treasury-pool/treasury/internal/domain"
)

// LogConfig selects the logger flavour.
type LogConfig struct {
	Level      string `toml:"level" env:"LEVEL"`           // debug, info, warn, error
	Production bool   `toml:"production" env:"PRODUCTION"` // JSON encoder when true
}

// DefaultLogConfig returns development-friendly defaults.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info"}
}

// NewLogger builds a zap logger from cfg.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Production {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	return zc.Build()
}

// Units is a zap field rendering a base-unit amount as a decimal string.
func Units(key string, amount int64) zap.Field {
	return zap.String(key, domain.FormatUnits(amount))
}
