// Package daemon loads configuration and wires the services into a running
// treasury process.
//
// Configuration is layered, later layers winning:
//  1. DefaultConfig()
//  2. $TREASURY_HOME/config.toml
//  3. .env files ($TREASURY_HOME/.env, then ./.env) fed into the environment
//  4. TREASURY_* environment variables
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"

	"github.com/treasury-pool/treasury/internal/app/fees"
	"github.com/treasury-pool/treasury/internal/app/pool"
	"github.com/treasury-pool/treasury/internal/app/referral"
	"github.com/treasury-pool/treasury/internal/app/sweeper"
	"github.com/treasury-pool/treasury/internal/domain"
	"github.com/treasury-pool/treasury/internal/infra/observability"
)

// ConfigFile is the config file name inside the home directory.
const ConfigFile = "config.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TREASURY_"

// Config is the full process configuration.
type Config struct {
	Owner    string                     `toml:"owner" env:"OWNER"`
	API      APIConfig                  `toml:"api" envPrefix:"API_"`
	Pool     PoolConfig                 `toml:"pool" envPrefix:"POOL_"`
	Fees     FeesConfig                 `toml:"fees" envPrefix:"FEES_"`
	Referral ReferralConfig             `toml:"referral" envPrefix:"REFERRAL_"`
	Sweeper  SweeperConfig              `toml:"sweeper" envPrefix:"SWEEPER_"`
	Vault    VaultConfig                `toml:"vault" envPrefix:"VAULT_"`
	Log      observability.LogConfig    `toml:"log" envPrefix:"LOG_"`
	Trace    observability.TracerConfig `toml:"trace" envPrefix:"TRACE_"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host           string `toml:"host" env:"HOST"`
	Port           int    `toml:"port" env:"PORT"`
	Metrics        bool   `toml:"metrics" env:"METRICS"`
	RequestTimeout string `toml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// PoolConfig controls the contribution ledger.
type PoolConfig struct {
	Token            string `toml:"token" env:"TOKEN"`
	CancelPenaltyBps int64  `toml:"cancel_penalty_bps" env:"CANCEL_PENALTY_BPS"`
	PageSize         int    `toml:"page_size" env:"PAGE_SIZE"`
}

// FeesConfig controls the fee router.
type FeesConfig struct {
	DefaultFeeBps int64 `toml:"default_fee_bps" env:"DEFAULT_FEE_BPS"`
}

// ReferralConfig controls the referral tree.
type ReferralConfig struct {
	MaxDepth int `toml:"max_depth" env:"MAX_DEPTH"`
}

// SweeperConfig controls the periodic sweep.
type SweeperConfig struct {
	Enabled  bool   `toml:"enabled" env:"ENABLED"`
	Interval string `toml:"interval" env:"INTERVAL"`
}

// VaultConfig controls the in-process value vault.
type VaultConfig struct {
	PoolAccount string `toml:"pool_account" env:"POOL_ACCOUNT"`
	Faucet      bool   `toml:"faucet" env:"FAUCET"` // owner may mint test balances
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Owner: "owner",
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8645,
			Metrics:        true,
			RequestTimeout: "30s",
		},
		Pool: PoolConfig{
			Token:            pool.DefaultConfig().TokenID,
			CancelPenaltyBps: pool.DefaultConfig().CancelPenaltyBps,
			PageSize:         pool.DefaultConfig().PageSize,
		},
		Fees: FeesConfig{
			DefaultFeeBps: fees.DefaultConfig().DefaultFeeBps,
		},
		Referral: ReferralConfig{
			MaxDepth: domain.MaxReferralDepth,
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Interval: "1m",
		},
		Vault: VaultConfig{
			PoolAccount: "treasury-pool",
			Faucet:      false,
		},
		Log:   observability.DefaultLogConfig(),
		Trace: observability.DefaultTracerConfig(),
	}
}

// Home returns the data directory: $TREASURY_HOME or ~/.treasury.
func Home() string {
	if h := os.Getenv(EnvPrefix + "HOME"); h != "" {
		return h
	}
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".treasury")
	}
	return ".treasury"
}

// LoadConfig builds the layered configuration for home.
func LoadConfig(home string) (Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(home, ConfigFile)
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	for _, f := range []string{filepath.Join(home, ".env"), ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes cfg as TOML to path, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Owner) == "" {
		problems = append(problems, "owner must be set")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		problems = append(problems, fmt.Sprintf("api.port %d out of range", c.API.Port))
	}
	if _, err := c.RequestTimeout(); err != nil {
		problems = append(problems, "api.request_timeout: "+err.Error())
	}
	if c.Pool.CancelPenaltyBps < 0 || c.Pool.CancelPenaltyBps > domain.BasisPoints {
		problems = append(problems, fmt.Sprintf("pool.cancel_penalty_bps %d not in [0, %d]", c.Pool.CancelPenaltyBps, domain.BasisPoints))
	}
	if c.Fees.DefaultFeeBps < 0 || c.Fees.DefaultFeeBps > domain.BasisPoints {
		problems = append(problems, fmt.Sprintf("fees.default_fee_bps %d not in [0, %d]", c.Fees.DefaultFeeBps, domain.BasisPoints))
	}
	if c.Referral.MaxDepth < 1 {
		problems = append(problems, "referral.max_depth must be positive")
	}
	if _, err := c.SweepInterval(); err != nil {
		problems = append(problems, "sweeper.interval: "+err.Error())
	}
	if c.Vault.PoolAccount == "" || c.Vault.PoolAccount == c.Owner {
		problems = append(problems, "vault.pool_account must be set and differ from owner")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// RequestTimeout parses api.request_timeout.
func (c Config) RequestTimeout() (time.Duration, error) {
	return parseDuration(c.API.RequestTimeout, 30*time.Second)
}

// SweepInterval parses sweeper.interval.
func (c Config) SweepInterval() (time.Duration, error) {
	return parseDuration(c.Sweeper.Interval, time.Minute)
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%q must be positive", s)
	}
	return d, nil
}

// ─── Service Configs ────────────────────────────────────────────────────────

// PoolConfig converts to the ledger's config.
func (c Config) PoolConfig() pool.Config {
	return pool.Config{
		TokenID:          c.Pool.Token,
		CancelPenaltyBps: c.Pool.CancelPenaltyBps,
		PageSize:         c.Pool.PageSize,
	}
}

// ReferralConfig converts to the tree's config.
func (c Config) ReferralConfig() referral.Config {
	return referral.Config{Owner: c.Owner, MaxDepth: c.Referral.MaxDepth}
}

// FeesConfig converts to the router's config.
func (c Config) FeesConfig() fees.Config {
	return fees.Config{
		Owner:         c.Owner,
		DefaultFeeBps: c.Fees.DefaultFeeBps,
		Levels:        c.Referral.MaxDepth,
	}
}

// SweeperConfig converts to the sweeper's config.
func (c Config) SweeperConfig() sweeper.Config {
	d, _ := c.SweepInterval()
	return sweeper.Config{Enabled: c.Sweeper.Enabled, Interval: d}
}
