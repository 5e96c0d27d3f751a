package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8645 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8645)
	}
	if cfg.Fees.DefaultFeeBps != 500 {
		t.Errorf("Fees.DefaultFeeBps = %d, want %d", cfg.Fees.DefaultFeeBps, 500)
	}
	if cfg.Pool.CancelPenaltyBps != 0 {
		t.Errorf("Pool.CancelPenaltyBps = %d, want 0", cfg.Pool.CancelPenaltyBps)
	}
	if cfg.Pool.PageSize != 50 {
		t.Errorf("Pool.PageSize = %d, want %d", cfg.Pool.PageSize, 50)
	}
	if cfg.Referral.MaxDepth != 20 {
		t.Errorf("Referral.MaxDepth = %d, want %d", cfg.Referral.MaxDepth, 20)
	}
	if cfg.Vault.Faucet {
		t.Error("Vault.Faucet should be false by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:8645" {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), "127.0.0.1:8645")
	}
}

func TestLoadConfig_TOML(t *testing.T) {
	home := t.TempDir()
	data := `
owner = "deployer"

[api]
port = 9000
request_timeout = "5s"

[pool]
cancel_penalty_bps = 5000

[sweeper]
interval = "30s"
`
	if err := os.WriteFile(filepath.Join(home, ConfigFile), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(home)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Owner != "deployer" {
		t.Errorf("Owner = %q, want deployer", cfg.Owner)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want default kept", cfg.API.Host)
	}
	if d, _ := cfg.RequestTimeout(); d != 5*time.Second {
		t.Errorf("RequestTimeout() = %v, want 5s", d)
	}
	if got := cfg.PoolConfig().CancelPenaltyBps; got != 5000 {
		t.Errorf("PoolConfig().CancelPenaltyBps = %d, want 5000", got)
	}
	if got := cfg.SweeperConfig().Interval; got != 30*time.Second {
		t.Errorf("SweeperConfig().Interval = %v, want 30s", got)
	}
	if got := cfg.ReferralConfig().Owner; got != "deployer" {
		t.Errorf("ReferralConfig().Owner = %q, want deployer", got)
	}
	if got := cfg.FeesConfig().Owner; got != "deployer" {
		t.Errorf("FeesConfig().Owner = %q, want deployer", got)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, ConfigFile), []byte("[api]\nport = 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TREASURY_API_PORT", "9100")
	t.Setenv("TREASURY_FEES_DEFAULT_FEE_BPS", "250")
	t.Setenv("TREASURY_VAULT_FAUCET", "true")

	cfg, err := LoadConfig(home)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.Fees.DefaultFeeBps != 250 {
		t.Errorf("Fees.DefaultFeeBps = %d, want 250", cfg.Fees.DefaultFeeBps)
	}
	if !cfg.Vault.Faucet {
		t.Error("Vault.Faucet should be set from the environment")
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	home := t.TempDir()
	const key = "TREASURY_REFERRAL_MAX_DEPTH"
	t.Cleanup(func() { os.Unsetenv(key) })

	if err := os.WriteFile(filepath.Join(home, ".env"), []byte(key+"=12\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(home)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Referral.MaxDepth != 12 {
		t.Errorf("Referral.MaxDepth = %d, want 12", cfg.Referral.MaxDepth)
	}
}

func TestLoadConfig_BadTOML(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, ConfigFile), []byte("[api\nport = "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(home); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty owner", func(c *Config) { c.Owner = " " }, "owner must be set"},
		{"port zero", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"bad timeout", func(c *Config) { c.API.RequestTimeout = "soon" }, "api.request_timeout"},
		{"negative timeout", func(c *Config) { c.API.RequestTimeout = "-1s" }, "api.request_timeout"},
		{"penalty above 100%", func(c *Config) { c.Pool.CancelPenaltyBps = 10_001 }, "cancel_penalty_bps"},
		{"negative fee", func(c *Config) { c.Fees.DefaultFeeBps = -1 }, "default_fee_bps"},
		{"zero depth", func(c *Config) { c.Referral.MaxDepth = 0 }, "max_depth"},
		{"bad interval", func(c *Config) { c.Sweeper.Interval = "1y" }, "sweeper.interval"},
		{"pool is owner", func(c *Config) { c.Vault.PoolAccount = c.Owner }, "pool_account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig()
	cfg.Owner = "deployer"
	cfg.Pool.Token = "dai"
	cfg.Trace.MaxSpans = 42

	if err := SaveConfig(filepath.Join(home, ConfigFile), cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	got, err := LoadConfig(home)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.Owner != "deployer" || got.Pool.Token != "dai" || got.Trace.MaxSpans != 42 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestHome(t *testing.T) {
	t.Setenv("TREASURY_HOME", "/srv/treasury")
	if got := Home(); got != "/srv/treasury" {
		t.Errorf("Home() = %q, want /srv/treasury", got)
	}
}
