package daemon

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/treasury-pool/treasury/internal/domain"
)

func TestNew_WiresServices(t *testing.T) {
	ctx := context.Background()
	d, err := New(ctx, t.TempDir(), DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer d.Close()

	ok, err := d.Tree.IsRegistered(ctx, "owner")
	if err != nil || !ok {
		t.Errorf("owner registered = %v (%v), want true", ok, err)
	}
	if d.Server.Handler() == nil {
		t.Error("Handler() returned nil")
	}
}

func TestNew_ReconcilesVault(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()
	cfg := DefaultConfig()

	d, err := New(ctx, home, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	d.Vault.Mint("owner", domain.Tokens(500))
	if _, err := d.Ledger.Contribute(ctx, "owner", domain.Tokens(120), 3); err != nil {
		t.Fatalf("Contribute() error: %v", err)
	}
	d.Close()

	// A restart starts with an empty vault; the pool account must be
	// funded from what the ledger still owes.
	d, err = New(ctx, home, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer d.Close()

	bal, _ := d.Vault.BalanceOf(ctx, cfg.Vault.PoolAccount)
	if bal != domain.Tokens(120) {
		t.Errorf("pool balance = %d, want %d", bal, domain.Tokens(120))
	}
}
