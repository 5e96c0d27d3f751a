package fees

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/treasury-pool/treasury/internal/domain"
	"github.com/treasury-pool/treasury/internal/infra/sqlite"
)

func newTestRouter(t *testing.T) (*Router, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(DefaultConfig(), db, zap.NewNop()), db
}

// upline builds levels 1..n with the given direct counts.
func upline(counts ...int) []domain.Ancestor {
	out := make([]domain.Ancestor, len(counts))
	for i, c := range counts {
		out[i] = domain.Ancestor{
			Level:        i + 1,
			ReferralNode: domain.ReferralNode{Account: fmt.Sprintf("a%d", i+1), DirectCount: c},
		}
	}
	return out
}

func sumShares(s domain.FeeSplit) int64 {
	var total int64
	for _, sh := range s.Shares {
		total += sh.Amount
	}
	return total
}

func TestAddToken(t *testing.T) {
	r, _ := newTestRouter(t)
	ctx := context.Background()

	tok, err := r.AddToken(ctx, "owner", "usdc", "USDC")
	if err != nil {
		t.Fatalf("AddToken() error: %v", err)
	}
	if tok.FeeBps != 500 {
		t.Errorf("FeeBps = %d, want 500", tok.FeeBps)
	}

	tests := []struct {
		name    string
		caller  string
		token   string
		wantErr error
	}{
		{"duplicate", "owner", "usdc", domain.ErrDuplicateToken},
		{"not owner", "alice", "dai", domain.ErrUnauthorized},
		{"empty id", "owner", " ", domain.ErrInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.AddToken(ctx, tt.caller, tt.token, "X"); !errors.Is(err, tt.wantErr) {
				t.Errorf("AddToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := r.Token("dai"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("Token(dai) error = %v, want ErrTokenNotFound", err)
	}
}

func TestLoad_RestoresCache(t *testing.T) {
	r, db := newTestRouter(t)
	ctx := context.Background()
	r.AddToken(ctx, "owner", "usdc", "USDC")
	r.AddToken(ctx, "owner", "dai", "DAI")

	fresh := New(DefaultConfig(), db, zap.NewNop())
	if err := fresh.Load(ctx); err != nil {
		t.Fatal(err)
	}
	got := fresh.Tokens()
	if len(got) != 2 || got[0].TokenID != "dai" || got[1].TokenID != "usdc" {
		t.Errorf("Tokens() = %+v, want [dai usdc]", got)
	}
	if _, err := fresh.AddToken(ctx, "owner", "usdc", "USDC"); !errors.Is(err, domain.ErrDuplicateToken) {
		t.Errorf("re-add after Load: error = %v, want ErrDuplicateToken", err)
	}
}

func TestSplit_UnregisteredTokenIsFeeFree(t *testing.T) {
	r, _ := newTestRouter(t)
	s := r.Split("usdc", 1_000_000, upline(1), "mgr")
	if s.Fee != 0 || s.Net != 1_000_000 || len(s.Shares) != 0 {
		t.Errorf("Split = %+v, want fee-free", s)
	}
}

func TestSplit_Distribution(t *testing.T) {
	r, _ := newTestRouter(t)
	r.AddToken(context.Background(), "owner", "usdc", "USDC")

	const gross = 10_000_000 // fee 500_000, 25_000 per level

	tests := []struct {
		name        string
		upline      []domain.Ancestor
		wantPaid    int // number of ancestor shares
		wantManager int64
	}{
		{"no upline", nil, 0, 500_000},
		{"sponsor with one direct", upline(1), 1, 475_000},
		{"level 2 needs two directs", upline(5, 1), 1, 475_000},
		{"fully qualified chain", upline(20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20), 20, 0},
		{"count equals level", upline(1, 2, 3), 3, 425_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := r.Split("usdc", gross, tt.upline, "mgr")
			if s.Fee != 500_000 || s.Net != gross-500_000 {
				t.Fatalf("Fee = %d Net = %d, want 500000 and %d", s.Fee, s.Net, gross-500_000)
			}
			if sumShares(s) != s.Fee {
				t.Errorf("shares sum = %d, want %d", sumShares(s), s.Fee)
			}
			var paid int
			var mgr int64
			for _, sh := range s.Shares {
				if sh.Level == 0 {
					if sh.Account != "mgr" {
						t.Errorf("level-0 share to %q, want mgr", sh.Account)
					}
					mgr += sh.Amount
					continue
				}
				paid++
			}
			if paid != tt.wantPaid {
				t.Errorf("ancestor shares = %d, want %d", paid, tt.wantPaid)
			}
			if mgr != tt.wantManager {
				t.Errorf("manager share = %d, want %d", mgr, tt.wantManager)
			}
		})
	}
}

func TestSplit_RemainderOnLastLevel(t *testing.T) {
	r, _ := newTestRouter(t)
	r.AddToken(context.Background(), "owner", "usdc", "USDC")

	// fee = 10_399 * 500 / 10000 = 519; 25 each, last gets 44.
	s := r.Split("usdc", 10_399, upline(20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20), "mgr")
	if s.Fee != 519 {
		t.Fatalf("Fee = %d, want 519", s.Fee)
	}
	last := s.Shares[len(s.Shares)-1]
	if last.Level != 20 || last.Amount != 44 {
		t.Errorf("last share = %+v, want level 20 amount 44", last)
	}
	if sumShares(s) != 519 {
		t.Errorf("shares sum = %d, want 519", sumShares(s))
	}
}
