// Package referral maintains the sponsor forest and the collaborator wiring
// (treasury pool and manager addresses) that the other services read.
//
// Registration walks up to MaxDepth ancestors of the new account and bumps
// each one's direct-member counter. Walks run under one lock and inside one
// transaction, so two concurrent registrations never lose an increment.
package referral

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/treasury-pool/treasury/internal/domain"
	"github.com/treasury-pool/treasury/internal/infra/observability"
	"github.com/treasury-pool/treasury/internal/infra/sqlite"
)

// Setting keys for collaborator wiring.
const (
	SettingTreasuryPool = "treasury_pool"
	SettingManager      = "manager"
)

// Config controls the tree.
type Config struct {
	Owner    string // privileged configurer and tree root
	MaxDepth int    // ancestors touched per registration (default: 20)
}

// DefaultConfig returns the standard unilevel depth.
func DefaultConfig() Config {
	return Config{
		Owner:    "owner",
		MaxDepth: domain.MaxReferralDepth,
	}
}

// Tree is the referral tree service.
type Tree struct {
	mu     sync.Mutex // serializes registrations and counter updates
	config Config
	db     *sqlite.DB
	log    *zap.Logger
	now    func() time.Time
}

// New creates a referral tree over db.
func New(cfg Config, db *sqlite.DB, log *zap.Logger) *Tree {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = domain.MaxReferralDepth
	}
	return &Tree{
		config: cfg,
		db:     db,
		log:    log.Named("referral"),
		now:    time.Now,
	}
}

// Owner returns the privileged configurer.
func (t *Tree) Owner() string { return t.config.Owner }

// MaxDepth returns the number of ancestor levels the tree tracks.
func (t *Tree) MaxDepth() int { return t.config.MaxDepth }

// ─── Registration ───────────────────────────────────────────────────────────

// Bootstrap registers the owner as a root node. Calling it again is a no-op.
func (t *Tree) Bootstrap(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.db.GetReferralNode(ctx, t.config.Owner)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if n != nil {
		return nil
	}
	root := domain.ReferralNode{Account: t.config.Owner, RegisteredAt: t.now()}
	if err := t.db.InsertReferralNode(ctx, root); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	observability.Registrations.WithLabelValues("root").Inc()
	t.log.Info("root registered", zap.String("account", root.Account))
	return nil
}

// CreateUser registers account under sponsor and increments the direct
// counter of up to MaxDepth ancestors. An empty, unknown, or self sponsor
// makes account a root.
func (t *Tree) CreateUser(ctx context.Context, account, sponsor string) (domain.ReferralNode, error) {
	account = strings.TrimSpace(account)
	sponsor = strings.TrimSpace(sponsor)
	if account == "" {
		return domain.ReferralNode{}, domain.ErrInvalidAddress
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	node := domain.ReferralNode{Account: account, RegisteredAt: t.now()}
	var touched int

	err := t.db.WithTx(ctx, func(tx *sqlite.Tx) error {
		existing, err := tx.GetReferralNode(ctx, account)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyRegistered
		}

		if sponsor != "" && sponsor != account {
			sp, err := tx.GetReferralNode(ctx, sponsor)
			if err != nil {
				return err
			}
			if sp != nil {
				node.Sponsor = sponsor
			}
		}

		if err := tx.InsertReferralNode(ctx, node); err != nil {
			return err
		}
		if node.IsRoot() {
			return nil
		}
		touched, err = tx.IncrementUpline(ctx, account, t.config.MaxDepth)
		return err
	})
	if err != nil {
		t.log.Debug("registration rejected", zap.String("account", account), zap.Error(err))
		return domain.ReferralNode{}, err
	}

	kind := "sponsored"
	if node.IsRoot() {
		kind = "root"
	}
	observability.Registrations.WithLabelValues(kind).Inc()
	t.log.Info("account registered",
		zap.String("account", account),
		zap.String("sponsor", node.Sponsor),
		zap.Int("ancestors_updated", touched),
	)
	return node, nil
}

// IncreaseDirectMember bumps account's direct counter by one without a tree
// walk. Only the configured treasury pool may call it.
func (t *Tree) IncreaseDirectMember(ctx context.Context, caller, account string) error {
	pool, err := t.TreasuryPool(ctx)
	if err != nil {
		return err
	}
	if pool == "" || caller != pool {
		t.log.Debug("increaseDirectMember refused", zap.String("caller", caller))
		return domain.ErrUnauthorized
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.db.IncrementDirectCount(ctx, account, 1); err != nil {
		return err
	}
	t.log.Info("direct member added", zap.String("account", account), zap.String("caller", caller))
	return nil
}

// ─── Wiring ─────────────────────────────────────────────────────────────────

// RequireOwner returns ErrUnauthorized unless caller is the owner.
func (t *Tree) RequireOwner(caller string) error {
	if caller == "" || caller != t.config.Owner {
		return domain.ErrUnauthorized
	}
	return nil
}

// SetTreasuryPool stores the address allowed to call IncreaseDirectMember.
func (t *Tree) SetTreasuryPool(ctx context.Context, caller, addr string) error {
	return t.setWiring(ctx, caller, SettingTreasuryPool, addr)
}

// SetManager stores the account that receives unpaid fee shares and
// cancellation penalties.
func (t *Tree) SetManager(ctx context.Context, caller, addr string) error {
	return t.setWiring(ctx, caller, SettingManager, addr)
}

func (t *Tree) setWiring(ctx context.Context, caller, key, addr string) error {
	if err := t.RequireOwner(caller); err != nil {
		return err
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return domain.ErrInvalidAddress
	}
	if err := t.db.SetSetting(ctx, key, addr, t.now()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	t.log.Info("wiring updated", zap.String("key", key), zap.String("address", addr))
	return nil
}

// TreasuryPool returns the configured pool address, or "" when unset.
func (t *Tree) TreasuryPool(ctx context.Context) (string, error) {
	return t.db.GetSetting(ctx, SettingTreasuryPool)
}

// Manager returns the configured manager, falling back to the owner.
func (t *Tree) Manager(ctx context.Context) (string, error) {
	return t.ManagerFrom(ctx, t.db)
}

// ─── Queries ────────────────────────────────────────────────────────────────

// IsRegistered reports whether account has a node.
func (t *Tree) IsRegistered(ctx context.Context, account string) (bool, error) {
	n, err := t.db.GetReferralNode(ctx, account)
	return n != nil, err
}

// Node returns account's node or ErrNotRegistered.
func (t *Tree) Node(ctx context.Context, account string) (domain.ReferralNode, error) {
	n, err := t.db.GetReferralNode(ctx, account)
	if err != nil {
		return domain.ReferralNode{}, err
	}
	if n == nil {
		return domain.ReferralNode{}, domain.ErrNotRegistered
	}
	return *n, nil
}

// Upline lists up to MaxDepth ancestors, nearest first.
func (t *Tree) Upline(ctx context.Context, account string) ([]domain.Ancestor, error) {
	if _, err := t.Node(ctx, account); err != nil {
		return nil, err
	}
	return t.db.Upline(ctx, account, t.config.MaxDepth)
}

// DirectReferrals lists the accounts account sponsored.
func (t *Tree) DirectReferrals(ctx context.Context, account string) ([]string, error) {
	return t.db.DirectReferrals(ctx, account)
}

// Size returns the number of registered accounts.
func (t *Tree) Size(ctx context.Context) (int, error) {
	return t.db.CountReferralNodes(ctx)
}

// SettingsReader is satisfied by *sqlite.DB and *sqlite.Tx.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// ManagerFrom resolves the manager through r, so callers holding a
// transaction read a consistent value without touching the shared handle.
func (t *Tree) ManagerFrom(ctx context.Context, r SettingsReader) (string, error) {
	m, err := r.GetSetting(ctx, SettingManager)
	if err != nil {
		return "", err
	}
	if m == "" {
		return t.config.Owner, nil
	}
	return m, nil
}
