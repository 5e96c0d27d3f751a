// Package fees registers fee-bearing tokens and splits each fee across the
// claimant's upline.
//
// Split is pure: the caller supplies the upline snapshot and the manager
// read inside its own transaction, and credits the resulting shares there.
package fees

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/treasury-pool/treasury/internal/domain"
	"github.com/treasury-pool/treasury/internal/infra/sqlite"
)

// Config controls the router.
type Config struct {
	Owner         string // only the owner may add tokens
	DefaultFeeBps int64  // fee rate given to new tokens (default: 500 = 5%)
	Levels        int    // number of upline shares (default: 20)
}

// DefaultConfig returns the standard rate and depth.
func DefaultConfig() Config {
	return Config{
		Owner:         "owner",
		DefaultFeeBps: 500,
		Levels:        domain.MaxReferralDepth,
	}
}

// Router is the fee router service. Tokens are cached in memory and
// written through to the database.
type Router struct {
	mu     sync.RWMutex
	config Config
	db     *sqlite.DB
	log    *zap.Logger
	tokens map[string]domain.FeeToken
	now    func() time.Time
}

// New creates a router. Call Load to warm the token cache.
func New(cfg Config, db *sqlite.DB, log *zap.Logger) *Router {
	if cfg.Levels <= 0 {
		cfg.Levels = domain.MaxReferralDepth
	}
	return &Router{
		config: cfg,
		db:     db,
		log:    log.Named("fees"),
		tokens: make(map[string]domain.FeeToken),
		now:    time.Now,
	}
}

// Load reads every registered token into the cache.
func (r *Router) Load(ctx context.Context) error {
	list, err := r.db.ListFeeTokens(ctx)
	if err != nil {
		return fmt.Errorf("load fee tokens: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range list {
		r.tokens[t.TokenID] = t
	}
	return nil
}

// AddToken registers tokenID at the default fee rate.
func (r *Router) AddToken(ctx context.Context, caller, tokenID, symbol string) (domain.FeeToken, error) {
	if caller == "" || caller != r.config.Owner {
		return domain.FeeToken{}, domain.ErrUnauthorized
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return domain.FeeToken{}, domain.ErrInvalidAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[tokenID]; ok {
		return domain.FeeToken{}, domain.ErrDuplicateToken
	}
	tok := domain.FeeToken{
		TokenID: tokenID,
		Symbol:  symbol,
		FeeBps:  r.config.DefaultFeeBps,
		AddedAt: r.now(),
	}
	if err := r.db.InsertFeeToken(ctx, tok); err != nil {
		return domain.FeeToken{}, err
	}
	r.tokens[tokenID] = tok

	r.log.Info("fee token added",
		zap.String("token", tokenID),
		zap.String("symbol", symbol),
		zap.Int64("fee_bps", tok.FeeBps),
	)
	return tok, nil
}

// Token returns the entry for tokenID or ErrTokenNotFound.
func (r *Router) Token(tokenID string) (domain.FeeToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[tokenID]
	if !ok {
		return domain.FeeToken{}, domain.ErrTokenNotFound
	}
	return t, nil
}

// Tokens returns every registered token sorted by ID.
func (r *Router) Tokens() []domain.FeeToken {
	r.mu.RLock()
	out := make([]domain.FeeToken, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

// ─── Split ──────────────────────────────────────────────────────────────────

// Split computes the fee on gross for tokenID and assigns one share per
// level. The ancestor at level L takes its share when it qualifies for L;
// every other share, including levels past the top of the tree, goes to
// manager. An unregistered token carries no fee.
//
// Shares for the same account are merged, so the manager appears at most
// once with Level 0.
func (r *Router) Split(tokenID string, gross int64, upline []domain.Ancestor, manager string) domain.FeeSplit {
	split := domain.FeeSplit{Gross: gross, Net: gross}

	tok, err := r.Token(tokenID)
	if err != nil {
		return split
	}
	fee := tok.Fee(gross)
	if fee == 0 {
		return split
	}
	split.Fee = fee
	split.Net = gross - fee

	byLevel := make(map[int]domain.Ancestor, len(upline))
	for _, a := range upline {
		byLevel[a.Level] = a
	}

	var managerShare int64
	for i, amount := range domain.SplitLevels(fee, r.config.Levels) {
		level := i + 1
		if amount == 0 {
			continue
		}
		if a, ok := byLevel[level]; ok && a.QualifiesForLevel(level) {
			split.Shares = append(split.Shares, domain.FeeShare{
				Account: a.Account,
				Level:   level,
				Amount:  amount,
			})
			continue
		}
		managerShare += amount
	}
	if managerShare > 0 {
		split.Shares = append(split.Shares, domain.FeeShare{
			Account: manager,
			Level:   0,
			Amount:  managerShare,
		})
	}
	return split
}
