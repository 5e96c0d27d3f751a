// Package pool is the contribution ledger: it takes deposits into plans,
// pays matured tranches back out, and cancels records early.
//
// Every mutating operation follows the same shape:
//  1. Lock the account (claims and cancels read-then-write one record)
//  2. Open a database transaction and apply the state change
//  3. Perform exactly one external value transfer
//  4. Commit; a failed transfer rolls the change back, and a failed commit
//     after a successful transfer is reversed with a compensating transfer
//
// Fee shares and cancellation penalties never leave the pool during the
// operation. They are credited to internal earnings balances in the same
// transaction and paid out later by WithdrawEarnings.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/treasury-pool/treasury/internal/app/fees"
	"github.com/treasury-pool/treasury/internal/app/referral"
	"github.com/treasury-pool/treasury/internal/domain"
	"github.com/treasury-pool/treasury/internal/infra/observability"
	"github.com/treasury-pool/treasury/internal/infra/sqlite"
)

// Config controls ledger behavior.
type Config struct {
	TokenID          string // accounted asset, looked up in the fee router
	CancelPenaltyBps int64  // share of a cancel refund kept for the manager (default: 0)
	PageSize         int    // active-contribution page size (default: 50)
}

// DefaultConfig returns the standard ledger settings.
func DefaultConfig() Config {
	return Config{
		TokenID:          "usdc",
		CancelPenaltyBps: 0,
		PageSize:         50,
	}
}

// Ledger is the contribution ledger service.
type Ledger struct {
	config   Config
	db       *sqlite.DB
	transfer domain.ValueTransfer
	catalog  domain.PlanCatalog
	tree     *referral.Tree
	router   *fees.Router
	tracer   *observability.Tracer
	log      *zap.Logger
	locks    accountLocks
	now      func() time.Time
}

// New creates a ledger. tracer may be nil.
func New(
	cfg Config,
	db *sqlite.DB,
	transfer domain.ValueTransfer,
	catalog domain.PlanCatalog,
	tree *referral.Tree,
	router *fees.Router,
	tracer *observability.Tracer,
	log *zap.Logger,
) *Ledger {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	return &Ledger{
		config:   cfg,
		db:       db,
		transfer: transfer,
		catalog:  catalog,
		tree:     tree,
		router:   router,
		tracer:   tracer,
		log:      log.Named("pool"),
		now:      time.Now,
	}
}

// ClaimResult is the outcome of a successful claim.
type ClaimResult struct {
	Contribution domain.Contribution `json:"contribution"`
	Quote        domain.ClaimQuote   `json:"quote"`
	Split        domain.FeeSplit     `json:"split"`
}

// CancelResult is the outcome of a successful cancellation.
type CancelResult struct {
	Contribution domain.Contribution `json:"contribution"`
	Refund       int64               `json:"refund"`
	Penalty      int64               `json:"penalty"`
}

// ─── Contribute ─────────────────────────────────────────────────────────────

// Contribute pulls amount from account into the pool under planID and
// returns the new record. The record's index is never reused.
func (l *Ledger) Contribute(ctx context.Context, account string, amount int64, planID int) (c domain.Contribution, err error) {
	span := l.tracer.StartSpan(ctx, "contribute", account)
	defer func() { l.finish(span, "contribute", err) }()

	if err := domain.ValidateAmount(amount); err != nil {
		return c, err
	}
	plan, err := l.catalog.Plan(planID)
	if err != nil {
		return c, err
	}

	unlock := l.locks.lock(account)
	defer unlock()

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()

	if err := requireRegistered(ctx, tx, account); err != nil {
		return c, err
	}
	idx, err := tx.NextContributionIndex(ctx, account)
	if err != nil {
		return c, err
	}
	now := l.stamp()
	c = domain.NewContribution(account, idx, amount, plan, now)
	if err := tx.InsertContribution(ctx, c); err != nil {
		return c, err
	}

	ref := uuid.NewString()
	if err := l.record(ctx, tx, ref, now, domain.TxContribute, domain.EntryCredit, account, amount, idx,
		fmt.Sprintf("plan %d", plan.ID)); err != nil {
		return c, err
	}

	if err := l.transfer.TransferFrom(ctx, account, amount); err != nil {
		return c, fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
	}
	if err := l.commit(ctx, tx, "contribute", func(ctx context.Context) error {
		return l.transfer.TransferTo(ctx, account, amount)
	}); err != nil {
		return c, err
	}

	observability.Contributions.WithLabelValues(observability.PlanLabel(plan.ID)).Inc()
	observability.UnitsMoved.WithLabelValues("in").Add(float64(amount))
	l.log.Info("contribution accepted",
		zap.String("account", account),
		zap.Int("index", idx),
		zap.Int("plan", plan.ID),
		observability.Units("amount", amount),
		zap.String("ref", ref),
	)
	return c, nil
}

// ─── Claim ──────────────────────────────────────────────────────────────────

// Claim pays out the matured, unclaimed part of record index. When the
// pool's token carries a fee, the fee is split across the upline and the
// account receives the net amount.
func (l *Ledger) Claim(ctx context.Context, account string, index int) (res ClaimResult, err error) {
	span := l.tracer.StartSpan(ctx, "claim", account)
	defer func() { l.finish(span, "claim", err) }()

	unlock := l.locks.lock(account)
	defer unlock()

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	c, err := tx.GetContribution(ctx, account, index)
	if err != nil {
		return res, err
	}
	now := l.stamp()
	q, err := c.QuoteClaim(now)
	if err != nil {
		return res, err
	}
	c.ApplyClaim(q, now)
	if err := tx.UpdateContribution(ctx, *c); err != nil {
		return res, err
	}

	split, err := l.routeFee(ctx, tx, account, q.Payout)
	if err != nil {
		return res, err
	}

	ref := uuid.NewString()
	for _, sh := range split.Shares {
		if err := tx.CreditEarnings(ctx, sh.Account, sh.Amount, now); err != nil {
			return res, err
		}
		if err := l.record(ctx, tx, ref, now, domain.TxFee, domain.EntryMemo, sh.Account, sh.Amount, index,
			fmt.Sprintf("level %d share from %s", sh.Level, account)); err != nil {
			return res, err
		}
	}
	if err := l.record(ctx, tx, ref, now, domain.TxClaim, domain.EntryDebit, account, split.Net, index,
		fmt.Sprintf("days %d-%d", q.FromDays, q.ToDays)); err != nil {
		return res, err
	}

	if split.Net > 0 {
		if err := l.transfer.TransferTo(ctx, account, split.Net); err != nil {
			return res, fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
		}
	}
	if err := l.commit(ctx, tx, "claim", func(ctx context.Context) error {
		if split.Net == 0 {
			return nil
		}
		return l.transfer.TransferFrom(ctx, account, split.Net)
	}); err != nil {
		return res, err
	}

	plan := observability.PlanLabel(c.PlanID)
	observability.Claims.WithLabelValues(plan, fmt.Sprint(q.Final)).Inc()
	observability.UnitsMoved.WithLabelValues("out").Add(float64(split.Net))
	for _, sh := range split.Shares {
		observability.FeeDistributed.WithLabelValues(observability.LevelLabel(sh.Level)).Add(float64(sh.Amount))
	}
	l.log.Info("claim paid",
		zap.String("account", account),
		zap.Int("index", index),
		zap.Int("plan", c.PlanID),
		zap.Int("from_days", q.FromDays),
		zap.Int("to_days", q.ToDays),
		observability.Units("gross", q.Payout),
		observability.Units("fee", split.Fee),
		zap.Bool("final", q.Final),
		zap.String("ref", ref),
	)
	return ClaimResult{Contribution: *c, Quote: q, Split: split}, nil
}

// routeFee splits gross using an upline and manager read through tx.
func (l *Ledger) routeFee(ctx context.Context, tx *sqlite.Tx, account string, gross int64) (domain.FeeSplit, error) {
	if l.router == nil || gross <= 0 {
		return domain.FeeSplit{Gross: gross, Net: gross}, nil
	}
	if _, err := l.router.Token(l.config.TokenID); err != nil {
		return domain.FeeSplit{Gross: gross, Net: gross}, nil
	}
	upline, err := tx.Upline(ctx, account, l.tree.MaxDepth())
	if err != nil {
		return domain.FeeSplit{}, err
	}
	manager, err := l.tree.ManagerFrom(ctx, tx)
	if err != nil {
		return domain.FeeSplit{}, err
	}
	return l.router.Split(l.config.TokenID, gross, upline, manager), nil
}

// ─── Cancel ─────────────────────────────────────────────────────────────────

// Cancel closes record index early and refunds its unclaimed principal,
// less the configured penalty which is credited to the manager.
func (l *Ledger) Cancel(ctx context.Context, account string, index int) (res CancelResult, err error) {
	span := l.tracer.StartSpan(ctx, "cancel", account)
	defer func() { l.finish(span, "cancel", err) }()

	unlock := l.locks.lock(account)
	defer unlock()

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	c, err := tx.GetContribution(ctx, account, index)
	if err != nil {
		return res, err
	}
	remaining, err := c.QuoteCancel()
	if err != nil {
		return res, err
	}
	refund, penalty := domain.SplitPenalty(remaining, l.config.CancelPenaltyBps)

	now := l.stamp()
	c.ApplyCancel(now)
	if err := tx.UpdateContribution(ctx, *c); err != nil {
		return res, err
	}

	ref := uuid.NewString()
	if penalty > 0 {
		manager, err := l.tree.ManagerFrom(ctx, tx)
		if err != nil {
			return res, err
		}
		if err := tx.CreditEarnings(ctx, manager, penalty, now); err != nil {
			return res, err
		}
		if err := l.record(ctx, tx, ref, now, domain.TxPenalty, domain.EntryMemo, manager, penalty, index,
			fmt.Sprintf("cancel penalty from %s", account)); err != nil {
			return res, err
		}
	}
	if err := l.record(ctx, tx, ref, now, domain.TxRefund, domain.EntryDebit, account, refund, index, ""); err != nil {
		return res, err
	}

	if refund > 0 {
		if err := l.transfer.TransferTo(ctx, account, refund); err != nil {
			return res, fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
		}
	}
	if err := l.commit(ctx, tx, "cancel", func(ctx context.Context) error {
		if refund == 0 {
			return nil
		}
		return l.transfer.TransferFrom(ctx, account, refund)
	}); err != nil {
		return res, err
	}

	observability.Cancellations.WithLabelValues(observability.PlanLabel(c.PlanID)).Inc()
	observability.UnitsMoved.WithLabelValues("refund").Add(float64(refund))
	l.log.Info("contribution cancelled",
		zap.String("account", account),
		zap.Int("index", index),
		zap.Int("plan", c.PlanID),
		observability.Units("refund", refund),
		observability.Units("penalty", penalty),
		zap.String("ref", ref),
	)
	return CancelResult{Contribution: *c, Refund: refund, Penalty: penalty}, nil
}

// ─── Earnings ───────────────────────────────────────────────────────────────

// WithdrawEarnings pays out account's whole earnings balance.
func (l *Ledger) WithdrawEarnings(ctx context.Context, account string) (amount int64, err error) {
	span := l.tracer.StartSpan(ctx, "withdraw_earnings", account)
	defer func() { l.finish(span, "withdraw_earnings", err) }()

	unlock := l.locks.lock(account)
	defer unlock()

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := l.stamp()
	amount, err = tx.DrainEarnings(ctx, account, now)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, domain.ErrNothingToWithdraw
	}
	ref := uuid.NewString()
	if err := l.record(ctx, tx, ref, now, domain.TxWithdraw, domain.EntryDebit, account, amount, -1, ""); err != nil {
		return 0, err
	}

	if err := l.transfer.TransferTo(ctx, account, amount); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
	}
	if err := l.commit(ctx, tx, "withdraw_earnings", func(ctx context.Context) error {
		return l.transfer.TransferFrom(ctx, account, amount)
	}); err != nil {
		return 0, err
	}

	observability.UnitsMoved.WithLabelValues("earnings").Add(float64(amount))
	l.log.Info("earnings withdrawn",
		zap.String("account", account),
		observability.Units("amount", amount),
		zap.String("ref", ref),
	)
	return amount, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func requireRegistered(ctx context.Context, tx *sqlite.Tx, account string) error {
	n, err := tx.GetReferralNode(ctx, account)
	if err != nil {
		return err
	}
	if n == nil {
		return domain.ErrNotRegistered
	}
	return nil
}

func (l *Ledger) record(ctx context.Context, tx *sqlite.Tx, ref string, at time.Time,
	typ domain.TransactionType, side domain.EntryType, account string, amount int64, index int, desc string) error {
	_, err := tx.InsertLedgerEntry(ctx, domain.LedgerEntry{
		Ref:         ref,
		Timestamp:   at,
		Type:        typ,
		EntryType:   side,
		Account:     account,
		Amount:      amount,
		Index:       index,
		Description: desc,
	})
	return err
}

// commit commits tx. If the commit fails the external transfer already
// happened, so undo reverses it.
func (l *Ledger) commit(ctx context.Context, tx *sqlite.Tx, op string, undo func(context.Context) error) error {
	err := tx.Commit()
	if err == nil {
		return nil
	}
	observability.CompensatingTransfers.Inc()
	if uerr := undo(context.WithoutCancel(ctx)); uerr != nil {
		l.log.Error("compensating transfer failed",
			zap.String("op", op),
			zap.NamedError("commit_error", err),
			zap.Error(uerr),
		)
	} else {
		l.log.Warn("commit failed, transfer reversed", zap.String("op", op), zap.Error(err))
	}
	return fmt.Errorf("%s: commit: %w", op, err)
}

// finish closes span and counts rejections.
func (l *Ledger) finish(span *observability.Span, op string, err error) {
	l.tracer.EndSpan(span, err)
	if err == nil {
		return
	}
	kind := domain.KindOf(err)
	observability.Rejections.WithLabelValues(op, string(kind)).Inc()
	if kind == domain.KindInternal {
		l.log.Error(op+" failed", zap.String("account", span.Account), zap.Error(err))
		return
	}
	l.log.Debug(op+" rejected", zap.String("account", span.Account), zap.Error(err))
}

// ─── Account Locks ──────────────────────────────────────────────────────────

// accountLocks hands out one mutex per account. Entries are never removed;
// the set is bounded by the number of registered accounts.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (a *accountLocks) lock(account string) (unlock func()) {
	a.mu.Lock()
	if a.locks == nil {
		a.locks = make(map[string]*sync.Mutex)
	}
	m, ok := a.locks[account]
	if !ok {
		m = &sync.Mutex{}
		a.locks[account] = m
	}
	a.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// stamp reads the clock at the one-second precision records are stored at,
// so a returned record matches its stored copy.
func (l *Ledger) stamp() time.Time {
	return l.now().UTC().Truncate(time.Second)
}
