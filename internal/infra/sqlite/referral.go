package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/treasury-pool/treasury/internal/domain"
)

// ─── Referral Node Operations ───────────────────────────────────────────────

// uplineCTE walks sponsor links from ?1 (account) up to ?2 levels.
// The level bound also terminates the walk if the forest invariant were
// ever broken by hand-edited data.
const uplineCTE = `
	WITH RECURSIVE up(account, level) AS (
		SELECT sponsor, 1 FROM referral_nodes
		WHERE account = ?1 AND sponsor IS NOT NULL
		UNION ALL
		SELECT n.sponsor, up.level + 1 FROM referral_nodes n
		JOIN up ON n.account = up.account
		WHERE n.sponsor IS NOT NULL AND up.level < ?2
	)`

// GetReferralNode returns the node for account, or nil if not registered.
func (s store) GetReferralNode(ctx context.Context, account string) (*domain.ReferralNode, error) {
	var (
		n          domain.ReferralNode
		sponsor    sql.NullString
		registered int64
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT account, sponsor, direct_count, registered_at
		FROM referral_nodes WHERE account = ?
	`, account).Scan(&n.Account, &sponsor, &n.DirectCount, &registered)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n.Sponsor = sponsor.String
	n.RegisteredAt = time.Unix(registered, 0).UTC()
	return &n, nil
}

// InsertReferralNode registers a node. An empty Sponsor stores a root.
func (s store) InsertReferralNode(ctx context.Context, n domain.ReferralNode) error {
	var sponsor sql.NullString
	if n.Sponsor != "" {
		sponsor = sql.NullString{String: n.Sponsor, Valid: true}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO referral_nodes (account, sponsor, direct_count, registered_at)
		VALUES (?, ?, ?, ?)
	`, n.Account, sponsor, n.DirectCount, n.RegisteredAt.Unix())
	if err != nil {
		return fmt.Errorf("insert referral node %s: %w", n.Account, err)
	}
	return nil
}

// IncrementDirectCount adds delta to one node's counter.
func (s store) IncrementDirectCount(ctx context.Context, account string, delta int) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE referral_nodes SET direct_count = direct_count + ? WHERE account = ?
	`, delta, account)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotRegistered
	}
	return nil
}

// IncrementUpline bumps direct_count on up to depth ancestors of account in
// one statement and returns how many were touched.
func (s store) IncrementUpline(ctx context.Context, account string, depth int) (int, error) {
	res, err := s.q.ExecContext(ctx, uplineCTE+`
		UPDATE referral_nodes SET direct_count = direct_count + 1
		WHERE account IN (SELECT account FROM up)
	`, account, depth)
	if err != nil {
		return 0, fmt.Errorf("increment upline of %s: %w", account, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Upline returns up to depth ancestors of account, nearest first.
func (s store) Upline(ctx context.Context, account string, depth int) ([]domain.Ancestor, error) {
	rows, err := s.q.QueryContext(ctx, uplineCTE+`
		SELECT n.account, COALESCE(n.sponsor, ''), n.direct_count, n.registered_at, up.level
		FROM up JOIN referral_nodes n ON n.account = up.account
		ORDER BY up.level
	`, account, depth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Ancestor
	for rows.Next() {
		var (
			a          domain.Ancestor
			registered int64
		)
		if err := rows.Scan(&a.Account, &a.Sponsor, &a.DirectCount, &registered, &a.Level); err != nil {
			return nil, err
		}
		a.RegisteredAt = time.Unix(registered, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// DirectReferrals lists accounts whose sponsor is account.
func (s store) DirectReferrals(ctx context.Context, account string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT account FROM referral_nodes WHERE sponsor = ? ORDER BY registered_at, account
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountReferralNodes returns the number of registered participants.
func (s store) CountReferralNodes(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM referral_nodes`).Scan(&n)
	return n, err
}

// ─── Referral Earnings Operations ───────────────────────────────────────────

// CreditEarnings adds amount to an account's withdrawable earnings.
func (s store) CreditEarnings(ctx context.Context, account string, amount int64, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO referral_earnings (account, balance, total_earned, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			balance      = balance + excluded.balance,
			total_earned = total_earned + excluded.total_earned,
			updated_at   = excluded.updated_at
	`, account, amount, amount, at.Unix())
	return err
}

// Earnings returns the withdrawable balance and lifetime total.
func (s store) Earnings(ctx context.Context, account string) (balance, total int64, err error) {
	err = s.q.QueryRowContext(ctx, `
		SELECT balance, total_earned FROM referral_earnings WHERE account = ?
	`, account).Scan(&balance, &total)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	return
}

// DrainEarnings zeroes the withdrawable balance and returns what it was.
func (s store) DrainEarnings(ctx context.Context, account string, at time.Time) (int64, error) {
	balance, _, err := s.Earnings(ctx, account)
	if err != nil || balance == 0 {
		return 0, err
	}
	_, err = s.q.ExecContext(ctx, `
		UPDATE referral_earnings SET balance = 0, updated_at = ? WHERE account = ?
	`, at.Unix(), account)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// TotalEarningsOutstanding sums withdrawable balances across accounts.
func (s store) TotalEarningsOutstanding(ctx context.Context) (int64, error) {
	var v int64
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(balance), 0) FROM referral_earnings
	`).Scan(&v)
	return v, err
}
