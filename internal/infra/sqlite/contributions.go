package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/treasury-pool/treasury/internal/domain"
)

// ─── Contribution Operations ────────────────────────────────────────────────

const contributionColumns = `account, idx, amount, plan_id, started_at, claimed_days, total_days, active, closed_at`

// NextContributionIndex returns the index the account's next deposit gets.
func (s store) NextContributionIndex(ctx context.Context, account string) (int, error) {
	var next int
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(idx) + 1, 0) FROM contributions WHERE account = ?
	`, account).Scan(&next)
	return next, err
}

// InsertContribution appends a record.
func (s store) InsertContribution(ctx context.Context, c domain.Contribution) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO contributions (`+contributionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Account, c.Index, c.Amount, c.PlanID, c.StartedAt.Unix(),
		c.ClaimedDays, c.TotalDays, boolInt(c.Active), nullUnix(c.ClosedAt))
	if err != nil {
		return fmt.Errorf("insert contribution %s/%d: %w", c.Account, c.Index, err)
	}
	return nil
}

// GetContribution loads one record. Returns domain.ErrContributionNotFound
// if the index was never assigned.
func (s store) GetContribution(ctx context.Context, account string, index int) (*domain.Contribution, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+contributionColumns+` FROM contributions WHERE account = ? AND idx = ?
	`, account, index)
	c, err := scanContribution(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrContributionNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateContribution persists the mutable fields of a record.
func (s store) UpdateContribution(ctx context.Context, c domain.Contribution) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE contributions SET claimed_days = ?, active = ?, closed_at = ?
		WHERE account = ? AND idx = ?
	`, c.ClaimedDays, boolInt(c.Active), nullUnix(c.ClosedAt), c.Account, c.Index)
	if err != nil {
		return fmt.Errorf("update contribution %s/%d: %w", c.Account, c.Index, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrContributionNotFound
	}
	return nil
}

// ActiveContributions returns up to limit active records with index >= from,
// in insertion order.
func (s store) ActiveContributions(ctx context.Context, account string, from, limit int) ([]domain.Contribution, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+contributionColumns+` FROM contributions
		WHERE account = ? AND active = 1 AND idx >= ?
		ORDER BY idx LIMIT ?
	`, account, from, limit)
	if err != nil {
		return nil, err
	}
	return collectContributions(rows)
}

// Contributions returns every record of an account, active or not.
func (s store) Contributions(ctx context.Context, account string) ([]domain.Contribution, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+contributionColumns+` FROM contributions WHERE account = ? ORDER BY idx
	`, account)
	if err != nil {
		return nil, err
	}
	return collectContributions(rows)
}

// AllActiveContributions returns every active record in the pool.
func (s store) AllActiveContributions(ctx context.Context) ([]domain.Contribution, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+contributionColumns+` FROM contributions WHERE active = 1 ORDER BY account, idx
	`)
	if err != nil {
		return nil, err
	}
	return collectContributions(rows)
}

// ValueInPool sums the unreleased principal of an account's active records.
// Integer division matches domain.Contribution.PaidOut.
func (s store) ValueInPool(ctx context.Context, account string) (int64, error) {
	var v int64
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount - (amount * claimed_days / total_days)), 0)
		FROM contributions WHERE account = ? AND active = 1
	`, account).Scan(&v)
	return v, err
}

// TotalValueLocked sums the unreleased principal across all accounts.
func (s store) TotalValueLocked(ctx context.Context) (int64, error) {
	var v int64
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount - (amount * claimed_days / total_days)), 0)
		FROM contributions WHERE active = 1
	`).Scan(&v)
	return v, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContribution(r rowScanner) (*domain.Contribution, error) {
	var (
		c         domain.Contribution
		startedAt int64
		active    int
		closedAt  sql.NullInt64
	)
	if err := r.Scan(&c.Account, &c.Index, &c.Amount, &c.PlanID, &startedAt,
		&c.ClaimedDays, &c.TotalDays, &active, &closedAt); err != nil {
		return nil, err
	}
	c.StartedAt = time.Unix(startedAt, 0).UTC()
	c.Active = active == 1
	if closedAt.Valid {
		c.ClosedAt = time.Unix(closedAt.Int64, 0).UTC()
	}
	return &c, nil
}

func collectContributions(rows *sql.Rows) ([]domain.Contribution, error) {
	defer rows.Close()
	var out []domain.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
