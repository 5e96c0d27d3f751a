package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/treasury-pool/treasury/internal/domain"
)

// ─── Fee Token Operations ───────────────────────────────────────────────────

// InsertFeeToken registers a token. Returns domain.ErrDuplicateToken if the
// ID is taken.
func (s store) InsertFeeToken(ctx context.Context, t domain.FeeToken) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO fee_tokens (token_id, symbol, fee_bps, added_at)
		VALUES (?, ?, ?, ?)
	`, t.TokenID, t.Symbol, t.FeeBps, t.AddedAt.Unix())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicateToken
	}
	return nil
}

// GetFeeToken returns the token, or nil if unknown.
func (s store) GetFeeToken(ctx context.Context, tokenID string) (*domain.FeeToken, error) {
	var (
		t     domain.FeeToken
		added int64
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT token_id, symbol, fee_bps, added_at FROM fee_tokens WHERE token_id = ?
	`, tokenID).Scan(&t.TokenID, &t.Symbol, &t.FeeBps, &added)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.AddedAt = time.Unix(added, 0).UTC()
	return &t, nil
}

// ListFeeTokens returns all registered tokens ordered by ID.
func (s store) ListFeeTokens(ctx context.Context) ([]domain.FeeToken, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT token_id, symbol, fee_bps, added_at FROM fee_tokens ORDER BY token_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeeToken
	for rows.Next() {
		var (
			t     domain.FeeToken
			added int64
		)
		if err := rows.Scan(&t.TokenID, &t.Symbol, &t.FeeBps, &added); err != nil {
			return nil, err
		}
		t.AddedAt = time.Unix(added, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// ─── Settings Operations ────────────────────────────────────────────────────

// SetSetting upserts a wiring value.
func (s store) SetSetting(ctx context.Context, key, value string, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, at.Unix())
	return err
}

// GetSetting returns a wiring value, or "" if unset.
func (s store) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}
