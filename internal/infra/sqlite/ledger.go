package sqlite

import (
	"context"
	"time"

	"github.com/treasury-pool/treasury/internal/domain"
)

// ─── Ledger Entry Operations ────────────────────────────────────────────────

// InsertLedgerEntry appends an audit row and returns its ID.
func (s store) InsertLedgerEntry(ctx context.Context, e domain.LedgerEntry) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (ref, ts, type, entry_type, account, amount, idx, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Ref, e.Timestamp.Unix(), string(e.Type), string(e.EntryType),
		e.Account, e.Amount, e.Index, e.Description)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LedgerEntries returns the most recent entries for account, newest first.
func (s store) LedgerEntries(ctx context.Context, account string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, ref, ts, type, entry_type, account, amount, idx, description
		FROM ledger_entries WHERE account = ?
		ORDER BY id DESC LIMIT ?
	`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e         domain.LedgerEntry
			ts        int64
			typ, side string
		)
		if err := rows.Scan(&e.ID, &e.Ref, &ts, &typ, &side, &e.Account, &e.Amount, &e.Index, &e.Description); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		e.Type = domain.TransactionType(typ)
		e.EntryType = domain.EntryType(side)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SumLedger totals amounts of one transaction type for account.
func (s store) SumLedger(ctx context.Context, account string, typ domain.TransactionType) (int64, error) {
	var v int64
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account = ? AND type = ?
	`, account, string(typ)).Scan(&v)
	return v, err
}
