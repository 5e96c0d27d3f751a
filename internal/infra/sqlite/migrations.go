package sqlite

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements.
// Each string is a single SQL statement (SQLite executes one at a time).
// Timestamps are unix seconds.
func Migrations() []string {
	return []string{
		// Contribution ledger: one row per deposit, never deleted
		`CREATE TABLE IF NOT EXISTS contributions (
			account      TEXT    NOT NULL,
			idx          INTEGER NOT NULL,
			amount       INTEGER NOT NULL,
			plan_id      INTEGER NOT NULL,
			started_at   INTEGER NOT NULL,
			claimed_days INTEGER NOT NULL DEFAULT 0,
			total_days   INTEGER NOT NULL,
			active       INTEGER NOT NULL DEFAULT 1,
			closed_at    INTEGER,
			PRIMARY KEY (account, idx),
			CHECK (claimed_days <= total_days)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contributions_active ON contributions(account, active, idx)`,

		// Referral tree
		`CREATE TABLE IF NOT EXISTS referral_nodes (
			account       TEXT PRIMARY KEY,
			sponsor       TEXT,
			direct_count  INTEGER NOT NULL DEFAULT 0,
			registered_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_referral_sponsor ON referral_nodes(sponsor)`,

		// Fee shares and penalties held by the pool until withdrawn
		`CREATE TABLE IF NOT EXISTS referral_earnings (
			account      TEXT PRIMARY KEY,
			balance      INTEGER NOT NULL DEFAULT 0,
			total_earned INTEGER NOT NULL DEFAULT 0,
			updated_at   INTEGER NOT NULL
		)`,

		// Fee router token table
		`CREATE TABLE IF NOT EXISTS fee_tokens (
			token_id TEXT PRIMARY KEY,
			symbol   TEXT    NOT NULL,
			fee_bps  INTEGER NOT NULL,
			added_at INTEGER NOT NULL
		)`,

		// Audit ledger
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ref         TEXT    NOT NULL,
			ts          INTEGER NOT NULL,
			type        TEXT    NOT NULL,
			entry_type  TEXT    NOT NULL,
			account     TEXT    NOT NULL,
			amount      INTEGER NOT NULL,
			idx         INTEGER NOT NULL DEFAULT -1,
			description TEXT    NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(account, id)`,

		// Collaborator wiring (treasury pool, manager)
		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}
}
