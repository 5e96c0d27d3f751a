package domain

import "time"

// ─── Ledger Types ───────────────────────────────────────────────────────────
// Every movement of value through the pool appends one audit row.
// Rows are written in the same transaction as the state change they record.

// EntryType represents the accounting side of a ledger entry, seen from the pool.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"  // value leaves the pool
	EntryCredit EntryType = "CREDIT" // value enters the pool
	EntryMemo   EntryType = "MEMO"   // value re-assigned inside the pool
)

// TransactionType represents the business reason for a movement.
type TransactionType string

const (
	TxContribute TransactionType = "CONTRIBUTE"
	TxClaim      TransactionType = "CLAIM"
	TxRefund     TransactionType = "REFUND"
	TxFee        TransactionType = "FEE"
	TxPenalty    TransactionType = "PENALTY"
	TxWithdraw   TransactionType = "WITHDRAW"
)

// LedgerEntry is a single audit row.
type LedgerEntry struct {
	ID          int64           `json:"id"`
	Ref         string          `json:"ref"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        TransactionType `json:"type"`
	EntryType   EntryType       `json:"entry_type"`
	Account     string          `json:"account"`
	Amount      int64           `json:"amount"`
	Index       int             `json:"index"` // contribution index, -1 when not applicable
	Description string          `json:"description,omitempty"`
}
