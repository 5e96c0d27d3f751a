package domain

import "time"

// ─── Referral & Fee Types ───────────────────────────────────────────────────
// The sponsor graph is a forest. Each node keeps a weak reference to its
// sponsor (identifier only) and a counter bumped whenever a descendant
// registers within MaxReferralDepth levels.

// MaxReferralDepth is the number of ancestor levels touched by a registration
// and paid by the unilevel fee split.
const MaxReferralDepth = 20

// BasisPoints is the denominator for every percentage in the system.
const BasisPoints int64 = 10_000

// ReferralNode is one registered participant.
type ReferralNode struct {
	Account      string    `json:"account"`
	Sponsor      string    `json:"sponsor,omitempty"` // empty for roots
	DirectCount  int       `json:"direct_count"`
	RegisteredAt time.Time `json:"registered_at"`
}

// IsRoot reports whether the node has no sponsor.
func (n ReferralNode) IsRoot() bool { return n.Sponsor == "" }

// QualifiesForLevel reports whether the node may receive the fee share paid
// at the given upline level (1 = direct sponsor).
func (n ReferralNode) QualifiesForLevel(level int) bool {
	return n.DirectCount >= level
}

// Ancestor is a node seen from a descendant, tagged with its distance.
type Ancestor struct {
	Level int `json:"level"`
	ReferralNode
}

// FeeToken is a registered accounted asset with its fee rate.
type FeeToken struct {
	TokenID string    `json:"token_id"`
	Symbol  string    `json:"symbol"`
	FeeBps  int64     `json:"fee_bps"`
	AddedAt time.Time `json:"added_at"`
}

// Fee returns amount * FeeBps / 10000.
func (t FeeToken) Fee(amount int64) int64 {
	if t.FeeBps <= 0 || amount <= 0 {
		return 0
	}
	return amount * t.FeeBps / BasisPoints
}

// FeeShare is the portion of a fee credited to one account.
type FeeShare struct {
	Account string `json:"account"`
	Level   int    `json:"level"` // 0 for the manager remainder
	Amount  int64  `json:"amount"`
}

// FeeSplit is the result of routing a fee-bearing transfer.
type FeeSplit struct {
	Gross  int64      `json:"gross"`
	Fee    int64      `json:"fee"`
	Net    int64      `json:"net"`
	Shares []FeeShare `json:"shares,omitempty"`
}

// SplitLevels divides fee into levels equal shares; the last share absorbs
// the rounding remainder so the shares always sum to fee.
func SplitLevels(fee int64, levels int) []int64 {
	if levels <= 0 || fee <= 0 {
		return nil
	}
	shares := make([]int64, levels)
	each := fee / int64(levels)
	for i := range shares {
		shares[i] = each
	}
	shares[levels-1] += fee - each*int64(levels)
	return shares
}
