package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// ValueTransfer moves the accounted asset between participants and the pool.
// Calls are atomic: they either complete or fail without effect. They must
// not call back into the pool's own operations.
type ValueTransfer interface {
	// TransferFrom pulls amount from payer into the pool.
	TransferFrom(ctx context.Context, payer string, amount int64) error

	// TransferTo pays amount from the pool to payee.
	TransferTo(ctx context.Context, payee string, amount int64) error

	// BalanceOf returns the account's balance.
	BalanceOf(ctx context.Context, account string) (int64, error)
}

// PlanCatalog resolves plan identifiers.
type PlanCatalog interface {
	Plan(id int) (Plan, error)
	Plans() []Plan
}
