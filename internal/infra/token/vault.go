// Package token provides an in-process implementation of
// domain.ValueTransfer. It stands in for the external asset contract:
// balances live in memory and every movement gets a receipt.
package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/treasury-pool/treasury/internal/domain"
)

// Receipt records one completed transfer.
type Receipt struct {
	ID     string    `json:"id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Amount int64     `json:"amount"`
	At     time.Time `json:"at"`
}

// Vault holds balances for every account, including the pool's own.
// Thread-safe via Mutex; each transfer is atomic.
type Vault struct {
	mu         sync.Mutex
	pool       string
	balances   map[string]int64
	receipts   []Receipt
	maxHistory int

	now func() time.Time
}

// NewVault creates an empty vault whose custody account is pool.
func NewVault(pool string) *Vault {
	return &Vault{
		pool:       pool,
		balances:   make(map[string]int64),
		maxHistory: 10_000,
		now:        time.Now,
	}
}

// PoolAccount returns the custody account.
func (v *Vault) PoolAccount() string { return v.pool }

// Mint creates amount out of thin air for account. Test and bootstrap only.
func (v *Vault) Mint(account string, amount int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[account] += amount
}

// Transfer moves amount from one account to another.
func (v *Vault) Transfer(ctx context.Context, from, to string, amount int64) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if amount <= 0 {
		return Receipt{}, fmt.Errorf("%w: non-positive amount %d", domain.ErrTransferFailed, amount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.balances[from] < amount {
		return Receipt{}, fmt.Errorf("%w: %s has %d, needs %d",
			domain.ErrInsufficientBalance, from, v.balances[from], amount)
	}
	v.balances[from] -= amount
	v.balances[to] += amount

	r := Receipt{ID: uuid.NewString(), From: from, To: to, Amount: amount, At: v.now()}
	if len(v.receipts) >= v.maxHistory {
		v.receipts = v.receipts[1:]
	}
	v.receipts = append(v.receipts, r)
	return r, nil
}

// TransferFrom implements domain.ValueTransfer.
func (v *Vault) TransferFrom(ctx context.Context, payer string, amount int64) error {
	_, err := v.Transfer(ctx, payer, v.pool, amount)
	return err
}

// TransferTo implements domain.ValueTransfer.
func (v *Vault) TransferTo(ctx context.Context, payee string, amount int64) error {
	_, err := v.Transfer(ctx, v.pool, payee, amount)
	return err
}

// BalanceOf implements domain.ValueTransfer.
func (v *Vault) BalanceOf(ctx context.Context, account string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[account], nil
}

// Receipts returns up to limit of the most recent receipts, oldest first.
func (v *Vault) Receipts(limit int) []Receipt {
	v.mu.Lock()
	defer v.mu.Unlock()

	if limit <= 0 || limit > len(v.receipts) {
		limit = len(v.receipts)
	}
	out := make([]Receipt, limit)
	copy(out, v.receipts[len(v.receipts)-limit:])
	return out
}

// Supply returns the sum of all balances.
func (v *Vault) Supply() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	var total int64
	for _, b := range v.balances {
		total += b
	}
	return total
}
