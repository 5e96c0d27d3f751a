// Package catalog holds the fixed plan table. It is pure data: no state,
// no locks, safe for concurrent use.
package catalog

import (
	"github.com/treasury-pool/treasury/internal/domain"
)

// Catalog is the set of plans offered by the pool, indexed by plan ID.
// Plans 4 and 5 are cyclic: their ID is not their lock length.
var Catalog = []domain.Plan{
	domain.FixedLock(0, 1),
	domain.FixedLock(1, 5),
	domain.FixedLock(2, 10),
	domain.FixedLock(3, 20),
	domain.CyclicLock(4, 30, 3),
	domain.CyclicLock(5, 30, 12),
}

// Lookup returns the plan with the given ID, or nil.
func Lookup(id int) *domain.Plan {
	if id < 0 || id >= len(Catalog) {
		return nil
	}
	p := Catalog[id]
	return &p
}

// LockDaysFor returns (minDays, cycleDays, maxCycles) for a plan.
func LockDaysFor(id int) (minDays, cycleDays, maxCycles int, err error) {
	p := Lookup(id)
	if p == nil {
		return 0, 0, 0, domain.ErrUnknownPlan
	}
	return p.MinLockDays, p.CycleDays, p.MaxCycles, nil
}

// Static adapts the package table to domain.PlanCatalog.
type Static struct{}

// Plan implements domain.PlanCatalog.
func (Static) Plan(id int) (domain.Plan, error) {
	p := Lookup(id)
	if p == nil {
		return domain.Plan{}, domain.ErrUnknownPlan
	}
	return *p, nil
}

// Plans implements domain.PlanCatalog.
func (Static) Plans() []domain.Plan {
	out := make([]domain.Plan, len(Catalog))
	copy(out, Catalog)
	return out
}
