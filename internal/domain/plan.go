package domain

import (
	"fmt"
	"time"
)

// ─── Plan Types ─────────────────────────────────────────────────────────────

// Day is the accrual unit. Elapsed time is always measured in whole days.
const Day = 24 * time.Hour

// ClaimWindowDays is the number of unclaimed days that unlocks a claim before
// a plan reaches its end. Plans of 30 days or less can only be claimed once
// they mature.
const ClaimWindowDays = 30

// LockKind distinguishes the two maturity models.
type LockKind string

const (
	// LockFixed matures once, after MinLockDays.
	LockFixed LockKind = "fixed"
	// LockCyclic releases principal in CycleDays windows up to MaxCycles.
	LockCyclic LockKind = "cyclic"
)

// Plan is an immutable lock configuration. Build one with FixedLock or
// CyclicLock rather than filling the fields by hand.
type Plan struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Kind        LockKind `json:"kind"`
	MinLockDays int      `json:"min_lock_days"`
	CycleDays   int      `json:"cycle_days"`
	MaxCycles   int      `json:"max_cycles"`
}

// FixedLock returns a plan that matures in full after days.
func FixedLock(id, days int) Plan {
	return Plan{
		ID:          id,
		Name:        fmt.Sprintf("%d days", days),
		Kind:        LockFixed,
		MinLockDays: days,
		CycleDays:   days,
		MaxCycles:   1,
	}
}

// CyclicLock returns a plan that releases principal every cycleDays,
// maxCycles times.
func CyclicLock(id, cycleDays, maxCycles int) Plan {
	return Plan{
		ID:          id,
		Name:        fmt.Sprintf("%d days (%d-day cycles)", cycleDays*maxCycles, cycleDays),
		Kind:        LockCyclic,
		MinLockDays: cycleDays,
		CycleDays:   cycleDays,
		MaxCycles:   maxCycles,
	}
}

// TotalDays is the number of daily tranches the principal is split into.
func (p Plan) TotalDays() int {
	return p.CycleDays * p.MaxCycles
}

// MaxLockDuration returns the time until full maturity.
func (p Plan) MaxLockDuration() time.Duration {
	return time.Duration(p.TotalDays()) * Day
}

// String formats the plan for CLI output.
func (p Plan) String() string {
	return fmt.Sprintf("plan %d: %s", p.ID, p.Name)
}
