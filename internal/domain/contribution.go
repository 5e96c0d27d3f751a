package domain

import "time"

// ─── Contribution Types ─────────────────────────────────────────────────────
// A contribution is one deposit, aged independently of every other deposit
// the account holds. Lifecycle:
//
//	Active(claimed=0) → Active(claimed=k) … → Inactive
//
// Inactive is terminal and reached by full claim-out or cancellation.
// Records are never deleted; Index is stable and never reused.

// Amount bounds, in micro-units (6 fractional digits).
const (
	UnitsPerToken   int64 = 1_000_000
	MinContribution int64 = 10 * UnitsPerToken
	MaxContribution int64 = 10_000 * UnitsPerToken
)

// ValidateAmount checks the per-deposit band.
func ValidateAmount(amount int64) error {
	if amount < MinContribution || amount > MaxContribution {
		return ErrInvalidAmount
	}
	return nil
}

// Contribution is a single deposit owned by one account.
type Contribution struct {
	Account     string    `json:"account"`
	Index       int       `json:"index"`
	Amount      int64     `json:"amount"`
	PlanID      int       `json:"plan_id"`
	StartedAt   time.Time `json:"started_at"`
	ClaimedDays int       `json:"claimed_days"`
	TotalDays   int       `json:"total_days"`
	Active      bool      `json:"active"`
	ClosedAt    time.Time `json:"closed_at,omitempty"`
}

// NewContribution builds a fresh active record for plan.
func NewContribution(account string, index int, amount int64, plan Plan, now time.Time) Contribution {
	return Contribution{
		Account:   account,
		Index:     index,
		Amount:    amount,
		PlanID:    plan.ID,
		StartedAt: now,
		TotalDays: plan.TotalDays(),
		Active:    true,
	}
}

// ElapsedDays returns whole days since the start, clamped to [0, TotalDays].
func (c *Contribution) ElapsedDays(now time.Time) int {
	d := now.Sub(c.StartedAt)
	if d <= 0 {
		return 0
	}
	days := int(d / Day)
	if days > c.TotalDays {
		return c.TotalDays
	}
	return days
}

// UnclaimedDays returns matured days that have not been paid yet.
func (c *Contribution) UnclaimedDays(now time.Time) int {
	n := c.ElapsedDays(now) - c.ClaimedDays
	if n < 0 {
		return 0
	}
	return n
}

// PaidOutAt returns the cumulative principal released after days tranches.
// Integer floor per step means the final tranche carries the remainder and
// PaidOutAt(TotalDays) == Amount exactly.
func (c *Contribution) PaidOutAt(days int) int64 {
	if c.TotalDays <= 0 {
		return 0
	}
	if days >= c.TotalDays {
		return c.Amount
	}
	return c.Amount * int64(days) / int64(c.TotalDays)
}

// PaidOut returns principal already released by claims.
func (c *Contribution) PaidOut() int64 {
	return c.PaidOutAt(c.ClaimedDays)
}

// Remaining returns principal still held for this record.
func (c *Contribution) Remaining() int64 {
	return c.Amount - c.PaidOut()
}

// Finished reports whether the record accepts no more claims or cancels.
func (c *Contribution) Finished() bool {
	return !c.Active || c.ClaimedDays >= c.TotalDays
}

// ClaimQuote describes the outcome of a claim before it is applied.
type ClaimQuote struct {
	FromDays int   `json:"from_days"`
	ToDays   int   `json:"to_days"`
	Payout   int64 `json:"payout"`
	Final    bool  `json:"final"`
}

// QuoteClaim validates a claim at now and returns what it would pay.
// A claim needs at least ClaimWindowDays unclaimed days, or the plan must
// have reached its end.
func (c *Contribution) QuoteClaim(now time.Time) (ClaimQuote, error) {
	if c.Finished() {
		return ClaimQuote{}, ErrAlreadyClaimed
	}
	elapsed := c.ElapsedDays(now)
	toClaim := c.UnclaimedDays(now)
	if toClaim == 0 || (toClaim < ClaimWindowDays && elapsed < c.TotalDays) {
		return ClaimQuote{}, ErrClaimTooEarly
	}
	return ClaimQuote{
		FromDays: c.ClaimedDays,
		ToDays:   elapsed,
		Payout:   c.PaidOutAt(elapsed) - c.PaidOut(),
		Final:    elapsed >= c.TotalDays,
	}, nil
}

// ApplyClaim advances the record to the quoted day count.
func (c *Contribution) ApplyClaim(q ClaimQuote, now time.Time) {
	c.ClaimedDays = q.ToDays
	if q.Final {
		c.Active = false
		c.ClosedAt = now
	}
}

// QuoteCancel returns the principal a cancellation releases.
func (c *Contribution) QuoteCancel() (int64, error) {
	if c.Finished() {
		return 0, ErrContributionFinished
	}
	return c.Remaining(), nil
}

// ApplyCancel deactivates the record.
func (c *Contribution) ApplyCancel(now time.Time) {
	c.Active = false
	c.ClosedAt = now
}

// NextWithdrawalAt returns the moment the next claim becomes possible:
// ClaimWindowDays after the last claimed day, capped at plan end.
func (c *Contribution) NextWithdrawalAt() time.Time {
	target := c.ClaimedDays + ClaimWindowDays
	if target > c.TotalDays {
		target = c.TotalDays
	}
	return c.StartedAt.Add(time.Duration(target) * Day)
}

// TimeUntilNextWithdrawal returns how long until the next claim unlocks,
// or 0 if it already has or the record is finished.
func (c *Contribution) TimeUntilNextWithdrawal(now time.Time) time.Duration {
	if c.Finished() {
		return 0
	}
	d := c.NextWithdrawalAt().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Seconds converts d to whole seconds, rounding any fraction up so a wait
// never reads shorter than it is.
func Seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

// SplitPenalty divides a cancellation refund by a basis-point penalty.
func SplitPenalty(remaining int64, penaltyBps int64) (refund, penalty int64) {
	if penaltyBps <= 0 {
		return remaining, 0
	}
	penalty = remaining * penaltyBps / BasisPoints
	return remaining - penalty, penalty
}
