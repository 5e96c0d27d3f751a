package pool

import (
	"context"
	"time"

	"github.com/treasury-pool/treasury/internal/domain"
)

// View is a contribution with its derived, time-dependent figures.
type View struct {
	domain.Contribution
	ElapsedDays      int       `json:"elapsed_days"`
	DaysToClaim      int       `json:"days_to_claim"`
	PaidOut          int64     `json:"paid_out"`
	Remaining        int64     `json:"remaining"`
	Claimable        int64     `json:"claimable"`
	NextWithdrawalAt time.Time `json:"next_withdrawal_at"`
	SecondsUntilNext int64     `json:"seconds_until_next"`
}

// DaysElapsedToClaim returns the matured days a claim on record index
// would pay: elapsed days clamped to the plan length, less days already
// claimed.
func (l *Ledger) DaysElapsedToClaim(ctx context.Context, account string, index int) (int, error) {
	c, err := l.db.GetContribution(ctx, account, index)
	if err != nil {
		return 0, err
	}
	return c.UnclaimedDays(l.now()), nil
}

// TimeUntilNextWithdrawal returns how long until record index can next be
// claimed, or 0 if it can be claimed now or is finished.
func (l *Ledger) TimeUntilNextWithdrawal(ctx context.Context, account string, index int) (time.Duration, error) {
	c, err := l.db.GetContribution(ctx, account, index)
	if err != nil {
		return 0, err
	}
	return c.TimeUntilNextWithdrawal(l.now()), nil
}

// ValueInPool sums the unclaimed principal of account's active records.
func (l *Ledger) ValueInPool(ctx context.Context, account string) (int64, error) {
	return l.db.ValueInPool(ctx, account)
}

// TotalValueLocked sums the unclaimed principal of every active record.
func (l *Ledger) TotalValueLocked(ctx context.Context) (int64, error) {
	return l.db.TotalValueLocked(ctx)
}

// ActiveContributions returns one page of account's active records with
// index >= offset, in index order.
func (l *Ledger) ActiveContributions(ctx context.Context, account string, offset int) ([]domain.Contribution, error) {
	if offset < 0 {
		offset = 0
	}
	return l.db.ActiveContributions(ctx, account, offset, l.config.PageSize)
}

// Contributions returns every record of account, active or not.
func (l *Ledger) Contributions(ctx context.Context, account string) ([]domain.Contribution, error) {
	return l.db.Contributions(ctx, account)
}

// Contribution returns record index with its derived figures.
func (l *Ledger) Contribution(ctx context.Context, account string, index int) (View, error) {
	c, err := l.db.GetContribution(ctx, account, index)
	if err != nil {
		return View{}, err
	}
	return l.view(*c), nil
}

func (l *Ledger) view(c domain.Contribution) View {
	now := l.now()
	v := View{
		Contribution: c,
		ElapsedDays:  c.ElapsedDays(now),
		DaysToClaim:  c.UnclaimedDays(now),
		PaidOut:      c.PaidOut(),
		Remaining:    c.Remaining(),
	}
	if q, err := c.QuoteClaim(now); err == nil {
		v.Claimable = q.Payout
	}
	if !c.Finished() {
		v.NextWithdrawalAt = c.NextWithdrawalAt()
	}
	v.SecondsUntilNext = domain.Seconds(c.TimeUntilNextWithdrawal(now))
	return v
}

// Earnings returns account's withdrawable and lifetime earnings.
func (l *Ledger) Earnings(ctx context.Context, account string) (balance, total int64, err error) {
	return l.db.Earnings(ctx, account)
}

// History returns account's most recent ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, account string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return l.db.LedgerEntries(ctx, account, limit)
}

// PageSize returns the active-contribution page size.
func (l *Ledger) PageSize() int { return l.config.PageSize }

// Plans returns the catalog the ledger accepts contributions into.
func (l *Ledger) Plans() []domain.Plan { return l.catalog.Plans() }

// SetClock replaces the ledger's time source.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }
