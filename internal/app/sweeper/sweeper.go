// Package sweeper periodically walks every active contribution to refresh
// the pool gauges and rebuild the schedule of upcoming claim windows.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/treasury-pool/treasury/internal/domain"
	"github.com/treasury-pool/treasury/internal/infra/dsa"
	"github.com/treasury-pool/treasury/internal/infra/observability"
	"github.com/treasury-pool/treasury/internal/infra/sqlite"
)

// Config controls the sweep cadence.
type Config struct {
	Enabled  bool
	Interval time.Duration // default: 1m
}

// DefaultConfig returns a one-minute sweep.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Interval: time.Minute,
	}
}

// Stats summarizes one sweep.
type Stats struct {
	At                  time.Time     `json:"at"`
	Active              int           `json:"active"`
	Claimable           int           `json:"claimable"`
	ValueLocked         int64         `json:"value_locked"`
	EarningsOutstanding int64         `json:"earnings_outstanding"`
	Duration            time.Duration `json:"duration"`
}

// Sweeper owns the unlock queue and the job that refreshes it.
type Sweeper struct {
	config Config
	db     *sqlite.DB
	queue  *dsa.UnlockQueue
	log    *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	sched gocron.Scheduler
	last  Stats
}

// New creates a sweeper. Call Start to schedule it.
func New(cfg Config, db *sqlite.DB, log *zap.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Sweeper{
		config: cfg,
		db:     db,
		queue:  dsa.NewUnlockQueue(),
		log:    log.Named("sweeper"),
		now:    time.Now,
	}
}

// Start schedules the sweep, running it once immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched != nil {
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.config.Interval),
		gocron.NewTask(func() {
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Warn("sweep failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		sched.Shutdown()
		return fmt.Errorf("schedule sweep: %w", err)
	}
	sched.Start()
	s.sched = sched
	s.log.Info("sweeper started", zap.Duration("interval", s.config.Interval))
	return nil
}

// Stop shuts the scheduler down and waits for a running sweep.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	sched := s.sched
	s.sched = nil
	s.mu.Unlock()

	if sched == nil {
		return nil
	}
	return sched.Shutdown()
}

// Sweep performs one pass over the active records.
func (s *Sweeper) Sweep(ctx context.Context) (Stats, error) {
	start := time.Now()
	now := s.now()

	active, err := s.db.AllActiveContributions(ctx)
	if err != nil {
		observability.SweepErrors.Inc()
		return Stats{}, err
	}
	outstanding, err := s.db.TotalEarningsOutstanding(ctx)
	if err != nil {
		observability.SweepErrors.Inc()
		return Stats{}, err
	}

	st := Stats{At: now, Active: len(active), EarningsOutstanding: outstanding}
	unlocks := make([]dsa.Unlock, 0, len(active))
	for i := range active {
		c := &active[i]
		st.ValueLocked += c.Remaining()
		if _, err := c.QuoteClaim(now); err == nil {
			st.Claimable++
		}
		unlocks = append(unlocks, nextUnlock(c))
	}
	s.queue.Replace(unlocks)
	st.Duration = time.Since(start)

	observability.ActiveRecords.Set(float64(st.Active))
	observability.ClaimableRecords.Set(float64(st.Claimable))
	observability.ValueLocked.Set(float64(st.ValueLocked))
	observability.EarningsOutstanding.Set(float64(st.EarningsOutstanding))
	observability.SweepDuration.Observe(st.Duration.Seconds())

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	s.log.Debug("sweep done",
		zap.Int("active", st.Active),
		zap.Int("claimable", st.Claimable),
		observability.Units("value_locked", st.ValueLocked),
		zap.Duration("took", st.Duration),
	)
	return st, nil
}

// nextUnlock describes the next claim window of c and what it will pay.
func nextUnlock(c *domain.Contribution) dsa.Unlock {
	target := min(c.ClaimedDays+domain.ClaimWindowDays, c.TotalDays)
	return dsa.Unlock{
		Account: c.Account,
		Index:   c.Index,
		PlanID:  c.PlanID,
		At:      c.NextWithdrawalAt(),
		Amount:  c.PaidOutAt(target) - c.PaidOut(),
		Final:   target == c.TotalDays,
	}
}

// Upcoming returns the n soonest claim windows from the last sweep.
func (s *Sweeper) Upcoming(n int) []dsa.Unlock {
	return s.queue.Upcoming(n)
}

// Last returns the stats of the most recent sweep.
func (s *Sweeper) Last() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
