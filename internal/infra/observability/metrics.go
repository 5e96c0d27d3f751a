package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Pool Metrics ───────────────────────────────────────────────────────────

// Contributions counts accepted contributions by plan.
var Contributions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "pool",
	Name:      "contributions_total",
	Help:      "Total contributions accepted, by plan.",
}, []string{"plan"})

// Claims counts successful claims by plan and whether the claim closed the record.
var Claims = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "pool",
	Name:      "claims_total",
	Help:      "Total successful claims, by plan and finality.",
}, []string{"plan", "final"})

// Cancellations counts early exits by plan.
var Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "pool",
	Name:      "cancellations_total",
	Help:      "Total cancelled contributions, by plan.",
}, []string{"plan"})

// Rejections counts refused operations by error kind.
var Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "pool",
	Name:      "rejected_total",
	Help:      "Total rejected operations, by operation and error kind.",
}, []string{"op", "kind"})

// UnitsMoved sums base units moved by direction.
var UnitsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "pool",
	Name:      "units_moved_total",
	Help:      "Total base units moved, by direction (in, out, refund, earnings).",
}, []string{"direction"})

// CompensatingTransfers counts reversals issued after a failed commit.
var CompensatingTransfers = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "pool",
	Name:      "compensating_transfers_total",
	Help:      "Transfers reversed because the ledger commit failed afterwards.",
})

// ValueLocked is the sum of unclaimed principal across active records.
var ValueLocked = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "treasury",
	Subsystem: "pool",
	Name:      "value_locked_units",
	Help:      "Unclaimed principal held by the pool, in base units.",
})

// ActiveRecords is the number of active contributions.
var ActiveRecords = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "treasury",
	Subsystem: "pool",
	Name:      "active_records",
	Help:      "Number of active contribution records.",
})

// ClaimableRecords is the number of records a claim would succeed on right now.
var ClaimableRecords = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "treasury",
	Subsystem: "pool",
	Name:      "claimable_records",
	Help:      "Active records currently eligible for a claim.",
})

// ─── Referral Metrics ───────────────────────────────────────────────────────

// Registrations counts new referral nodes by kind (root or sponsored).
var Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "referral",
	Name:      "registrations_total",
	Help:      "Total registered accounts, by kind.",
}, []string{"kind"})

// FeeDistributed sums fee units routed to each referral level.
// Level 0 is the manager's unpaid remainder.
var FeeDistributed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "referral",
	Name:      "fee_distributed_units_total",
	Help:      "Fee units credited, by referral level (0 = manager).",
}, []string{"level"})

// EarningsOutstanding is the sum of undrawn earnings balances.
var EarningsOutstanding = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "treasury",
	Subsystem: "referral",
	Name:      "earnings_outstanding_units",
	Help:      "Credited but not yet withdrawn earnings, in base units.",
})

// ─── Sweeper Metrics ────────────────────────────────────────────────────────

// SweepDuration tracks how long one sweep takes.
var SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "treasury",
	Subsystem: "sweeper",
	Name:      "duration_seconds",
	Help:      "Duration of one sweep over active records.",
	Buckets:   prometheus.DefBuckets,
})

// SweepErrors counts failed sweeps.
var SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "sweeper",
	Name:      "errors_total",
	Help:      "Total sweeps that failed.",
})

// ─── Trace Metrics ──────────────────────────────────────────────────────────

// TracesRecorded tracks total spans recorded.
var TracesRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "traces",
	Name:      "spans_recorded_total",
	Help:      "Total trace spans recorded.",
})

// TraceErrors tracks error spans.
var TraceErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "treasury",
	Subsystem: "traces",
	Name:      "error_spans_total",
	Help:      "Total trace spans with error status.",
})

// PlanLabel renders a plan id as a metric label.
func PlanLabel(id int) string { return strconv.Itoa(id) }

// LevelLabel renders a referral level as a metric label.
func LevelLabel(level int) string { return strconv.Itoa(level) }
