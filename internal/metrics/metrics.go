package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClaimsTotal counts reward operations by kind and outcome
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_claims_total",
			Help: "Total number of reward operations",
		},
		[]string{"kind", "outcome"},
	)

	// ClaimDuration tracks reward operation processing time
	ClaimDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reward_claim_duration_seconds",
			Help:    "Reward operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// RewardAmount tracks the amount of reward tokens credited
	RewardAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reward_amount",
			Help:    "Amount of reward tokens credited per operation",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 50, 100, 1000},
		},
		[]string{"kind"},
	)

	// CommissionSkipped counts referral commissions that could not be credited
	CommissionSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_referral_commission_skipped_total",
			Help: "Referral commissions skipped after a successful farm claim",
		},
		[]string{"reason"},
	)

	// LedgerAppendFailures counts balance changes whose transaction could not be appended
	LedgerAppendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_ledger_append_failures_total",
			Help: "Transactions that failed to append after the account was updated",
		},
		[]string{"type"},
	)

	// OracleRequests counts payment oracle requests by operation and result
	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_oracle_requests_total",
			Help: "Total number of ledger oracle requests",
		},
		[]string{"operation", "result"},
	)

	// OracleDuration tracks payment oracle latency
	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reward_oracle_request_duration_seconds",
			Help:    "Ledger oracle request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ReconcileMismatchedAccounts tracks accounts whose balance differs from the transaction log
	ReconcileMismatchedAccounts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reward_reconcile_mismatched_accounts",
			Help: "Accounts whose balance differs from the sum of their transactions",
		},
	)

	// ReconcileRuns counts reconciliation passes by result
	ReconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_reconcile_runs_total",
			Help: "Total number of reconciliation passes",
		},
		[]string{"result"},
	)

	// RateLimited counts requests rejected by the per-user limiter
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reward_rate_limited_requests_total",
			Help: "Requests rejected by the per-user rate limiter",
		},
	)

	// ErrorsTotal counts errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
