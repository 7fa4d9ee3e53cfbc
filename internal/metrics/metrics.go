package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LedgerMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starpets_ledger_mutations_total",
			Help: "Committed wallet mutations by kind (GEM, SHELL, TICKET, ENERGY) and source",
		},
		[]string{"kind", "source"},
	)
	ProductionClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starpets_production_claims_total",
			Help: "Production claims, split by whether energy capped the payout",
		},
		[]string{"capped"},
	)
	FusionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starpets_fusion_attempts_total",
			Help: "Fusion attempts by target rarity and outcome",
		},
		[]string{"target", "outcome"},
	)
	MineClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starpets_mine_claims_total",
			Help: "Mine challenge claims by spot level",
		},
		[]string{"spot"},
	)
	SweepResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starpets_mine_sweep_challenges_total",
			Help: "Expired challenges seen by the settlement sweep by result",
		},
		[]string{"result"},
	)
	TxConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starpets_tx_conflicts_total",
			Help: "Units of work that hit a serialization conflict and were retried",
		},
	)
	WorkerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starpets_worker_runs_total",
			Help: "Periodic job runs by job and outcome (ok, error, skipped)",
		},
		[]string{"job", "outcome"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starpets_http_requests_total",
			Help: "API requests by route pattern and status code",
		},
		[]string{"route", "status"},
	)
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starpets_http_rate_limited_total",
			Help: "API requests rejected by the per-user limiter",
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		LedgerMutations,
		ProductionClaims,
		FusionAttempts,
		MineClaims,
		SweepResults,
		TxConflicts,
		WorkerRuns,
		HTTPRequests,
		RateLimited,
	)
}
