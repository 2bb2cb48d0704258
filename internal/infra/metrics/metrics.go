package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrorsRecorded tracks classified errors entering the ledger
	ErrorsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novabar_errors_recorded_total",
			Help: "Total number of classified errors recorded",
		},
		[]string{"category", "severity"},
	)

	// ErrorsActive tracks currently unresolved errors
	ErrorsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "novabar_errors_active",
			Help: "Number of unresolved errors in the ledger",
		},
	)

	// RecoveryAttempts tracks recovery attempts per action
	RecoveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novabar_recovery_attempts_total",
			Help: "Total number of recovery attempts",
		},
		[]string{"action"},
	)

	// RecoveryOutcomes tracks terminal recovery outcomes
	RecoveryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novabar_recovery_outcomes_total",
			Help: "Total number of completed recoveries by outcome",
		},
		[]string{"outcome"},
	)

	// AuthChecks tracks authorization checks by result and source
	AuthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novabar_auth_checks_total",
			Help: "Total number of authorization checks",
		},
		[]string{"result", "source"},
	)

	// AuthorityAvailable tracks authority service reachability (1/0)
	AuthorityAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "novabar_authority_available",
			Help: "Whether the authority service is reachable",
		},
	)

	// UsageBytes tracks current byte counters per connection and direction
	UsageBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "novabar_usage_bytes",
			Help: "Current usage byte counters per connection",
		},
		[]string{"connection", "direction"},
	)

	// UsagePercent tracks usage as a percentage of the monthly limit
	UsagePercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "novabar_usage_percent",
			Help: "Usage as percentage of the monthly limit",
		},
		[]string{"connection"},
	)

	// UsageAlarms tracks threshold and limit alarms per connection
	UsageAlarms = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novabar_usage_alarms_total",
			Help: "Total number of usage threshold and limit alarms",
		},
		[]string{"connection", "kind"},
	)
)
