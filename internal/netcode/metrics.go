package netcode

import "github.com/prometheus/client_golang/prometheus"

var (
	rpcAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightrunners_rpc_attempts_total",
			Help: "Total RPC attempts by endpoint, including retries",
		},
		[]string{"endpoint"},
	)

	rpcRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nightrunners_rpc_retries_total",
			Help: "Total retry attempts after transient failures",
		},
	)

	rpcFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightrunners_rpc_failures_total",
			Help: "Definitive RPC failures by endpoint and class (permanent, exhausted)",
		},
		[]string{"endpoint", "class"},
	)

	syncPushesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nightrunners_sync_pushes_skipped_total",
			Help: "Sync ticks skipped because a push was already in flight",
		},
	)

	correctionsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightrunners_corrections_applied_total",
			Help: "Server corrections applied by kind (heat, position, mission_state, heat_deviation, position_deviation)",
		},
		[]string{"kind"},
	)

	forcedTerminations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nightrunners_forced_terminations_total",
			Help: "Missions force-terminated by the authority",
		},
	)

	eventsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nightrunners_events_rejected_total",
			Help: "Critical actions rejected by validation, including fail-closed transport failures",
		},
	)
)

func init() {
	prometheus.MustRegister(rpcAttempts)
	prometheus.MustRegister(rpcRetries)
	prometheus.MustRegister(rpcFailures)
	prometheus.MustRegister(syncPushesSkipped)
	prometheus.MustRegister(correctionsApplied)
	prometheus.MustRegister(forcedTerminations)
	prometheus.MustRegister(eventsRejected)
}
