package risk

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the gate. Registered in init() and served by
// `riskgate run --metrics-addr`.
var (
	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_decisions_total",
			Help: "Pre-run admission decisions",
		},
		[]string{"kind", "outcome"},
	)

	gateBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_blocks_total",
			Help: "Blocked runs split by the check that failed",
		},
		[]string{"check"},
	)

	activeLeases = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskgate_active_leases",
			Help: "Active (non-stale) run leases at the last count",
		},
		[]string{"kind"},
	)

	incidentsLogged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_incidents_total",
			Help: "Incidents logged by normalized severity",
		},
		[]string{"severity"},
	)
)

func init() {
	prometheus.MustRegister(gateDecisions, gateBlocks, activeLeases, incidentsLogged)
}
