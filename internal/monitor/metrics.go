package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "vigil", Subsystem: "monitor", Name: "runs_total", Help: "Monitoring runs by outcome."},
		[]string{"result"},
	)
	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "vigil", Subsystem: "monitor", Name: "alerts_total", Help: "Dispatched alerts by severity."},
		[]string{"severity"},
	)
	driftScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "vigil", Subsystem: "monitor", Name: "drift_score", Help: "Latest drift metric per report entry."},
		[]string{"feature", "kind"},
	)
)

func init() {
	_ = prometheus.Register(runsTotal)
	_ = prometheus.Register(alertsTotal)
	_ = prometheus.Register(driftScore)
}
