package relayer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "relayer",
		Name:      "ingested_events_total",
		Help:      "Total number of bridge events accepted into the pipeline.",
	})
	RelayAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "relayer",
		Name:      "relay_attempts_total",
		Help:      "Total number of destination delivery attempts.",
	})
	RelayResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "relayer",
		Name:      "relay_results_total",
		Help:      "Terminal relay job outcomes by result.",
	}, []string{"result"})
	RequeuedJobs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "relayer",
		Name:      "requeued_jobs_total",
		Help:      "Total number of relay jobs requeued after a transient failure.",
	})
	LatestSourceBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prover",
		Subsystem: "relayer",
		Name:      "latest_source_block",
		Help:      "Latest confirmed source chain block seen by the event monitor.",
	})
)
