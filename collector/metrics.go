package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProofsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "prover",
		Subsystem: "collector",
		Name:      "proofs",
		Help:      "Number of tracked proofs by lifecycle status.",
	}, []string{"status"})
	SealedProofs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "collector",
		Name:      "sealed_proofs_total",
		Help:      "Total number of proofs that reached the verified state.",
	})
	RejectedSignatures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "collector",
		Name:      "rejected_signatures_total",
		Help:      "Total number of rejected signature submissions by reason.",
	}, []string{"reason"})
)
