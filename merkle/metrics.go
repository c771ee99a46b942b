package merkle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PendingEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prover",
		Subsystem: "batcher",
		Name:      "pending_events",
		Help:      "Number of buffered events waiting for the current batch to be finalized.",
	})
	FinalizedBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "batcher",
		Name:      "finalized_batches_total",
		Help:      "Total number of finalized merkle batches.",
	})
	BatchSizes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prover",
		Subsystem: "batcher",
		Name:      "batch_size_events",
		Help:      "Distribution of finalized batch sizes.",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
	})
)
