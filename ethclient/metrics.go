package ethclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "rpc",
		Name:      "request_results_total",
	}, []string{"chain_id", "query", "status"})

	RequestDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prover",
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 20},
	}, []string{"chain_id", "query"})
)

func ObserveError(chainID, query string, err error) {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			RequestResults.WithLabelValues(chainID, query, "timeout").Inc()
		} else if rpcErr, ok := err.(rpc.Error); ok {
			RequestResults.WithLabelValues(chainID, query, fmt.Sprintf("error-%d", rpcErr.ErrorCode())).Inc()
		} else {
			RequestResults.WithLabelValues(chainID, query, "error").Inc()
		}
	} else {
		RequestResults.WithLabelValues(chainID, query, "ok").Inc()
	}
}

func ObserveDuration(chainID, query string) func() time.Duration {
	return prometheus.NewTimer(RequestDurations.WithLabelValues(chainID, query)).ObserveDuration
}
