package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type RelayJobStatus string

const (
	RelayJobStatusPending   RelayJobStatus = "pending"
	RelayJobStatusCompleted RelayJobStatus = "completed"
	RelayJobStatusFailed    RelayJobStatus = "failed"
)

// RelayJob carries one finalized batch and its sealed proof to the
// destination chain. Terminal jobs are kept for operator inspection.
type RelayJob struct {
	ID          uint64         `db:"id" json:"id"`
	BatchID     uint64         `db:"batch_id" json:"batch_id"`
	ProofID     common.Hash    `db:"proof_id" json:"proof_id"`
	RetryCount  uint           `db:"retry_count" json:"retry_count"`
	Status      RelayJobStatus `db:"status" json:"status"`
	LastAttempt *time.Time     `db:"last_attempt" json:"last_attempt,omitempty"`
	LastError   string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

type RelayJobsRepo interface {
	Ensure(ctx context.Context, job *RelayJob) error
	FindByStatus(ctx context.Context, status RelayJobStatus) ([]*RelayJob, error)
}
