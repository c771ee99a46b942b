package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/poanetwork/bridge-prover/db"
	"github.com/poanetwork/bridge-prover/entity"
)

type relayJobsRepo basePostgresRepo

func NewRelayJobsRepo(table string, db *db.DB) entity.RelayJobsRepo {
	return (*relayJobsRepo)(newBasePostgresRepo(table, db))
}

func (r *relayJobsRepo) Ensure(ctx context.Context, job *entity.RelayJob) error {
	q, args, err := r.builder.Insert(r.table).
		Columns("id", "batch_id", "proof_id", "retry_count", "status", "last_attempt", "last_error", "created_at").
		Values(job.ID, job.BatchID, job.ProofID, job.RetryCount, string(job.Status), job.LastAttempt, job.LastError, job.CreatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET updated_at = NOW(), retry_count = EXCLUDED.retry_count, status = EXCLUDED.status, last_attempt = EXCLUDED.last_attempt, last_error = EXCLUDED.last_error").
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't ensure relay job: %w", err)
	}
	return nil
}

func (r *relayJobsRepo) FindByStatus(ctx context.Context, status entity.RelayJobStatus) ([]*entity.RelayJob, error) {
	q, args, err := r.builder.Select("id", "batch_id", "proof_id", "retry_count", "status", "last_attempt", "last_error", "created_at").
		From(r.table).
		Where(sq.Eq{"status": string(status)}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	jobs := make([]*entity.RelayJob, 0, 10)
	err = r.db.SelectContext(ctx, &jobs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get relay jobs: %w", err)
	}
	return jobs, nil
}
