package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/poanetwork/bridge-prover/db"
	"github.com/poanetwork/bridge-prover/entity"
)

type processedNoncesRepo basePostgresRepo

func NewProcessedNoncesRepo(table string, db *db.DB) entity.ProcessedNoncesRepo {
	return (*processedNoncesRepo)(newBasePostgresRepo(table, db))
}

func (r *processedNoncesRepo) Add(ctx context.Context, chainID string, nonce uint64) (bool, error) {
	q, args, err := r.builder.Insert(r.table).
		Columns("chain_id", "nonce").
		Values(chainID, nonce).
		Suffix("ON CONFLICT (chain_id, nonce) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't insert processed nonce: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("can't get affected rows: %w", err)
	}
	return inserted > 0, nil
}

func (r *processedNoncesRepo) Contains(ctx context.Context, chainID string, nonce uint64) (bool, error) {
	q, args, err := r.builder.Select("nonce").
		From(r.table).
		Where(sq.Eq{"chain_id": chainID, "nonce": nonce}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	var found uint64
	err = r.db.GetContext(ctx, &found, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("can't get processed nonce: %w", err)
	}
	return true, nil
}
