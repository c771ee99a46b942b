package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/bridge-prover/db"
	"github.com/poanetwork/bridge-prover/entity"
)

type usedProofsRepo basePostgresRepo

func NewUsedProofsRepo(table string, db *db.DB) entity.UsedProofsRepo {
	return (*usedProofsRepo)(newBasePostgresRepo(table, db))
}

// Add inserts the proof id, relying on the primary key for atomicity:
// the second writer observes zero affected rows and learns the id was
// already consumed.
func (r *usedProofsRepo) Add(ctx context.Context, id common.Hash) (bool, error) {
	q, args, err := r.builder.Insert(r.table).
		Columns("proof_id").
		Values(id).
		Suffix("ON CONFLICT (proof_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't insert used proof id: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("can't get affected rows: %w", err)
	}
	return inserted > 0, nil
}

func (r *usedProofsRepo) Contains(ctx context.Context, id common.Hash) (bool, error) {
	q, args, err := r.builder.Select("proof_id").
		From(r.table).
		Where(sq.Eq{"proof_id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	var found common.Hash
	err = r.db.GetContext(ctx, &found, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("can't get used proof id: %w", err)
	}
	return true, nil
}
