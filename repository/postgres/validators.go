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

type validatorsRepo basePostgresRepo

func NewValidatorsRepo(table string, db *db.DB) entity.ValidatorsRepo {
	return (*validatorsRepo)(newBasePostgresRepo(table, db))
}

func (r *validatorsRepo) Ensure(ctx context.Context, val *entity.Validator) error {
	q, args, err := r.builder.Insert(r.table).
		Columns("address", "public_key", "stake", "is_active", "is_slashed", "reputation", "joined_at", "last_seen_at").
		Values(val.Address, val.PublicKey, val.Stake, val.IsActive, val.IsSlashed, val.Reputation, val.JoinedAt, val.LastSeenAt).
		Suffix("ON CONFLICT (address) DO UPDATE SET updated_at = NOW(), stake = EXCLUDED.stake, is_active = EXCLUDED.is_active, is_slashed = EXCLUDED.is_slashed, reputation = EXCLUDED.reputation, last_seen_at = EXCLUDED.last_seen_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't ensure validator: %w", err)
	}
	return nil
}

func (r *validatorsRepo) GetByAddress(ctx context.Context, address common.Address) (*entity.Validator, error) {
	q, args, err := r.builder.Select("address", "public_key", "stake", "is_active", "is_slashed", "reputation", "joined_at", "last_seen_at").
		From(r.table).
		Where(sq.Eq{"address": address}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	val := new(entity.Validator)
	err = r.db.GetContext(ctx, val, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("can't get validator: %w", err)
	}
	return val, nil
}

func (r *validatorsRepo) FindAll(ctx context.Context) ([]*entity.Validator, error) {
	q, args, err := r.builder.Select("address", "public_key", "stake", "is_active", "is_slashed", "reputation", "joined_at", "last_seen_at").
		From(r.table).
		OrderBy("joined_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	vals := make([]*entity.Validator, 0, 10)
	err = r.db.SelectContext(ctx, &vals, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get validators: %w", err)
	}
	return vals, nil
}
