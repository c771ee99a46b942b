package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/bridge-prover/db"
	"github.com/poanetwork/bridge-prover/entity"
)

type batchesRepo basePostgresRepo

func NewBatchesRepo(table string, db *db.DB) entity.BatchesRepo {
	return (*batchesRepo)(newBasePostgresRepo(table, db))
}

// batchRow flattens MerkleBatch for sqlx scanning; events travel as a
// JSONB blob.
type batchRow struct {
	ID          uint64      `db:"id"`
	Root        common.Hash `db:"root"`
	Events      []byte      `db:"events"`
	TotalAmount string      `db:"total_amount"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (r *batchesRepo) Ensure(ctx context.Context, batch *entity.MerkleBatch) error {
	events, err := json.Marshal(batch.Events)
	if err != nil {
		return fmt.Errorf("can't marshal batch events: %w", err)
	}
	totalAmount := "0"
	if batch.TotalAmount != nil {
		totalAmount = batch.TotalAmount.String()
	}
	q, args, err := r.builder.Insert(r.table).
		Columns("id", "root", "events", "total_amount", "created_at").
		Values(batch.ID, batch.Root, events, totalAmount, batch.CreatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't ensure merkle batch: %w", err)
	}
	return nil
}

func (r *batchesRepo) GetByID(ctx context.Context, id uint64) (*entity.MerkleBatch, error) {
	q, args, err := r.builder.Select("id", "root", "events", "total_amount", "created_at").
		From(r.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	row := new(batchRow)
	err = r.db.GetContext(ctx, row, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get merkle batch: %w", err)
	}
	return row.toEntity()
}

func (row *batchRow) toEntity() (*entity.MerkleBatch, error) {
	var events []*entity.BridgeEvent
	if err := json.Unmarshal(row.Events, &events); err != nil {
		return nil, fmt.Errorf("can't unmarshal batch events: %w", err)
	}
	totalAmount, ok := new(big.Int).SetString(row.TotalAmount, 10)
	if !ok {
		return nil, fmt.Errorf("can't parse batch total amount %q", row.TotalAmount)
	}
	return &entity.MerkleBatch{
		ID:          row.ID,
		Root:        row.Root,
		Events:      events,
		TotalAmount: totalAmount,
		CreatedAt:   row.CreatedAt,
	}, nil
}
