package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/bridge-prover/db"
	"github.com/poanetwork/bridge-prover/entity"
)

type proofsRepo basePostgresRepo

func NewProofsRepo(table string, db *db.DB) entity.ProofsRepo {
	return (*proofsRepo)(newBasePostgresRepo(table, db))
}

// proofRow flattens BridgeProof for sqlx scanning; signatures travel as
// a JSONB blob.
type proofRow struct {
	ID                  common.Hash `db:"id"`
	BatchID             uint64      `db:"batch_id"`
	MsgHash             common.Hash `db:"msg_hash"`
	SourceChainID       string      `db:"source_chain_id"`
	TargetChainID       string      `db:"target_chain_id"`
	Signatures          []byte      `db:"signatures"`
	AggregatedSignature []byte      `db:"aggregated_signature"`
	Status              string      `db:"status"`
	CreatedAt           time.Time   `db:"created_at"`
	ExpiresAt           time.Time   `db:"expires_at"`
}

func (r *proofsRepo) Ensure(ctx context.Context, proof *entity.BridgeProof) error {
	sigs, err := json.Marshal(proof.Signatures)
	if err != nil {
		return fmt.Errorf("can't marshal proof signatures: %w", err)
	}
	q, args, err := r.builder.Insert(r.table).
		Columns("id", "batch_id", "msg_hash", "source_chain_id", "target_chain_id", "signatures", "aggregated_signature", "status", "created_at", "expires_at").
		Values(proof.ID, proof.BatchID, proof.MsgHash, proof.SourceChainID, proof.TargetChainID, sigs, []byte(proof.AggregatedSignature), string(proof.Status), proof.CreatedAt, proof.ExpiresAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET updated_at = NOW(), signatures = EXCLUDED.signatures, aggregated_signature = EXCLUDED.aggregated_signature, status = EXCLUDED.status").
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't ensure proof: %w", err)
	}
	return nil
}

func (r *proofsRepo) GetByID(ctx context.Context, id common.Hash) (*entity.BridgeProof, error) {
	q, args, err := r.builder.Select("id", "batch_id", "msg_hash", "source_chain_id", "target_chain_id", "signatures", "aggregated_signature", "status", "created_at", "expires_at").
		From(r.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	row := new(proofRow)
	err = r.db.GetContext(ctx, row, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get proof: %w", err)
	}
	return row.toEntity()
}

func (row *proofRow) toEntity() (*entity.BridgeProof, error) {
	var sigs []*entity.ValidatorSignature
	if err := json.Unmarshal(row.Signatures, &sigs); err != nil {
		return nil, fmt.Errorf("can't unmarshal proof signatures: %w", err)
	}
	return &entity.BridgeProof{
		ID:                  row.ID,
		BatchID:             row.BatchID,
		MsgHash:             row.MsgHash,
		SourceChainID:       row.SourceChainID,
		TargetChainID:       row.TargetChainID,
		Signatures:          sigs,
		AggregatedSignature: row.AggregatedSignature,
		Status:              entity.ProofStatus(row.Status),
		CreatedAt:           row.CreatedAt,
		ExpiresAt:           row.ExpiresAt,
	}, nil
}
