package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Validator struct {
	Address    common.Address `db:"address" json:"address"`
	PublicKey  hexutil.Bytes  `db:"public_key" json:"public_key"`
	Stake      uint64         `db:"stake" json:"stake"`
	IsActive   bool           `db:"is_active" json:"is_active"`
	IsSlashed  bool           `db:"is_slashed" json:"is_slashed"`
	Reputation uint           `db:"reputation" json:"reputation"`
	JoinedAt   time.Time      `db:"joined_at" json:"joined_at"`
	LastSeenAt *time.Time     `db:"last_seen_at" json:"last_seen_at,omitempty"`
}

// CanSign tells if signatures from this validator count towards quorum.
func (v *Validator) CanSign() bool {
	return v.IsActive && !v.IsSlashed
}

type ValidatorsRepo interface {
	Ensure(ctx context.Context, val *Validator) error
	GetByAddress(ctx context.Context, address common.Address) (*Validator, error)
	FindAll(ctx context.Context) ([]*Validator, error)
}
