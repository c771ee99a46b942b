package entity

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MerkleBatch is an ordered sequence of bridge events closed at a batch
// boundary. Immutable once finalized; later proofs reference it by ID.
type MerkleBatch struct {
	ID          uint64         `json:"id"`
	Root        common.Hash    `json:"root"`
	Events      []*BridgeEvent `json:"events"`
	TotalAmount *big.Int       `json:"total_amount"`
	CreatedAt   time.Time      `json:"created_at"`
}

// MerkleProof shows that one leaf is included under Root. Path holds the
// sibling hashes ordered from the leaf level up to the root.
type MerkleProof struct {
	Root  common.Hash   `json:"root"`
	Leaf  common.Hash   `json:"leaf"`
	Path  []common.Hash `json:"path"`
	Index int           `json:"index"`
}

type BatchesRepo interface {
	Ensure(ctx context.Context, batch *MerkleBatch) error
	GetByID(ctx context.Context, id uint64) (*MerkleBatch, error)
}
