package entity

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type ProofStatus string

const (
	ProofStatusPending    ProofStatus = "pending"
	ProofStatusCollecting ProofStatus = "collecting"
	ProofStatusVerifying  ProofStatus = "verifying"
	ProofStatusVerified   ProofStatus = "verified"
	ProofStatusFailed     ProofStatus = "failed"
	ProofStatusExpired    ProofStatus = "expired"
)

// IsOpen tells if the proof still accepts or processes signatures.
func (s ProofStatus) IsOpen() bool {
	return s == ProofStatusPending || s == ProofStatusCollecting || s == ProofStatusVerifying
}

func (s ProofStatus) IsTerminal() bool {
	return !s.IsOpen()
}

// ValidatorSignature is a single validator's signature over MsgHash.
// A proof holds at most one signature per signer address.
type ValidatorSignature struct {
	Signer    common.Address `db:"signer" json:"signer"`
	Signature hexutil.Bytes  `db:"signature" json:"signature"`
	MsgHash   common.Hash    `db:"msg_hash" json:"msg_hash"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// BridgeProof is the quorum multisig artifact. The collector owns it
// while open; once sealed it is read-only and handed to the relayer.
type BridgeProof struct {
	ID                  common.Hash           `json:"id"`
	BatchID             uint64                `json:"batch_id"`
	MsgHash             common.Hash           `json:"msg_hash"`
	SourceChainID       string                `json:"source_chain_id"`
	TargetChainID       string                `json:"target_chain_id"`
	Signatures          []*ValidatorSignature `json:"signatures"`
	AggregatedSignature hexutil.Bytes         `json:"aggregated_signature,omitempty"`
	Merkle              *MerkleProof          `json:"merkle,omitempty"`
	Status              ProofStatus           `json:"status"`
	CreatedAt           time.Time             `json:"created_at"`
	ExpiresAt           time.Time             `json:"expires_at"`
}

func (p *BridgeProof) HasSigner(address common.Address) bool {
	for _, sig := range p.Signatures {
		if sig.Signer == address {
			return true
		}
	}
	return false
}

func (p *BridgeProof) SignerAddresses() []common.Address {
	signers := make([]common.Address, 0, len(p.Signatures))
	for _, sig := range p.Signatures {
		signers = append(signers, sig.Signer)
	}
	return signers
}

// ProofMessageHash is the canonical message all validators sign for a
// batch: keccak256 over the batch root and the length-prefixed chain ids.
func ProofMessageHash(root common.Hash, sourceChainID, targetChainID string) common.Hash {
	return crypto.Keccak256Hash(root.Bytes(), lengthPrefixed(sourceChainID), lengthPrefixed(targetChainID))
}

// NewProofID derives a deterministic proof id, so a re-created proof for
// the same batch and route maps to the same replay-protection record.
func NewProofID(msgHash common.Hash, sourceChainID, targetChainID string) common.Hash {
	return crypto.Keccak256Hash([]byte("bridge-proof-v1"), msgHash.Bytes(), lengthPrefixed(sourceChainID), lengthPrefixed(targetChainID))
}

func lengthPrefixed(s string) []byte {
	buf := make([]byte, 8, 8+len(s))
	binary.BigEndian.PutUint64(buf, uint64(len(s)))
	return append(buf, s...)
}

type ProofsRepo interface {
	Ensure(ctx context.Context, proof *BridgeProof) error
	GetByID(ctx context.Context, id common.Hash) (*BridgeProof, error)
}

// UsedProofsRepo is the replay-protection set of consumed proof ids.
type UsedProofsRepo interface {
	// Add records the proof id as used. Returns false if it was
	// already present.
	Add(ctx context.Context, id common.Hash) (bool, error)
	Contains(ctx context.Context, id common.Hash) (bool, error)
}

// ProcessedNoncesRepo is the per-source-chain nonce set that keeps
// unlock execution idempotent.
type ProcessedNoncesRepo interface {
	Add(ctx context.Context, chainID string, nonce uint64) (bool, error)
	Contains(ctx context.Context, chainID string, nonce uint64) (bool, error)
}
