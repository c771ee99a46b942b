// Package verifier re-derives the validity of a bridge proof from raw
// signatures. It is deliberately independent of the source-side
// collector: the destination never has to trust the collector's
// bookkeeping, only its own validator directory.
package verifier

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/logging"
	"github.com/poanetwork/bridge-prover/merkle"
	"github.com/poanetwork/bridge-prover/utils"
)

// Verifier holds its own validator directory, kept consistent with the
// registry by the operator. It is stateless with respect to proof
// history beyond the max-age bound.
type Verifier struct {
	mu        sync.RWMutex
	logger    logging.Logger
	directory map[common.Address]*entity.Validator
	// explicit threshold; 0 means ceil(2N/3) over the directory
	threshold   int
	maxProofAge time.Duration
	now         func() time.Time
}

func New(logger logging.Logger, maxProofAge time.Duration) *Verifier {
	return &Verifier{
		logger:      logger,
		directory:   make(map[common.Address]*entity.Validator),
		maxProofAge: maxProofAge,
		now:         time.Now,
	}
}

// SetThreshold pins an explicit quorum threshold. Zero restores the
// default ceil(2N/3) rule over the directory.
func (v *Verifier) SetThreshold(threshold int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.threshold = threshold
}

// SyncValidators replaces the validator directory with the given
// snapshot.
func (v *Verifier) SyncValidators(vals []*entity.Validator) {
	directory := make(map[common.Address]*entity.Validator, len(vals))
	for _, val := range vals {
		copied := *val
		directory[val.Address] = &copied
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.directory = directory
}

// MarkSlashed revokes trust in a signer. Its stored signatures remain
// cryptographically valid but stop counting towards quorum.
func (v *Verifier) MarkSlashed(address common.Address) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if val, ok := v.directory[address]; ok {
		val.IsSlashed = true
		val.IsActive = false
	}
}

// VerifyBridgeProof checks the proof end-to-end: the age bound, the
// merkle component when present, and every signature, requiring the
// count of distinct active non-slashed valid signers to reach the
// quorum threshold. Well-formed-but-invalid input yields a typed
// error, never a panic, so destination logic can act deterministically.
func (v *Verifier) VerifyBridgeProof(proof *entity.BridgeProof) error {
	if proof == nil || proof.MsgHash == (common.Hash{}) {
		return ErrInvalidProofFormat
	}
	now := v.now()
	if now.After(proof.ExpiresAt) || now.Sub(proof.CreatedAt) > v.maxProofAge {
		return ErrProofExpired
	}
	if proof.Merkle != nil {
		// the signed message commits to the root, so the component's
		// root must reproduce the message hash exactly
		if entity.ProofMessageHash(proof.Merkle.Root, proof.SourceChainID, proof.TargetChainID) != proof.MsgHash {
			return fmt.Errorf("%w: component root differs from signed message", ErrInvalidMerkleProof)
		}
		if !merkle.VerifyProof(proof.Merkle) {
			return ErrInvalidMerkleProof
		}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	required := v.thresholdLocked()
	if required == 0 {
		return fmt.Errorf("%w: empty validator directory", ErrInsufficientSignatures)
	}
	distinct := make(map[common.Address]bool, len(proof.Signatures))
	for _, sig := range proof.Signatures {
		if sig.MsgHash != proof.MsgHash {
			continue
		}
		signer, err := utils.RestoreSignerAddress(proof.MsgHash.Bytes(), sig.Signature)
		if err != nil || signer != sig.Signer {
			v.logger.WithFields(logrus.Fields{
				"proof_id": proof.ID,
				"claimed":  sig.Signer,
			}).Warn("dropping unrecoverable signature")
			continue
		}
		val, ok := v.directory[signer]
		if !ok || !val.CanSign() {
			continue
		}
		distinct[signer] = true
	}
	if len(distinct) < required {
		return fmt.Errorf("%w: %d of %d", ErrInsufficientSignatures, len(distinct), required)
	}
	return nil
}

func (v *Verifier) thresholdLocked() int {
	if v.threshold > 0 {
		return v.threshold
	}
	return (2*len(v.directory) + 2) / 3
}
