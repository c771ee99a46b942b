package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/logging"
	"github.com/poanetwork/bridge-prover/utils"
)

// Registry tracks validator identity, stake and status, and computes
// the quorum threshold. It owns the validator records exclusively; all
// mutation goes through its operations.
//
// The threshold is computed over all registered validators, while
// quorum is checked against the active non-slashed count. Slashing can
// therefore push the set below quorum without changing the threshold.
type Registry struct {
	mu         sync.RWMutex
	logger     logging.Logger
	validators map[common.Address]*entity.Validator
	// explicit threshold; 0 means ceil(2N/3) over registered validators
	threshold   int
	totalStake  uint64
	activeCount int
	now         func() time.Time
}

type Stats struct {
	TotalValidators   int    `json:"total_validators"`
	ActiveValidators  int    `json:"active_validators"`
	SlashedValidators int    `json:"slashed_validators"`
	Threshold         int    `json:"threshold"`
	TotalStake        uint64 `json:"total_stake"`
	HasQuorum         bool   `json:"has_quorum"`
}

func New(logger logging.Logger) *Registry {
	return &Registry{
		logger:     logger,
		validators: make(map[common.Address]*entity.Validator),
		now:        time.Now,
	}
}

// SetThreshold pins an explicit quorum threshold. Zero restores the
// default ceil(2N/3) rule.
func (r *Registry) SetThreshold(threshold int) error {
	if threshold < 0 {
		return ErrInvalidThreshold
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threshold = threshold
	return nil
}

// AddValidator registers the validator. The public key must be a valid
// secp256k1 key matching the validator address. Re-adding an existing
// address replaces the record and adjusts stake and activity counters.
func (r *Registry) AddValidator(val *entity.Validator) error {
	pk, err := crypto.UnmarshalPubkey(val.PublicKey)
	if err != nil {
		pk, err = crypto.DecompressPubkey(val.PublicKey)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
		}
	}
	if crypto.PubkeyToAddress(*pk) != val.Address {
		return fmt.Errorf("%w: public key does not match address %s", ErrInvalidPublicKey, val.Address)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.validators[val.Address]; ok {
		r.totalStake -= prev.Stake
		if prev.CanSign() {
			r.activeCount--
		}
	}
	stored := *val
	if stored.JoinedAt.IsZero() {
		stored.JoinedAt = r.now()
	}
	r.validators[val.Address] = &stored
	r.totalStake += stored.Stake
	if stored.CanSign() {
		r.activeCount++
	}
	r.logger.WithFields(logrus.Fields{
		"address": val.Address,
		"stake":   val.Stake,
		"active":  stored.IsActive,
	}).Info("registered validator")
	return nil
}

func (r *Registry) RemoveValidator(address common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	val, ok := r.validators[address]
	if !ok {
		return ErrValidatorNotFound
	}
	delete(r.validators, address)
	r.totalStake -= val.Stake
	if val.CanSign() {
		r.activeCount--
	}
	r.logger.WithField("address", address).Info("removed validator")
	return nil
}

// SetActive toggles the validator activity. A slashed validator can
// never be reactivated.
func (r *Registry) SetActive(address common.Address, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	val, ok := r.validators[address]
	if !ok {
		return ErrValidatorNotFound
	}
	if val.IsSlashed && active {
		return ErrValidatorSlashed
	}
	if val.IsActive == active {
		return nil
	}
	val.IsActive = active
	if active {
		r.activeCount++
	} else {
		r.activeCount--
	}
	return nil
}

// Slash permanently marks the validator untrusted: it is deactivated,
// its reputation zeroed, and its record kept for auditability. One-way.
func (r *Registry) Slash(address common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	val, ok := r.validators[address]
	if !ok {
		return ErrValidatorNotFound
	}
	if val.IsSlashed {
		return nil
	}
	if val.CanSign() {
		r.activeCount--
	}
	val.IsSlashed = true
	val.IsActive = false
	val.Reputation = 0
	r.logger.WithField("address", address).Warn("slashed validator")
	return nil
}

func (r *Registry) GetValidator(address common.Address) (*entity.Validator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.validators[address]
	if !ok {
		return nil, ErrValidatorNotFound
	}
	copied := *val
	return &copied, nil
}

// ActiveValidators lists the addresses currently allowed to sign.
func (r *Registry) ActiveValidators() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active := make([]common.Address, 0, r.activeCount)
	for address, val := range r.validators {
		if val.CanSign() {
			active = append(active, address)
		}
	}
	return active
}

// Validators returns a snapshot copy of all registered validators,
// usable for syncing an independent verifier directory.
func (r *Registry) Validators() []*entity.Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vals := make([]*entity.Validator, 0, len(r.validators))
	for _, val := range r.validators {
		copied := *val
		vals = append(vals, &copied)
	}
	return vals
}

// Threshold returns the number of distinct valid signatures required
// for quorum: the explicit threshold if set, ceil(2N/3) over all
// registered validators otherwise.
func (r *Registry) Threshold() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.thresholdLocked()
}

func (r *Registry) thresholdLocked() int {
	if r.threshold > 0 {
		return r.threshold
	}
	return (2*len(r.validators) + 2) / 3
}

// HasQuorum tells if enough validators are active to ever reach the
// threshold.
func (r *Registry) HasQuorum() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCount >= r.thresholdLocked()
}

// VerifySignature checks the signature cryptographically and against
// the validator status. Signatures from slashed or inactive validators
// are rejected even when cryptographically valid.
func (r *Registry) VerifySignature(sig *entity.ValidatorSignature, msgHash common.Hash) error {
	if sig.MsgHash != msgHash {
		return ErrMessageHashMismatch
	}
	signer, err := utils.RestoreSignerAddress(msgHash.Bytes(), sig.Signature)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	if signer != sig.Signer {
		return fmt.Errorf("%w: recovered %s, claimed %s", ErrInvalidSignature, signer, sig.Signer)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.validators[signer]
	if !ok {
		return ErrValidatorNotFound
	}
	if val.IsSlashed {
		return ErrValidatorSlashed
	}
	if !val.IsActive {
		return ErrValidatorInactive
	}
	return nil
}

// CollectSignatures filters sigs down to the valid ones: failed
// verification, wrong message hash and slashed or inactive signers are
// discarded, duplicate addresses keep the first accepted signature.
// The second result tells if the accepted count reaches the threshold.
func (r *Registry) CollectSignatures(sigs []*entity.ValidatorSignature, msgHash common.Hash) ([]*entity.ValidatorSignature, bool) {
	accepted := make([]*entity.ValidatorSignature, 0, len(sigs))
	seen := make(map[common.Address]bool, len(sigs))
	for _, sig := range sigs {
		if seen[sig.Signer] {
			continue
		}
		if err := r.VerifySignature(sig, msgHash); err != nil {
			r.logger.WithError(err).WithField("signer", sig.Signer).Debug("discarded signature")
			continue
		}
		seen[sig.Signer] = true
		accepted = append(accepted, sig)
	}
	return accepted, len(accepted) >= r.Threshold()
}

// MarkSeen refreshes the liveness timestamp of a validator, typically
// on an accepted signature.
func (r *Registry) MarkSeen(address common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if val, ok := r.validators[address]; ok {
		now := r.now()
		val.LastSeenAt = &now
	}
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slashed := 0
	for _, val := range r.validators {
		if val.IsSlashed {
			slashed++
		}
	}
	return Stats{
		TotalValidators:   len(r.validators),
		ActiveValidators:  r.activeCount,
		SlashedValidators: slashed,
		Threshold:         r.thresholdLocked(),
		TotalStake:        r.totalStake,
		HasQuorum:         r.activeCount >= r.thresholdLocked(),
	}
}
