// Package collector drives the per-batch proof state machine:
//
//	Pending -> Collecting -> Verifying -> {Verified | Failed | Expired}
//
// Each open proof is synchronized independently, so submissions for
// unrelated proofs never serialize on each other.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/bridge-prover/aggregate"
	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/logging"
	"github.com/poanetwork/bridge-prover/registry"
)

type Collector struct {
	logger     logging.Logger
	registry   *registry.Registry
	aggregator aggregate.Aggregator
	repo       entity.ProofsRepo
	timeout    time.Duration

	// mu guards the proofs map only; per-proof state has its own lock
	mu     sync.RWMutex
	proofs map[common.Hash]*proofState

	// onVerified is invoked asynchronously when a proof seals
	onVerified func(*entity.BridgeProof)

	now func() time.Time
}

type proofState struct {
	mu       sync.Mutex
	proof    *entity.BridgeProof
	expected map[common.Address]bool
}

// Status is the collection progress snapshot exposed to dashboards.
type Status struct {
	ProofID    common.Hash        `json:"proof_id"`
	Required   int                `json:"required"`
	Collected  int                `json:"collected"`
	Deadline   time.Time          `json:"deadline"`
	IsComplete bool               `json:"is_complete"`
	State      entity.ProofStatus `json:"state"`
}

// New creates a collector sealing proofs with the given aggregator.
// timeout bounds the signature collection window; repo may be nil when
// persistence is disabled.
func New(logger logging.Logger, reg *registry.Registry, aggregator aggregate.Aggregator, repo entity.ProofsRepo, timeout time.Duration) *Collector {
	return &Collector{
		logger:     logger,
		registry:   reg,
		aggregator: aggregator,
		repo:       repo,
		timeout:    timeout,
		proofs:     make(map[common.Hash]*proofState),
		now:        time.Now,
	}
}

// SetOnVerified registers the handoff callback for sealed proofs. Must
// be called before the first CreateProof.
func (c *Collector) SetOnVerified(fn func(*entity.BridgeProof)) {
	c.onVerified = fn
}

// SetClock overrides the time source used for expiry decisions.
func (c *Collector) SetClock(now func() time.Time) {
	c.now = now
}

// CreateProof opens a proof over the batch root for the given route.
// The proof id is deterministic; re-creating a proof for the same batch
// and route returns the already tracked one.
func (c *Collector) CreateProof(batch *entity.MerkleBatch, sourceChainID, targetChainID string) (*entity.BridgeProof, error) {
	msgHash := entity.ProofMessageHash(batch.Root, sourceChainID, targetChainID)
	id := entity.NewProofID(msgHash, sourceChainID, targetChainID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.proofs[id]; ok {
		return c.copyProof(state), nil
	}
	now := c.now()
	proof := &entity.BridgeProof{
		ID:            id,
		BatchID:       batch.ID,
		MsgHash:       msgHash,
		SourceChainID: sourceChainID,
		TargetChainID: targetChainID,
		Status:        entity.ProofStatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(c.timeout),
	}
	c.proofs[id] = &proofState{proof: proof}
	ProofsByStatus.WithLabelValues(string(entity.ProofStatusPending)).Inc()
	c.logger.WithFields(logrus.Fields{
		"proof_id": id,
		"batch_id": batch.ID,
		"msg_hash": msgHash,
		"expires":  proof.ExpiresAt,
	}).Info("created bridge proof")
	return c.copyProofLocked(proof), nil
}

// StartCollection moves the proof to Collecting and enumerates the
// currently active validators as the expected signer set.
func (c *Collector) StartCollection(proofID common.Hash) error {
	state, err := c.state(proofID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return c.startCollectionLocked(state)
}

func (c *Collector) startCollectionLocked(state *proofState) error {
	if state.proof.Status != entity.ProofStatusPending {
		if state.proof.Status == entity.ProofStatusCollecting {
			return nil
		}
		return ErrProofClosed
	}
	// collecting is pointless while the active set can't reach quorum
	if !c.registry.HasQuorum() {
		return registry.ErrInsufficientQuorum
	}
	expected := make(map[common.Address]bool)
	for _, address := range c.registry.ActiveValidators() {
		expected[address] = true
	}
	state.expected = expected
	c.transitionLocked(state, entity.ProofStatusCollecting)
	c.logger.WithFields(logrus.Fields{
		"proof_id": state.proof.ID,
		"expected": len(expected),
		"required": c.registry.Threshold(),
	}).Info("started signature collection")
	return nil
}

// SubmitSignature validates and records one validator signature.
// Submissions for the same proof are serialized; duplicates and late
// submissions are rejected with typed errors. Reaching the registry
// threshold seals the proof.
func (c *Collector) SubmitSignature(ctx context.Context, proofID common.Hash, sig *entity.ValidatorSignature) error {
	state, err := c.state(proofID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	proof := state.proof
	// expiry is checked lazily, the boundary is inclusive at ExpiresAt
	if proof.Status.IsOpen() && c.now().After(proof.ExpiresAt) {
		c.transitionLocked(state, entity.ProofStatusExpired)
		RejectedSignatures.WithLabelValues("expired").Inc()
		return ErrProofExpired
	}
	switch proof.Status {
	case entity.ProofStatusPending:
		// first submission implicitly opens the collection window
		if err = c.startCollectionLocked(state); err != nil {
			return err
		}
	case entity.ProofStatusCollecting:
	case entity.ProofStatusVerified:
		RejectedSignatures.WithLabelValues("closed").Inc()
		return ErrAlreadyVerified
	default:
		RejectedSignatures.WithLabelValues("closed").Inc()
		return ErrProofClosed
	}

	if err = c.registry.VerifySignature(sig, proof.MsgHash); err != nil {
		RejectedSignatures.WithLabelValues("invalid").Inc()
		return fmt.Errorf("signature rejected: %w", err)
	}
	if len(state.expected) > 0 && !state.expected[sig.Signer] {
		RejectedSignatures.WithLabelValues("unexpected").Inc()
		return fmt.Errorf("signature rejected: %w", registry.ErrValidatorInactive)
	}
	if proof.HasSigner(sig.Signer) {
		RejectedSignatures.WithLabelValues("duplicate").Inc()
		return ErrDuplicateSignature
	}

	stored := *sig
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = c.now()
	}
	proof.Signatures = append(proof.Signatures, &stored)
	c.registry.MarkSeen(sig.Signer)
	c.logger.WithFields(logrus.Fields{
		"proof_id":  proof.ID,
		"signer":    sig.Signer,
		"collected": len(proof.Signatures),
		"required":  c.registry.Threshold(),
	}).Info("accepted validator signature")

	if len(proof.Signatures) >= c.registry.Threshold() {
		return c.sealLocked(ctx, state)
	}
	return nil
}

func (c *Collector) sealLocked(ctx context.Context, state *proofState) error {
	proof := state.proof
	c.transitionLocked(state, entity.ProofStatusVerifying)
	agg, err := c.aggregator.Aggregate(proof.Signatures, proof.MsgHash)
	if err != nil {
		c.transitionLocked(state, entity.ProofStatusFailed)
		c.persistLocked(ctx, proof)
		return fmt.Errorf("%w: %s", ErrAggregationFailed, err)
	}
	proof.AggregatedSignature = agg.Signature
	c.transitionLocked(state, entity.ProofStatusVerified)
	SealedProofs.Inc()
	c.logger.WithFields(logrus.Fields{
		"proof_id":   proof.ID,
		"strategy":   agg.Strategy,
		"signatures": len(proof.Signatures),
	}).Info("sealed bridge proof")
	c.persistLocked(ctx, proof)
	if c.onVerified != nil {
		sealed := c.copyProofLocked(proof)
		go c.onVerified(sealed)
	}
	return nil
}

func (c *Collector) persistLocked(ctx context.Context, proof *entity.BridgeProof) {
	if c.repo == nil {
		return
	}
	if err := c.repo.Ensure(ctx, proof); err != nil {
		c.logger.WithError(err).WithField("proof_id", proof.ID).Error("can't persist proof")
	}
}

func (c *Collector) transitionLocked(state *proofState, to entity.ProofStatus) {
	from := state.proof.Status
	state.proof.Status = to
	ProofsByStatus.WithLabelValues(string(from)).Dec()
	ProofsByStatus.WithLabelValues(string(to)).Inc()
}

// GetProof returns a read-only snapshot of the proof, applying lazy
// expiry on access.
func (c *Collector) GetProof(proofID common.Hash) (*entity.BridgeProof, error) {
	state, err := c.state(proofID)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.proof.Status.IsOpen() && c.now().After(state.proof.ExpiresAt) {
		c.transitionLocked(state, entity.ProofStatusExpired)
	}
	return c.copyProofLocked(state.proof), nil
}

// CollectionStatus reports collection progress for dashboards and APIs.
func (c *Collector) CollectionStatus(proofID common.Hash) (*Status, error) {
	state, err := c.state(proofID)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	proof := state.proof
	return &Status{
		ProofID:    proof.ID,
		Required:   c.registry.Threshold(),
		Collected:  len(proof.Signatures),
		Deadline:   proof.ExpiresAt,
		IsComplete: proof.Status == entity.ProofStatusVerified,
		State:      proof.Status,
	}, nil
}

// CleanupExpired sweeps open proofs past their deadline into Expired
// and drops Expired and Failed proofs from the working set. Verified
// proofs are kept for queries and relay.
func (c *Collector) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, state := range c.proofs {
		state.mu.Lock()
		if state.proof.Status.IsOpen() && c.now().After(state.proof.ExpiresAt) {
			c.transitionLocked(state, entity.ProofStatusExpired)
		}
		status := state.proof.Status
		state.mu.Unlock()
		if status == entity.ProofStatusExpired || status == entity.ProofStatusFailed {
			delete(c.proofs, id)
			ProofsByStatus.WithLabelValues(string(status)).Dec()
			removed++
		}
	}
	if removed > 0 {
		c.logger.WithField("count", removed).Info("cleaned up dead proofs")
	}
	return removed
}

// Stats counts tracked proofs by status.
func (c *Collector) Stats() map[entity.ProofStatus]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := make(map[entity.ProofStatus]int)
	for _, state := range c.proofs {
		state.mu.Lock()
		stats[state.proof.Status]++
		state.mu.Unlock()
	}
	return stats
}

func (c *Collector) state(proofID common.Hash) (*proofState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.proofs[proofID]
	if !ok {
		return nil, ErrProofNotFound
	}
	return state, nil
}

func (c *Collector) copyProof(state *proofState) *entity.BridgeProof {
	state.mu.Lock()
	defer state.mu.Unlock()
	return c.copyProofLocked(state.proof)
}

func (c *Collector) copyProofLocked(proof *entity.BridgeProof) *entity.BridgeProof {
	copied := *proof
	copied.Signatures = make([]*entity.ValidatorSignature, len(proof.Signatures))
	copy(copied.Signatures, proof.Signatures)
	return &copied
}
