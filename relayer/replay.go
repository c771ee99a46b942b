package relayer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/logging"
)

// ReplayGuard is the destination-side replay protection: a consumed
// proof id or a processed (chain, nonce) pair is recorded permanently
// and rejected on any later attempt. Records are written through to the
// repos when persistence is configured.
type ReplayGuard struct {
	mu        sync.Mutex
	logger    logging.Logger
	used      map[common.Hash]bool
	nonces    map[string]map[uint64]bool
	usedRepo  entity.UsedProofsRepo
	nonceRepo entity.ProcessedNoncesRepo
}

func NewReplayGuard(logger logging.Logger, usedRepo entity.UsedProofsRepo, nonceRepo entity.ProcessedNoncesRepo) *ReplayGuard {
	return &ReplayGuard{
		logger:    logger,
		used:      make(map[common.Hash]bool),
		nonces:    make(map[string]map[uint64]bool),
		usedRepo:  usedRepo,
		nonceRepo: nonceRepo,
	}
}

// MarkProofUsed records the proof id as consumed. The second and any
// later call for the same id fails with ErrProofAlreadyUsed.
func (g *ReplayGuard) MarkProofUsed(ctx context.Context, id common.Hash) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.used[id] {
		return ErrProofAlreadyUsed
	}
	if g.usedRepo != nil {
		fresh, err := g.usedRepo.Add(ctx, id)
		if err != nil {
			return fmt.Errorf("can't persist used proof id: %w", err)
		}
		if !fresh {
			g.used[id] = true
			return ErrProofAlreadyUsed
		}
	}
	g.used[id] = true
	return nil
}

func (g *ReplayGuard) IsProofUsed(ctx context.Context, id common.Hash) bool {
	g.mu.Lock()
	if g.used[id] {
		g.mu.Unlock()
		return true
	}
	g.mu.Unlock()
	if g.usedRepo != nil {
		used, err := g.usedRepo.Contains(ctx, id)
		if err != nil {
			g.logger.WithError(err).Error("can't check used proof id")
			return false
		}
		return used
	}
	return false
}

// MarkNonceProcessed keeps unlock execution idempotent per source
// chain.
func (g *ReplayGuard) MarkNonceProcessed(ctx context.Context, chainID string, nonce uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen, ok := g.nonces[chainID]
	if !ok {
		seen = make(map[uint64]bool)
		g.nonces[chainID] = seen
	}
	if seen[nonce] {
		return ErrNonceAlreadyProcessed
	}
	if g.nonceRepo != nil {
		fresh, err := g.nonceRepo.Add(ctx, chainID, nonce)
		if err != nil {
			return fmt.Errorf("can't persist processed nonce: %w", err)
		}
		if !fresh {
			seen[nonce] = true
			return ErrNonceAlreadyProcessed
		}
	}
	seen[nonce] = true
	return nil
}
