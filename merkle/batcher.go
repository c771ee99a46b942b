package merkle

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/logging"
)

// Batcher buffers bridge events in chain-observed order and closes them
// into immutable merkle batches at the size boundary, or on demand via
// ForceFinalize for the time boundary.
type Batcher struct {
	mu        sync.Mutex
	logger    logging.Logger
	repo      entity.BatchesRepo
	batchSize int
	nextID    uint64
	pending   []*entity.BridgeEvent
	openedAt  time.Time
	batches   map[uint64]*finalizedBatch
	now       func() time.Time
}

type finalizedBatch struct {
	batch *entity.MerkleBatch
	tree  *Tree
}

// NewBatcher creates a batcher cutting batches of batchSize events.
// repo may be nil when persistence is disabled.
func NewBatcher(logger logging.Logger, repo entity.BatchesRepo, batchSize int) (*Batcher, error) {
	if batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	return &Batcher{
		logger:    logger,
		repo:      repo,
		batchSize: batchSize,
		nextID:    1,
		pending:   make([]*entity.BridgeEvent, 0, batchSize),
		batches:   make(map[uint64]*finalizedBatch),
		now:       time.Now,
	}, nil
}

// AddEvent appends the event to the open batch. When the size boundary
// is reached the batch is finalized and returned, otherwise the result
// is nil.
func (b *Batcher) AddEvent(ctx context.Context, event *entity.BridgeEvent) (*entity.MerkleBatch, error) {
	if event == nil {
		return nil, ErrInvalidLeafData
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		b.openedAt = b.now()
	}
	b.pending = append(b.pending, event)
	PendingEvents.Set(float64(len(b.pending)))
	if len(b.pending) < b.batchSize {
		return nil, nil
	}
	return b.finalizeLocked(ctx)
}

// ForceFinalize closes the open batch regardless of its size. It
// returns ErrEmptyBatch if nothing is buffered.
func (b *Batcher) ForceFinalize(ctx context.Context) (*entity.MerkleBatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil, ErrEmptyBatch
	}
	return b.finalizeLocked(ctx)
}

func (b *Batcher) finalizeLocked(ctx context.Context) (*entity.MerkleBatch, error) {
	events := b.pending
	hashes := make([]common.Hash, len(events))
	for i, event := range events {
		hashes[i] = event.Hash()
	}
	tree, err := NewTree(hashes)
	if err != nil {
		return nil, fmt.Errorf("can't build merkle tree: %w", err)
	}
	total := new(big.Int)
	for _, event := range events {
		if event.Amount != nil {
			total.Add(total, event.Amount)
		}
	}
	batch := &entity.MerkleBatch{
		ID:          b.nextID,
		Root:        tree.Root(),
		Events:      events,
		TotalAmount: total,
		CreatedAt:   b.now(),
	}
	b.batches[batch.ID] = &finalizedBatch{batch: batch, tree: tree}
	b.nextID++
	b.pending = make([]*entity.BridgeEvent, 0, b.batchSize)
	PendingEvents.Set(0)
	FinalizedBatches.Inc()
	BatchSizes.Observe(float64(len(events)))
	b.logger.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"root":     batch.Root,
		"events":   len(events),
	}).Info("finalized merkle batch")
	if b.repo != nil {
		if err = b.repo.Ensure(ctx, batch); err != nil {
			b.logger.WithError(err).WithField("batch_id", batch.ID).Error("can't persist finalized batch")
		}
	}
	return batch, nil
}

// PendingAge reports how long the open batch has been accumulating.
// Zero when nothing is buffered.
func (b *Batcher) PendingAge() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return 0
	}
	return b.now().Sub(b.openedAt)
}

func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Batcher) GetBatch(id uint64) (*entity.MerkleBatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fb, ok := b.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return fb.batch, nil
}

// GenerateProof produces an inclusion proof for the event at index in
// the given finalized batch.
func (b *Batcher) GenerateProof(batchID uint64, index int) (*entity.MerkleProof, error) {
	b.mu.Lock()
	fb, ok := b.batches[batchID]
	b.mu.Unlock()
	if !ok {
		return nil, ErrBatchNotFound
	}
	return fb.tree.GenerateProof(index)
}

// VerifyProof checks an inclusion proof against its own claimed root.
func (b *Batcher) VerifyProof(proof *entity.MerkleProof) bool {
	return VerifyProof(proof)
}

func (b *Batcher) BatchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}
