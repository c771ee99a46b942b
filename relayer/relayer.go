// Package relayer ties the proving pipeline together: it ingests source
// chain events, drives batching and signature collection, and delivers
// sealed proofs to the destination chain with bounded retries.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/poanetwork/bridge-prover/collector"
	"github.com/poanetwork/bridge-prover/config"
	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/logging"
	"github.com/poanetwork/bridge-prover/merkle"
	"github.com/poanetwork/bridge-prover/utils"
	"github.com/poanetwork/bridge-prover/verifier"
)

type Service struct {
	logger      logging.Logger
	cfg         *config.ProverConfig
	batcher     *merkle.Batcher
	collector   *collector.Collector
	verifier    *verifier.Verifier
	destination Destination
	guard       *ReplayGuard
	jobsRepo    entity.RelayJobsRepo

	events chan *entity.BridgeEvent
	jobs   chan *entity.RelayJob

	mu        sync.Mutex
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	nextJobID uint64
	history   map[uint64]*entity.RelayJob

	now func() time.Time
}

// Stats is the pipeline health snapshot served by the status API.
type Stats struct {
	Running       bool                          `json:"running"`
	QueuedEvents  int                           `json:"queued_events"`
	QueuedJobs    int                           `json:"queued_jobs"`
	PendingEvents int                           `json:"pending_events"`
	Batches       int                           `json:"batches"`
	Proofs        map[entity.ProofStatus]int    `json:"proofs"`
	Jobs          map[entity.RelayJobStatus]int `json:"jobs"`
}

// NewService wires the pipeline stages together. jobsRepo may be nil
// when persistence is disabled; sealed proofs are picked up through the
// collector's verification callback.
func NewService(logger logging.Logger, cfg *config.ProverConfig, batcher *merkle.Batcher, coll *collector.Collector, ver *verifier.Verifier, destination Destination, guard *ReplayGuard, jobsRepo entity.RelayJobsRepo) *Service {
	s := &Service{
		logger:      logger,
		cfg:         cfg,
		batcher:     batcher,
		collector:   coll,
		verifier:    ver,
		destination: destination,
		guard:       guard,
		jobsRepo:    jobsRepo,
		events:      make(chan *entity.BridgeEvent, cfg.EventQueueCap),
		jobs:        make(chan *entity.RelayJob, cfg.JobQueueCap),
		history:     make(map[uint64]*entity.RelayJob),
		now:         time.Now,
	}
	coll.SetOnVerified(s.enqueueProof)
	return s
}

// Start launches the pipeline loops. It is an error to start a running
// service.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("%w: already started", ErrConfiguration)
	}
	// loops receive the generation context by value so a Stop/Start
	// cycle can't swap it out from under them
	runCtx, cancel := context.WithCancel(ctx)
	s.ctx, s.cancel = runCtx, cancel
	s.running = true

	s.wg.Add(3)
	go s.batchProcessor(runCtx)
	go s.jobRelayer(runCtx)
	go s.janitor(runCtx)
	s.logger.WithFields(logrus.Fields{
		"source_chain": s.cfg.SourceChain,
		"target_chain": s.cfg.TargetChain,
		"batch_size":   s.cfg.BatchSize,
	}).Info("started relayer service")
	return nil
}

// Stop drains the pipeline: no new events are accepted, the loops exit
// and in-flight work is abandoned to be re-driven from persistence on
// the next start.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("stopped relayer service")
}

// AddEvent submits one observed bridge event into the pipeline. It
// never blocks: a full queue or a stopped service rejects the event
// with a typed error so the caller can apply backpressure.
func (s *Service) AddEvent(event *entity.BridgeEvent) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return ErrServiceStopped
	}
	select {
	case s.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// batchProcessor consumes ingested events and finalizes batches, either
// on size or on the batch interval timer.
func (s *Service) batchProcessor(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.BatchInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.events:
			batch, err := s.batcher.AddEvent(ctx, event)
			if err != nil {
				s.logger.WithError(err).WithField("tx_hash", event.TxHash).Error("can't batch bridge event")
				continue
			}
			if batch != nil {
				s.processBatch(batch)
			}
		case <-ticker.C:
			if s.batcher.PendingCount() == 0 || s.batcher.PendingAge() < s.cfg.BatchInterval.Duration {
				continue
			}
			batch, err := s.batcher.ForceFinalize(ctx)
			if err != nil {
				if !errors.Is(err, merkle.ErrEmptyBatch) {
					s.logger.WithError(err).Error("can't finalize partial batch")
				}
				continue
			}
			s.processBatch(batch)
		}
	}
}

func (s *Service) processBatch(batch *entity.MerkleBatch) {
	if err := s.handleBatch(batch); err != nil {
		s.logger.WithError(err).WithField("batch_id", batch.ID).Error("can't process finalized batch")
	}
}

// handleBatch opens a proof over the finalized batch and starts the
// signature collection window. Sealing is reported back asynchronously
// through enqueueProof.
func (s *Service) handleBatch(batch *entity.MerkleBatch) error {
	proof, err := s.collector.CreateProof(batch, s.cfg.SourceChain, s.cfg.TargetChain)
	if err != nil {
		return fmt.Errorf("%w: can't create proof: %s", ErrProofGeneration, err)
	}
	if err = s.collector.StartCollection(proof.ID); err != nil && !errors.Is(err, collector.ErrProofClosed) {
		return fmt.Errorf("%w: can't start signature collection: %s", ErrProofGeneration, err)
	}
	s.logger.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"proof_id": proof.ID,
		"events":   len(batch.Events),
	}).Info("batch finalized, collecting signatures")
	return nil
}

// enqueueProof is the collector's verification callback: every sealed
// proof becomes a relay job.
func (s *Service) enqueueProof(proof *entity.BridgeProof) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.WithField("proof_id", proof.ID).Warn("dropping sealed proof, service is stopped")
		return
	}
	ctx := s.ctx
	s.nextJobID++
	job := &entity.RelayJob{
		ID:        s.nextJobID,
		BatchID:   proof.BatchID,
		ProofID:   proof.ID,
		Status:    entity.RelayJobStatusPending,
		CreatedAt: s.now(),
	}
	s.history[job.ID] = job
	s.mu.Unlock()

	s.persistJob(ctx, job)
	select {
	case s.jobs <- job:
	case <-ctx.Done():
	}
}

// jobRelayer drains the job queue and delivers proofs one at a time,
// preserving batch order.
func (s *Service) jobRelayer(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.deliver(ctx, job)
		}
	}
}

// deliver performs one delivery attempt. Cryptographic and replay
// failures are final; only transport failures are retried, up to
// max_retries with retry_delay between attempts.
func (s *Service) deliver(ctx context.Context, job *entity.RelayJob) {
	now := s.now()
	job.LastAttempt = &now
	RelayAttempts.Inc()
	log := s.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"batch_id": job.BatchID,
		"proof_id": job.ProofID,
		"attempt":  job.RetryCount + 1,
	})

	proof, err := s.collector.GetProof(job.ProofID)
	if err != nil {
		s.failJob(ctx, job, fmt.Errorf("can't load proof: %w", err), "missing_proof")
		return
	}
	batch, err := s.batcher.GetBatch(job.BatchID)
	if err != nil {
		s.failJob(ctx, job, fmt.Errorf("can't load batch: %w", err), "missing_batch")
		return
	}
	if err = s.verifier.VerifyBridgeProof(proof); err != nil {
		// a proof that fails independent verification can never
		// become valid, retrying is pointless
		s.failJob(ctx, job, fmt.Errorf("proof rejected by verifier: %w", err), "verification_failed")
		return
	}
	if s.guard.IsProofUsed(ctx, proof.ID) {
		s.failJob(ctx, job, ErrProofAlreadyUsed, "replayed")
		return
	}

	if err = s.destination.SubmitProof(ctx, batch, proof); err != nil {
		s.retryJob(ctx, job, err, log)
		return
	}

	if err = s.guard.MarkProofUsed(ctx, proof.ID); err != nil {
		// lost the race against a concurrent relayer instance
		s.failJob(ctx, job, err, "replayed")
		return
	}
	for _, event := range batch.Events {
		if err = s.guard.MarkNonceProcessed(ctx, event.ChainID, event.Nonce); err != nil && !errors.Is(err, ErrNonceAlreadyProcessed) {
			log.WithError(err).WithField("nonce", event.Nonce).Error("can't record processed nonce")
		}
	}

	job.Status = entity.RelayJobStatusCompleted
	job.LastError = ""
	s.persistJob(ctx, job)
	RelayResults.WithLabelValues("completed").Inc()
	log.Info("relayed proof to destination chain")
}

func (s *Service) retryJob(ctx context.Context, job *entity.RelayJob, cause error, log logging.Logger) {
	job.RetryCount++
	job.LastError = cause.Error()
	if job.RetryCount >= s.cfg.MaxRetries {
		s.failJob(ctx, job, fmt.Errorf("%w: retries exhausted: %s", ErrRelayFailed, cause), "retries_exhausted")
		return
	}
	s.persistJob(ctx, job)
	RequeuedJobs.Inc()
	log.WithError(cause).WithField("retry_in", s.cfg.RetryDelay.Duration).Warn("relay attempt failed, requeueing")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if utils.ContextSleep(ctx, s.cfg.RetryDelay.Duration) == nil {
			return
		}
		select {
		case s.jobs <- job:
		case <-ctx.Done():
		}
	}()
}

func (s *Service) failJob(ctx context.Context, job *entity.RelayJob, cause error, result string) {
	job.Status = entity.RelayJobStatusFailed
	job.LastError = cause.Error()
	s.persistJob(ctx, job)
	RelayResults.WithLabelValues(result).Inc()
	s.logger.WithError(cause).WithFields(logrus.Fields{
		"job_id":   job.ID,
		"proof_id": job.ProofID,
		"result":   result,
	}).Error("relay job failed permanently")
}

func (s *Service) persistJob(ctx context.Context, job *entity.RelayJob) {
	if s.jobsRepo == nil {
		return
	}
	if err := s.jobsRepo.Ensure(ctx, job); err != nil {
		s.logger.WithError(err).WithField("job_id", job.ID).Error("can't persist relay job")
	}
}

// janitor periodically sweeps expired and failed proofs out of the
// collector's working set.
func (s *Service) janitor(ctx context.Context) {
	defer s.wg.Done()
	interval := s.cfg.SignatureTimeout.Duration
	if interval > time.Minute {
		interval = time.Minute
	}
	for {
		if utils.ContextSleep(ctx, interval) == nil {
			return
		}
		s.collector.CleanupExpired()
	}
}

// GetJob returns the tracked relay job by id.
func (s *Service) GetJob(id uint64) (*entity.RelayJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.history[id]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

// Stats snapshots pipeline state for the status API.
func (s *Service) Stats() *Stats {
	s.mu.Lock()
	running := s.running
	jobs := make(map[entity.RelayJobStatus]int)
	for _, job := range s.history {
		jobs[job.Status]++
	}
	s.mu.Unlock()
	return &Stats{
		Running:       running,
		QueuedEvents:  len(s.events),
		QueuedJobs:    len(s.jobs),
		PendingEvents: s.batcher.PendingCount(),
		Batches:       s.batcher.BatchCount(),
		Proofs:        s.collector.Stats(),
		Jobs:          jobs,
	}
}
