// Package presenter exposes the read-only HTTP API over the proving
// pipeline: proofs, batches, inclusion proofs, validators and pipeline
// stats.
package presenter

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/poanetwork/bridge-prover/collector"
	"github.com/poanetwork/bridge-prover/logging"
	"github.com/poanetwork/bridge-prover/merkle"
	httpmiddleware "github.com/poanetwork/bridge-prover/presenter/http/middleware"
	"github.com/poanetwork/bridge-prover/presenter/http/render"
	"github.com/poanetwork/bridge-prover/registry"
	"github.com/poanetwork/bridge-prover/relayer"
)

type Presenter struct {
	logger    logging.Logger
	registry  *registry.Registry
	batcher   *merkle.Batcher
	collector *collector.Collector
	service   *relayer.Service
	root      chi.Router
}

func NewPresenter(logger logging.Logger, reg *registry.Registry, batcher *merkle.Batcher, coll *collector.Collector, service *relayer.Service) *Presenter {
	return &Presenter{
		logger:    logger,
		registry:  reg,
		batcher:   batcher,
		collector: coll,
		service:   service,
		root:      chi.NewMux(),
	}
}

// Handler builds the routed API handler. Exposed separately from Serve
// so it can be mounted into an existing server.
func (p *Presenter) Handler() http.Handler {
	p.root.Use(middleware.Throttle(5))
	p.root.Use(middleware.RequestID)
	p.root.Use(httpmiddleware.NewLoggerMiddleware(p.logger))
	p.root.Use(httpmiddleware.Recoverer)
	p.root.Get("/proofs/{proofID:0x[0-9a-fA-F]{64}}", p.GetProof)
	p.root.Get("/proofs/{proofID:0x[0-9a-fA-F]{64}}/status", p.GetProofStatus)
	p.root.Get("/batches/{batchID:[0-9]+}", p.GetBatch)
	p.root.Get("/batches/{batchID:[0-9]+}/proofs/{index:[0-9]+}", p.GetInclusionProof)
	p.root.Get("/validators", p.GetValidators)
	p.root.Get("/stats", p.GetStats)
	return p.root
}

func (p *Presenter) Serve(addr string) error {
	p.logger.WithField("addr", addr).Info("starting presenter service")
	return http.ListenAndServe(addr, p.Handler())
}

func (p *Presenter) GetProof(w http.ResponseWriter, r *http.Request) {
	proofID := common.HexToHash(chi.URLParam(r, "proofID"))
	proof, err := p.collector.GetProof(proofID)
	if err != nil {
		if errors.Is(err, collector.ErrProofNotFound) {
			render.NotFound(w, r, err)
			return
		}
		render.Error(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, proof)
}

func (p *Presenter) GetProofStatus(w http.ResponseWriter, r *http.Request) {
	proofID := common.HexToHash(chi.URLParam(r, "proofID"))
	status, err := p.collector.CollectionStatus(proofID)
	if err != nil {
		if errors.Is(err, collector.ErrProofNotFound) {
			render.NotFound(w, r, err)
			return
		}
		render.Error(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, status)
}

func (p *Presenter) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.ParseUint(chi.URLParam(r, "batchID"), 10, 64)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	batch, err := p.batcher.GetBatch(batchID)
	if err != nil {
		if errors.Is(err, merkle.ErrBatchNotFound) {
			render.NotFound(w, r, err)
			return
		}
		render.Error(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, batch)
}

func (p *Presenter) GetInclusionProof(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.ParseUint(chi.URLParam(r, "batchID"), 10, 64)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	proof, err := p.batcher.GenerateProof(batchID, index)
	if err != nil {
		if errors.Is(err, merkle.ErrBatchNotFound) || errors.Is(err, merkle.ErrLeafNotFound) {
			render.NotFound(w, r, err)
			return
		}
		render.Error(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, proof)
}

func (p *Presenter) GetValidators(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, http.StatusOK, &ValidatorsResult{
		Validators: p.registry.Validators(),
		Stats:      p.registry.Stats(),
	})
}

func (p *Presenter) GetStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, http.StatusOK, p.service.Stats())
}
