package repository

import (
	"github.com/poanetwork/bridge-prover/db"
	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/repository/postgres"
)

type Repo struct {
	Validators      entity.ValidatorsRepo
	Batches         entity.BatchesRepo
	Proofs          entity.ProofsRepo
	UsedProofs      entity.UsedProofsRepo
	ProcessedNonces entity.ProcessedNoncesRepo
	RelayJobs       entity.RelayJobsRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		Validators:      postgres.NewValidatorsRepo("validators", db),
		Batches:         postgres.NewBatchesRepo("merkle_batches", db),
		Proofs:          postgres.NewProofsRepo("proofs", db),
		UsedProofs:      postgres.NewUsedProofsRepo("used_proof_ids", db),
		ProcessedNonces: postgres.NewProcessedNoncesRepo("processed_nonces", db),
		RelayJobs:       postgres.NewRelayJobsRepo("relay_jobs", db),
	}
}
