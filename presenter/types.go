package presenter

import (
	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/registry"
)

type ValidatorsResult struct {
	Validators []*entity.Validator `json:"validators"`
	Stats      registry.Stats      `json:"stats"`
}
