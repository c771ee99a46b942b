// Package aggregate combines collected validator signatures into one
// compact blob under a configurable strategy. Simple concatenation is
// the always-available default; BLS and Schnorr are capability
// extensions selected by configuration.
package aggregate

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/poanetwork/bridge-prover/entity"
)

type Strategy string

const (
	StrategySimple  Strategy = "simple"
	StrategyBLS     Strategy = "bls"
	StrategySchnorr Strategy = "schnorr"
)

var (
	ErrNoSignatures       = errors.New("no signatures to aggregate")
	ErrAggregationFailed  = errors.New("signature aggregation failed")
	ErrVerificationFailed = errors.New("aggregated signature verification failed")
	ErrUnknownStrategy    = errors.New("unknown aggregation strategy")
)

// AggregatedSignature is the sealed multi-signature artifact. Signers
// preserves the order in which member signatures were accepted.
type AggregatedSignature struct {
	Strategy  Strategy         `json:"strategy"`
	Signature hexutil.Bytes    `json:"signature"`
	Signers   []common.Address `json:"signers"`
}

// Aggregator seals member signatures over one message and verifies the
// resulting artifact against a signer public key set.
type Aggregator interface {
	Strategy() Strategy
	Aggregate(sigs []*entity.ValidatorSignature, msgHash common.Hash) (*AggregatedSignature, error)
	// Verify checks agg over msgHash. pubKeys are the signer public
	// keys aligned with agg.Signers.
	Verify(agg *AggregatedSignature, msgHash common.Hash, pubKeys [][]byte) error
}

func New(strategy Strategy) (Aggregator, error) {
	switch strategy {
	case StrategySimple, "":
		return &SimpleAggregator{}, nil
	case StrategyBLS:
		return &BLSAggregator{}, nil
	case StrategySchnorr:
		return &SchnorrAggregator{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

func signerList(sigs []*entity.ValidatorSignature) []common.Address {
	signers := make([]common.Address, len(sigs))
	for i, sig := range sigs {
		signers[i] = sig.Signer
	}
	return signers
}
