package aggregate

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	blst "github.com/supranational/blst/bindings/go"

	"github.com/poanetwork/bridge-prover/entity"
)

// MinPk scheme: public keys are 48-byte compressed G1 points,
// signatures are 96-byte compressed G2 points.
const (
	blsPublicKeyLength = 48
	blsSignatureLength = 96
)

// blsDST is the standard ciphersuite domain separation tag, kept
// identical to the Ethereum consensus layer so signatures cross-verify.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

// BLSAggregator folds member BLS signatures into a single 96-byte
// signature verifiable against the combined public key of the signers.
type BLSAggregator struct{}

func (a *BLSAggregator) Strategy() Strategy {
	return StrategyBLS
}

func (a *BLSAggregator) Aggregate(sigs []*entity.ValidatorSignature, msgHash common.Hash) (*AggregatedSignature, error) {
	if len(sigs) == 0 {
		return nil, ErrNoSignatures
	}
	compressed := make([][]byte, len(sigs))
	for i, sig := range sigs {
		if len(sig.Signature) != blsSignatureLength {
			return nil, fmt.Errorf("%w: signature of %s has %d bytes, want %d", ErrAggregationFailed, sig.Signer, len(sig.Signature), blsSignatureLength)
		}
		compressed[i] = sig.Signature
	}
	agg := new(blst.P2Aggregate)
	if !agg.AggregateCompressed(compressed, true) {
		return nil, fmt.Errorf("%w: can't decode member signature", ErrAggregationFailed)
	}
	return &AggregatedSignature{
		Strategy:  StrategyBLS,
		Signature: agg.ToAffine().Compress(),
		Signers:   signerList(sigs),
	}, nil
}

func (a *BLSAggregator) Verify(agg *AggregatedSignature, msgHash common.Hash, pubKeys [][]byte) error {
	if agg == nil || len(agg.Signature) == 0 || len(pubKeys) == 0 {
		return ErrNoSignatures
	}
	sig := new(blst.P2Affine).Uncompress(agg.Signature)
	if sig == nil {
		return fmt.Errorf("%w: can't decode aggregated signature", ErrVerificationFailed)
	}
	pks := make([]*blst.P1Affine, len(pubKeys))
	for i, pk := range pubKeys {
		if len(pk) != blsPublicKeyLength {
			return fmt.Errorf("%w: public key %d has %d bytes, want %d", ErrVerificationFailed, i, len(pk), blsPublicKeyLength)
		}
		pks[i] = new(blst.P1Affine).Uncompress(pk)
		if pks[i] == nil {
			return fmt.Errorf("%w: can't decode public key %d", ErrVerificationFailed, i)
		}
	}
	if !sig.FastAggregateVerify(true, pks, msgHash.Bytes(), blsDST) {
		return ErrVerificationFailed
	}
	return nil
}
