package aggregate

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/bridge-prover/entity"
)

const schnorrSignatureLength = 64

// SchnorrAggregator collects BIP-340 signatures over 32-byte x-only
// public keys. Member signatures are concatenated and re-verified
// pairwise; a MuSig2-style single-point aggregation is a possible
// follow-up once signing agents support the nonce exchange.
type SchnorrAggregator struct{}

func (a *SchnorrAggregator) Strategy() Strategy {
	return StrategySchnorr
}

func (a *SchnorrAggregator) Aggregate(sigs []*entity.ValidatorSignature, msgHash common.Hash) (*AggregatedSignature, error) {
	if len(sigs) == 0 {
		return nil, ErrNoSignatures
	}
	blob := make([]byte, 0, len(sigs)*schnorrSignatureLength)
	for _, sig := range sigs {
		if _, err := schnorr.ParseSignature(sig.Signature); err != nil {
			return nil, fmt.Errorf("%w: signature of %s: %s", ErrAggregationFailed, sig.Signer, err)
		}
		blob = append(blob, sig.Signature...)
	}
	return &AggregatedSignature{
		Strategy:  StrategySchnorr,
		Signature: blob,
		Signers:   signerList(sigs),
	}, nil
}

func (a *SchnorrAggregator) Verify(agg *AggregatedSignature, msgHash common.Hash, pubKeys [][]byte) error {
	if agg == nil || len(agg.Signature) == 0 {
		return ErrNoSignatures
	}
	if len(agg.Signature)%schnorrSignatureLength != 0 {
		return fmt.Errorf("%w: blob length %d is not a multiple of %d", ErrVerificationFailed, len(agg.Signature), schnorrSignatureLength)
	}
	count := len(agg.Signature) / schnorrSignatureLength
	if count != len(pubKeys) {
		return fmt.Errorf("%w: %d signatures for %d public keys", ErrVerificationFailed, count, len(pubKeys))
	}
	for i := 0; i < count; i++ {
		chunk := agg.Signature[i*schnorrSignatureLength : (i+1)*schnorrSignatureLength]
		sig, err := schnorr.ParseSignature(chunk)
		if err != nil {
			return fmt.Errorf("%w: member %d: %s", ErrVerificationFailed, i, err)
		}
		pk, err := schnorr.ParsePubKey(pubKeys[i])
		if err != nil {
			return fmt.Errorf("%w: public key %d: %s", ErrVerificationFailed, i, err)
		}
		if !sig.Verify(msgHash.Bytes(), pk) {
			return fmt.Errorf("%w: member %d does not verify", ErrVerificationFailed, i)
		}
	}
	return nil
}
