package aggregate

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/utils"
)

const ecdsaSignatureLength = crypto.SignatureLength

// SimpleAggregator concatenates 65-byte ECDSA signatures. There is no
// cryptographic size reduction; verification re-checks every member
// signature. It is the zero-dependency reference strategy.
type SimpleAggregator struct{}

func (a *SimpleAggregator) Strategy() Strategy {
	return StrategySimple
}

func (a *SimpleAggregator) Aggregate(sigs []*entity.ValidatorSignature, msgHash common.Hash) (*AggregatedSignature, error) {
	if len(sigs) == 0 {
		return nil, ErrNoSignatures
	}
	blob := make([]byte, 0, len(sigs)*ecdsaSignatureLength)
	for _, sig := range sigs {
		signer, err := utils.RestoreSignerAddress(msgHash.Bytes(), sig.Signature)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrAggregationFailed, err)
		}
		if signer != sig.Signer {
			return nil, fmt.Errorf("%w: signature recovered to %s instead of %s", ErrAggregationFailed, signer, sig.Signer)
		}
		blob = append(blob, sig.Signature...)
	}
	return &AggregatedSignature{
		Strategy:  StrategySimple,
		Signature: blob,
		Signers:   signerList(sigs),
	}, nil
}

func (a *SimpleAggregator) Verify(agg *AggregatedSignature, msgHash common.Hash, pubKeys [][]byte) error {
	if agg == nil || len(agg.Signature) == 0 {
		return ErrNoSignatures
	}
	if len(agg.Signature)%ecdsaSignatureLength != 0 {
		return fmt.Errorf("%w: blob length %d is not a multiple of %d", ErrVerificationFailed, len(agg.Signature), ecdsaSignatureLength)
	}
	count := len(agg.Signature) / ecdsaSignatureLength
	if count != len(agg.Signers) {
		return fmt.Errorf("%w: %d signatures for %d signers", ErrVerificationFailed, count, len(agg.Signers))
	}
	members := make(map[common.Address]bool, len(pubKeys))
	for _, pk := range pubKeys {
		pub, err := crypto.UnmarshalPubkey(pk)
		if err != nil {
			return fmt.Errorf("%w: bad signer public key: %s", ErrVerificationFailed, err)
		}
		members[crypto.PubkeyToAddress(*pub)] = true
	}
	for i := 0; i < count; i++ {
		chunk := agg.Signature[i*ecdsaSignatureLength : (i+1)*ecdsaSignatureLength]
		signer, err := utils.RestoreSignerAddress(msgHash.Bytes(), chunk)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrVerificationFailed, err)
		}
		if signer != agg.Signers[i] {
			return fmt.Errorf("%w: member %d recovered to %s", ErrVerificationFailed, i, signer)
		}
		if !members[signer] {
			return fmt.Errorf("%w: %s is not in the signer set", ErrVerificationFailed, signer)
		}
	}
	return nil
}
