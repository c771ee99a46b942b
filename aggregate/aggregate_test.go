package aggregate_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	blst "github.com/supranational/blst/bindings/go"

	"github.com/poanetwork/bridge-prover/aggregate"
	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/utils"
)

var blsTestDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

func TestNewAggregator(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Strategy aggregate.Strategy
		Expected aggregate.Strategy
	}{
		{aggregate.StrategySimple, aggregate.StrategySimple},
		{"", aggregate.StrategySimple},
		{aggregate.StrategyBLS, aggregate.StrategyBLS},
		{aggregate.StrategySchnorr, aggregate.StrategySchnorr},
	} {
		agg, err := aggregate.New(test.Strategy)
		require.NoError(t, err)
		require.Equal(t, test.Expected, agg.Strategy())
	}

	_, err := aggregate.New("threshold-rsa")
	require.ErrorIs(t, err, aggregate.ErrUnknownStrategy)
}

func TestSimpleAggregate(t *testing.T) {
	t.Parallel()

	agg := &aggregate.SimpleAggregator{}
	msgHash := crypto.Keccak256Hash([]byte("payload"))

	sigs := make([]*entity.ValidatorSignature, 0, 3)
	pubKeys := make([][]byte, 0, 3)
	for i := 0; i < 3; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		raw, err := utils.SignMessage(msgHash.Bytes(), key)
		require.NoError(t, err)
		sigs = append(sigs, &entity.ValidatorSignature{
			Signer:    crypto.PubkeyToAddress(key.PublicKey),
			Signature: raw,
			MsgHash:   msgHash,
		})
		pubKeys = append(pubKeys, crypto.FromECDSAPub(&key.PublicKey))
	}

	sealed, err := agg.Aggregate(sigs, msgHash)
	require.NoError(t, err)
	require.Equal(t, aggregate.StrategySimple, sealed.Strategy)
	require.Len(t, sealed.Signature, 3*crypto.SignatureLength)
	require.Len(t, sealed.Signers, 3)

	require.NoError(t, agg.Verify(sealed, msgHash, pubKeys))

	// a blob with a flipped byte no longer verifies
	tampered := *sealed
	tampered.Signature = append([]byte{}, sealed.Signature...)
	tampered.Signature[70] ^= 0xff
	require.ErrorIs(t, agg.Verify(&tampered, msgHash, pubKeys), aggregate.ErrVerificationFailed)

	// dropping a member public key leaves a non-member signature
	require.ErrorIs(t, agg.Verify(sealed, msgHash, pubKeys[:2]), aggregate.ErrVerificationFailed)
}

func TestSimpleAggregateRejectsBadInput(t *testing.T) {
	t.Parallel()

	agg := &aggregate.SimpleAggregator{}
	msgHash := crypto.Keccak256Hash([]byte("payload"))

	_, err := agg.Aggregate(nil, msgHash)
	require.ErrorIs(t, err, aggregate.ErrNoSignatures)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	raw, err := utils.SignMessage(msgHash.Bytes(), key)
	require.NoError(t, err)

	// claimed signer differs from the recovered one
	_, err = agg.Aggregate([]*entity.ValidatorSignature{{
		Signature: raw,
		MsgHash:   msgHash,
	}}, msgHash)
	require.ErrorIs(t, err, aggregate.ErrAggregationFailed)

	// undecodable signature bytes
	_, err = agg.Aggregate([]*entity.ValidatorSignature{{
		Signer:    crypto.PubkeyToAddress(key.PublicKey),
		Signature: []byte{0x01},
		MsgHash:   msgHash,
	}}, msgHash)
	require.ErrorIs(t, err, aggregate.ErrAggregationFailed)

	require.ErrorIs(t, agg.Verify(nil, msgHash, nil), aggregate.ErrNoSignatures)
}

func TestBLSAggregate(t *testing.T) {
	t.Parallel()

	agg := &aggregate.BLSAggregator{}
	msgHash := crypto.Keccak256Hash([]byte("payload"))

	sigs := make([]*entity.ValidatorSignature, 0, 3)
	pubKeys := make([][]byte, 0, 3)
	for i := 0; i < 3; i++ {
		ikm := make([]byte, 32)
		ikm[0] = byte(i + 1)
		sk := blst.KeyGen(ikm)
		pk := new(blst.P1Affine).From(sk)
		sig := new(blst.P2Affine).Sign(sk, msgHash.Bytes(), blsTestDST)
		sigs = append(sigs, &entity.ValidatorSignature{
			Signature: sig.Compress(),
			MsgHash:   msgHash,
		})
		pubKeys = append(pubKeys, pk.Compress())
	}

	sealed, err := agg.Aggregate(sigs, msgHash)
	require.NoError(t, err)
	require.Equal(t, aggregate.StrategyBLS, sealed.Strategy)
	require.Len(t, sealed.Signature, 96)

	require.NoError(t, agg.Verify(sealed, msgHash, pubKeys))

	// the aggregate does not verify with a member missing
	require.Error(t, agg.Verify(sealed, msgHash, pubKeys[:2]))

	// and not over a different message
	otherHash := crypto.Keccak256Hash([]byte("other"))
	require.ErrorIs(t, agg.Verify(sealed, otherHash, pubKeys), aggregate.ErrVerificationFailed)
}

func TestBLSAggregateRejectsBadInput(t *testing.T) {
	t.Parallel()

	agg := &aggregate.BLSAggregator{}
	msgHash := crypto.Keccak256Hash([]byte("payload"))

	_, err := agg.Aggregate(nil, msgHash)
	require.ErrorIs(t, err, aggregate.ErrNoSignatures)

	// a 65-byte ECDSA signature can't enter a BLS aggregate
	_, err = agg.Aggregate([]*entity.ValidatorSignature{{
		Signature: make([]byte, 65),
		MsgHash:   msgHash,
	}}, msgHash)
	require.ErrorIs(t, err, aggregate.ErrAggregationFailed)

	// right length, but not a valid G2 point
	_, err = agg.Aggregate([]*entity.ValidatorSignature{{
		Signature: make([]byte, 96),
		MsgHash:   msgHash,
	}}, msgHash)
	require.ErrorIs(t, err, aggregate.ErrAggregationFailed)
}

func TestSchnorrAggregate(t *testing.T) {
	t.Parallel()

	agg := &aggregate.SchnorrAggregator{}
	msgHash := crypto.Keccak256Hash([]byte("payload"))

	sigs := make([]*entity.ValidatorSignature, 0, 3)
	pubKeys := make([][]byte, 0, 3)
	for i := 0; i < 3; i++ {
		key, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		sig, err := schnorr.Sign(key, msgHash.Bytes())
		require.NoError(t, err)
		sigs = append(sigs, &entity.ValidatorSignature{
			Signature: sig.Serialize(),
			MsgHash:   msgHash,
		})
		pubKeys = append(pubKeys, schnorr.SerializePubKey(key.PubKey()))
	}

	sealed, err := agg.Aggregate(sigs, msgHash)
	require.NoError(t, err)
	require.Equal(t, aggregate.StrategySchnorr, sealed.Strategy)
	require.Len(t, sealed.Signature, 3*64)

	require.NoError(t, agg.Verify(sealed, msgHash, pubKeys))

	// misaligned public keys invalidate the pairwise check
	swapped := [][]byte{pubKeys[1], pubKeys[0], pubKeys[2]}
	require.ErrorIs(t, agg.Verify(sealed, msgHash, swapped), aggregate.ErrVerificationFailed)

	require.ErrorIs(t, agg.Verify(sealed, msgHash, pubKeys[:2]), aggregate.ErrVerificationFailed)
}

func TestSchnorrAggregateRejectsBadInput(t *testing.T) {
	t.Parallel()

	agg := &aggregate.SchnorrAggregator{}
	msgHash := crypto.Keccak256Hash([]byte("payload"))

	_, err := agg.Aggregate(nil, msgHash)
	require.ErrorIs(t, err, aggregate.ErrNoSignatures)

	_, err = agg.Aggregate([]*entity.ValidatorSignature{{
		Signature: make([]byte, 65),
		MsgHash:   msgHash,
	}}, msgHash)
	require.ErrorIs(t, err, aggregate.ErrAggregationFailed)
}
