package verifier_test

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/merkle"
	"github.com/poanetwork/bridge-prover/utils"
	"github.com/poanetwork/bridge-prover/verifier"
)

type testSigner struct {
	key       *ecdsa.PrivateKey
	validator *entity.Validator
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &testSigner{
		key: key,
		validator: &entity.Validator{
			Address:   crypto.PubkeyToAddress(key.PublicKey),
			PublicKey: crypto.FromECDSAPub(&key.PublicKey),
			IsActive:  true,
		},
	}
}

func (s *testSigner) sign(t *testing.T, msgHash common.Hash) *entity.ValidatorSignature {
	t.Helper()
	sig, err := utils.SignMessage(msgHash.Bytes(), s.key)
	require.NoError(t, err)
	return &entity.ValidatorSignature{
		Signer:    s.validator.Address,
		Signature: sig,
		MsgHash:   msgHash,
	}
}

func newTestVerifier(t *testing.T, signers ...*testSigner) *verifier.Verifier {
	t.Helper()
	v := verifier.New(logrus.New(), time.Hour)
	vals := make([]*entity.Validator, len(signers))
	for i, s := range signers {
		vals[i] = s.validator
	}
	v.SyncValidators(vals)
	return v
}

func testProof(t *testing.T, root common.Hash, signers ...*testSigner) *entity.BridgeProof {
	t.Helper()
	msgHash := entity.ProofMessageHash(root, "1", "100")
	proof := &entity.BridgeProof{
		ID:            entity.NewProofID(msgHash, "1", "100"),
		BatchID:       1,
		MsgHash:       msgHash,
		SourceChainID: "1",
		TargetChainID: "100",
		Status:        entity.ProofStatusVerified,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	for _, s := range signers {
		proof.Signatures = append(proof.Signatures, s.sign(t, msgHash))
	}
	return proof
}

func TestVerifyBridgeProof(t *testing.T) {
	t.Parallel()

	a, b, c := newTestSigner(t), newTestSigner(t), newTestSigner(t)
	v := newTestVerifier(t, a, b, c)
	root := crypto.Keccak256Hash([]byte("batch-root"))

	// threshold 2 of 3
	require.NoError(t, v.VerifyBridgeProof(testProof(t, root, a, b)))
	require.NoError(t, v.VerifyBridgeProof(testProof(t, root, a, b, c)))

	err := v.VerifyBridgeProof(testProof(t, root, a))
	require.ErrorIs(t, err, verifier.ErrInsufficientSignatures)
}

func TestVerifyBridgeProofFormat(t *testing.T) {
	t.Parallel()

	v := newTestVerifier(t, newTestSigner(t))
	require.ErrorIs(t, v.VerifyBridgeProof(nil), verifier.ErrInvalidProofFormat)
	require.ErrorIs(t, v.VerifyBridgeProof(&entity.BridgeProof{}), verifier.ErrInvalidProofFormat)
}

func TestVerifyBridgeProofExpiry(t *testing.T) {
	t.Parallel()

	a, b := newTestSigner(t), newTestSigner(t)
	v := newTestVerifier(t, a, b)
	root := crypto.Keccak256Hash([]byte("batch-root"))

	expired := testProof(t, root, a, b)
	expired.ExpiresAt = time.Now().Add(-time.Second)
	require.ErrorIs(t, v.VerifyBridgeProof(expired), verifier.ErrProofExpired)

	tooOld := testProof(t, root, a, b)
	tooOld.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.ErrorIs(t, v.VerifyBridgeProof(tooOld), verifier.ErrProofExpired)
}

func TestVerifyBridgeProofDistinctSigners(t *testing.T) {
	t.Parallel()

	a, b := newTestSigner(t), newTestSigner(t)
	v := newTestVerifier(t, a, b)
	root := crypto.Keccak256Hash([]byte("batch-root"))

	// the same signer twice counts once
	err := v.VerifyBridgeProof(testProof(t, root, a, a))
	require.ErrorIs(t, err, verifier.ErrInsufficientSignatures)
}

func TestVerifyBridgeProofSlashedAfterSigning(t *testing.T) {
	t.Parallel()

	a, b, c := newTestSigner(t), newTestSigner(t), newTestSigner(t)
	v := newTestVerifier(t, a, b, c)
	root := crypto.Keccak256Hash([]byte("batch-root"))
	proof := testProof(t, root, a, b)

	// a stored signature stops counting once its signer is slashed
	v.MarkSlashed(b.validator.Address)
	err := v.VerifyBridgeProof(proof)
	require.ErrorIs(t, err, verifier.ErrInsufficientSignatures)

	require.NoError(t, v.VerifyBridgeProof(testProof(t, root, a, c)))
}

func TestVerifyBridgeProofTamperedSignature(t *testing.T) {
	t.Parallel()

	a, b := newTestSigner(t), newTestSigner(t)
	v := newTestVerifier(t, a, b)
	root := crypto.Keccak256Hash([]byte("batch-root"))

	proof := testProof(t, root, a, b)
	proof.Signatures[1].Signature[12] ^= 0xff
	err := v.VerifyBridgeProof(proof)
	require.ErrorIs(t, err, verifier.ErrInsufficientSignatures)
}

func TestVerifyBridgeProofMerkleComponent(t *testing.T) {
	t.Parallel()

	a, b := newTestSigner(t), newTestSigner(t)
	v := newTestVerifier(t, a, b)

	leaves := []common.Hash{
		crypto.Keccak256Hash([]byte("leaf-0")),
		crypto.Keccak256Hash([]byte("leaf-1")),
		crypto.Keccak256Hash([]byte("leaf-2")),
	}
	tree, err := merkle.NewTree(leaves)
	require.NoError(t, err)

	proof := testProof(t, tree.Root(), a, b)
	proof.Merkle, err = tree.GenerateProof(1)
	require.NoError(t, err)
	require.NoError(t, v.VerifyBridgeProof(proof))

	// a component under a different root contradicts the signed message
	otherTree, err := merkle.NewTree(leaves[:2])
	require.NoError(t, err)
	proof.Merkle, err = otherTree.GenerateProof(0)
	require.NoError(t, err)
	require.ErrorIs(t, v.VerifyBridgeProof(proof), verifier.ErrInvalidMerkleProof)

	// a tampered path breaks the inclusion check
	proof.Merkle, err = tree.GenerateProof(1)
	require.NoError(t, err)
	proof.Merkle.Path[0][0] ^= 0xff
	require.ErrorIs(t, v.VerifyBridgeProof(proof), verifier.ErrInvalidMerkleProof)
}

func TestVerifyBridgeProofThresholdOverride(t *testing.T) {
	t.Parallel()

	a, b, c := newTestSigner(t), newTestSigner(t), newTestSigner(t)
	v := newTestVerifier(t, a, b, c)
	root := crypto.Keccak256Hash([]byte("batch-root"))

	v.SetThreshold(3)
	require.ErrorIs(t, v.VerifyBridgeProof(testProof(t, root, a, b)), verifier.ErrInsufficientSignatures)
	require.NoError(t, v.VerifyBridgeProof(testProof(t, root, a, b, c)))

	v.SetThreshold(0)
	require.NoError(t, v.VerifyBridgeProof(testProof(t, root, a, b)))
}

func TestVerifyBridgeProofEmptyDirectory(t *testing.T) {
	t.Parallel()

	v := verifier.New(logrus.New(), time.Hour)
	a := newTestSigner(t)
	root := crypto.Keccak256Hash([]byte("batch-root"))
	require.ErrorIs(t, v.VerifyBridgeProof(testProof(t, root, a)), verifier.ErrInsufficientSignatures)
}
