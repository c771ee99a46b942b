package merkle_test

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/merkle"
)

func testLeaves(n int) []common.Hash {
	leaves := make([]common.Hash, n)
	for i := range leaves {
		leaves[i] = crypto.Keccak256Hash([]byte(fmt.Sprintf("leaf-%d", i)))
	}
	return leaves
}

func TestNewTreeNoLeaves(t *testing.T) {
	t.Parallel()

	_, err := merkle.NewTree(nil)
	require.ErrorIs(t, err, merkle.ErrNoLeaves)
}

func TestSingleLeafRoot(t *testing.T) {
	t.Parallel()

	leaves := testLeaves(1)
	tree, err := merkle.NewTree(leaves)
	require.NoError(t, err)
	require.Equal(t, leaves[0], tree.Root())

	proof, err := tree.GenerateProof(0)
	require.NoError(t, err)
	require.Empty(t, proof.Path)
	require.True(t, merkle.VerifyProof(proof))
}

func TestGenerateAndVerifyProofAllSizes(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 9; n++ {
		tree, err := merkle.NewTree(testLeaves(n))
		require.NoError(t, err, "size %d", n)
		for i := 0; i < n; i++ {
			proof, err2 := tree.GenerateProof(i)
			require.NoError(t, err2, "size %d leaf %d", n, i)
			require.True(t, merkle.VerifyProof(proof), "size %d leaf %d", n, i)
		}
	}
}

func TestOddLevelPadding(t *testing.T) {
	t.Parallel()

	// padding duplicates the last leaf, it never injects a zero node
	leaves := testLeaves(3)
	tree, err := merkle.NewTree(leaves)
	require.NoError(t, err)

	left := crypto.Keccak256Hash(leaves[0].Bytes(), leaves[1].Bytes())
	right := crypto.Keccak256Hash(leaves[2].Bytes(), leaves[2].Bytes())
	require.Equal(t, crypto.Keccak256Hash(left.Bytes(), right.Bytes()), tree.Root())
}

func TestGenerateProofOutOfRange(t *testing.T) {
	t.Parallel()

	tree, err := merkle.NewTree(testLeaves(4))
	require.NoError(t, err)
	_, err = tree.GenerateProof(-1)
	require.ErrorIs(t, err, merkle.ErrLeafNotFound)
	_, err = tree.GenerateProof(4)
	require.ErrorIs(t, err, merkle.ErrLeafNotFound)
}

func TestVerifyProofRejectsTampering(t *testing.T) {
	t.Parallel()

	tree, err := merkle.NewTree(testLeaves(5))
	require.NoError(t, err)
	proof, err := tree.GenerateProof(2)
	require.NoError(t, err)
	require.True(t, merkle.VerifyProof(proof))

	for _, test := range []struct {
		Name   string
		Mutate func(p *entity.MerkleProof)
	}{
		{"flipped leaf byte", func(p *entity.MerkleProof) { p.Leaf[0] ^= 0xff }},
		{"flipped root byte", func(p *entity.MerkleProof) { p.Root[31] ^= 0x01 }},
		{"flipped path byte", func(p *entity.MerkleProof) { p.Path[0][0] ^= 0xff }},
		{"wrong index", func(p *entity.MerkleProof) { p.Index = 3 }},
		{"negative index", func(p *entity.MerkleProof) { p.Index = -1 }},
		{"truncated path", func(p *entity.MerkleProof) { p.Path = p.Path[:len(p.Path)-1] }},
	} {
		t.Logf("Running sub-test %q", test.Name)
		mutated := *proof
		mutated.Path = append([]common.Hash{}, proof.Path...)
		test.Mutate(&mutated)
		require.False(t, merkle.VerifyProof(&mutated), "Failed %s", test.Name)
	}
}

func TestVerifyProofNil(t *testing.T) {
	t.Parallel()

	require.False(t, merkle.VerifyProof(nil))
}

func TestVerifyProofIndexOutsidePath(t *testing.T) {
	t.Parallel()

	tree, err := merkle.NewTree(testLeaves(4))
	require.NoError(t, err)
	proof, err := tree.GenerateProof(1)
	require.NoError(t, err)

	// an index too large for the path length can't reduce to the root slot
	proof.Index = 5
	require.False(t, merkle.VerifyProof(proof))
}
