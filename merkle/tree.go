package merkle

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/poanetwork/bridge-prover/entity"
)

// Tree is a binary keccak256 hash tree over an ordered list of leaves.
// Odd levels are padded by duplicating the last node, never by a zero
// leaf, and pairs are hashed strictly as H(left, right). A single-leaf
// tree has the leaf itself as root.
type Tree struct {
	levels [][]common.Hash
}

func NewTree(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}
	levels := make([][]common.Hash, 0, 8)
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	levels = append(levels, level)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}, nil
}

func (t *Tree) Root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// GenerateProof collects the sibling at every level walking from the
// leaf up to the root. The verifier re-derives left/right placement from
// the index parity at each level.
func (t *Tree) GenerateProof(index int) (*entity.MerkleProof, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, ErrLeafNotFound
	}
	path := make([]common.Hash, 0, len(t.levels)-1)
	idx := index
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			// odd level, the node is paired with its own duplicate
			sibling = idx
		}
		path = append(path, level[sibling])
		idx /= 2
	}
	return &entity.MerkleProof{
		Root:  t.Root(),
		Leaf:  t.levels[0][index],
		Path:  path,
		Index: index,
	}, nil
}

// VerifyProof recomputes the root from the leaf and the sibling path,
// driven by the index parity at each level, and compares it
// byte-for-byte against the claimed root.
func VerifyProof(proof *entity.MerkleProof) bool {
	if proof == nil || proof.Index < 0 {
		return false
	}
	node := proof.Leaf
	idx := proof.Index
	for _, sibling := range proof.Path {
		if idx%2 == 0 {
			node = hashPair(node, sibling)
		} else {
			node = hashPair(sibling, node)
		}
		idx /= 2
	}
	if idx != 0 {
		return false
	}
	return bytes.Equal(node.Bytes(), proof.Root.Bytes())
}

func hashPair(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left.Bytes(), right.Bytes())
}
