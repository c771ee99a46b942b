package verifier

import "errors"

var (
	ErrProofExpired           = errors.New("proof is expired or too old")
	ErrInvalidProofFormat     = errors.New("malformed bridge proof")
	ErrInvalidMerkleProof     = errors.New("merkle proof does not match the claimed root")
	ErrInsufficientSignatures = errors.New("not enough valid signatures for quorum")
)
