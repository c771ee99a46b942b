package registry

import "errors"

var (
	ErrValidatorNotFound   = errors.New("validator not found")
	ErrInvalidPublicKey    = errors.New("invalid validator public key")
	ErrInsufficientQuorum  = errors.New("insufficient quorum")
	ErrValidatorSlashed    = errors.New("validator is slashed")
	ErrValidatorInactive   = errors.New("validator is inactive")
	ErrInvalidSignature    = errors.New("invalid validator signature")
	ErrInvalidThreshold    = errors.New("invalid quorum threshold")
	ErrMessageHashMismatch = errors.New("signature message hash mismatch")
)
