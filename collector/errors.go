package collector

import "errors"

var (
	ErrProofNotFound      = errors.New("proof not found")
	ErrProofExpired       = errors.New("proof has expired")
	ErrProofClosed        = errors.New("proof no longer accepts signatures")
	ErrDuplicateSignature = errors.New("duplicate signature from validator")
	ErrAlreadyVerified    = errors.New("proof is already verified")
	ErrAggregationFailed  = errors.New("can't aggregate collected signatures")
)
