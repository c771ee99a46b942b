package merkle

import "errors"

var (
	ErrNoLeaves         = errors.New("merkle tree requires at least one leaf")
	ErrLeafNotFound     = errors.New("leaf index is out of range")
	ErrEmptyBatch       = errors.New("no events buffered for finalization")
	ErrBatchNotFound    = errors.New("batch not found")
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	ErrInvalidLeafData  = errors.New("event has no canonical encoding")
)
