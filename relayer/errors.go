package relayer

import "errors"

var (
	ErrServiceStopped        = errors.New("relayer service is stopped")
	ErrQueueFull             = errors.New("event queue is full")
	ErrConnection            = errors.New("chain rpc connection error")
	ErrEventProcessing       = errors.New("can't process bridge event")
	ErrProofGeneration       = errors.New("can't generate proof for batch")
	ErrRelayFailed           = errors.New("relay to destination chain failed")
	ErrConfiguration         = errors.New("invalid relayer configuration")
	ErrProofAlreadyUsed      = errors.New("proof id was already consumed")
	ErrNonceAlreadyProcessed = errors.New("nonce was already processed")
)
