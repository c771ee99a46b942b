package relayer

import (
	"context"
	"fmt"

	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/ethclient"
)

// Destination delivers a sealed proof and its batch to the destination
// chain. Implementations should return transient transport errors
// as-is; the relayer decides what is retryable.
type Destination interface {
	SubmitProof(ctx context.Context, batch *entity.MerkleBatch, proof *entity.BridgeProof) error
}

// proofPayload is the wire shape submitted to the destination bridge
// node endpoint.
type proofPayload struct {
	Proof *entity.BridgeProof `json:"proof"`
	Batch *entity.MerkleBatch `json:"batch"`
}

type rpcDestination struct {
	client ethclient.Client
}

// NewRPCDestination submits proofs over the destination node's JSON-RPC
// bridge endpoint.
func NewRPCDestination(client ethclient.Client) Destination {
	return &rpcDestination{client: client}
}

func (d *rpcDestination) SubmitProof(ctx context.Context, batch *entity.MerkleBatch, proof *entity.BridgeProof) error {
	err := d.client.SubmitProof(ctx, &proofPayload{Proof: proof, Batch: batch})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRelayFailed, err)
	}
	return nil
}
