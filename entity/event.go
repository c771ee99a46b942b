package entity

import (
	"encoding/binary"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type EventType string

const (
	EventTypeLock   EventType = "lock"
	EventTypeUnlock EventType = "unlock"
)

func (t EventType) code() byte {
	if t == EventTypeUnlock {
		return 0x02
	}
	return 0x01
}

// BridgeEvent is an immutable record of a single cross-chain action,
// produced by the chain watcher in chain-observed order.
type BridgeEvent struct {
	Type      EventType      `db:"event_type" json:"type"`
	Token     common.Address `db:"token" json:"token"`
	Sender    common.Address `db:"sender" json:"sender"`
	Recipient common.Address `db:"recipient" json:"recipient"`
	Amount    *big.Int       `db:"amount" json:"amount"`
	Nonce     uint64         `db:"nonce" json:"nonce"`
	Timestamp time.Time      `db:"timestamp" json:"timestamp"`
	ChainID   string         `db:"chain_id" json:"chain_id"`
	TxHash    common.Hash    `db:"tx_hash" json:"tx_hash"`
}

// EncodeForSigning returns the canonical byte serialization of the event.
// The layout is fixed-width big-endian with length-prefixed chain id, so
// any two implementations agree byte-for-byte:
//
//	type(1) | token(20) | sender(20) | recipient(20) | amount(32) |
//	nonce(8) | len(chain_id)(8) | chain_id | tx_hash(32)
func (e *BridgeEvent) EncodeForSigning() []byte {
	buf := make([]byte, 0, 141+len(e.ChainID))
	buf = append(buf, e.Type.code())
	buf = append(buf, e.Token.Bytes()...)
	buf = append(buf, e.Sender.Bytes()...)
	buf = append(buf, e.Recipient.Bytes()...)
	amount := new(big.Int)
	if e.Amount != nil {
		amount.Set(e.Amount)
	}
	buf = append(buf, amount.FillBytes(make([]byte, 32))...)
	buf = binary.BigEndian.AppendUint64(buf, e.Nonce)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(e.ChainID)))
	buf = append(buf, e.ChainID...)
	buf = append(buf, e.TxHash.Bytes()...)
	return buf
}

// Hash is the Merkle leaf hash of the event.
func (e *BridgeEvent) Hash() common.Hash {
	return crypto.Keccak256Hash(e.EncodeForSigning())
}
