package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/bridge-prover/config"
	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/ethclient"
	"github.com/poanetwork/bridge-prover/logging"
	"github.com/poanetwork/bridge-prover/utils"
)

var (
	tokensLockedTopic   = crypto.Keccak256Hash([]byte("TokensLocked(address,address,address,uint256,uint256)"))
	tokensUnlockedTopic = crypto.Keccak256Hash([]byte("TokensUnlocked(address,address,address,uint256,uint256)"))
)

// EventWatcher polls the source chain for bridge contract logs and
// feeds decoded events into the relayer in chain-observed order.
type EventWatcher struct {
	logger        logging.Logger
	client        ethclient.Client
	chainCfg      *config.ChainConfig
	bridgeAddress common.Address
	next          uint64
	sink          func(*entity.BridgeEvent) error
}

func NewEventWatcher(logger logging.Logger, client ethclient.Client, chainCfg *config.ChainConfig, bridgeAddress common.Address, startBlock uint64, sink func(*entity.BridgeEvent) error) *EventWatcher {
	return &EventWatcher{
		logger:        logger,
		client:        client,
		chainCfg:      chainCfg,
		bridgeAddress: bridgeAddress,
		next:          startBlock,
		sink:          sink,
	}
}

// Run polls new confirmed blocks until ctx is cancelled. RPC failures
// are logged and retried on the next tick; they never kill the loop.
func (w *EventWatcher) Run(ctx context.Context) {
	w.logger.WithFields(logrus.Fields{
		"chain_id":    w.client.ChainID(),
		"address":     w.bridgeAddress,
		"start_block": w.next,
	}).Info("starting source chain event monitor")
	for {
		head, err := w.client.BlockNumber(ctx)
		if err != nil {
			w.logger.WithError(err).Error("can't fetch latest block number")
		} else if head >= w.chainCfg.Confirmations {
			head -= w.chainCfg.Confirmations
			LatestSourceBlock.Set(float64(head))
			w.fetchUpTo(ctx, head)
		}
		if utils.ContextSleep(ctx, w.chainCfg.BlockIndexInterval.Duration) == nil {
			return
		}
	}
}

func (w *EventWatcher) fetchUpTo(ctx context.Context, head uint64) {
	for w.next <= head {
		end := w.next + w.chainCfg.MaxBlockRangeSize - 1
		if end > head {
			end = head
		}
		if err := w.fetchRange(ctx, w.next, end); err != nil {
			w.logger.WithError(err).WithFields(logrus.Fields{
				"from_block": w.next,
				"to_block":   end,
			}).Error("failed log search, retrying on next tick")
			return
		}
		w.next = end + 1
	}
}

func (w *EventWatcher) fetchRange(ctx context.Context, fromBlock, toBlock uint64) error {
	logs, err := w.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{w.bridgeAddress},
		Topics:    [][]common.Hash{{tokensLockedTopic, tokensUnlockedTopic}},
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConnection, err)
	}
	sort.Slice(logs, func(i, j int) bool {
		a, b := &logs[i], &logs[j]
		return a.BlockNumber < b.BlockNumber || (a.BlockNumber == b.BlockNumber && a.Index < b.Index)
	})
	blockTimes := make(map[uint64]time.Time)
	for i := range logs {
		event, err2 := w.decodeLog(&logs[i])
		if err2 != nil {
			w.logger.WithError(err2).WithField("tx_hash", logs[i].TxHash).Warn("skipping undecodable bridge log")
			continue
		}
		ts, ok := blockTimes[logs[i].BlockNumber]
		if !ok {
			header, err3 := w.client.HeaderByNumber(ctx, logs[i].BlockNumber)
			if err3 != nil {
				return fmt.Errorf("%w: %s", ErrConnection, err3)
			}
			ts = time.Unix(int64(header.Time), 0)
			blockTimes[logs[i].BlockNumber] = ts
		}
		event.Timestamp = ts
		for {
			err2 = w.sink(event)
			if err2 == nil {
				IngestedEvents.Inc()
				break
			}
			if !errors.Is(err2, ErrQueueFull) {
				return err2
			}
			// backpressure from the pipeline, wait and resubmit
			if utils.ContextSleep(ctx, time.Second) == nil {
				return ctx.Err()
			}
		}
	}
	if len(logs) > 0 {
		w.logger.WithFields(logrus.Fields{
			"count":      len(logs),
			"from_block": fromBlock,
			"to_block":   toBlock,
		}).Info("ingested bridge events in range")
	}
	return nil
}

func (w *EventWatcher) decodeLog(log *types.Log) (*entity.BridgeEvent, error) {
	if len(log.Topics) != 4 || len(log.Data) < 64 {
		return nil, ErrEventProcessing
	}
	eventType := entity.EventTypeLock
	if log.Topics[0] == tokensUnlockedTopic {
		eventType = entity.EventTypeUnlock
	}
	return &entity.BridgeEvent{
		Type:      eventType,
		Token:     common.BytesToAddress(log.Topics[1].Bytes()),
		Sender:    common.BytesToAddress(log.Topics[2].Bytes()),
		Recipient: common.BytesToAddress(log.Topics[3].Bytes()),
		Amount:    new(big.Int).SetBytes(log.Data[:32]),
		Nonce:     new(big.Int).SetBytes(log.Data[32:64]).Uint64(),
		ChainID:   w.client.ChainID(),
		TxHash:    log.TxHash,
	}, nil
}
