package relayer_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/bridge-prover/config"
	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/relayer"
)

var (
	testLockedTopic = crypto.Keccak256Hash([]byte("TokensLocked(address,address,address,uint256,uint256)"))
	testBridgeAddr  = common.HexToAddress("0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016")
)

type fakeChainClient struct {
	mu             sync.Mutex
	head           uint64
	logs           []types.Log
	filterFailures int
	filterCalls    int
}

func (c *fakeChainClient) ChainID() string {
	return "1"
}

func (c *fakeChainClient) BlockNumber(context.Context) (uint64, error) {
	return c.head, nil
}

func (c *fakeChainClient) HeaderByNumber(_ context.Context, n uint64) (*types.Header, error) {
	return &types.Header{Number: new(big.Int).SetUint64(n), Time: 1_700_000_000 + n}, nil
}

func (c *fakeChainClient) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filterCalls++
	if c.filterFailures > 0 {
		c.filterFailures--
		return nil, errors.New("connection reset by peer")
	}
	matched := make([]types.Log, 0, len(c.logs))
	for _, log := range c.logs {
		if log.BlockNumber >= q.FromBlock.Uint64() && log.BlockNumber <= q.ToBlock.Uint64() {
			matched = append(matched, log)
		}
	}
	return matched, nil
}

func (c *fakeChainClient) SubmitProof(context.Context, interface{}) error {
	return nil
}

func (c *fakeChainClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filterCalls
}

func lockLog(block uint64, index uint, nonce uint64) types.Log {
	data := make([]byte, 64)
	new(big.Int).SetUint64(nonce * 10).FillBytes(data[:32])
	new(big.Int).SetUint64(nonce).FillBytes(data[32:64])
	return types.Log{
		Address: testBridgeAddr,
		Topics: []common.Hash{
			testLockedTopic,
			common.BytesToHash(common.HexToAddress("0x89d24A6b4CcB1B6fAA2625fE562bDD9a23260359").Bytes()),
			common.BytesToHash(common.HexToAddress("0x0000000000000000000000000000000000000001").Bytes()),
			common.BytesToHash(common.HexToAddress("0x0000000000000000000000000000000000000002").Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		Index:       index,
		TxHash:      common.BytesToHash([]byte{byte(block), byte(index)}),
	}
}

type eventSink struct {
	mu     sync.Mutex
	events []*entity.BridgeEvent
}

func (s *eventSink) add(event *entity.BridgeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *eventSink) snapshot() []*entity.BridgeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.BridgeEvent{}, s.events...)
}

func watcherChainCfg() *config.ChainConfig {
	return &config.ChainConfig{
		ChainID:            "1",
		BlockIndexInterval: config.Duration{Duration: 10 * time.Millisecond},
		Confirmations:      2,
		MaxBlockRangeSize:  3,
	}
}

func TestEventWatcherIngestsConfirmedLogs(t *testing.T) {
	t.Parallel()

	undecodable := lockLog(5, 2, 99)
	undecodable.Topics = undecodable.Topics[:2]
	client := &fakeChainClient{
		head: 8,
		// deliberately out of chain order, the watcher must sort
		logs: []types.Log{lockLog(6, 0, 3), undecodable, lockLog(5, 1, 2), lockLog(5, 0, 1)},
	}
	sink := &eventSink{}
	watcher := relayer.NewEventWatcher(logrus.New(), client, watcherChainCfg(), testBridgeAddr, 4, sink.add)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)

	events := sink.snapshot()
	require.Equal(t, uint64(1), events[0].Nonce)
	require.Equal(t, uint64(2), events[1].Nonce)
	require.Equal(t, uint64(3), events[2].Nonce)
	for _, event := range events {
		require.Equal(t, entity.EventTypeLock, event.Type)
		require.Equal(t, "1", event.ChainID)
		require.Equal(t, new(big.Int).SetUint64(event.Nonce*10), event.Amount)
	}
	// timestamps come from the block headers, not the local clock
	require.Equal(t, time.Unix(1_700_000_005, 0), events[0].Timestamp)
	require.Equal(t, time.Unix(1_700_000_006, 0), events[2].Timestamp)
}

func TestEventWatcherRetriesFailedRange(t *testing.T) {
	t.Parallel()

	client := &fakeChainClient{
		head:           8,
		logs:           []types.Log{lockLog(5, 0, 1)},
		filterFailures: 1,
	}
	sink := &eventSink{}
	watcher := relayer.NewEventWatcher(logrus.New(), client, watcherChainCfg(), testBridgeAddr, 4, sink.add)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	// the first log search fails transiently, the cursor stays put and
	// the same range is re-fetched on the next tick
	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	require.GreaterOrEqual(t, client.callCount(), 2)
	require.Equal(t, uint64(1), sink.snapshot()[0].Nonce)
}
