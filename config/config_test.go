package config_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/bridge-prover/aggregate"
	"github.com/poanetwork/bridge-prover/config"
)

const testCfg = `
chains:
  mainnet:
    rpc:
      host: https://mainnet.infura.io/v3/${INFURA_PROJECT_KEY}
      timeout: 30s
    chain_id: "1"
    block_time: 15s
    block_index_interval: 60s
    required_block_confirmations: 12
    max_block_range_size: 2000
  xdai:
    rpc:
      host: https://rpc.ankr.com/gnosis
      timeout: 20s
    chain_id: "100"
    block_time: 5s
prover:
  source_chain: mainnet
  target_chain: xdai
  bridge_address: 0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016
  start_block: 6478411
  batch_size: 16
  batch_interval: 2m
  signature_timeout: 5m
  max_proof_age: 12h
  threshold: 3
  aggregation_strategy: bls
  max_retries: 5
  retry_delay: 30s
  validators:
    - address: 0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6
      public_key: "0x0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
      stake: 100
postgres:
  user: postgres
  password: ${POSTGRES_PASSWORD}
  host: localhost
  port: 5432
  database: bridge_prover
presenter:
  host: ":3333"
log_level: debug
`

func TestReadConfig(t *testing.T) {
	t.Setenv("INFURA_PROJECT_KEY", "some-key")
	t.Setenv("POSTGRES_PASSWORD", "some-password")

	cfg, err := config.ReadConfig([]byte(testCfg))
	require.NoError(t, err)

	require.Len(t, cfg.Chains, 2)
	mainnet := cfg.Chains["mainnet"]
	require.Equal(t, "https://mainnet.infura.io/v3/some-key", mainnet.RPC.Host)
	require.Equal(t, 30*time.Second, mainnet.RPC.Timeout.Duration)
	require.Equal(t, "1", mainnet.ChainID)
	require.Equal(t, uint64(12), mainnet.Confirmations)
	require.Equal(t, uint64(2000), mainnet.MaxBlockRangeSize)

	p := cfg.Prover
	require.Equal(t, "mainnet", p.SourceChain)
	require.Equal(t, "xdai", p.TargetChain)
	require.Equal(t, common.HexToAddress("0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016"), p.BridgeAddress.Address)
	require.Equal(t, 16, p.BatchSize)
	require.Equal(t, 2*time.Minute, p.BatchInterval.Duration)
	require.Equal(t, 5*time.Minute, p.SignatureTimeout.Duration)
	require.Equal(t, 12*time.Hour, p.MaxProofAge.Duration)
	require.Equal(t, 3, p.Threshold)
	require.Equal(t, aggregate.StrategyBLS, p.AggregationStrategy)
	require.Equal(t, uint(5), p.MaxRetries)
	require.Equal(t, 30*time.Second, p.RetryDelay.Duration)
	require.Len(t, p.Validators, 1)
	require.Equal(t, uint64(100), p.Validators[0].Stake)

	require.Equal(t, "some-password", cfg.DBConfig.Password)
	require.Equal(t, ":3333", cfg.Presenter.Host)
	require.Equal(t, logrus.DebugLevel, cfg.LogLevel.Level)
}

func TestReadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.ReadConfig([]byte(`
chains:
  local:
    rpc:
      host: http://localhost:8545
      timeout: 10s
    chain_id: "1337"
prover:
  source_chain: local
  target_chain: local
  batch_size: 8
  signature_timeout: 1m
`))
	require.NoError(t, err)

	p := cfg.Prover
	require.Equal(t, aggregate.StrategySimple, p.AggregationStrategy)
	require.Equal(t, time.Minute, p.BatchInterval.Duration)
	require.Equal(t, 24*time.Hour, p.MaxProofAge.Duration)
	require.Equal(t, uint(3), p.MaxRetries)
	require.Equal(t, 10*time.Second, p.RetryDelay.Duration)
	require.Equal(t, 200, p.EventQueueCap)
	require.Equal(t, 50, p.JobQueueCap)
	require.Equal(t, uint64(1000), cfg.Chains["local"].MaxBlockRangeSize)
	require.Equal(t, 15*time.Second, cfg.Chains["local"].BlockIndexInterval.Duration)
}

func TestReadConfigValidation(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name string
		Blob string
	}{
		{
			Name: "missing prover section",
			Blob: `chains: {}`,
		},
		{
			Name: "non-positive batch size",
			Blob: `
prover:
  batch_size: 0
  signature_timeout: 1m
`,
		},
		{
			Name: "missing signature timeout",
			Blob: `
prover:
  batch_size: 8
`,
		},
		{
			Name: "missing source chain",
			Blob: `
chains:
  local:
    rpc:
      host: http://localhost:8545
      timeout: 10s
    chain_id: "1337"
prover:
  target_chain: local
  batch_size: 8
  signature_timeout: 1m
`,
		},
		{
			Name: "missing target chain",
			Blob: `
chains:
  local:
    rpc:
      host: http://localhost:8545
      timeout: 10s
    chain_id: "1337"
prover:
  source_chain: local
  batch_size: 8
  signature_timeout: 1m
`,
		},
		{
			Name: "unknown source chain",
			Blob: `
prover:
  source_chain: unknown
  target_chain: unknown
  batch_size: 8
  signature_timeout: 1m
`,
		},
		{
			Name: "unknown aggregation strategy",
			Blob: `
chains:
  local:
    rpc:
      host: http://localhost:8545
      timeout: 10s
    chain_id: "1337"
prover:
  source_chain: local
  target_chain: local
  batch_size: 8
  signature_timeout: 1m
  aggregation_strategy: quantum
`,
		},
	} {
		t.Logf("Running sub-test %q", test.Name)
		_, err := config.ReadConfig([]byte(test.Blob))
		require.ErrorIs(t, err, config.ErrInvalidConfig, "Failed %s", test.Name)
	}
}

func TestReadConfigRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := config.ReadConfig([]byte(`
prover:
  batch_size: 8
  signature_timeout: 1m
  no_such_option: true
`))
	require.Error(t, err)
}

func TestReadConfigRejectsBadValues(t *testing.T) {
	t.Parallel()

	_, err := config.ReadConfig([]byte(`
prover:
  batch_size: 8
  signature_timeout: ten minutes
`))
	require.Error(t, err)

	_, err = config.ReadConfig([]byte(`
prover:
  batch_size: 8
  signature_timeout: 1m
  bridge_address: not-an-address
`))
	require.Error(t, err)
}
