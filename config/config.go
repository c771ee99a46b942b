package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/poanetwork/bridge-prover/aggregate"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Duration wraps time.Duration so yaml values like "30s" decode
// strictly.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("can't decode duration: %w", err)
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("can't parse duration %q: %w", raw, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Level wraps logrus.Level for yaml decoding.
type Level struct {
	logrus.Level
}

func (l *Level) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("can't decode log level: %w", err)
	}
	v, err := logrus.ParseLevel(raw)
	if err != nil {
		return fmt.Errorf("can't parse log level %q: %w", raw, err)
	}
	l.Level = v
	return nil
}

// Address wraps common.Address for yaml decoding.
type Address struct {
	common.Address
}

func (a *Address) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("can't decode address: %w", err)
	}
	if !common.IsHexAddress(raw) {
		return fmt.Errorf("%w: %q is not a hex address", ErrInvalidConfig, raw)
	}
	a.Address = common.HexToAddress(raw)
	return nil
}

type RPCConfig struct {
	Host    string   `yaml:"host"`
	Timeout Duration `yaml:"timeout"`
}

type ChainConfig struct {
	RPC                *RPCConfig `yaml:"rpc"`
	ChainID            string     `yaml:"chain_id"`
	BlockTime          Duration   `yaml:"block_time"`
	BlockIndexInterval Duration   `yaml:"block_index_interval"`
	Confirmations      uint64     `yaml:"required_block_confirmations"`
	MaxBlockRangeSize  uint64     `yaml:"max_block_range_size"`
}

type ValidatorConfig struct {
	Address   Address `yaml:"address"`
	PublicKey string  `yaml:"public_key"`
	Stake     uint64  `yaml:"stake"`
}

type ProverConfig struct {
	SourceChain   string  `yaml:"source_chain"`
	TargetChain   string  `yaml:"target_chain"`
	BridgeAddress Address `yaml:"bridge_address"`
	StartBlock    uint64  `yaml:"start_block"`

	BatchSize     int      `yaml:"batch_size"`
	BatchInterval Duration `yaml:"batch_interval"`

	SignatureTimeout Duration `yaml:"signature_timeout"`
	MaxProofAge      Duration `yaml:"max_proof_age"`
	// 0 computes ceil(2N/3) over registered validators
	Threshold           int                `yaml:"threshold"`
	AggregationStrategy aggregate.Strategy `yaml:"aggregation_strategy"`

	MaxRetries    uint     `yaml:"max_retries"`
	RetryDelay    Duration `yaml:"retry_delay"`
	EventQueueCap int      `yaml:"event_queue_cap"`
	JobQueueCap   int      `yaml:"job_queue_cap"`

	Validators []*ValidatorConfig `yaml:"validators"`
}

type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"database"`
}

type PresenterConfig struct {
	Host string `yaml:"host"`
}

type Config struct {
	Chains    map[string]*ChainConfig `yaml:"chains"`
	Prover    *ProverConfig           `yaml:"prover"`
	DBConfig  *DBConfig               `yaml:"postgres"`
	Presenter *PresenterConfig        `yaml:"presenter"`
	LogLevel  *Level                  `yaml:"log_level"`
}

func ReadConfig(blob []byte) (*Config, error) {
	cfg := new(Config)
	blob = []byte(os.ExpandEnv(string(blob)))
	if err := decodeStrict(blob, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return ReadConfig(blob)
}

func (cfg *Config) validate() error {
	if cfg.Prover == nil {
		return fmt.Errorf("%w: missing prover section", ErrInvalidConfig)
	}
	p := cfg.Prover
	if p.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	}
	if p.SignatureTimeout.Duration <= 0 {
		return fmt.Errorf("%w: signature_timeout must be positive", ErrInvalidConfig)
	}
	if p.Threshold < 0 {
		return fmt.Errorf("%w: threshold can't be negative", ErrInvalidConfig)
	}
	for _, route := range []struct {
		field string
		name  string
	}{
		{"source_chain", p.SourceChain},
		{"target_chain", p.TargetChain},
	} {
		if route.name == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, route.field)
		}
		chain, ok := cfg.Chains[route.name]
		if !ok {
			return fmt.Errorf("%w: unknown chain %q", ErrInvalidConfig, route.name)
		}
		if chain.RPC == nil || chain.RPC.Host == "" {
			return fmt.Errorf("%w: chain %q has no rpc host", ErrInvalidConfig, route.name)
		}
	}
	switch p.AggregationStrategy {
	case "", aggregate.StrategySimple, aggregate.StrategyBLS, aggregate.StrategySchnorr:
	default:
		return fmt.Errorf("%w: unknown aggregation strategy %q", ErrInvalidConfig, p.AggregationStrategy)
	}
	return nil
}

func (cfg *Config) applyDefaults() {
	p := cfg.Prover
	if p.AggregationStrategy == "" {
		p.AggregationStrategy = aggregate.StrategySimple
	}
	if p.BatchInterval.Duration == 0 {
		p.BatchInterval.Duration = time.Minute
	}
	if p.MaxProofAge.Duration == 0 {
		p.MaxProofAge.Duration = 24 * time.Hour
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
	if p.RetryDelay.Duration == 0 {
		p.RetryDelay.Duration = 10 * time.Second
	}
	if p.EventQueueCap == 0 {
		p.EventQueueCap = 200
	}
	if p.JobQueueCap == 0 {
		p.JobQueueCap = 50
	}
	for _, chain := range cfg.Chains {
		if chain.MaxBlockRangeSize == 0 {
			chain.MaxBlockRangeSize = 1000
		}
		if chain.BlockIndexInterval.Duration == 0 {
			chain.BlockIndexInterval.Duration = 15 * time.Second
		}
	}
}
