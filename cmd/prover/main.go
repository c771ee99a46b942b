package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poanetwork/bridge-prover/aggregate"
	"github.com/poanetwork/bridge-prover/collector"
	"github.com/poanetwork/bridge-prover/config"
	"github.com/poanetwork/bridge-prover/db"
	"github.com/poanetwork/bridge-prover/entity"
	"github.com/poanetwork/bridge-prover/ethclient"
	"github.com/poanetwork/bridge-prover/logging"
	"github.com/poanetwork/bridge-prover/merkle"
	"github.com/poanetwork/bridge-prover/presenter"
	"github.com/poanetwork/bridge-prover/registry"
	"github.com/poanetwork/bridge-prover/relayer"
	"github.com/poanetwork/bridge-prover/repository"
	"github.com/poanetwork/bridge-prover/verifier"
)

func main() {
	logger := logging.New()

	cfg, err := config.ReadConfigFromFile("config.yml")
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	if cfg.LogLevel != nil {
		logger.SetLevel(cfg.LogLevel.Level)
	}

	var repo *repository.Repo
	if cfg.DBConfig != nil {
		dbConn, err2 := db.ConnectToDBAndMigrate(cfg.DBConfig)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't connect to database and apply migrations")
		}
		defer dbConn.Close()
		repo = repository.NewRepo(dbConn)
	}

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		err2 := http.ListenAndServe(":2112", nil)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't start listener for prometheus metrics")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := cfg.Prover
	reg := registry.New(logger.WithField("service", "registry"))
	if p.Threshold > 0 {
		if err = reg.SetThreshold(p.Threshold); err != nil {
			logger.WithError(err).Fatal("can't set quorum threshold")
		}
	}
	for _, valCfg := range p.Validators {
		pk, err2 := hexutil.Decode(valCfg.PublicKey)
		if err2 != nil {
			logger.WithError(err2).WithField("address", valCfg.Address).Fatal("can't decode validator public key")
		}
		val := &entity.Validator{
			Address:    valCfg.Address.Address,
			PublicKey:  pk,
			Stake:      valCfg.Stake,
			IsActive:   true,
			Reputation: 100,
		}
		if err2 = reg.AddValidator(val); err2 != nil {
			logger.WithError(err2).WithField("address", valCfg.Address).Fatal("can't register validator")
		}
		if repo != nil {
			if err2 = repo.Validators.Ensure(ctx, val); err2 != nil {
				logger.WithError(err2).WithField("address", valCfg.Address).Error("can't persist validator")
			}
		}
	}

	aggregator, err := aggregate.New(p.AggregationStrategy)
	if err != nil {
		logger.WithError(err).Fatal("can't create signature aggregator")
	}

	var batchesRepo entity.BatchesRepo
	var proofsRepo entity.ProofsRepo
	var usedProofsRepo entity.UsedProofsRepo
	var noncesRepo entity.ProcessedNoncesRepo
	var jobsRepo entity.RelayJobsRepo
	if repo != nil {
		batchesRepo = repo.Batches
		proofsRepo = repo.Proofs
		usedProofsRepo = repo.UsedProofs
		noncesRepo = repo.ProcessedNonces
		jobsRepo = repo.RelayJobs
	}

	batcher, err := merkle.NewBatcher(logger.WithField("service", "batcher"), batchesRepo, p.BatchSize)
	if err != nil {
		logger.WithError(err).Fatal("can't create merkle batcher")
	}
	coll := collector.New(logger.WithField("service", "collector"), reg, aggregator, proofsRepo, p.SignatureTimeout.Duration)
	ver := verifier.New(logger.WithField("service", "verifier"), p.MaxProofAge.Duration)
	ver.SyncValidators(reg.Validators())
	if p.Threshold > 0 {
		ver.SetThreshold(p.Threshold)
	}

	targetChainCfg := cfg.Chains[p.TargetChain]
	targetClient, err := ethclient.NewClient(targetChainCfg.RPC.Host, targetChainCfg.RPC.Timeout.Duration, targetChainCfg.ChainID)
	if err != nil {
		logger.WithError(err).Fatal("can't dial target chain rpc client")
	}
	guard := relayer.NewReplayGuard(logger.WithField("service", "replay_guard"), usedProofsRepo, noncesRepo)
	service := relayer.NewService(logger.WithField("service", "relayer"), p, batcher, coll, ver, relayer.NewRPCDestination(targetClient), guard, jobsRepo)
	if err = service.Start(ctx); err != nil {
		logger.WithError(err).Fatal("can't start relayer service")
	}
	defer service.Stop()

	sourceChainCfg := cfg.Chains[p.SourceChain]
	sourceClient, err := ethclient.NewClient(sourceChainCfg.RPC.Host, sourceChainCfg.RPC.Timeout.Duration, sourceChainCfg.ChainID)
	if err != nil {
		logger.WithError(err).Fatal("can't dial source chain rpc client")
	}
	watcher := relayer.NewEventWatcher(logger.WithField("service", "watcher"), sourceClient, sourceChainCfg, p.BridgeAddress.Address, p.StartBlock, service.AddEvent)
	go watcher.Run(ctx)

	if cfg.Presenter != nil {
		pr := presenter.NewPresenter(logger.WithField("service", "presenter"), reg, batcher, coll, service)
		go func() {
			err2 := pr.Serve(cfg.Presenter.Host)
			if err2 != nil {
				logger.WithError(err2).Fatal("can't serve presenter")
			}
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	for range c {
		cancel()
		logger.Warn("caught CTRL-C, gracefully terminating")
		return
	}
}
