package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jamestiotio/corestore/internal/adminhandler"
	"github.com/jamestiotio/corestore/internal/adminlog"
	"github.com/jamestiotio/corestore/internal/config"
	"github.com/jamestiotio/corestore/internal/controller"
	"github.com/jamestiotio/corestore/internal/coordstore"
	"github.com/jamestiotio/corestore/internal/leadership"
	"github.com/jamestiotio/corestore/internal/metricsx"
	"github.com/jamestiotio/corestore/internal/progress"
	"github.com/jamestiotio/corestore/internal/schemaregistry"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting admin consumption controller")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./controller.yaml"
	}

	cfg, err := config.LoadControllerConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("cluster", cfg.Cluster.Name),
		zap.String("node_id", cfg.Server.NodeID),
		zap.String("postgres_host", cfg.Postgres.Host))

	durableKV, err := coordstore.NewPostgresKV(
		context.Background(),
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database,
		cfg.Postgres.User, cfg.Postgres.Password,
		cfg.Postgres.MaxConnections, cfg.Postgres.MinConnections,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to initialize coordination store", zap.Error(err))
	}
	logger.Info("coordination store initialized")

	var kv coordstore.KV = durableKV
	if cfg.Redis.Host != "" {
		cachedKV, err := coordstore.NewCachedKV(durableKV, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, logger)
		if err != nil {
			logger.Warn("failed to initialize redis read-through cache, continuing on postgres alone", zap.Error(err))
		} else {
			kv = cachedKV
			logger.Info("redis read-through cache initialized")
		}
	}

	store := coordstore.New(kv, logger)
	tracker := progress.New(cfg.Cluster.Name, progressDurableStore(store))

	// No real admin log transport ships in the retrieval pack (no Kafka
	// or equivalent client among the teacher's or sibling repos'
	// dependencies); the in-memory transport stands in for the admin log
	// transport external collaborator spec.md §6 places out of scope.
	transport := adminlog.NewMemoryTransport()
	cursor := adminlog.New(transport, cfg.Cluster.Topic, cfg.Cluster.Partition, logger)

	registry := schemaregistry.NewInMemoryRegistry()
	handler := adminhandler.NewInMemoryHandler(logger, registry)

	var elector leadership.Elector
	if cfg.Gossip.Enabled {
		memberlistElector, err := leadership.NewMemberlistElector(leadership.MemberlistConfig{
			NodeName:  cfg.Server.NodeID,
			BindAddr:  cfg.Gossip.BindAddr,
			BindPort:  cfg.Gossip.BindPort,
			SeedNodes: cfg.Gossip.SeedNodes,
		}, logger)
		if err != nil {
			logger.Fatal("failed to initialize gossip elector", zap.Error(err))
		}
		defer memberlistElector.Shutdown()
		elector = memberlistElector
		logger.Info("gossip elector initialized")
	} else {
		elector = alwaysLeader{}
	}

	metrics := metricsx.NewAdminMetrics(cfg.Cluster.Name)

	orchestrator := controller.New(
		controller.Config{
			Cluster:                     cfg.Cluster.Name,
			Topic:                       cfg.Cluster.Topic,
			Partition:                   cfg.Cluster.Partition,
			ReadCycleDelay:              cfg.Cluster.ReadCycleDelay,
			ProcessingCycleTimeout:      cfg.Cluster.ProcessingCycleTimeout,
			PollTimeout:                 cfg.Cluster.PollTimeout,
			MaxExecutionWorkers:         cfg.Cluster.MaxExecutionWorkers,
			IsTopLevelController:        cfg.Cluster.IsTopLevelController,
			AdminTopicReplicationFactor: cfg.Cluster.AdminTopicReplicationFactor,
		},
		logger,
		metrics,
		elector,
		cursor,
		tracker,
		handler,
	)

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErrors := make(chan error, 1)
	go func() {
		runErrors <- orchestrator.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-runErrors:
		if err != nil && err != context.Canceled {
			logger.Error("admin consumption loop exited with error", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("received signal, shutting down gracefully", zap.String("signal", sig.String()))
		cancel()
		select {
		case <-runErrors:
		case <-time.After(cfg.Server.ShutdownTimeout):
			logger.Warn("admin consumption loop did not exit within the shutdown timeout")
		}
	}

	durableKV.Close()
	logger.Info("controller stopped")
}

// progressDurableStore adapts *coordstore.Store to progress.DurableStore;
// both already share the same method set, this exists only to name the
// conversion at the call site.
func progressDurableStore(s *coordstore.Store) progress.DurableStore {
	return s
}

// alwaysLeader is the no-gossip default: a single controller instance is
// always the leader for its cluster, matching spec.md §4.F's single-leader
// invariant in deployments that don't run a gossip ring.
type alwaysLeader struct{}

func (alwaysLeader) IsLeader(_ context.Context, _ string) (bool, error) { return true, nil }
