package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jamestiotio/corestore/internal/adminhandler"
	"github.com/jamestiotio/corestore/internal/compute"
	"github.com/jamestiotio/corestore/internal/config"
	"github.com/jamestiotio/corestore/internal/health"
	"github.com/jamestiotio/corestore/internal/leadership"
	"github.com/jamestiotio/corestore/internal/metadata"
	"github.com/jamestiotio/corestore/internal/metricsx"
	"github.com/jamestiotio/corestore/internal/partition"
	"github.com/jamestiotio/corestore/internal/readdispatch"
	"github.com/jamestiotio/corestore/internal/schemaregistry"
	"github.com/jamestiotio/corestore/internal/storageengine"
)

func main() {
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./storagenode.yaml"
	}

	cfg, err := config.LoadStorageNodeConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("node_id", cfg.Server.NodeID),
		zap.String("data_dir", cfg.Storage.DataDir))

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}

	engine, err := storageengine.Open(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to open storage engine", zap.Error(err))
	}
	defer engine.Close()

	resolver := partition.New(nil)
	retriever := metadata.NewInMemoryRetriever()
	registry := schemaregistry.NewInMemoryRegistry()
	evaluator := compute.NewEvaluator(engine, resolver, retriever, registry, compute.NewSchemaCache())
	checker := health.NewChecker(cfg.Storage.DataDir, logger)
	admin := adminhandler.NewInMemoryHandler(logger, registry)
	readMetrics := metricsx.NewReadMetrics()

	dispatcherCfg := readdispatch.Config{
		GetPoolWorkers:       cfg.ReadPool.GetPoolWorkers,
		GetPoolQueueSize:     cfg.ReadPool.GetPoolQueueSize,
		ComputePoolWorkers:   cfg.ReadPool.ComputePoolWorkers,
		ComputePoolQueueSize: cfg.ReadPool.ComputePoolQueueSize,
		ParallelChunkSize:    cfg.ReadPool.ParallelChunkSize,
	}
	dispatcher := readdispatch.New(dispatcherCfg, engine, resolver, retriever, evaluator, checker, admin, readMetrics, logger)

	if cfg.Gossip.Enabled {
		elector, err := leadership.NewMemberlistElector(leadership.MemberlistConfig{
			NodeName:  cfg.Server.NodeID,
			BindAddr:  cfg.Gossip.BindAddr,
			BindPort:  cfg.Gossip.BindPort,
			SeedNodes: cfg.Gossip.SeedNodes,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize gossip elector", zap.Error(err))
		} else {
			defer elector.Shutdown()
			logger.Info("gossip elector initialized")
		}
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := dispatcher.HealthCheck()
		if status == health.StatusCritical {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"status":"%s"}`, status)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down gracefully")
		if err := dispatcher.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
			logger.Warn("worker pools did not drain within the shutdown timeout", zap.Error(err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	logger.Info("storage node starting", zap.String("address", addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("failed to serve", zap.Error(err))
	}
}

func initLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}
