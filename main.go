package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"spendwise/cache"
	"spendwise/config"
	"spendwise/db"
	qhttp "spendwise/http"
	"spendwise/logging"
	"spendwise/ml"
	"spendwise/monitoring"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := logging.New(cfg.Log)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// 2. Load model artifacts; the service never listens without all of them
	artifacts, err := ml.LoadArtifacts(cfg.Models.Dir)
	if err != nil {
		var startupErr *ml.StartupError
		if errors.As(err, &startupErr) {
			logger.Fatal("failed to load model artifact",
				zap.String("artifact", startupErr.Artifact),
				zap.String("path", startupErr.Path),
				zap.Error(startupErr.Err))
		}
		logger.Fatal("failed to load model artifacts", zap.Error(err))
	}
	logger.Info("model artifacts loaded",
		zap.String("dir", cfg.Models.Dir),
		zap.Int("vocabulary", artifacts.Vectorizer.Features()),
		zap.Strings("cluster_labels", artifacts.ClusterModel.Labels))

	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetrics()
		for kind, trainedAt := range artifacts.TrainedAt {
			metrics.SetArtifactTrainedAt(kind, trainedAt)
		}
	}

	// 3. Prediction cache, namespaced by the artifact set so stale entries are never served
	predictionCache, err := cache.New(cache.Config{
		Backend:   cfg.Cache.Backend,
		Size:      cfg.Cache.Size,
		TTL:       cfg.Cache.TTL,
		RedisAddr: cfg.Cache.RedisAddr,
		Namespace: cacheNamespace(artifacts),
	})
	if err != nil {
		logger.Fatal("failed to create cache", zap.Error(err))
	}
	if r, ok := predictionCache.(*cache.Redis); ok {
		defer r.Close()
		if err := r.Ping(context.Background()); err != nil {
			logger.Warn("redis unreachable, predictions will not be cached", zap.Error(err))
		}
	}

	deps := qhttp.Deps{
		Artifacts: artifacts,
		Cache:     predictionCache,
		Logger:    logger,
		Metrics:   metrics,
	}

	// 4. Optional prediction and training log
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer store.Close()
		deps.Store = store
		logger.Info("database initialized", zap.String("path", cfg.Database.Path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. Watch artifact files for changes after load
	if cfg.Models.Watch {
		watcher, err := monitoring.NewArtifactWatcher(cfg.Models.Dir,
			[]string{ml.CategoryModelFile, ml.VectorizerFile, ml.GoalRiskModelFile, ml.ClusterModelFile},
			logger, metrics)
		if err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			go watcher.Run(ctx)
			deps.Stale = watcher.Stale
		}
	}

	// 6. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, qhttp.NewAPI(deps), logger, metrics)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 7. Handle graceful shutdown
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}

func cacheNamespace(artifacts *ml.Artifacts) string {
	var latest int64
	for _, trainedAt := range artifacts.TrainedAt {
		if ts := trainedAt.Unix(); ts > latest {
			latest = ts
		}
	}
	return strconv.FormatInt(latest, 36)
}
