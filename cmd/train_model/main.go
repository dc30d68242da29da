package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"spendwise/config"
	"spendwise/db"
	"spendwise/logging"
	"spendwise/trainer"
)

func main() {
	defaults := trainer.DefaultConfig()
	task := flag.String("task", trainer.TaskAll, "category, goal_risk, cluster or all")
	dataDir := flag.String("data", defaults.DataDir, "training data directory")
	modelDir := flag.String("model_dir", defaults.ModelDir, "model output directory")
	seed := flag.Int64("seed", defaults.Seed, "random seed for the split and k-means")
	testRatio := flag.Float64("test_ratio", defaults.TestRatio, "held-out ratio for the category model")
	clusters := flag.Int("clusters", defaults.Clusters, "number of spending clusters")
	dbPath := flag.String("db", "", "sqlite path for the training log (optional)")
	configPath := flag.String("config", "", "config file for log settings (optional)")
	flag.Parse()

	logCfg := logging.Config{Level: "info"}
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			zap.NewExample().Fatal("failed to load config", zap.Error(err))
		}
		logCfg = cfg.Log
	}
	logger := logging.New(logCfg)
	defer logger.Sync()

	var recorder trainer.Recorder
	if *dbPath != "" {
		store, err := db.Open(*dbPath)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer store.Close()
		recorder = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t := trainer.New(trainer.Config{
		DataDir:   *dataDir,
		ModelDir:  *modelDir,
		Seed:      *seed,
		TestRatio: *testRatio,
		Clusters:  *clusters,
	}, logger, recorder)

	reports, err := t.Run(ctx, *task)
	if err != nil {
		logger.Fatal("training failed", zap.String("task", *task), zap.Error(err))
	}

	for _, report := range reports {
		if report.Task == trainer.TaskCluster {
			fmt.Println("=== Cluster Interpretation ===")
			for id, label := range report.Details["labels"].([]string) {
				fmt.Printf("%d -> %s\n", id, label)
			}
		}
		for _, path := range report.Artifacts {
			fmt.Printf("model saved to %s\n", path)
		}
	}
}
