package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"shopsync/internal/config"
	"shopsync/internal/db"
	"shopsync/internal/logging"
	"shopsync/internal/migrate"
)

func main() {
	down := flag.Bool("down", false, "roll every migration back instead of applying them")
	flag.Parse()

	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("migrate")
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBPool(), logger)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	dir := migrate.Up
	if *down {
		dir = migrate.Down
	}
	if err := migrate.Run(ctx, pool, dir, logger); err != nil {
		logger.Fatal("run migrations", zap.Stringer("direction", dir), zap.Error(err))
	}
}
