package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopsync/internal/config"
	"shopsync/internal/db"
	"shopsync/internal/importer"
	"shopsync/internal/logging"
	"shopsync/internal/repository/product"
)

func main() {
	var (
		filePath string
		format   string
	)
	flag.StringVar(&filePath, "file", "", "Path to a product list (JSON array or CSV)")
	flag.StringVar(&format, "format", "", "json or csv; defaults to the file extension")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	}
	if format != "json" && format != "csv" {
		fmt.Fprintf(os.Stderr, "unsupported format %q\n", format)
		os.Exit(2)
	}

	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("importer")
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBPool(), logger)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	imp := importer.New(product.NewPostgres(pool, logger), logger)

	start := time.Now()
	var count int
	if format == "csv" {
		count, err = imp.ImportCSV(ctx, f)
	} else {
		count, err = imp.ImportJSON(ctx, f)
	}
	if err != nil {
		logger.Fatal("import failed", zap.Int("imported", count), zap.Error(err))
	}

	fmt.Printf("Imported %d products from %s in %s\n", count, filePath, time.Since(start).Truncate(time.Millisecond))
}
