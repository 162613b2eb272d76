package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"shopsync/internal/catalog"
	"shopsync/internal/config"
	"shopsync/internal/db"
	"shopsync/internal/events"
	"shopsync/internal/graph"
	"shopsync/internal/httpserver"
	"shopsync/internal/identity"
	"shopsync/internal/logging"
	cartrepo "shopsync/internal/repository/cart"
	productrepo "shopsync/internal/repository/product"
	cartsvc "shopsync/internal/service/cart"
	"shopsync/internal/subscription"
)

const devTokenTTL = 24 * time.Hour

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.With(zap.String("service", "shopsync-api"))
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(logger.Named("bus"))

	var pool *pgxpool.Pool
	var source catalog.Source
	switch cfg.CatalogSource {
	case config.CatalogSourceFile:
		source = catalog.FileSource{Path: cfg.CatalogFile}
	case config.CatalogSourcePostgres:
		p, err := db.Connect(ctx, cfg.DBPool(), logger.Named("db"))
		if err != nil {
			return fmt.Errorf("connect to db: %w", err)
		}
		defer p.Close()
		pool = p
		source = productrepo.NewPostgres(pool, logger)
	default:
		return fmt.Errorf("unknown CATALOG_SOURCE %q", cfg.CatalogSource)
	}

	store, err := catalog.Load(ctx, source, bus, logger.Named("catalog"))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	carts := cartrepo.NewMemory()
	cartService := cartsvc.New(carts, store, bus, logger.Named("cart"))

	schema, err := graph.NewSchema(graph.NewResolver(store, cartService, bus, logger.Named("graphql")))
	if err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}

	extractor := identity.NewExtractor(logger.Named("identity"))
	var origins []string
	if cfg.FrontendOrigin != "" {
		origins = []string{cfg.FrontendOrigin}
	}
	gateway := subscription.NewServer(schema, extractor, logger.Named("ws"),
		subscription.WithInitTimeout(cfg.WSInitTimeout),
		subscription.WithAllowedOrigins(origins...),
	)

	deps := httpserver.Deps{
		Schema:         schema,
		Gateway:        gateway,
		Extractor:      extractor,
		Catalog:        store,
		AllowedOrigins: origins,
		RateLimit:      rate.Limit(cfg.RateLimitRPS),
		RateBurst:      cfg.RateLimitBurst,
	}
	if pool != nil {
		deps.DB = pool
	}
	if cfg.DevTokens {
		issuer, err := identity.NewIssuer(cfg.JWTSecret, devTokenTTL)
		if err != nil {
			return fmt.Errorf("init token issuer: %w", err)
		}
		deps.Issuer = issuer
		logger.Warn("development token endpoint enabled")
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, deps)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr), zap.String("catalog", cfg.CatalogSource))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		carts.RunJanitor(gctx, cfg.CartSweepInterval, cfg.CartIdleTTL, logger.Named("janitor"))
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}
