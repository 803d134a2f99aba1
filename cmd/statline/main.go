package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/statline-io/statline/internal/charts/drive"
	"github.com/statline-io/statline/internal/charts/federation"
	"github.com/statline-io/statline/internal/charts/perusernotes"
	"github.com/statline-io/statline/internal/core/chart"
	corecfg "github.com/statline-io/statline/internal/core/config"
	"github.com/statline-io/statline/internal/core/storage/postgres"
	"github.com/statline-io/statline/internal/ingest"
	"github.com/statline-io/statline/internal/migrations"
	"github.com/statline-io/statline/internal/query"
	"github.com/statline-io/statline/internal/rollover"
	"github.com/statline-io/statline/internal/server"
)

func main() {
	configPath := flag.String("config", "statline.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations, then verify the bucket table exists.
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	if err := dbAdapter.ValidateSchema(context.Background()); err != nil {
		slog.Error("Schema validation failed", "error", err)
		os.Exit(1)
	}

	// 3. Construct Charts. The store must be ready before any chart is
	// built; charts are stateless besides the adapters they hold.
	buckets := postgres.NewBucketAdapter(dbAdapter.DB())
	counts := postgres.NewCountsAdapter(dbAdapter.DB())

	notesChart := perusernotes.New(buckets, counts)
	driveChart := drive.New(buckets, counts)
	fedChart := federation.New(buckets, counts)

	registry := chart.NewRegistry()
	for _, c := range []chart.ChartService{notesChart, driveChart, fedChart} {
		if err := registry.Register(c); err != nil {
			slog.Error("Failed to register chart", "chart", c.Name(), "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Charts registered", "charts", registry.Names())

	// 4. Initialize Rollover Scheduler
	scheduler := rollover.NewScheduler(registry)

	// 5. Initialize Ingest (event-sourcing inputs) and Query facade
	ingestSvc := ingest.NewService(notesChart, driveChart, fedChart, cfg.Server.MaxBodySizeMB)
	querySvc := query.NewService(registry)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	ingestSvc.RegisterRoutes(srv.Engine)
	querySvc.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Rollover.Enabled {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Rollover scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Rollover scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
