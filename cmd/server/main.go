package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/dummycsv/internal/config"
	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/filestore"
	"github.com/JonMunkholm/dummycsv/internal/filestore/local"
	"github.com/JonMunkholm/dummycsv/internal/filestore/minio"
	"github.com/JonMunkholm/dummycsv/internal/logging"
	"github.com/JonMunkholm/dummycsv/internal/store/memory"
	"github.com/JonMunkholm/dummycsv/internal/store/postgres"
	"github.com/JonMunkholm/dummycsv/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"storage_backend", cfg.Storage.Backend,
		"workers", cfg.Generation.Workers,
		"download_max_concurrent", cfg.Download.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	if err := run(cfg); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	files, err := openFiles(ctx, cfg)
	if err != nil {
		return err
	}

	service := core.NewService(store, files, core.Options{
		BatchSize:              cfg.Generation.BatchSize,
		MaxRows:                cfg.Generation.MaxRows,
		MaxAttempts:            cfg.Generation.MaxAttempts,
		RetryBackoff:           cfg.Generation.RetryBackoff,
		MaxBackoff:             cfg.Generation.MaxBackoff,
		QueueSize:              cfg.Generation.QueueSize,
		Workers:                cfg.Generation.Workers,
		ScanInterval:           cfg.Generation.ScanInterval,
		StaleAfter:             cfg.Generation.StaleAfter,
		MaxConcurrentDownloads: cfg.Download.MaxConcurrent,
		DownloadWait:           cfg.Download.MaxWaitTime,
		AllowRegistration:      cfg.Auth.AllowRegistration,
	})

	if cfg.Auth.BootstrapUser != "" && cfg.Auth.BootstrapPassword != "" {
		if err := service.EnsureUser(ctx, cfg.Auth.BootstrapUser, cfg.Auth.BootstrapPassword); err != nil {
			return fmt.Errorf("bootstrap user: %w", err)
		}
	}

	server := web.NewServer(service, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return service.RunWorkers(gctx)
	})
	g.Go(func() error {
		service.StartJobScheduler(gctx)
		return nil
	})
	g.Go(func() error {
		if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for active downloads to complete (with timeout)
		status := service.Limiter().Status()
		if status.Active > 0 {
			slog.Info("waiting for downloads to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("downloads did not complete in time", "error", err)
			} else {
				slog.Info("all downloads completed")
			}
		}
		return nil
	})

	return g.Wait()
}

// openStore connects the configured repository.
func openStore(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	switch cfg.Database.Driver {
	case "memory":
		slog.Warn("using in-memory repository; data is lost on restart")
		return memory.New(), func() {}, nil

	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}

		// Log which database we connected to
		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database")
		}

		if cfg.Database.Bootstrap {
			if err := pg.Bootstrap(ctx); err != nil {
				pg.Close()
				return nil, nil, fmt.Errorf("bootstrap database: %w", err)
			}
		}
		return pg, pg.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// openFiles opens the configured file store.
func openFiles(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	switch filestore.Provider(cfg.Storage.Backend) {
	case filestore.ProviderLocal:
		store, err := local.New(&filestore.Config{
			Provider: filestore.ProviderLocal,
			Root:     cfg.Storage.MediaRoot,
		})
		if err != nil {
			return nil, fmt.Errorf("open media root: %w", err)
		}
		slog.Info("file store ready", "backend", "local", "root", cfg.Storage.MediaRoot)
		return store, nil

	case filestore.ProviderMinIO:
		store, err := minio.New(ctx, &filestore.Config{
			Provider:  filestore.ProviderMinIO,
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Region:    cfg.MinIO.Region,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to object storage: %w", err)
		}
		slog.Info("file store ready", "backend", "minio", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
