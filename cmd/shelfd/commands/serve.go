package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/grafana/pyroscope-go"
	"github.com/spf13/cobra"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/internal/telemetry"
	"github.com/shelfd/shelfd/pkg/api"
	"github.com/shelfd/shelfd/pkg/catalog"
	"github.com/shelfd/shelfd/pkg/config"
	"github.com/shelfd/shelfd/pkg/metrics"
	"github.com/shelfd/shelfd/pkg/service"
	"github.com/shelfd/shelfd/pkg/storage"
	fsbackend "github.com/shelfd/shelfd/pkg/storage/fs"
	"github.com/shelfd/shelfd/pkg/storage/memory"
	s3backend "github.com/shelfd/shelfd/pkg/storage/s3"
	"github.com/shelfd/shelfd/pkg/tasks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the shelfd server",
	Long: `Start the REST API, the metrics endpoint, and the background
maintenance workers (fixity scheduling, multipart expiration, orphan
cleanup).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	logger.Info("starting shelfd", "version", Version)

	// Telemetry (no-op when disabled).
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
		ServiceName:    "shelfd",
		ServiceVersion: Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer telemetryShutdown(context.Background())

	if cfg.Telemetry.Profiling.Enabled {
		_, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "shelfd",
			ServerAddress:   cfg.Telemetry.Profiling.Endpoint,
		})
		if err != nil {
			logger.Warn("failed to start continuous profiling", "error", err)
		}
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	engineMetrics := metrics.NewEngineMetrics()

	// Catalog.
	store, err := catalog.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer store.Close()

	// Storage backends.
	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	factory := storage.NewFactory(registry,
		cfg.Storage.PathDimensions, cfg.Storage.PathSplitLength)

	// Engine.
	svc := service.New(store, factory, serviceConfig(cfg), engineMetrics)

	// Background maintenance.
	queue := tasks.NewQueue(cfg.Tasks, engineMetrics)
	runner := tasks.NewRunner(svc, queue, cfg.Tasks)
	runner.Start(ctx)
	defer runner.Stop(cfg.ShutdownTimeout)

	// REST API.
	router := api.NewRouter(svc, store, service.AllowAll{}, cfg.API)
	server := api.NewServer(cfg.API, router)

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Start()
	}()

	// Metrics endpoint.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metrics.Handler(),
		}
		go func() {
			logger.Info("metrics endpoint listening", "port", cfg.Metrics.Port)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	// Wait for a signal or a server failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return server.Shutdown(shutdownCtx)
}

// buildRegistry registers the configured blob backends. The filesystem and
// in-memory backends are always available; the S3 backend is registered when
// its section is configured.
func buildRegistry(ctx context.Context, cfg *config.Config) (*storage.Registry, error) {
	registry := storage.NewRegistry()

	registry.Register("fs", fsbackend.Opener())
	registry.Register("memory", memory.NewStore().Opener())

	s3cfg := cfg.Storage.S3
	if s3cfg.Endpoint != "" || s3cfg.Region != "" {
		client, err := s3backend.NewClient(ctx, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		registry.Register("s3", s3backend.Opener(client, s3cfg.Algo))
	}

	return registry, nil
}

// serviceConfig maps the storage section onto the engine configuration.
func serviceConfig(cfg *config.Config) service.Config {
	return service.Config{
		ClassList:             cfg.Storage.ClassList,
		DefaultClass:          cfg.Storage.DefaultClass,
		DefaultQuotaSize:      cfg.Storage.DefaultQuotaSize.Int64(),
		DefaultMaxFileSize:    cfg.Storage.DefaultMaxFileSize.Int64(),
		MinFileSize:           cfg.Storage.MinFileSize,
		MaxFileSize:           cfg.Storage.MaxFileSize.Int64(),
		MultipartChunkSizeMin: cfg.Storage.MultipartChunkSizeMin.Int64(),
		MultipartChunkSizeMax: cfg.Storage.MultipartChunkSizeMax.Int64(),
		MultipartMaxParts:     cfg.Storage.MultipartMaxParts,
		MultipartExpires:      cfg.Storage.MultipartExpires,
		ObjectKeyMaxLen:       cfg.Storage.ObjectKeyMaxLen,
	}
}
