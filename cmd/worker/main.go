package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/config"
	"github.com/agentgauge/agentgauge/internal/pkg/database"
	chrepo "github.com/agentgauge/agentgauge/internal/repository/clickhouse"
	pgrepo "github.com/agentgauge/agentgauge/internal/repository/postgres"
	"github.com/agentgauge/agentgauge/internal/service"
	"github.com/agentgauge/agentgauge/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.IsProduction() {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("starting worker service")

	// Initialize dependencies
	deps, cleanup, err := initWorkerDependencies(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer cleanup()

	// Create worker server
	workerServer, err := worker.NewServer(logger, cfg, deps)
	if err != nil {
		logger.Fatal("failed to create worker server", zap.Error(err))
	}

	// Start worker in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- workerServer.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down worker...")
		workerServer.Stop()
	case err := <-errCh:
		if err != nil {
			logger.Error("worker server error", zap.Error(err))
		}
	}

	logger.Info("worker stopped")
}

// initWorkerDependencies initializes dependencies for the worker
func initWorkerDependencies(cfg *config.Config, logger *zap.Logger) (*worker.Dependencies, func(), error) {
	ctx := context.Background()

	// Initialize PostgreSQL via sqlx for the eval stores
	sqlxDB, err := database.NewSQLX(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	// Initialize ClickHouse for the telemetry stores
	chDB, err := database.NewClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		sqlxDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}

	// Initialize MinIO (optional; report exports fail without it)
	minioClient, err := initMinio(cfg)
	if err != nil {
		logger.Warn("failed to initialize MinIO, report export will be unavailable", zap.Error(err))
	}

	// Initialize repositories
	traceRepo := chrepo.NewTraceRepository(chDB)
	spanRepo := chrepo.NewSpanRepository(chDB)
	logRepo := chrepo.NewLogRepository(chDB)
	testCaseRepo := pgrepo.NewTestCaseRepository(sqlxDB)
	reportRepo := pgrepo.NewReportRepository(sqlxDB)

	// The worker executes batches itself, so it needs no enqueuer; eval
	// completion events go nowhere because no SSE clients connect here.
	evalService := service.NewEvalService(logger, cfg.Eval, testCaseRepo, reportRepo, nil, nil)

	deps := &worker.Dependencies{
		EvalService: evalService,
		TraceRepo:   traceRepo,
		SpanRepo:    spanRepo,
		LogRepo:     logRepo,
		MinioClient: minioClient,
		MinioBucket: cfg.MinIO.Bucket,
	}

	cleanup := func() {
		sqlxDB.Close()
		chDB.Close()
	}

	return deps, cleanup, nil
}

// initMinio initializes MinIO client
func initMinio(cfg *config.Config) (*minio.Client, error) {
	if cfg.MinIO.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return client, nil
}
