package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/config"
	"github.com/agentgauge/agentgauge/internal/executor"
	"github.com/agentgauge/agentgauge/internal/handler"
	"github.com/agentgauge/agentgauge/internal/middleware"
	"github.com/agentgauge/agentgauge/internal/pkg/database"
	chrepo "github.com/agentgauge/agentgauge/internal/repository/clickhouse"
	pgrepo "github.com/agentgauge/agentgauge/internal/repository/postgres"
	"github.com/agentgauge/agentgauge/internal/service"
	"github.com/agentgauge/agentgauge/internal/tracer"
	"github.com/agentgauge/agentgauge/internal/worker"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	// Database connections
	Postgres   *database.PostgresDB
	SQLX       *sqlx.DB
	ClickHouse *database.ClickHouseDB
	Redis      *redis.Client
	Minio      *minio.Client

	// Repositories
	TraceRepo     *chrepo.TraceRepository
	SpanRepo      *chrepo.SpanRepository
	LogRepo       *chrepo.LogRepository
	AnalyticsRepo *chrepo.AnalyticsRepository
	APIKeyRepo    *pgrepo.APIKeyRepository
	TestCaseRepo  *pgrepo.TestCaseRepository
	ReportRepo    *pgrepo.ReportRepository

	// Services
	IngestionService *service.IngestionService
	QueryService     *service.QueryService
	AnalyticsService *service.AnalyticsService
	EvalService      *service.EvalService
	AuthService      *service.AuthService
	RealtimeService  *service.RealtimeService
	RunService       *service.RunService

	// Handlers
	HealthHandler    *handler.HealthHandler
	IngestionHandler *handler.IngestionHandler
	TracesHandler    *handler.TracesHandler
	EvalsHandler     *handler.EvalsHandler
	AnalyticsHandler *handler.AnalyticsHandler
	AgentHandler     *handler.AgentHandler
	EventsHandler    *handler.EventsHandler
	APIKeysHandler   *handler.APIKeysHandler
	AuthHandler      *handler.AuthHandler
	OTelHandler      *handler.OTelHandler
	OTelGRPCServer   *handler.OTelGRPCServer
	DocsHandler      *handler.DocsHandler

	// Middleware
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	// Asynq enqueuer for async eval runs
	Enqueuer *worker.Enqueuer
}

// initDependencies initializes all dependencies
func initDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	ctx := context.Background()

	// PostgreSQL pool for health checks and the API key store
	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	deps.Postgres = pgDB

	// sqlx handle for the eval-case and report stores
	sqlxDB, err := database.NewSQLX(ctx, cfg.Postgres)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize PostgreSQL (sqlx): %w", err)
	}
	deps.SQLX = sqlxDB

	// ClickHouse for the telemetry stores
	chDB, err := database.NewClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}
	deps.ClickHouse = chDB

	// Redis for rate limiting and analytics caching
	redisClient, err := initRedis(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	deps.Redis = redisClient

	// MinIO is optional; report export is the only consumer
	minioClient, err := initMinio(cfg)
	if err != nil {
		logger.Warn("failed to initialize MinIO, report export will be unavailable", zap.Error(err))
	}
	deps.Minio = minioClient

	// Repositories
	deps.TraceRepo = chrepo.NewTraceRepository(chDB)
	deps.SpanRepo = chrepo.NewSpanRepository(chDB)
	deps.LogRepo = chrepo.NewLogRepository(chDB)
	deps.AnalyticsRepo = chrepo.NewAnalyticsRepository(chDB)
	deps.APIKeyRepo = pgrepo.NewAPIKeyRepository(pgDB)
	deps.TestCaseRepo = pgrepo.NewTestCaseRepository(sqlxDB)
	deps.ReportRepo = pgrepo.NewReportRepository(sqlxDB)

	// Async eval runs are enqueued here and executed by the worker binary
	deps.Enqueuer = worker.NewEnqueuer(cfg)

	// Services
	deps.RealtimeService = service.NewRealtimeService()
	deps.IngestionService = service.NewIngestionService(
		logger,
		deps.TraceRepo,
		deps.SpanRepo,
		deps.LogRepo,
		deps.RealtimeService,
	)
	deps.QueryService = service.NewQueryService(
		deps.TraceRepo,
		deps.SpanRepo,
		deps.LogRepo,
	)
	deps.AnalyticsService = service.NewAnalyticsService(
		logger,
		deps.AnalyticsRepo,
		redisClient,
	)
	deps.EvalService = service.NewEvalService(
		logger,
		cfg.Eval,
		deps.TestCaseRepo,
		deps.ReportRepo,
		deps.Enqueuer,
		deps.RealtimeService,
	)
	deps.AuthService = service.NewAuthService(
		logger,
		cfg,
		deps.APIKeyRepo,
	)
	deps.RunService = service.NewRunService(
		logger,
		tracer.New(cfg.OTel.ServiceName),
		builtinAgents(),
		deps.IngestionService,
	)

	// Handlers
	deps.HealthHandler = handler.NewHealthHandler(
		pgDB.Pool,
		chDB.Conn,
		redisClient,
		appVersion,
	)
	deps.IngestionHandler = handler.NewIngestionHandler(deps.IngestionService, logger)
	deps.TracesHandler = handler.NewTracesHandler(deps.QueryService, logger)
	deps.EvalsHandler = handler.NewEvalsHandler(deps.EvalService, logger)
	deps.AnalyticsHandler = handler.NewAnalyticsHandler(deps.AnalyticsService, logger)
	deps.AgentHandler = handler.NewAgentHandler(deps.RunService, logger)
	deps.EventsHandler = handler.NewEventsHandler(deps.RealtimeService, logger)
	deps.APIKeysHandler = handler.NewAPIKeysHandler(deps.AuthService, logger)
	deps.AuthHandler = handler.NewAuthHandler(deps.AuthService, logger)
	deps.OTelHandler = handler.NewOTelHandler(deps.IngestionService, logger)
	deps.OTelGRPCServer = handler.NewOTelGRPCServer(deps.IngestionService, logger)
	deps.DocsHandler = handler.NewDocsHandler()

	// Middleware
	deps.AuthMiddleware = middleware.NewAuthMiddleware(deps.AuthService, cfg.Auth.AdminToken)
	rateLimitConfig := middleware.DefaultRateLimitConfig()
	rateLimitConfig.Skip = func(c *fiber.Ctx) bool {
		path := c.Path()
		return path == "/health" || path == "/metrics"
	}
	deps.RateLimitMiddleware = middleware.NewRateLimitMiddleware(redisClient, rateLimitConfig)

	return deps, nil
}

// builtinAgents returns the registry of agents the run endpoint can
// execute. root_agent is the simulated trading-desk agent; every run gets
// a fresh executor so recorded tool calls never leak between runs.
func builtinAgents() service.AgentRegistry {
	return service.NewDeskAgentRegistry(map[string]func() service.RunnableAgent{
		"root_agent": func() service.RunnableAgent {
			return executor.NewSimulatedDeskAgent(executor.NewCaptureExecutor(executor.NewDeskDispatcher()))
		},
	})
}

// Close closes all dependencies
func (d *Dependencies) Close() {
	if d.Postgres != nil {
		d.Postgres.Close()
	}
	if d.SQLX != nil {
		_ = d.SQLX.Close()
	}
	if d.ClickHouse != nil {
		_ = d.ClickHouse.Close()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.Enqueuer != nil {
		_ = d.Enqueuer.Close()
	}
}

// initRedis initializes Redis client
func initRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// initMinio initializes MinIO client
func initMinio(cfg *config.Config) (*minio.Client, error) {
	if cfg.MinIO.Endpoint == "" {
		return nil, nil // MinIO not configured
	}

	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.MinIO.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIO.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return client, nil
}
