package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/exam-seating-api/api/swagger"
	"github.com/noah-isme/exam-seating-api/internal/handler"
	"github.com/noah-isme/exam-seating-api/internal/middleware"
	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/repository"
	"github.com/noah-isme/exam-seating-api/internal/service"
	"github.com/noah-isme/exam-seating-api/pkg/cache"
	"github.com/noah-isme/exam-seating-api/pkg/config"
	"github.com/noah-isme/exam-seating-api/pkg/database"
	"github.com/noah-isme/exam-seating-api/pkg/jobs"
	"github.com/noah-isme/exam-seating-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-seating-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-seating-api/pkg/middleware/requestid"
	"github.com/noah-isme/exam-seating-api/pkg/storage"
)

// @title Exam Seating API
// @version 1.0.0
// @description Allocates exam rooms to course rosters per session and exports attendance sheets.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// Seating still works without the result cache.
		logr.Warn("redis unavailable, result cache disabled", zap.Error(err))
	}
	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = cache.Pinger{Client: redisClient}
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}
	validate := validator.New()

	// repositories
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewSeatingPlanRepository(db)
	recordRepo := repository.NewSeatingRecordRepository(db)
	exportRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, cache.KeyPrefix, logr)

	// services
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	if created, err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	} else if created {
		logr.Info("bootstrap admin account ready", zap.String("email", cfg.Admin.Email))
	}

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Seating.CacheTTL, logr, redisClient != nil)
	seatingSvc := service.NewSeatingService(planRepo, recordRepo, cacheSvc, metrics, validate, logr, service.SeatingServiceConfig{
		DefaultPolicy: models.CapacityPolicy{
			BufferSeats: cfg.Seating.DefaultBufferSeats,
			Density:     models.DensityMode(cfg.Seating.DefaultDensity),
		},
		PreferredBlocks: cfg.Seating.PreferredBlocks,
		NumericBlock:    cfg.Seating.NumericBlock,
		ProposalTTL:     cfg.Seating.ProposalTTL,
		CacheTTL:        cfg.Seating.CacheTTL,
	})

	fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(planRepo, recordRepo, fileStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil)

	worker := service.NewExportWorker(exportRepo, exportSvc, metrics, logr)
	queue := jobs.NewQueue[string]("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.OnFailure(worker.Fail)
	queue.Start(ctx)
	defer queue.Stop()

	exportJobSvc := service.NewExportJobService(exportRepo, planRepo, queue, exportSvc, validate, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	exportJobSvc.RecoverPendingJobs(ctx)
	exportJobSvc.StartCleanup(ctx)

	// handlers
	authHandler := handler.NewAuthHandler(authSvc)
	seatingHandler := handler.NewSeatingHandler(seatingSvc, cfg.Seating.MaxUploadBytes)
	exportHandler := handler.NewExportHandler(exportJobSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/download/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)

	readers := middleware.RequireRoles(middleware.PlanReaders...)
	editors := middleware.RequireRoles(middleware.PlanEditors...)

	seating := secured.Group("/seating")
	seating.POST("/generate", editors, seatingHandler.Generate)
	seating.POST("/import", editors, seatingHandler.Import)
	seating.DELETE("/cache", middleware.RequireRoles(models.RoleSuperAdmin), seatingHandler.FlushCache)
	seating.GET("/plans", readers, seatingHandler.List)
	seating.POST("/plans", editors, seatingHandler.Save)
	seating.GET("/plans/:id", readers, seatingHandler.Get)
	seating.DELETE("/plans/:id", editors, seatingHandler.Delete)
	seating.GET("/plans/:id/assignments", readers, seatingHandler.Assignments)
	seating.GET("/plans/:id/overflow", readers, seatingHandler.Overflow)
	seating.POST("/plans/:id/publish", editors, seatingHandler.Publish)
	seating.POST("/plans/:id/exports", editors, exportHandler.Create)

	secured.GET("/exports/:id", readers, exportHandler.Status)
	secured.GET("/metrics/summary", editors, metricsHandler.Summary)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
