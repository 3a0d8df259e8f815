package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/carlosacostap-unca/epixum-roster-api/api/swagger"
	"github.com/carlosacostap-unca/epixum-roster-api/internal/extraction"
	"github.com/carlosacostap-unca/epixum-roster-api/internal/handler"
	"github.com/carlosacostap-unca/epixum-roster-api/internal/provider"
	"github.com/carlosacostap-unca/epixum-roster-api/internal/repository"
	"github.com/carlosacostap-unca/epixum-roster-api/internal/service"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/cache"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/config"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/database"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/logger"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/storage"
	corsmiddleware "github.com/carlosacostap-unca/epixum-roster-api/pkg/middleware/cors"
	reqidmiddleware "github.com/carlosacostap-unca/epixum-roster-api/pkg/middleware/requestid"
)

// @title Epixum Roster API
// @version 0.1.0
// @description Roster identity and enrollment reconciliation service
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	identityRepo := repository.NewIdentityRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	accountProvider := provider.NewCasdoor(cfg.Provider, redisClient, logr)
	extractionClient := extraction.NewClient(cfg.Extraction)

	authService := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	metricsService := service.NewMetricsService()
	accessService := service.NewAccessService(identityRepo, enrollmentRepo, courseRepo, logr)
	rosterService := service.NewRosterService(identityRepo, enrollmentRepo, courseRepo, accountProvider, nil, logr)
	draftService := service.NewDraftService(draftRepo, enrollmentRepo, logr)
	importService := service.NewImportService(draftService, rosterService, extractionClient, cfg.Imports.MaxRows, cfg.Imports.SpreadsheetSheet, logr)
	exportService := service.NewExportService(enrollmentRepo, logr)
	accountService := service.NewAccountService(accountProvider, nil, logr)

	exportStore, err := storage.NewExportStore(cfg.Exports.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewDownloadSigner(cfg.Exports.URLSecret, cfg.Exports.URLTTL)
	archiveService := service.NewArchiveService(exportService, exportStore, exportSigner, service.ArchiveConfig{
		Workers:         cfg.Exports.Workers,
		LinkTTL:         cfg.Exports.URLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	}, logr)
	archiveService.Start(context.Background())
	defer archiveService.Stop()

	rosterHandler := handler.NewRosterHandler(accessService, rosterService, metricsService)
	draftHandler := handler.NewDraftHandler(accessService, draftService, metricsService)
	importHandler := handler.NewImportHandler(accessService, importService, metricsService)
	exportHandler := handler.NewExportHandler(accessService, exportService, archiveService)
	accountHandler := handler.NewAccountHandler(accessService, accountService)
	metricsHandler := handler.NewMetricsHandler(metricsService, func(c *gin.Context) error {
		if err := db.PingContext(c.Request.Context()); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	router := handler.NewRouter(authService, metricsService, auditRepo, rosterHandler, draftHandler, importHandler, exportHandler, accountHandler, metricsHandler)
	router.Register(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
