package main

import (
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"

	_ "github.com/uwazi254/uwazi-api/api/swagger"
	"github.com/uwazi254/uwazi-api/internal/handler"
	"github.com/uwazi254/uwazi-api/internal/repository"
	"github.com/uwazi254/uwazi-api/internal/router"
	"github.com/uwazi254/uwazi-api/internal/service"
	"github.com/uwazi254/uwazi-api/pkg/cache"
	"github.com/uwazi254/uwazi-api/pkg/config"
	"github.com/uwazi254/uwazi-api/pkg/database"
	"github.com/uwazi254/uwazi-api/pkg/logger"
	"github.com/uwazi254/uwazi-api/pkg/storage"
)

// @title Uwazi254 API
// @version 1.0.0
// @description Citizen issue reporting and tracking platform
// @BasePath /api
// @schemes http https
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and rate limiting disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	issueRepo := repository.NewIssueRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "uwazi254",
	})

	classifierSvc := service.NewClassifierService(service.ClassifierConfig{
		BaseURL: cfg.Classifier.BaseURL,
		APIKey:  cfg.Classifier.APIKey,
		Model:   cfg.Classifier.Model,
		Timeout: cfg.Classifier.Timeout,
	}, logr)

	issueSvc := service.NewIssueService(service.IssueServiceParams{
		Issues:      issueRepo,
		Attachments: moderationRepo,
		Votes:       voteRepo,
		Users:       userRepo,
		Classifier:  classifierSvc,
		Validator:   validate,
		Logger:      logr,
	})

	voteSvc := service.NewVoteService(issueRepo, voteRepo, logr)
	moderationSvc := service.NewModerationService(issueRepo, moderationRepo, validate, logr)

	analyticsCfg := service.AnalyticsConfig{
		CacheEnabled: cfg.Analytics.CacheEnabled,
		CacheTTL:     cfg.Analytics.CacheTTL,
	}
	var analyticsSvc *service.AnalyticsService
	if cacheRepo != nil {
		analyticsSvc = service.NewAnalyticsService(analyticsRepo, cacheRepo, analyticsCfg, logr)
	} else {
		analyticsSvc = service.NewAnalyticsService(analyticsRepo, nil, analyticsCfg, logr)
	}

	referenceSvc := service.NewReferenceService(referenceRepo, logr)
	exportSvc := service.NewExportService(issueRepo, logr)

	uploads, err := storage.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload directory", "error", err)
	}

	engine := router.New(router.Params{
		Config:     cfg,
		Logger:     logr,
		Redis:      redisClient,
		Auth:       authSvc,
		Metrics:    metricsSvc,
		AuthH:      handler.NewAuthHandler(authSvc),
		IssueH:     handler.NewIssueHandler(issueSvc, voteSvc, metricsSvc, uploads),
		ModH:       handler.NewModerationHandler(moderationSvc, analyticsSvc),
		AnalyticsH: handler.NewAnalyticsHandler(analyticsSvc, exportSvc, metricsSvc),
		ReferenceH: handler.NewReferenceHandler(referenceSvc),
		MetricsH:   handler.NewMetricsHandler(metricsSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := engine.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
