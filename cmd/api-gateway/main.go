package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/docutrail/dtrs-api/api/swagger"
	"github.com/docutrail/dtrs-api/internal/handler"
	"github.com/docutrail/dtrs-api/internal/middleware"
	"github.com/docutrail/dtrs-api/internal/models"
	"github.com/docutrail/dtrs-api/internal/repository"
	"github.com/docutrail/dtrs-api/internal/service"
	"github.com/docutrail/dtrs-api/pkg/cache"
	"github.com/docutrail/dtrs-api/pkg/config"
	"github.com/docutrail/dtrs-api/pkg/database"
	"github.com/docutrail/dtrs-api/pkg/jobs"
	"github.com/docutrail/dtrs-api/pkg/logger"
	corsmiddleware "github.com/docutrail/dtrs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/docutrail/dtrs-api/pkg/middleware/requestid"
	"github.com/docutrail/dtrs-api/pkg/storage"
)

// @title DTRS API
// @version 1.0.0
// @description Document tracking and inter-office routing service
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheSvc = service.NewCacheService(
			repository.NewCacheRepository(redisClient, logr),
			metricsSvc,
			cfg.Dashboard.CacheTTL,
			logr,
			cfg.Dashboard.Enabled,
		)
	}

	documentRepo := repository.NewDocumentRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	custodyRepo := repository.NewCustodyRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	eventRepo := repository.NewEventRepository(db)
	caseRepo := repository.NewCaseRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "dtrs-api",
		Audience:           []string{"dtrs-clients"},
	})
	intakeSvc := service.NewIntakeService(documentRepo, caseRepo, eventRepo, db, validate, logr, cfg.Intake.TrackingPrefix)
	workflowSvc := service.NewWorkflowService(documentRepo, transferRepo, custodyRepo, departmentRepo, eventRepo, db, validate, logr)
	custodySvc := service.NewCustodyService(documentRepo, custodyRepo, userRepo, transferRepo, eventRepo, db, validate, logr)
	relationshipSvc := service.NewRelationshipService(documentRepo, relationshipRepo, transferRepo, custodyRepo, departmentRepo, eventRepo, db, validate, logr, cfg.Intake.TrackingPrefix)
	alertSvc := service.NewAlertService(documentRepo, alertRepo, db, logr, cfg.Alerts.StalledAfterDays)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, logr, cfg.Dashboard.CacheTTL)
	directorySvc := service.NewDirectoryService(departmentRepo, userRepo, validate, logr)

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	reportSvc := service.NewReportService(documentRepo, store, signer, validate, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alertQueue := jobs.NewQueue("alerts", func(ctx context.Context, job jobs.Job) error {
		_, runErr := alertSvc.Generate(ctx, time.Now().UTC())
		metricsSvc.RecordAlertRun(runErr == nil)
		return runErr
	}, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: time.Minute,
		Logger:     logr,
	})

	if cfg.Alerts.Enabled {
		alertQueue.Start(rootCtx)
		defer alertQueue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Alerts.RunInterval)
			defer ticker.Stop()
			for {
				select {
				case <-rootCtx.Done():
					return
				case <-ticker.C:
					if err := alertQueue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "alerts.run"}); err != nil {
						logr.Sugar().Warnw("failed to enqueue alert run", "error", err)
					}
				}
			}
		}()
	}

	reportWorker := service.NewReportWorker(reportSvc, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: time.Minute,
		Logger:     logr,
	})

	if cfg.Reports.Enabled {
		reportQueue.Start(rootCtx)
		defer reportQueue.Stop()

		go func() {
			for {
				now := time.Now().UTC()
				timer := time.NewTimer(service.NextMonthStart(now).Sub(now))
				select {
				case <-rootCtx.Done():
					timer.Stop()
					return
				case fired := <-timer.C:
					if err := reportQueue.Enqueue(service.MonthlyRegisterJob(fired.UTC())); err != nil {
						logr.Sugar().Warnw("failed to enqueue monthly register", "error", err)
					}
				}
			}
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(middleware.RequestLogger(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	authHandler := handler.NewAuthHandler(authSvc)
	documentHandler := handler.NewDocumentHandler(intakeSvc, dashboardSvc)
	workflowHandler := handler.NewWorkflowHandler(workflowSvc, dashboardSvc)
	custodyHandler := handler.NewCustodyHandler(custodySvc, dashboardSvc)
	relationshipHandler := handler.NewRelationshipHandler(relationshipSvc, dashboardSvc)
	alertHandler := handler.NewAlertHandler(alertSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	directoryHandler := handler.NewDirectoryHandler(directorySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	// Signed download links carry their own authorization.
	if cfg.Reports.Enabled {
		api.GET("/reports/download", reportHandler.Download)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)

		protected.GET("/documents", documentHandler.List)
		protected.GET("/documents/:id", documentHandler.Get)
		protected.GET("/documents/:id/timeline", documentHandler.Timeline)
		protected.GET("/documents/:id/custody", custodyHandler.History)
		protected.GET("/documents/:id/relationships", relationshipHandler.Links)
		protected.GET("/workflow/for-action", workflowHandler.ForAction)
		protected.GET("/workflow/pending", workflowHandler.Pending)
		protected.GET("/alerts", alertHandler.List)
		protected.GET("/departments", directoryHandler.ListDepartments)

		if cfg.Dashboard.Enabled {
			protected.GET("/dashboard", dashboardHandler.Summary)
		}

		officers := protected.Group("")
		officers.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleRecordsOfficer))
		{
			officers.POST("/documents", documentHandler.Receive)
			officers.POST("/documents/:id/forward", workflowHandler.Forward)
			officers.POST("/documents/:id/accept", workflowHandler.Accept)
			officers.POST("/documents/:id/recall", workflowHandler.Recall)
			officers.POST("/documents/:id/complete", workflowHandler.Complete)
			officers.POST("/documents/:id/custody", custodyHandler.Assign)
			officers.POST("/documents/:id/copies", custodyHandler.RecordCopy)
			officers.POST("/documents/:id/return", custodyHandler.Return)
			officers.POST("/documents/:id/attach", relationshipHandler.Attach)
			officers.POST("/documents/:id/relate", relationshipHandler.Relate)
			officers.POST("/documents/:id/split", relationshipHandler.Split)

			if cfg.Reports.Enabled {
				officers.POST("/reports/register", reportHandler.MonthlyRegister)
			}
		}

		admins := protected.Group("")
		admins.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
		{
			admins.POST("/alerts/run", alertHandler.Run)
			admins.POST("/departments", directoryHandler.CreateDepartment)
			admins.PUT("/departments/:id/active", directoryHandler.SetDepartmentActive)
			admins.POST("/users", directoryHandler.CreateUser)
			admins.GET("/users", directoryHandler.ListUsers)
			admins.POST("/users/reassign", directoryHandler.ReassignUser)
			admins.GET("/metrics/summary", metricsHandler.Snapshot)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
