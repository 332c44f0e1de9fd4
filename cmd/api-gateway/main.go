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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/jobs"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

// @title Timetable API
// @version 1.0.0
// @description Course timetabling engine with CSV import, background runs and timetable exports.
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache and distributed lock", zap.Error(err))
		redisClient = nil
	}
	var redisPing func(ctx context.Context) error
	if redisClient != nil {
		defer redisClient.Close()
		redisPing = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	policy, err := service.PolicyFromConfig(cfg.Scheduler.Policy)
	if err != nil {
		logr.Fatal("invalid scheduler policy", zap.Error(err))
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, "timetable", logr),
		metrics,
		cfg.Scheduler.ReportTTL,
		logr,
		redisClient != nil,
	)

	roomRepo := repository.NewRoomRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	preferenceRepo := repository.NewTeacherPreferenceRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	engine := scheduler.NewEngine(policy, validate, logr.Named("scheduler"))
	timetableSvc := service.NewTimetableService(
		service.TimetableRepositories{
			Rooms:       roomRepo,
			Teachers:    teacherRepo,
			Courses:     courseRepo,
			Sections:    sectionRepo,
			Preferences: preferenceRepo,
			Assignments: assignmentRepo,
		},
		db,
		engine,
		cache.NewLocker(redisClient),
		cacheSvc,
		metrics,
		validate,
		logr,
		service.TimetableConfig{
			DefaultSeed: cfg.Scheduler.DefaultSeed,
			RunTimeout:  cfg.Scheduler.RunTimeout,
			LockTTL:     cfg.Scheduler.LockTTL,
			ReportTTL:   cfg.Scheduler.ReportTTL,
		},
	)

	jobSvc := service.NewSchedulerJobService(timetableSvc, metrics, logr)
	queue := jobs.NewQueue("scheduler", jobSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Scheduler.Workers,
		BufferSize: cfg.Scheduler.QueueSize,
		MaxRetries: -1,
		JobTimeout: cfg.Scheduler.RunTimeout + time.Minute,
		OnGiveUp:   jobSvc.GiveUp,
		Logger:     logr,
	})
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	queue.Start(rootCtx)
	jobSvc.AttachQueue(queue)
	if cfg.Scheduler.Enabled {
		if err := jobSvc.Schedule(cfg.Scheduler.Cron); err != nil {
			logr.Fatal("failed to schedule periodic runs", zap.Error(err))
		}
	}

	importSvc := service.NewImportService(
		service.ImportRepositories{
			Rooms:       roomRepo,
			Teachers:    teacherRepo,
			Courses:     courseRepo,
			Sections:    sectionRepo,
			Preferences: preferenceRepo,
		},
		db,
		cacheSvc,
		metrics,
		logr,
		cfg.Imports.StandardLabCodes,
	)
	exportSvc := service.NewExportService(
		assignmentRepo,
		cacheSvc,
		metrics,
		validate,
		service.ExportConfig{Title: cfg.Exports.Title, CacheTTL: cfg.Scheduler.ReportTTL},
		logr,
		nil,
		nil,
	)
	preferenceSvc := service.NewTeacherPreferenceService(preferenceRepo, validate, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Expiry: cfg.JWT.Expiration})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, db, redisPing)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokenSvc), internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))

	if cfg.Scheduler.Enabled {
		schedulerHandler := handler.NewSchedulerHandler(timetableSvc, jobSvc)
		api.POST("/scheduler/runs", internalmiddleware.Audit(logr, "scheduler.run"), schedulerHandler.Create)
		api.GET("/scheduler/runs/:id", schedulerHandler.Get)
		api.GET("/scheduler/report/latest", schedulerHandler.Latest)
	}
	if cfg.Imports.Enabled {
		importHandler := handler.NewImportHandler(importSvc, cfg.Imports.MaxFileSizeBytes)
		api.POST("/imports/:kind", internalmiddleware.Audit(logr, "import"), importHandler.Upload)
	}
	preferenceHandler := handler.NewPreferenceHandler(preferenceSvc)
	api.GET("/preferences", preferenceHandler.List)
	api.PATCH("/preferences/:id", internalmiddleware.Audit(logr, "preference.review"), preferenceHandler.Review)
	api.POST("/preferences/review", internalmiddleware.Audit(logr, "preference.review_all"), preferenceHandler.ReviewAll)
	if cfg.Exports.Enabled {
		exportHandler := handler.NewExportHandler(exportSvc)
		api.GET("/exports/timetable", exportHandler.Timetable)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	jobSvc.Stop()
	queue.Stop()
}
