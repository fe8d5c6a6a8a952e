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

	_ "github.com/noah-isme/presence-api/api/swagger"
	"github.com/noah-isme/presence-api/internal/handler"
	"github.com/noah-isme/presence-api/internal/middleware"
	"github.com/noah-isme/presence-api/internal/repository"
	"github.com/noah-isme/presence-api/internal/service"
	"github.com/noah-isme/presence-api/pkg/cache"
	"github.com/noah-isme/presence-api/pkg/config"
	"github.com/noah-isme/presence-api/pkg/database"
	"github.com/noah-isme/presence-api/pkg/jobs"
	"github.com/noah-isme/presence-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/presence-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/presence-api/pkg/middleware/requestid"
	"github.com/noah-isme/presence-api/pkg/scheduler"
)

// @title Presence API
// @version 1.0.0
// @description Scan-based attendance for learners, end-of-day absence sweeps and historical backfill.
// @BasePath /api
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	loc := cfg.Location()
	holidays := service.LoadHolidayCalendar(cfg.Presence.HolidaysFile, loc, logr)
	policy := service.NewPresencePolicy(cfg.Presence.OnTimeCutoff, cfg.Presence.LateCutoff, loc, logr)
	logr.Info("presence policy ready",
		zap.String("timezone", loc.String()),
		zap.Int("holidays", holidays.Len()),
		zap.String("on_time_cutoff", cfg.Presence.OnTimeCutoff),
		zap.String("late_cutoff", cfg.Presence.LateCutoff))

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)
	lockRepo := repository.NewLockRepository(redisClient, logr)

	authService := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})
	presenceService := service.NewPresenceService(presenceRepo, userRepo, policy, validate, metrics, logr, loc)
	exportService := service.NewExportService(presenceService, logr, loc)
	backfillService := service.NewBackfillService(userRepo, presenceRepo, holidays, validate, metrics, logr, loc)
	sweeper := service.NewAbsenceSweeper(userRepo, presenceRepo, lockRepo, holidays, metrics, logr, service.AbsenceSweeperConfig{
		LockTTL:           cfg.Sweeper.LockTTL,
		Location:          loc,
		SkipNonSchoolDays: cfg.Sweeper.SkipNonSchoolDays,
	})

	backfillQueue := jobs.NewQueue("backfill", backfillService.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Backfill.Workers,
		Capacity:   cfg.Backfill.QueueCapacity,
		MaxRetries: cfg.Backfill.Retries,
		RetryDelay: 30 * time.Second,
		Logger:     logr,
	})
	backfillQueue.Start(ctx)
	defer backfillQueue.Stop()
	backfillService.AttachQueue(backfillQueue)

	sched := scheduler.New(loc, cfg.Sweeper.LockTTL, logr)
	if cfg.Sweeper.Enabled {
		entryID, err := sched.Add("absence-sweeper", cfg.Sweeper.Schedule, sweeper.RunScheduled)
		if err != nil {
			logr.Fatal("failed to schedule absence sweeper", zap.Error(err))
		}
		sched.Start()
		logr.Info("absence sweeper scheduled", zap.String("cron", cfg.Sweeper.Schedule), zap.Time("next_run", sched.Next(entryID)))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.NewSystemHandler(db, metrics.Handler()).Register(r)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	presenceHandler := handler.NewPresenceHandler(presenceService, exportService, backfillService)
	handler.RegisterPresenceRoutes(r.Group(cfg.APIPrefix), presenceHandler, handler.PresenceRouteConfig{
		Authenticate:       middleware.JWT(authService),
		PatchRequiresAdmin: cfg.Presence.PatchRequiresAdmin,
		AuditLogger:        logr.Named("audit"),
	})

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

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown failed", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
}
