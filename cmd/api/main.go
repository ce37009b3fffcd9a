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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/community-events-api/api/swagger"
	"github.com/noah-isme/community-events-api/internal/handler"
	"github.com/noah-isme/community-events-api/internal/middleware"
	"github.com/noah-isme/community-events-api/internal/repository"
	"github.com/noah-isme/community-events-api/internal/service"
	"github.com/noah-isme/community-events-api/pkg/cache"
	"github.com/noah-isme/community-events-api/pkg/config"
	"github.com/noah-isme/community-events-api/pkg/database"
	"github.com/noah-isme/community-events-api/pkg/export"
	"github.com/noah-isme/community-events-api/pkg/jobs"
	"github.com/noah-isme/community-events-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/community-events-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/community-events-api/pkg/middleware/requestid"
)

// @title Community Events API
// @version 1.0.0
// @description Registration, waitlist and prerequisite engine for activity-group events.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("postgres unavailable", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Sugar().Fatalw("migration failed", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis unavailable", "error", err)
	}
	defer redisClient.Close()

	app := buildApp(cfg, db, redisClient, logr)
	app.queue.Start(ctx)

	if cfg.Waitlist.SweeperEnabled {
		go runSweeper(ctx, cfg.Waitlist.SweepInterval, app.registrations, app.notifications, logr)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(app.metrics))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, middleware.JWT(app.tokens), app.handlers)

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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown", "error", err)
	}
	app.queue.Stop()
}

type application struct {
	metrics       *service.MetricsService
	tokens        *service.TokenService
	registrations *service.RegistrationService
	notifications *service.NotificationService
	queue         *jobs.Queue
	handlers      handler.Handlers
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient redis.UniversalClient, logr *zap.Logger) *application {
	validate := validator.New()
	metrics := service.NewMetricsService()

	events := repository.NewEventRepository(db)
	registrations := repository.NewRegistrationRepository(db)
	waitlist := repository.NewWaitlistRepository(db)
	prereqs := repository.NewPrerequisiteRepository(db)
	sessions := repository.NewSessionRepository(db)
	outbox := repository.NewOutboxRepository(redisClient, cfg.Notifications.OutboxKey)
	uow := database.NewUnitOfWork(db, cfg.OperationTimeout)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.CapacityTTL, logr, cfg.Cache.Enabled)

	var notifications *service.NotificationService
	queue := jobs.NewQueue("notifications", nil, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.Retries,
		Logger:     logr,
		OnResult: func(job jobs.Job, err error) {
			notifications.RecordResult(job, err)
		},
	})
	notifications = service.NewNotificationService(queue, outbox, outbox, events, registrations, metrics, logr, cfg.Waitlist.ReminderWindow)
	for _, jobType := range []string{service.JobWaitlistOffer, service.JobWaitlistPromotion, service.JobEventReminder} {
		queue.Handle(jobType, notifications.Deliver)
	}

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Expiry: cfg.JWT.Expiration})
	capacity := service.NewCapacityService(uow, events, registrations, waitlist, cacheSvc, cfg.Cache.CapacityTTL, logr)
	registrationSvc := service.NewRegistrationService(uow, events, registrations, waitlist, capacity, notifications, metrics, logr, cfg.Waitlist.OfferTTL)
	eventSvc := service.NewEventService(uow, events, registrations, waitlist, prereqs, sessions, capacity, registrationSvc, validate, logr)
	prereqSvc := service.NewPrerequisiteService(uow, prereqs, events, registrations, validate, logr)
	sessionSvc := service.NewSessionService(sessions, events, validate, logr)
	rosterSvc := service.NewRosterService(events, registrations, waitlist, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return cache.Ping(ctx, redisClient)
		},
	}

	return &application{
		metrics:       metrics,
		tokens:        tokens,
		registrations: registrationSvc,
		notifications: notifications,
		queue:         queue,
		handlers: handler.Handlers{
			Events:        handler.NewEventHandler(eventSvc, capacity),
			Registrations: handler.NewRegistrationHandler(registrationSvc, prereqSvc),
			Prerequisites: handler.NewPrerequisiteHandler(prereqSvc),
			Sessions:      handler.NewSessionHandler(sessionSvc),
			Rosters:       handler.NewRosterHandler(rosterSvc),
			Metrics:       handler.NewMetricsHandler(metrics, checks),
		},
	}
}

// runSweeper expires stale waitlist offers and queues event reminders until ctx ends.
func runSweeper(ctx context.Context, interval time.Duration, registrations *service.RegistrationService, notifications *service.NotificationService, logr *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := registrations.ExpireOffers(ctx)
			if err != nil {
				logr.Warn("offer sweep failed", zap.Error(err))
			} else if summary.Expired > 0 {
				logr.Info("expired waitlist offers", zap.Int("expired", summary.Expired), zap.Int("reoffered", len(summary.Reoffers)))
			}
			sent, err := notifications.SendEventReminders(ctx)
			if err != nil {
				logr.Warn("reminder sweep failed", zap.Error(err))
			} else if sent > 0 {
				logr.Info("queued event reminders", zap.Int("count", sent))
			}
		}
	}
}
