package main

import (
	"context"
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

	_ "github.com/flextime-hq/flextime-api/api/swagger"
	"github.com/flextime-hq/flextime-api/internal/handler"
	"github.com/flextime-hq/flextime-api/internal/middleware"
	"github.com/flextime-hq/flextime-api/internal/models"
	"github.com/flextime-hq/flextime-api/internal/repository"
	"github.com/flextime-hq/flextime-api/internal/service"
	"github.com/flextime-hq/flextime-api/pkg/cache"
	"github.com/flextime-hq/flextime-api/pkg/config"
	"github.com/flextime-hq/flextime-api/pkg/database"
	"github.com/flextime-hq/flextime-api/pkg/logger"
	"github.com/flextime-hq/flextime-api/pkg/mail"
	corsmiddleware "github.com/flextime-hq/flextime-api/pkg/middleware/cors"
	reqidmiddleware "github.com/flextime-hq/flextime-api/pkg/middleware/requestid"
)

// @title FlexTime API
// @version 1.0.0
// @description Scheduling service for school flexible-time periods
// @BasePath /api/v1
// @schemes http https

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if cfg.Migrations.AutoApply {
		if err := database.Migrate(ctx, db, cfg.Migrations.Dir); err != nil {
			logr.Sugar().Fatalw("failed to apply migrations", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// repositories
	userRepo := repository.NewUserRepository(db)
	flexDateRepo := repository.NewFlexDateRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	// outbound mail
	var sender mail.Sender = mail.NewNoopSender()
	if cfg.Mail.Enabled && cfg.Mail.ResendAPIKey != "" {
		sender = mail.NewResendSender(cfg.Mail.ResendAPIKey, cfg.Mail.From)
	}
	dispatcher := service.NewMailDispatcher(sender, cfg.Mail.From, cfg.Mail.ReplyTo, cfg.Mail.Workers, cfg.Mail.QueueSize, metricsSvc, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// services
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "flextime-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	flexDateSvc := service.NewFlexDateService(flexDateRepo, sessionRepo, registrationRepo, userRepo,
		cfg.Registration.StudentWindowDays, cfg.Registration.StaffWindowDays, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, flexDateRepo, registrationRepo, userRepo,
		notificationRepo, validate, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, sessionRepo, flexDateRepo,
		userRepo, notificationRepo, dispatcher, cfg.Registration.StudentWindowDays, cfg.Mail.AppURL, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)

	var statsSvc *service.StatsService
	if cfg.Stats.Enabled {
		statsSvc = service.NewStatsService(userRepo, flexDateRepo, sessionRepo, registrationRepo,
			cacheRepo, cfg.Stats.CacheTTL, logr)
	}

	// handlers
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	flexDateHandler := handler.NewFlexDateHandler(flexDateSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc, metricsSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	authed := api.Group("", middleware.JWT(authSvc))

	admin := string(models.RoleAdmin)
	teacher := string(models.RoleTeacher)
	student := string(models.RoleStudent)

	flexDates := authed.Group("/flex-dates")
	{
		flexDates.GET("", flexDateHandler.List)
		flexDates.GET("/upcoming", flexDateHandler.Upcoming)
		flexDates.GET("/:id", flexDateHandler.Get)
		flexDates.POST("", middleware.RBAC(admin), flexDateHandler.Create)
		flexDates.PUT("/:id", middleware.RBAC(admin), flexDateHandler.Update)
		flexDates.DELETE("/:id", middleware.RBAC(admin), flexDateHandler.Delete)
	}

	sessions := authed.Group("/sessions")
	{
		sessions.GET("", sessionHandler.Available)
		sessions.GET("/mine", middleware.RBAC(teacher, admin), sessionHandler.Mine)
		sessions.GET("/templates", middleware.RBAC(teacher, admin), sessionHandler.Templates)
		sessions.DELETE("/templates/:id", middleware.RBAC(teacher, admin), sessionHandler.DeleteTemplate)
		sessions.GET("/:id", sessionHandler.Get)
		sessions.GET("/:id/roster", middleware.RBAC(teacher, admin), sessionHandler.Roster)
		sessions.GET("/:id/roster/export", middleware.RBAC(teacher, admin), sessionHandler.ExportRoster)
		sessions.POST("", middleware.RBAC(teacher, admin), sessionHandler.Create)
		sessions.PUT("/:id", middleware.RBAC(teacher, admin), sessionHandler.Update)
		sessions.DELETE("/:id", middleware.RBAC(teacher, admin), sessionHandler.Delete)
	}

	registrations := authed.Group("/registrations")
	{
		registrations.POST("", middleware.RBAC(student), registrationHandler.Select)
		registrations.GET("/me", registrationHandler.Mine)
		registrations.GET("/students/:id", middleware.RBAC(teacher, admin, middleware.SelfRole), registrationHandler.ForStudent)
		registrations.POST("/lock", middleware.RBAC(teacher, admin), registrationHandler.Lock)
		registrations.POST("/:id/unlock", middleware.RBAC(teacher, admin), registrationHandler.Unlock)
		registrations.POST("/:id/remove", middleware.RBAC(teacher, admin), registrationHandler.Remove)
		registrations.DELETE("/:id", registrationHandler.Cancel)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	adminGroup := authed.Group("/admin", middleware.RBAC(admin))
	{
		adminGroup.GET("/users", userHandler.List)
		adminGroup.POST("/users", middleware.Audit(userRepo, models.AuditActionUserCreate, "user"), userHandler.Create)
		adminGroup.GET("/users/:id", userHandler.Get)
		adminGroup.PUT("/users/:id", userHandler.Update)
		adminGroup.DELETE("/users/:id", userHandler.Delete)
		if statsSvc != nil {
			adminGroup.GET("/stats", statsHandler.Overview)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}
