package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealflow/internal/adapters/cache"
	"dealflow/internal/adapters/http/handlers"
	"dealflow/internal/adapters/http/middleware"
	"dealflow/internal/adapters/http/routes"
	"dealflow/internal/adapters/messaging"
	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/adapters/persistence/repositories"
	"dealflow/internal/config"
	"dealflow/internal/core/services"
	"dealflow/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	_ "dealflow/docs" // Swagger docs
)

// @title dealflow API
// @version 1.0
// @description Bank-split brokerage deals: commission splits, invitations, contract signing and escrow lifecycle.

// @contact.name API Support

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(ctx, "failed to load configuration", "error", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal(ctx, "failed to initialise logger", "error", err)
	}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to connect to database", "error", err)
	}
	defer config.CloseDatabase()

	if err := models.AutoMigrate(db); err != nil {
		logger.Fatal(ctx, "failed to auto migrate", "error", err)
	}
	logger.Info(ctx, "database migration completed")

	if err := config.NewSeeder(db, cfg).Run(ctx); err != nil {
		logger.Warn(ctx, "failed to seed staff users", "error", err)
	}

	checks := map[string]handlers.HealthCheck{"database": config.HealthCheck}

	// Confirmation codes live in Redis when configured so every instance sees them
	var otpStore services.OTPStore
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = cache.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal(ctx, "failed to connect to redis", "error", err)
		}
		defer cache.DisconnectRedis(rdb)
		otpStore = cache.NewOTPStore(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		mem := services.NewMemoryOTPStore(time.Now)
		go mem.RunCleanup(ctx, time.Minute)
		otpStore = mem
		logger.Warn(ctx, "REDIS_ADDR not set, confirmation codes are kept in memory")
	}

	effects := services.SideEffectChain{
		services.NewNotificationService(cfg.Notify.WebhookURL, cfg.Notify.Timeout),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := messaging.NewTransitionPublisher(messaging.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), cfg.Kafka.Topic)
		defer publisher.Close()
		effects = append(effects, publisher)
		logger.Info(ctx, "publishing deal transitions", "topic", cfg.Kafka.Topic)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	dealRepo := repositories.NewDealRepository(db)
	recipientRepo := repositories.NewRecipientRepository(db)
	invitationRepo := repositories.NewInvitationRepository(db)
	contractRepo := repositories.NewContractRepository(db)
	sessionRepo := repositories.NewSigningSessionRepository(db)
	disputeRepo := repositories.NewDisputeRepository(db)

	// Services
	sms := services.LogSMSSender{IncludeBody: cfg.IsDev()}
	otpService := services.NewOTPService(otpStore, sms, services.OTPConfig{
		TTL:            cfg.Policy.OTPTTL,
		ResendCooldown: cfg.Policy.OTPResendCooldown,
		MaxAttempts:    cfg.Policy.OTPMaxAttempts,
	}, time.Now)

	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg)
	contractService := services.NewContractService(dealRepo, recipientRepo, contractRepo, sessionRepo, userRepo, sms, cfg.Policy, time.Now)
	dealService := services.NewDealService(dealRepo, recipientRepo, invitationRepo, contractService, effects, cfg.Policy, time.Now)
	invitationService := services.NewInvitationService(dealRepo, recipientRepo, invitationRepo, userRepo, sms, cfg.Policy, time.Now)
	signingService := services.NewSigningService(dealRepo, contractRepo, sessionRepo, disputeRepo, otpService, dealService, time.Now)

	expiryService := services.NewExpiryService(cfg.Policy.ExpiryCron, invitationService, contractService, refreshTokenRepo)
	if err := expiryService.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start expiry scheduler", "error", err)
	}
	defer expiryService.Stop()

	app := fiber.New(fiber.Config{
		AppName:      "dealflow API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	middleware.Setup(app, cfg)

	routes.Setup(app, cfg, routes.Services{
		Auth:        authService,
		Deals:       dealService,
		Invitations: invitationService,
		Contracts:   contractService,
		Signing:     signingService,
		Expiry:      expiryService,
	}, checks)

	go gracefulShutdown(ctx, app)

	logger.Info(ctx, "server starting", "port", cfg.Port, "mode", cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error(ctx, "server stopped with error", "error", err)
	}
}

// gracefulShutdown stops the server once ctx is cancelled by a signal
func gracefulShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	logger.Info(context.Background(), "shutting down server")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logger.Error(context.Background(), "error during shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info(context.Background(), "server stopped gracefully")
}
