package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coursehub/enrollment-service/internal/config"
	"github.com/coursehub/enrollment-service/internal/gateway"
	"github.com/coursehub/enrollment-service/internal/handler"
	"github.com/coursehub/enrollment-service/internal/repository"
	"github.com/coursehub/enrollment-service/internal/service"
	"github.com/coursehub/enrollment-service/internal/validator"
	"github.com/coursehub/enrollment-service/internal/worker"
	"github.com/coursehub/enrollment-service/pkg/database"
)

func main() {
	// Optional .env for local development; real environments set vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to run database migrations")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Course Enrollment Service",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	validate := validator.New()

	// Layered wiring: repositories -> services -> handlers.
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)

	couponService := service.NewCouponService(couponRepo)
	enrollmentService := service.NewEnrollmentService(
		pool,
		enrollmentRepo,
		paymentRepo,
		couponService,
		catalogRepo,
		gateway.NewSandbox(),
		service.NewLessonProvisioner(),
		service.Options{
			Policy: service.ActivationPolicy{
				MaxRetries:  cfg.Activation.MaxRetries,
				BackoffBase: cfg.Activation.BackoffBase(),
				BackoffCap:  cfg.Activation.BackoffCap(),
			},
			ChargeTimeout: cfg.Gateway.ChargeTimeout(),
			Currency:      cfg.Gateway.Currency,
		},
	)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, validate)

	healthHandler := handler.NewHealthHandler(pool)
	app.Get("/health", healthHandler.Check)

	// Enrollment routes
	app.Post("/api/enrollments", enrollmentHandler.Register)
	app.Get("/api/enrollments/:id", enrollmentHandler.GetStatus)
	app.Post("/api/enrollments/:id/payments", enrollmentHandler.ProcessPayment)
	app.Post("/api/enrollments/:id/activate", enrollmentHandler.Activate)
	app.Post("/api/enrollments/:id/activate/retry", enrollmentHandler.RetryActivation)
	app.Post("/api/enrollments/:id/cancel", enrollmentHandler.Cancel)
	app.Get("/api/users/:id/enrollments", enrollmentHandler.ListUserEnrollments)
	app.Get("/api/courses/:id/access", enrollmentHandler.CheckAccess)

	// Background activation retrier
	activationWorker := worker.New(enrollmentRepo, enrollmentService, worker.Options{
		PollInterval: time.Duration(cfg.Activation.PollSeconds) * time.Second,
		ClaimLease:   time.Duration(cfg.Activation.ClaimLeaseSeconds) * time.Second,
		BatchSize:    cfg.Activation.BatchSize,
	})
	if err := activationWorker.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start activation worker")
	}

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Stop the poller before the HTTP server so no new activations begin
	// while connections drain.
	activationWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
