package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fetanpay/verification-service/internal/adapters/database"
	"github.com/fetanpay/verification-service/internal/adapters/mock"
	"github.com/fetanpay/verification-service/internal/adapters/postgres"
	"github.com/fetanpay/verification-service/internal/adapters/storage"
	"github.com/fetanpay/verification-service/internal/config"
	paymentHandler "github.com/fetanpay/verification-service/internal/handlers/payment"
	"github.com/fetanpay/verification-service/internal/middleware"
	paymentService "github.com/fetanpay/verification-service/internal/services/payment"
	verificationService "github.com/fetanpay/verification-service/internal/services/verification"
	webhookService "github.com/fetanpay/verification-service/internal/services/webhook"
	"github.com/fetanpay/verification-service/pkg/httpclient"
	pkgmiddleware "github.com/fetanpay/verification-service/pkg/middleware"
	"github.com/fetanpay/verification-service/pkg/observability"
	"github.com/fetanpay/verification-service/pkg/resilience"
)

func main() {
	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting verification service",
		zap.String("version", "0.1.0"),
	)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	databaseURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.User, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port,
		cfg.Database.Database, cfg.Database.SSLMode,
	)
	dbConfig := database.DefaultPostgreSQLConfig(databaseURL)
	dbConfig.MaxConns = cfg.Database.MaxConns
	dbConfig.MinConns = cfg.Database.MinConns

	db, err := database.NewPostgreSQLAdapter(ctx, dbConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	db.StartPoolMonitoring(ctx, 30*time.Second)

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	// Secret manager backend
	secretManager := initSecretManager(ctx, cfg, logger)

	// Repositories
	paymentRepo := postgres.NewPaymentRepository(db.Pool())
	claimRepo := postgres.NewClaimRepository(db.Pool())
	webhookRepo := postgres.NewWebhookRepository(db.Pool())

	// Receipt uploads
	receiptStore, err := storage.NewFilesystemReceiptStore(storage.FilesystemReceiptStoreConfig{
		BasePath:      cfg.Receipts.BaseDir,
		PublicBaseURL: cfg.Receipts.PublicBaseURL,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize receipt store", zap.Error(err))
	}

	// Services
	portLogger := observability.NewZapLogger(logger)

	webhookClient := httpclient.New(httpclient.WebhookClientConfig(), 10*time.Second)
	deliveryService := webhookService.NewDeliveryService(webhookRepo, webhookClient, logger)
	deliveryService.StartRetryLoop(ctx, cfg.Webhook.RetryInterval, cfg.Webhook.MaxRetries)

	payments := paymentService.NewService(paymentRepo, deliveryService, portLogger)

	// The real bank-side matching lives outside this service; the stub
	// gateway leaves payments PENDING until it is swapped for a live one.
	gateway := mock.NewIndeterminateConfirmationGateway(logger)

	dispatcher := verificationService.NewDispatcher(
		gateway,
		payments,
		claimRepo,
		resilience.ConfirmationBackoff(),
		verificationService.DispatcherConfig{
			Workers:     cfg.Dispatcher.Workers,
			QueueSize:   cfg.Dispatcher.QueueSize,
			MaxAttempts: cfg.Dispatcher.MaxAttempts,
		},
		portLogger,
	)
	dispatcher.Start(ctx)

	verification := verificationService.NewService(
		db, paymentRepo, claimRepo, receiptStore, payments, dispatcher, portLogger)

	// HTTP surface
	authenticator := middleware.NewAPIKeyAuthenticator(secretManager, logger)
	handler := paymentHandler.NewHandler(payments, verification, deliveryService, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, authenticator.Middleware)

	// Uploaded receipts are served from local disk in this deployment.
	mux.Handle("GET /receipts/", http.StripPrefix("/receipts/",
		http.FileServer(http.Dir(cfg.Receipts.BaseDir))))

	rateLimiter := pkgmiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	defer rateLimiter.Shutdown()

	var root http.Handler = mux
	root = observability.MetricsMiddleware(root)
	root = rateLimiter.Middleware(root)
	root = middleware.SecurityHeaders(root)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Metrics and health on a separate listener
	healthChecker := observability.NewHealthChecker()
	healthChecker.Register("database", db.HealthCheck)
	healthChecker.Register("receipt_store", receiptStore.HealthCheck)
	metricsServer := observability.StartMetricsServer(
		fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker, logger)

	go func() {
		logger.Info("HTTP server listening",
			zap.String("address", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Stop background workers after the listener drains so in-flight
	// claims still reach the queue.
	cancel()
	dispatcher.Stop()

	if err := observability.ShutdownMetricsServer(metricsServer); err != nil {
		logger.Error("Metrics server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// initLogger builds the process logger. ENVIRONMENT=production switches
// to the JSON production config.
func initLogger() *zap.Logger {
	var zapConfig zap.Config
	if os.Getenv("ENVIRONMENT") == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
