package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/courseloom/courseloom/internal"
	"github.com/courseloom/courseloom/internal/crypto"
	"github.com/courseloom/courseloom/internal/handler/api"
	"github.com/courseloom/courseloom/internal/handler/webhook"
	"github.com/courseloom/courseloom/internal/middleware"
	"github.com/courseloom/courseloom/internal/postgres"
	"github.com/courseloom/courseloom/internal/provider"
	"github.com/courseloom/courseloom/internal/router"
	"github.com/courseloom/courseloom/internal/routes"
	"github.com/courseloom/courseloom/internal/service"
	"github.com/courseloom/courseloom/internal/telemetry"
	"github.com/courseloom/courseloom/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Credential encryption key: configured in prod, ephemeral in dev
	var key []byte
	if cfg.CredentialKey != "" {
		key, err = crypto.DecodeKeyBase64(cfg.CredentialKey)
		if err != nil {
			return fmt.Errorf("invalid CREDENTIAL_ENCRYPTION_KEY: %w", err)
		}
	} else {
		key, err = crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to generate credential key: %w", err)
		}
		logger.Warn("CREDENTIAL_ENCRYPTION_KEY not set, using ephemeral key; stored credentials will not survive a restart")
	}
	encryptor, err := crypto.NewAESEncryptor(key)
	if err != nil {
		return fmt.Errorf("failed to initialize credential encryption: %w", err)
	}

	// Initialize stores
	membershipStore := postgres.NewMembershipStore(pool)
	configStore := postgres.NewPaymentConfigStore(pool, encryptor)

	// Initialize telemetry
	var metrics *middleware.Metrics
	if cfg.Metrics.Enabled {
		telemetry.InitBusinessMetrics(cfg.Metrics.Namespace)
		metrics = middleware.NewMetrics(cfg.Metrics.Namespace)
		logger.Info("Metrics enabled", "namespace", cfg.Metrics.Namespace)
	}

	// Initialize payment factory
	validator := provider.NewDefaultValidator()
	factory, err := provider.NewDefaultFactory(validator, membershipStore, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize payment factory: %w", err)
	}

	// Initialize services
	checkoutService := service.NewCheckoutService(
		membershipStore,
		configStore,
		factory,
		cfg.Checkout.SuccessPath,
		cfg.Checkout.CancelPath,
		logger,
	)
	paymentService := service.NewPaymentService(membershipStore, logger)
	subscriptionService := service.NewSubscriptionService(membershipStore, logger)

	// Background subscription reconciliation
	if cfg.Reconcile.Enabled {
		reconciler := worker.NewReconciler(
			membershipStore,
			configStore,
			factory,
			subscriptionService,
			worker.Config{PollInterval: cfg.Reconcile.Interval},
			logger,
		)
		workerCtx, stopWorker := context.WithCancel(ctx)
		defer stopWorker()
		go func() {
			if err := reconciler.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("reconciler stopped", "error", err)
			}
		}()
	}

	// Build route dependencies
	webhookDeps := webhook.Deps{
		Configs:  configStore,
		Factory:  factory,
		Payments: paymentService,
	}

	apiDeps := routes.APIDeps{
		CheckoutHandler:     api.NewCheckoutHandler(checkoutService, logger),
		SubscriptionHandler: api.NewSubscriptionHandler(configStore, factory, subscriptionService, logger),
	}
	hookDeps := routes.WebhookDeps{
		StripeHandler:       webhook.NewStripeHandler(webhookDeps, logger),
		RazorpayHandler:     webhook.NewRazorpayHandler(webhookDeps, logger),
		LemonSqueezyHandler: webhook.NewLemonSqueezyHandler(webhookDeps, logger),
		MercadoPagoHandler:  webhook.NewMercadoPagoHandler(webhookDeps, logger),
	}
	opsDeps := routes.OpsDeps{}
	if metrics != nil {
		opsDeps.MetricsHandler = metrics.Handler()
	}

	// Build router with global middleware
	chain := []router.Middleware{
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
	}
	if metrics != nil {
		chain = append(chain, metrics.Middleware)
	}
	r := router.New(chain...)

	routes.RegisterAPIRoutes(r, apiDeps)
	routes.RegisterWebhookRoutes(r, hookDeps)
	routes.RegisterOpsRoutes(r, opsDeps)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Server starting", "addr", addr, "env", cfg.Env)
	return http.ListenAndServe(addr, r)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
