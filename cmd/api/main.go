package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"archie-builder-credential-broker/internal/application"
	"archie-builder-credential-broker/internal/application/webhook_handlers"
	"archie-builder-credential-broker/internal/config"
	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/api"
	"archie-builder-credential-broker/internal/infrastructure/docstore"
	"archie-builder-credential-broker/internal/infrastructure/lock"
	"archie-builder-credential-broker/internal/infrastructure/metrics"
	"archie-builder-credential-broker/internal/infrastructure/repository"
	shopifyinfra "archie-builder-credential-broker/internal/infrastructure/shopify"
	"archie-builder-credential-broker/internal/ports"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const appName = "credential broker"

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg(".env file not found")
	}

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped with error")
	}
	logger.Info().Msg("Server stopped")
}

func run(logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	displayAppname(appName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, closeStore, err := newDocumentStore(ctx, cfg.DocStore, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	store = docstore.NewInstrumentedStore(store, m)

	locker, closeLocker, err := newLocker(ctx, cfg.Redis, cfg.Instances, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	// Initialize repositories
	appDB := cfg.DocStore.AppDatabase
	sessionRepo := repository.NewSessionRepository(store, appDB, logger)
	appDataRepo := repository.NewAppDataRepository(store, appDB)
	ticketRepo := repository.NewTicketRepository(store, appDB)
	metadataRepo := repository.NewStoreMetadataRepository(store, logger)

	// Shopify adapters
	shopifyClient := shopifyinfra.NewClient(
		cfg.Shopify.APIKey,
		cfg.Shopify.APISecret,
		cfg.AppURL+"/auth/callback",
		cfg.Shopify.Scopes,
		cfg.Shopify.APIVersion,
		logger,
	)
	webhookVerifier := shopifyinfra.NewWebhookVerifier(cfg.Shopify.APIKey, cfg.Shopify.APISecret, logger)
	adminAuth := shopifyinfra.NewSessionTokenAuthenticator(cfg.Shopify.APIKey, cfg.Shopify.APISecret, sessionRepo, logger)

	// Initialize application services
	planService := application.NewPlanService(
		shopifyClient,
		metadataRepo,
		metadataRepo,
		application.PlanPricing{
			Prices: map[domain.Plan]string{
				domain.PlanBasic:   cfg.Billing.BasicPrice,
				domain.PlanPremium: cfg.Billing.PremiumPrice,
			},
			Currency: cfg.Billing.Currency,
			Test:     cfg.Billing.Test,
		},
		cfg.AppURL+"/billing/callback",
		cfg.Shopify.APISecret,
		cfg.Billing.ReturnTTL,
		m,
		logger,
	)
	credentialsService := application.NewCredentialsService(appDataRepo, metadataRepo, metadataRepo, planService, cfg.Shopify.APIKey, m, logger)
	ticketService := application.NewTicketService(ticketRepo, sessionRepo, locker, cfg.Shopify.APIKey, cfg.Tickets.TTL, m, logger)
	lifecycleService := application.NewLifecycleService(sessionRepo, appDataRepo, ticketRepo, m, logger)
	installService := application.NewInstallService(shopifyClient, sessionRepo, cfg.AppURL+"/auth/callback", cfg.Shopify.Scopes, logger)

	// Initialize webhook dispatcher and register handlers
	webhookDispatcher := application.NewWebhookDispatcher(logger,
		webhook_handlers.NewAppUninstalledHandler(logger, lifecycleService),
		webhook_handlers.NewShopRedactHandler(logger, lifecycleService),
		webhook_handlers.NewScopesUpdateHandler(logger, installService),
		webhook_handlers.NewCustomerPrivacyHandler(logger),
	)

	router := api.NewRouter(api.RouterConfig{
		Credentials: credentialsService,
		Tickets:     ticketService,
		Plans:       planService,
		Install:     installService,
		Dispatcher:  webhookDispatcher,
		Sessions:    sessionRepo,
		AdminAuth:   adminAuth,
		Webhooks:    webhookVerifier,
		OAuth:       shopifyClient,
		APIKey:      cfg.Shopify.APIKey,
		SwaggerFile: "./docs/swagger.json",
		Metrics:     m,
		Gatherer:    reg,
		Logger:      logger,
	})

	go ticketService.RunJanitor(ctx, cfg.Tickets.SweepInterval)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("docstore", cfg.DocStore.Driver).Msg("Starting API server")
		logger.Info().Msg("Swagger documentation available at " + cfg.AppURL + "/swagger/index.html")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	return shutdown(server)
}

func newDocumentStore(ctx context.Context, cfg config.DocStoreConfig, logger zerolog.Logger) (ports.DocumentStore, func(), error) {
	switch cfg.Driver {
	case config.DriverGraphQL:
		client, err := docstore.NewGraphQLClient(docstore.GraphQLConfig{
			Endpoint:     cfg.URL,
			SecretHeader: cfg.SecretHeader,
			Secret:       cfg.Secret,
			Timeout:      cfg.Timeout,
		}, nil, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create document store client: %w", err)
		}
		return client, func() {}, nil

	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		return docstore.NewMongoStore(client, cfg.DatabasePrefix), func() {
			client.Disconnect(context.Background())
		}, nil

	default:
		logger.Warn().Msg("Using the in-memory document store, data is lost on restart")
		return docstore.NewMemoryStore(), func() {}, nil
	}
}

func newLocker(ctx context.Context, cfg config.RedisConfig, instances int, logger zerolog.Logger) (ports.Locker, func(), error) {
	if cfg.URL == "" {
		logger.Warn().Int("instances", instances).Msg("REDIS_URL not set, ticket locks are local to this instance and only safe for a single replica")
		return lock.NewLocalLocker(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return lock.NewRedisLocker(client, "credential-broker:lock:", cfg.LockTTL, logger), func() {
		client.Close()
	}, nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
