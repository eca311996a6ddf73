package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/quadro-commerce/api/internal/handlers"
	"github.com/quadro-commerce/api/internal/platform/auth"
	"github.com/quadro-commerce/api/internal/platform/cache"
	"github.com/quadro-commerce/api/internal/platform/config"
	"github.com/quadro-commerce/api/internal/platform/events"
	"github.com/quadro-commerce/api/internal/platform/observability"
	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
	"github.com/quadro-commerce/api/internal/platform/storage"
	pgrepos "github.com/quadro-commerce/api/internal/repositories/postgres"
	"github.com/quadro-commerce/api/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("api")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := ppostgres.NewProvider(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("failed to initialise postgres", zap.Error(err))
	}

	registry, err := pgrepos.NewRegistry(provider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("failed to close postgres cleanly", zap.Error(err))
		}
	}()

	redisClient, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("failed to initialise redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed to close redis cleanly", zap.Error(err))
		}
	}()

	revocations, err := cache.NewTokenRevocationStore(redisClient)
	if err != nil {
		logger.Fatal("failed to initialise revocation store", zap.Error(err))
	}

	var publisher *events.KafkaPublisher
	if cfg.Features.EnableOrderEvents && len(cfg.Kafka.Brokers) > 0 {
		publisher, err = events.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			logger.Fatal("failed to initialise kafka publisher", zap.Error(err))
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close kafka publisher cleanly", zap.Error(err))
			}
		}()
	} else {
		logger.Info("order event publishing disabled")
	}

	var uploader *storage.Uploader
	if cfg.Storage.Bucket != "" {
		uploader, err = storage.NewUploader(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("failed to initialise object storage", zap.Error(err))
		}
		defer func() {
			if err := uploader.Close(); err != nil {
				logger.Warn("failed to close object storage cleanly", zap.Error(err))
			}
		}()
	} else {
		logger.Info("object storage disabled, image uploads unavailable")
	}

	issuer, err := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.Issuer,
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)
	if err != nil {
		logger.Fatal("failed to initialise token issuer", zap.Error(err))
	}
	authn := auth.NewAuthenticator(issuer, auth.WithRevocations(revocations))

	sugar := logger.Sugar()
	newID := func() string { return ulid.Make().String() }

	auditService, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		Repository:  registry.AuditLogs(),
		IDGenerator: newID,
		Logger:      sugar,
	})
	if err != nil {
		logger.Fatal("failed to initialise audit log service", zap.Error(err))
	}

	inventoryService, err := services.NewInventoryService(services.InventoryServiceDeps{
		Products: registry.Products(),
		Audit:    auditService,
	})
	if err != nil {
		logger.Fatal("failed to initialise inventory service", zap.Error(err))
	}

	tenantService, err := services.NewTenantService(services.TenantServiceDeps{
		Tenants:     registry.Tenants(),
		Settings:    registry.Settings(),
		Audit:       auditService,
		UnitOfWork:  registry,
		IDGenerator: newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise tenant service", zap.Error(err))
	}

	settingsService, err := services.NewSettingsService(services.SettingsServiceDeps{
		Settings: registry.Settings(),
		Audit:    auditService,
	})
	if err != nil {
		logger.Fatal("failed to initialise settings service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Categories:  registry.Categories(),
		Products:    registry.Products(),
		Audit:       auditService,
		IDGenerator: newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	customerService, err := services.NewCustomerService(services.CustomerServiceDeps{
		Customers:   registry.Customers(),
		Audit:       auditService,
		IDGenerator: newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise customer service", zap.Error(err))
	}

	discountService, err := services.NewDiscountService(services.DiscountServiceDeps{
		Discounts:   registry.Discounts(),
		Audit:       auditService,
		IDGenerator: newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise discount service", zap.Error(err))
	}

	orderDeps := services.OrderServiceDeps{
		Orders:      registry.Orders(),
		Discounts:   registry.Discounts(),
		Customers:   registry.Customers(),
		Inventory:   inventoryService,
		Audit:       auditService,
		UnitOfWork:  registry,
		IDGenerator: newID,
		Logger:      sugar,
	}
	if publisher != nil {
		orderDeps.Events = publisher
	}
	orderService, err := services.NewOrderService(orderDeps)
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	userService, err := services.NewUserService(services.UserServiceDeps{
		Users:       registry.Users(),
		Audit:       auditService,
		IDGenerator: newID,
		BcryptCost:  cfg.Auth.BcryptCost,
	})
	if err != nil {
		logger.Fatal("failed to initialise user service", zap.Error(err))
	}

	authService, err := services.NewAuthService(services.AuthServiceDeps{
		Users:       registry.Users(),
		Issuer:      issuer,
		Revocations: revocations,
		Audit:       auditService,
		Logger:      sugar,
	})
	if err != nil {
		logger.Fatal("failed to initialise auth service", zap.Error(err))
	}

	var uploadService services.UploadService
	if uploader != nil {
		uploadService, err = services.NewUploadService(services.UploadServiceDeps{
			Store:         uploader,
			MaxUploadSize: cfg.Storage.MaxUploadSize,
		})
		if err != nil {
			logger.Fatal("failed to initialise upload service", zap.Error(err))
		}
	}

	authHandlers := handlers.NewAuthHandlers(authService, tenantService)
	tenantHandlers := handlers.NewTenantHandlers(authn, tenantService)
	settingsHandlers := handlers.NewSettingsHandlers(authn, settingsService, uploadService)
	catalogHandlers := handlers.NewCatalogHandlers(authn, catalogService, inventoryService, uploadService)
	customerHandlers := handlers.NewCustomerHandlers(customerService)
	discountHandlers := handlers.NewDiscountHandlers(authn, discountService)
	orderHandlers := handlers.NewOrderHandlers(orderService)
	userHandlers := handlers.NewUserHandlers(authn, userService)
	auditHandlers := handlers.NewAuditLogHandlers(authn, auditService)

	healthChecks := []handlers.ReadinessCheck{
		{Name: "postgres", Check: provider.Ping},
		{Name: "redis", Check: redisClient.Ping},
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RecoveryMiddleware(logger),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthChecks...)),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithTenantRoutes(func(r chi.Router) {
			tenantHandlers.Routes(r)
			r.Route("/{tenantID}", func(tr chi.Router) {
				tr.Use(authn.RequireAuth(), auth.RequireTenant("tenantID"))
				tenantHandlers.ScopedRoutes(tr)
				settingsHandlers.Routes(tr)
				catalogHandlers.Routes(tr)
				customerHandlers.Routes(tr)
				orderHandlers.Routes(tr)
				userHandlers.Routes(tr)
				auditHandlers.Routes(tr)
				if cfg.Features.EnableDiscounts {
					discountHandlers.Routes(tr)
				}
			})
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Fatal("server failed", zap.Error(err))
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		_ = server.Close()
	}
	logger.Info("server stopped")
}
