// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	auditUsecase "github.com/allisson/checkout/internal/audit/usecase"
	"github.com/allisson/checkout/internal/bus"
	checkoutUsecase "github.com/allisson/checkout/internal/checkout/usecase"
	"github.com/allisson/checkout/internal/config"
	"github.com/allisson/checkout/internal/database"
	"github.com/allisson/checkout/internal/http"
	inventoryUsecase "github.com/allisson/checkout/internal/inventory/usecase"
	ledgerUsecase "github.com/allisson/checkout/internal/ledger/usecase"
	"github.com/allisson/checkout/internal/metrics"
	"github.com/allisson/checkout/internal/observability"
	outboxUsecase "github.com/allisson/checkout/internal/outbox/usecase"
	paymentService "github.com/allisson/checkout/internal/payment/service"
	webhookUsecase "github.com/allisson/checkout/internal/webhook/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config  *config.Config
	version string

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	tracingShutdown observability.ShutdownFunc

	// Message bus
	busSender     bus.Sender
	busSubscriber bus.Subscriber

	// Repositories
	outboxRepository      outboxUsecase.OutboxRepository
	ledgerRepository      ledgerUsecase.LedgerRepository
	auditEventRepository  auditUsecase.AuditEventRepository
	stockRepository       inventoryUsecase.InventoryAdjuster
	reservationRepository inventoryUsecase.ReservationRepository
	cartRepository        checkoutUsecase.CartRepository
	orderRepository       checkoutUsecase.OrderRepository
	priceRepository       checkoutUsecase.VariantPriceReader

	// Use cases and services
	outboxUseCase       outboxUsecase.UseCase
	ledgerUseCase       ledgerUsecase.UseCase
	auditRecorder       auditUsecase.AuditRecorder
	reservationUseCase  inventoryUsecase.ReservationUseCase
	paymentGateway      paymentService.Gateway
	paymentVerifier     paymentService.Verifier
	checkoutUseCase     checkoutUsecase.CheckoutUseCase
	orderPaymentUseCase checkoutUsecase.OrderPaymentUseCase
	webhookUseCase      webhookUsecase.WebhookUseCase

	// Servers and consumers
	httpServer    *http.Server
	metricsServer *http.MetricsServer
	router        *bus.Router

	// Initialization flags and mutex for thread-safety
	mu                        sync.Mutex
	loggerInit                sync.Once
	dbInit                    sync.Once
	txManagerInit             sync.Once
	metricsProviderInit       sync.Once
	businessMetricsInit       sync.Once
	tracingInit               sync.Once
	busSenderInit             sync.Once
	busSubscriberInit         sync.Once
	outboxRepositoryInit      sync.Once
	ledgerRepositoryInit      sync.Once
	auditEventRepositoryInit  sync.Once
	stockRepositoryInit       sync.Once
	reservationRepositoryInit sync.Once
	cartRepositoryInit        sync.Once
	orderRepositoryInit       sync.Once
	priceRepositoryInit       sync.Once
	outboxUseCaseInit         sync.Once
	ledgerUseCaseInit         sync.Once
	auditRecorderInit         sync.Once
	reservationUseCaseInit    sync.Once
	paymentGatewayInit        sync.Once
	paymentVerifierInit       sync.Once
	checkoutUseCaseInit       sync.Once
	orderPaymentUseCaseInit   sync.Once
	webhookUseCaseInit        sync.Once
	httpServerInit            sync.Once
	metricsServerInit         sync.Once
	routerInit                sync.Once
	initErrors                map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		version:    "dev",
		initErrors: make(map[string]error),
	}
}

// WithVersion sets the service version reported to tracing.
func (c *Container) WithVersion(version string) *Container {
	c.version = version
	return c
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the Prometheus-backed meter provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder (a no-op when metrics are disabled).
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// SetupTracing installs the global propagator and, when configured, the OTLP exporter.
func (c *Container) SetupTracing(ctx context.Context) error {
	var err error
	c.tracingInit.Do(func() {
		c.tracingShutdown, err = observability.SetupTracing(ctx, observability.Config{
			Endpoint:       c.config.OTelExporterEndpoint,
			ServiceName:    c.config.OTelServiceName,
			ServiceVersion: c.version,
		})
		if err != nil {
			c.initErrors["tracing"] = err
		}
	})
	if err != nil {
		return err
	}
	return c.initErrors["tracing"]
}

// HTTPServer returns the API server with every route mounted.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.busSubscriber != nil {
		if err := c.busSubscriber.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("bus subscriber close: %w", err))
		}
	}

	if c.busSender != nil {
		if err := c.busSender.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("bus sender close: %w", err))
		}
	}

	if c.tracingShutdown != nil {
		if err := c.tracingShutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("tracing shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(shutdownErrors...))
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initMetricsProvider creates the meter provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	checkoutHandler, err := c.CheckoutHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout handler for http server: %w", err)
	}

	webhookHandler, err := c.WebhookHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook handler for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(http.RouterConfig{
		CheckoutHandler:         checkoutHandler,
		WebhookHandler:          webhookHandler,
		MetricsProvider:         metricsProvider,
		MetricsNamespace:        c.config.MetricsNamespace,
		RateLimitEnabled:        c.config.RateLimitEnabled,
		RateLimitRequestsPerSec: c.config.RateLimitRequestsPerSec,
		RateLimitBurst:          c.config.RateLimitBurst,
		CORSEnabled:             c.config.CORSEnabled,
		CORSAllowOrigins:        c.config.CORSAllowOrigins,
	})

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}
	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
