// Package container wires the application components and manages their lifecycle.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/application/dispatcher"
	"github.com/garyjia/faktura/internal/config"
	"github.com/garyjia/faktura/internal/export"
	"github.com/garyjia/faktura/internal/ksef"
	"github.com/garyjia/faktura/internal/registry"
	"github.com/garyjia/faktura/internal/worker"
	"github.com/garyjia/faktura/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	store        *StoreBundle
	repositories *RepositoryBundle
	ksefClient   *ksef.Client
	registry     *registry.KRSClient
	register     *export.InvoiceRegister

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers        *worker.Manager
	workersRunning atomic.Bool

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components; call Start to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{config: cfg, logger: logger}, nil
}

// Start initializes the store, clients and services. Background workers are started
// separately with StartWorkers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	store, err := ProvideStore(ctx, c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	c.store = store
	c.repositories = ProvideRepositories(store.Backend, c.logger.Named("repository"))
	c.logger.Info("Store initialized", zap.String("driver", c.config.Database.Driver))

	client, err := ProvideKSeFClient(c.config.KSeF, c.logger)
	if err != nil {
		c.closeStore()
		return err
	}
	c.ksefClient = client
	c.registry = registry.NewKRSClient(c.config.Registry.BaseURL, c.config.Registry.Timeout, c.logger.Named("registry"))
	c.register = export.NewInvoiceRegister(c.logger.Named("export"))

	c.dispatcher = ProvideDispatcher(c.logger)
	c.services = ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		Gateway:    c.ksefClient,
		Dispatcher: c.dispatcher,
		Invoice:    c.config.Invoice,
		Logger:     c.logger,
	})

	if err := c.services.KSeF.Restore(ctx); err != nil {
		c.logger.Warn("Stored KSeF credentials not applied", zap.Error(err))
	}

	c.workers = ProvideWorkers(c.config.KSeF, c.services.KSeF, c.logger)

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// StartWorkers launches the background workers
func (c *Container) StartWorkers(ctx context.Context) error {
	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}
	if err := c.workers.StartAll(ctx); err != nil {
		return err
	}
	c.workersRunning.Store(true)
	return nil
}

// Close gracefully shuts down all components in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	var errs []error

	if c.workers != nil {
		c.workers.StopAll()
		c.workersRunning.Store(false)
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.ksefClient != nil {
		if err := c.ksefClient.TerminateSession(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("terminate KSeF session: %w", err))
		}
	}

	if err := c.closeStore(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Errors("errors", errs))
		return fmt.Errorf("container closed with %d errors: %v", len(errs), errs)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeStore() error {
	if c.store == nil || c.store.DB == nil {
		return nil
	}
	db := c.store.DB
	c.store.DB = nil
	return db.Close()
}

// Ready returns true when all components are initialized
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    c.ready.Load(),
		Components: make(map[string]ComponentHealth),
	}

	switch {
	case c.store == nil:
		status.Components["store"] = ComponentHealth{Message: "not initialized"}
		status.Overall = false
	case c.store.DB != nil:
		if err := c.store.DB.PingContext(ctx); err != nil {
			status.Components["store"] = ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)}
			status.Overall = false
		} else {
			status.Components["store"] = ComponentHealth{Healthy: true, Message: config.DriverSQLite}
		}
	default:
		status.Components["store"] = ComponentHealth{Healthy: true, Message: config.DriverMemory}
	}

	if c.ksefClient != nil {
		msg := "not configured"
		if c.ksefClient.IsConfigured() {
			msg = "configured"
		}
		status.Components["ksef"] = ComponentHealth{Healthy: true, Message: msg}
	}

	if c.workers != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("worker count: %d, running: %t", c.workers.Count(), c.workersRunning.Load()),
		}
	}

	return status
}

// Repositories returns the repository bundle
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns the service bundle
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Registry returns the KRS lookup client
func (c *Container) Registry() *registry.KRSClient {
	return c.registry
}

// Register returns the spreadsheet register writer
func (c *Container) Register() *export.InvoiceRegister {
	return c.register
}

// Dispatcher returns the event dispatcher
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// DB returns the sqlite database, nil for the memory driver
func (c *Container) DB() *database.DB {
	if c.store == nil {
		return nil
	}
	return c.store.DB
}

// Logger returns the container logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container configuration
func (c *Container) Config() *config.Config {
	return c.config
}
