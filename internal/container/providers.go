package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/application/dispatcher"
	"github.com/garyjia/faktura/internal/application/service"
	"github.com/garyjia/faktura/internal/config"
	"github.com/garyjia/faktura/internal/domain/event"
	"github.com/garyjia/faktura/internal/invoice"
	"github.com/garyjia/faktura/internal/ksef"
	"github.com/garyjia/faktura/internal/models"
	"github.com/garyjia/faktura/internal/repository"
	"github.com/garyjia/faktura/internal/worker"
	"github.com/garyjia/faktura/pkg/database"
)

// StoreBundle holds the record store and, for the sqlite driver, its database
type StoreBundle struct {
	Backend repository.Backend
	DB      *database.DB // nil for the memory driver
}

// ProvideStore opens the configured record store and runs pending migrations
func ProvideStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("Using in-memory record store, data is lost on exit")
		return &StoreBundle{Backend: repository.NewMemoryBackend()}, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &StoreBundle{Backend: repository.NewSQLiteBackend(db, logger), DB: db}, nil
}

// RepositoryBundle groups all repositories for convenient access
type RepositoryBundle struct {
	Seller     *repository.SellerRepository
	Buyer      *repository.BuyerRepository
	Invoice    *repository.InvoiceRepository
	KSeFConfig *repository.KSeFConfigRepository
}

// ProvideRepositories creates all repositories over one backend
func ProvideRepositories(backend repository.Backend, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Seller:     repository.NewSellerRepository(backend, logger),
		Buyer:      repository.NewBuyerRepository(backend, logger),
		Invoice:    repository.NewInvoiceRepository(backend, logger),
		KSeFConfig: repository.NewKSeFConfigRepository(backend, logger),
	}
}

// ProvideKSeFClient creates the gateway client, configured from the file when credentials
// are present there
func ProvideKSeFClient(cfg config.KSeFConfig, logger *zap.Logger) (*ksef.Client, error) {
	client := ksef.NewClient(logger.Named("ksef"), ksef.WithTimeout(cfg.Timeout))
	if cfg.Environment == "" || cfg.Token == "" {
		return client, nil
	}

	err := client.Configure(models.KSeFConfig{
		Environment: models.KSeFEnvironment(cfg.Environment),
		Token:       cfg.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure KSeF client: %w", err)
	}
	return client, nil
}

// auditedEvents are the events written to the audit log
var auditedEvents = []event.Type{
	event.TypeSellerSaved,
	event.TypeBuyerCreated,
	event.TypeBuyerUpdated,
	event.TypeBuyerDeleted,
	event.TypeInvoiceCreated,
	event.TypeInvoiceUpdated,
	event.TypeInvoiceDeleted,
	event.TypeInvoicesImported,
	event.TypeKSeFStatusChanged,
}

// ProvideDispatcher creates the event dispatcher with the audit log subscribed
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(logger.Named("dispatcher")))

	audit := logger.Named("audit")
	for _, typ := range auditedEvents {
		d.SubscribeNamed(typ, "audit-log", func(_ context.Context, evt *event.Event) error {
			audit.Info("Domain event",
				zap.String("event_id", evt.ID),
				zap.String("event_type", evt.Type.String()),
				zap.String("aggregate_id", evt.AggregateID),
				zap.Any("payload", evt.Payload))
			return nil
		})
	}
	return d
}

// ServiceBundle groups all application services
type ServiceBundle struct {
	Seller  service.SellerService
	Buyer   service.BuyerService
	Invoice service.InvoiceService
	KSeF    service.KSeFService
}

// ServiceDeps holds dependencies required for creating services
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Gateway    *ksef.Client
	Dispatcher dispatcher.Dispatcher
	Invoice    config.InvoiceConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services
func ProvideServices(deps *ServiceDeps) *ServiceBundle {
	logger := deps.Logger.Named("service")

	defaults := service.DefaultInvoiceDefaults()
	if deps.Invoice.IssuePlace != "" {
		defaults.IssuePlace = deps.Invoice.IssuePlace
	}
	if deps.Invoice.PaymentMethod != "" {
		defaults.PaymentMethod = deps.Invoice.PaymentMethod
	}
	defaults.VatRate = deps.Invoice.VatRate

	return &ServiceBundle{
		Seller: service.NewSellerService(deps.Repos.Seller, deps.Dispatcher, logger),
		Buyer:  service.NewBuyerService(deps.Repos.Buyer, deps.Dispatcher, logger),
		Invoice: service.NewInvoiceService(
			deps.Repos.Invoice,
			deps.Repos.Buyer,
			deps.Repos.Seller,
			invoice.NewSequencer(nil, logger),
			defaults,
			deps.Dispatcher,
			logger,
		),
		KSeF: service.NewKSeFService(deps.Gateway, deps.Repos.KSeFConfig, deps.Repos.Invoice, deps.Dispatcher, logger),
	}
}

// ProvideWorkers creates the background workers
func ProvideWorkers(cfg config.KSeFConfig, ksefService service.KSeFService, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger.Named("worker"))
	manager.Register(worker.NewStatusPoller(ksefService, cfg.PollInterval, cfg.Timeout, logger.Named("poller")))
	return manager
}
