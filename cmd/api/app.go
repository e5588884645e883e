package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"proposal-review/internal/auth"
	"proposal-review/internal/config"
	"proposal-review/internal/database"
	"proposal-review/internal/email"
	"proposal-review/internal/events"
	"proposal-review/internal/memstore"
	"proposal-review/internal/metrics"
	"proposal-review/internal/repository"
	"proposal-review/internal/service"
	"proposal-review/migrations"
)

// backend is a store that can also be health-checked and closed
type backend interface {
	service.Store
	HealthCheck() error
	Close() error
}

// app holds the wired services shared by every command
type app struct {
	cfg       *config.Config
	store     backend
	publisher events.Publisher
	registry  *prometheus.Registry
	metrics   *metrics.EngineMetrics
	jwt       *auth.Service

	ledger      *service.ReputationService
	assignments *service.AssignmentService
	requests    *service.AssignmentRequestService
	reviewers   *service.ReviewerService
	proposals   *service.ProposalService
	audit       *service.AuditService
}

// newApp opens the configured store and event publisher and wires the
// engine services over them
func newApp(cfg *config.Config) (*app, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := openPublisher(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewEngineMetrics(registry)
	if err != nil {
		_ = publisher.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	var notifier service.Notifier
	if cfg.Email.Enabled {
		notifier = email.NewService(&cfg.Email)
	}

	ledger := service.NewReputationService(store, store, publisher, m, &cfg.Assignment)

	return &app{
		cfg:         cfg,
		store:       store,
		publisher:   publisher,
		registry:    registry,
		metrics:     m,
		jwt:         auth.NewService(&cfg.JWT),
		ledger:      ledger,
		assignments: service.NewAssignmentService(store, ledger, publisher, m, &cfg.Assignment),
		requests:    service.NewAssignmentRequestService(store, ledger, notifier, publisher, m),
		reviewers:   service.NewReviewerService(store, ledger),
		proposals:   service.NewProposalService(store, &cfg.Assignment),
		audit:       service.NewAuditService(store),
	}, nil
}

// Close releases the publisher and the store
func (a *app) Close() error {
	return errors.Join(a.publisher.Close(), a.store.Close())
}

func openStore(cfg *config.Config) (backend, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		slog.Warn("Using in-memory store - data is lost on restart")
		return memstore.New(), nil
	case config.StoreDriverPostgres:
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("Database connection established", "host", cfg.Database.Host, "database", cfg.Database.Name)

		if cfg.Database.AutoMigrate {
			applied, err := database.NewMigrationExecutor(db.DB.DB, migrations.Files).RunMigrations()
			if err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			slog.Info("Database migrations completed", "applied", applied)
		}
		return repository.NewStore(db), nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.Events.Driver == config.EventsDriverNATS {
		p, err := events.ConnectNATS(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, cfg.App.Name)
		if err != nil {
			return nil, err
		}
		slog.Info("Publishing events to NATS", "url", cfg.Events.NATSURL, "prefix", cfg.Events.SubjectPrefix)
		return p, nil
	}
	return events.NewLogPublisher(slog.Default()), nil
}

// withDatabase opens a raw connection for commands that only need SQL
func withDatabase(cfg *config.Config, fn func(db *database.Database) error) error {
	if cfg.Store.Driver != config.StoreDriverPostgres {
		return fmt.Errorf("command requires STORE_DRIVER=%s", config.StoreDriverPostgres)
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}()
	return fn(db)
}
