// Package control wires the application together and manages its lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harborline/payguard/internal/core/config"
	"github.com/harborline/payguard/internal/core/worker"
	"github.com/harborline/payguard/internal/dispute"
	"github.com/harborline/payguard/internal/health"
	"github.com/harborline/payguard/internal/infra/notify"
	"github.com/harborline/payguard/internal/infra/provider"
	redisclient "github.com/harborline/payguard/internal/infra/redis"
	"github.com/harborline/payguard/internal/infra/storage"
	"github.com/harborline/payguard/internal/infra/storage/memory"
	"github.com/harborline/payguard/internal/infra/storage/postgres"
	"github.com/harborline/payguard/internal/monitoring/alerts"
	"github.com/harborline/payguard/internal/recovery"
)

// App is the main application struct that manages the recovery lifecycle.
type App struct {
	cfg          *config.AppConfig
	orch         *recovery.Orchestrator
	executor     *recovery.Executor
	disputes     *dispute.Handler
	alertMon     *alerts.Monitor
	pruner       *worker.Pruner
	healthServer *health.Server
	failures     storage.FailureRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	charger      provider.ChargeProvider
	customer     notify.Notifier
	operator     notify.Notifier
	log          *slog.Logger
}

// NewApp creates a new App instance with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {

	// 1. Initialize Storage
	var failureRepo storage.FailureRepository
	var disputeRepo storage.DisputeRepository
	var notifLogRepo storage.NotificationLogRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		failureRepo = postgres.NewFailureRepo(db)
		disputeRepo = postgres.NewDisputeRepo(db)
		notifLogRepo = postgres.NewNotificationLogRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewStore()
		failureRepo = memory.NewFailureRepo(store)
		disputeRepo = memory.NewDisputeRepo(store)
		notifLogRepo = memory.NewNotificationLogRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Initialize Redis (optional: locks and alert cooldowns)
	var redisClient *redisclient.Client
	var locker recovery.Locker
	var cooler alerts.Cooler
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, falling back to single-instance mode", "error", err)
		} else {
			locker = redisClient
			cooler = redisclient.NewCooldownStore(redisClient)
			slog.Info("Using Redis for locks and alert cooldowns")
		}
	}

	// 3. Initialize Collaborators
	charger := provider.NewHTTPProvider(cfg.Provider.Endpoint, cfg.Provider.APIKey, cfg.Provider.Timeout)

	var customer notify.Notifier
	if cfg.Email.Endpoint != "" {
		customer = notify.NewEmailNotifier(cfg.Email.Endpoint, cfg.Email.APIKey, cfg.Email.From, cfg.Provider.Timeout)
	}
	var operator notify.Notifier
	if cfg.Operator.WebhookURL != "" {
		operator = notify.NewWebhookNotifier(cfg.Operator.WebhookURL, cfg.Provider.Timeout)
	}

	// 4. Initialize Recovery Pipeline
	orch := recovery.NewOrchestrator(failureRepo, notifLogRepo, customer, operator, recovery.OrchestratorConfig{
		ProcessingErrorThreshold: cfg.Recovery.ProcessingErrorThreshold,
		ProcessingErrorWindow:    cfg.Recovery.ProcessingErrorWindow,
		OperatorChannel:          cfg.Operator.Channel,
	})
	executor := recovery.NewExecutor(failureRepo, charger, orch, locker, recovery.ExecutorConfig{
		PollInterval: cfg.Recovery.PollInterval,
		LockTTL:      cfg.Recovery.LockTTL,
	})

	// 5. Initialize Dispute Handler
	disputes := dispute.NewHandler(disputeRepo, operator, cfg.Operator.Channel)

	// 6. Initialize Monitoring
	alertMon := alerts.NewMonitor(failureRepo, operator, cooler, alerts.Config{
		Interval:              cfg.Alerts.Interval,
		PendingThreshold:      cfg.Alerts.PendingThreshold,
		ApprovalThreshold:     cfg.Alerts.ApprovalThreshold,
		UnclassifiedThreshold: cfg.Alerts.UnclassifiedThreshold,
		UnclassifiedWindow:    cfg.Alerts.UnclassifiedWindow,
		Cooldown:              cfg.Alerts.Cooldown,
		OperatorChannel:       cfg.Operator.Channel,
	})

	healthMon := health.NewMonitor(failureRepo, disputeRepo, health.DefaultThresholds())
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	// 7. Initialize Pruner
	pruner := worker.NewPruner(cfg.Recovery.NotificationRetention, notifLogRepo)

	return &App{
		cfg:          cfg,
		orch:         orch,
		executor:     executor,
		disputes:     disputes,
		alertMon:     alertMon,
		pruner:       pruner,
		healthServer: healthServer,
		failures:     failureRepo,
		db:           db,
		redisClient:  redisClient,
		charger:      charger,
		customer:     customer,
		operator:     operator,
		log:          slog.Default(),
	}, nil
}

// Orchestrator exposes the failure orchestrator for inbound event handling.
func (a *App) Orchestrator() *recovery.Orchestrator {
	return a.orch
}

// Disputes exposes the dispute handler for inbound chargeback events.
func (a *App) Disputes() *dispute.Handler {
	return a.disputes
}

// Failures exposes the failure repository for admin tooling.
func (a *App) Failures() storage.FailureRepository {
	return a.failures
}

// Start starts the app and all its components.
func (a *App) Start(ctx context.Context) error {
	// Start Health Server
	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	// Start Retry Executor
	a.log.Info("Starting retry executor")
	go a.executor.Start(ctx)

	// Start Alert Monitor
	go a.alertMon.Start(ctx)

	// Start Pruner
	go a.pruner.Start(ctx)

	return nil
}

// Stop stops the app.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping payguard...")

	if err := a.charger.Close(); err != nil {
		a.log.Warn("Failed to close provider client", "error", err)
	}
	if a.customer != nil {
		if err := a.customer.Close(); err != nil {
			a.log.Warn("Failed to close email client", "error", err)
		}
	}
	if a.operator != nil {
		if err := a.operator.Close(); err != nil {
			a.log.Warn("Failed to close webhook client", "error", err)
		}
	}

	// Close Redis
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}

	// Close DB
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}

	// Stop Health Server
	return a.healthServer.Stop(ctx)
}
