package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/secureflow/vulnticket/internal/api/http"
	"github.com/secureflow/vulnticket/internal/api/http/handlers"
	"github.com/secureflow/vulnticket/internal/auth"
	"github.com/secureflow/vulnticket/internal/config"
	"github.com/secureflow/vulnticket/internal/events"
	"github.com/secureflow/vulnticket/internal/notify"
	"github.com/secureflow/vulnticket/internal/observability"
	"github.com/secureflow/vulnticket/internal/persistence"
	"github.com/secureflow/vulnticket/internal/registry"
	"github.com/secureflow/vulnticket/internal/repository"
	"github.com/secureflow/vulnticket/internal/scanner"
	"github.com/secureflow/vulnticket/internal/scheduler"
	"github.com/secureflow/vulnticket/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	var (
		ticketRepo  repository.TicketRepository
		historyRepo repository.TicketHistoryRepository
		userRepo    repository.UserRepository
	)
	if pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		historyRepo = repository.NewTicketHistoryRepository(pool)
		userRepo = repository.NewUserRepository(pool)
	} else {
		ticketRepo = repository.NewMemoryTicketRepository()
		historyRepo = repository.NewMemoryTicketHistoryRepository()
		userRepo = repository.NewMemoryUserRepository()
	}

	var siteRegistry registry.SiteRegistry
	if err := redis.Ping(ctx); err != nil {
		logger.Warn("redis unavailable; using in-process site registry", zap.Error(err))
		siteRegistry = registry.NewMemorySiteRegistry()
	} else {
		siteRegistry = registry.NewRedisSiteRegistry(redis.Client)
	}

	var notifier notify.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewSMTPNotifier(cfg.SMTP)
	} else {
		logger.Warn("SMTP_HOST not set; notifications will be logged only")
		notifier = notify.NewLogNotifier(logger)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	manager, err := scheduler.NewManager(ctx, logger)
	if err != nil {
		logger.Fatal("failed to init scheduler", zap.Error(err))
	}

	slaService := service.NewSLAService(service.SLADependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		Notifier:   notifier,
		Deferred:   manager,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		UserRepo:    userRepo,
		SLA:         slaService,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	reconcileService := service.NewReconcileService(service.ReconcileDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		Source:      scanner.NewClient(cfg.Scanner),
		Sites:       siteRegistry,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	authService := service.NewAuthService(cfg.Auth, userRepo)

	notificationService := service.NewNotificationService(cfg.Notification, logger)
	notificationService.Register(dispatcher)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService, ticketService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Sites:          handlers.NewSitesHandler(reconcileService),
		AuthMiddleware: authMiddleware,
	})

	if err := manager.Every("sla_sweep", cfg.Sweep.SLAInterval(), slaService.Sweep); err != nil {
		logger.Fatal("failed to schedule sla sweep", zap.Error(err))
	}
	if err := manager.Every("reconcile_all", cfg.Sweep.ReconcileInterval(), reconcileService.ReconcileAllSites); err != nil {
		logger.Fatal("failed to schedule reconciliation", zap.Error(err))
	}
	manager.Start()

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := manager.Stop(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
