package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-crm/meridian/internal/activities"
	"github.com/meridian-crm/meridian/internal/app"
	"github.com/meridian-crm/meridian/internal/auth"
	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/customers"
	"github.com/meridian-crm/meridian/internal/leads"
	"github.com/meridian-crm/meridian/internal/notify"
	"github.com/meridian-crm/meridian/internal/observability"
	"github.com/meridian-crm/meridian/internal/opportunities"
	"github.com/meridian-crm/meridian/internal/platform/cache"
	"github.com/meridian-crm/meridian/internal/platform/db"
	"github.com/meridian-crm/meridian/internal/roles"
	"github.com/meridian-crm/meridian/internal/shared"
	"github.com/meridian-crm/meridian/internal/users"
	"github.com/meridian-crm/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)

	authzService := authz.NewService(authz.NewResolver(authz.NewStore(dbpool)), logger)
	authzMw := authz.Middleware{Service: authzService, Logger: logger}

	hub := notify.NewHub(redisClient, logger)

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, authzService)

	rolesService := roles.NewService(roles.NewRepository(dbpool), authzService, auditLogger, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, authzMw)

	usersService := users.NewService(users.NewRepository(dbpool), authzService, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, authzMw)

	leadsService := leads.NewService(leads.NewRepository(dbpool), hub, logger)
	leadsHandler := leads.NewHandler(logger, leadsService, authzMw)

	oppsService := opportunities.NewService(opportunities.NewRepository(dbpool), hub, logger)
	oppsHandler := opportunities.NewHandler(logger, oppsService, authzMw)

	customersService := customers.NewService(customers.NewRepository(dbpool), hub, logger)
	customersHandler := customers.NewHandler(logger, customersService, authzMw)

	activitiesService := activities.NewService(activities.NewRepository(dbpool), hub, logger)
	activitiesHandler := activities.NewHandler(logger, activitiesService, authzMw)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		AuthzMw:              authzMw,
		AuthHandler:          authHandler,
		RolesHandler:         rolesHandler,
		UsersHandler:         usersHandler,
		LeadsHandler:         leadsHandler,
		OpportunitiesHandler: oppsHandler,
		CustomersHandler:     customersHandler,
		ActivitiesHandler:    activitiesHandler,
		JobsHandler:          jobsHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	for _, module := range []string{authz.ModuleLeads, authz.ModuleOpportunities, authz.ModuleCustomers, authz.ModuleActivities} {
		module := module
		g.Go(func() error {
			err := hub.Subscribe(gctx, module, func(event notify.Event) {
				logger.Debug("record change",
					slog.String("module", module),
					slog.String("kind", event.Kind),
					slog.String("record_id", event.RecordID.String()),
				)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutdown", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
