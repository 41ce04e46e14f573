package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/priorauth/internal/config"
	"github.com/ehr/priorauth/internal/domain/encounter"
	"github.com/ehr/priorauth/internal/domain/pipeline"
	"github.com/ehr/priorauth/internal/domain/registry"
	"github.com/ehr/priorauth/internal/domain/workitem"
	"github.com/ehr/priorauth/internal/platform/auth"
	"github.com/ehr/priorauth/internal/platform/db"
	"github.com/ehr/priorauth/internal/platform/fhir"
	"github.com/ehr/priorauth/internal/platform/middleware"
	"github.com/ehr/priorauth/internal/platform/notification"
	"github.com/ehr/priorauth/internal/platform/websocket"
	"github.com/ehr/priorauth/migrations"
)

const shutdownTimeout = 10 * time.Second

// app is the wired service: HTTP surface plus the background poller and
// processor.
type app struct {
	echo      *echo.Echo
	hub       *notification.Hub
	poller    *encounter.PollingService
	processor *pipeline.Processor
	logger    zerolog.Logger
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode: unauthenticated requests get admin access")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		pool, err = db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer pool.Close()
		n, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("failed to apply migrations")
			return err
		}
		logger.Info().Int("applied", n).Msg("connected to database")
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory repositories")
	}

	a := buildApp(cfg, pool, logger)
	return a.run(ctx, ":"+cfg.Port)
}

func buildApp(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *app {
	var (
		regRepo  registry.Repository
		workRepo workitem.Repository
	)
	if pool != nil {
		regRepo = registry.NewRegistryRepoPG(pool)
		workRepo = workitem.NewRepoPG(pool)
	} else {
		regRepo = registry.NewMemoryRepo()
		workRepo = workitem.NewMemoryRepo()
	}

	var tokens fhir.TokenSource
	if cfg.FHIRTokenURL != "" {
		tokens = fhir.NewClientCredentialsTokenSource(cfg.FHIRTokenURL, cfg.FHIRClientID, cfg.FHIRAssertionKey())
	}
	fhirClient := fhir.NewClient(cfg.FHIRBaseURL, tokens)

	hub := notification.NewHub()
	regSvc := registry.NewService(regRepo)
	workSvc := workitem.NewService(workRepo, hub)

	poller := encounter.NewPollingService(regRepo, fhirClient, encounter.NewProcessedCache(), encounter.Config{
		Interval:   cfg.PollingInterval(),
		PracticeID: cfg.PracticeID,
	}, logger)
	processor := pipeline.NewProcessor(workSvc,
		pipeline.NewAggregator(fhirClient),
		pipeline.NewIntelligenceClient(cfg.IntelligenceURL),
		hub, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"poller":      poller.Status().Running,
			"subscribers": hub.SubscriberCount(),
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg)
	} else {
		authMW = auth.JWTMiddleware(jwtCfg)
	}
	api := e.Group("/api/v1", authMW)

	registry.NewHandler(regSvc).RegisterRoutes(api)
	workitem.NewHandler(workSvc).RegisterRoutes(api)
	encounter.NewHandler(poller).RegisterRoutes(api)
	notification.NewStreamHandler(hub, logger).RegisterRoutes(api)
	websocket.NewHandler(hub, logger).RegisterRoutes(api)

	return &app{echo: e, hub: hub, poller: poller, processor: processor, logger: logger}
}

// run serves HTTP and runs the poller and processor until ctx is cancelled
// or one of them fails.
func (a *app) run(ctx context.Context, addr string) error {
	g, gctx := errgroup.WithContext(ctx)

	// Request contexts end on shutdown so open SSE streams return.
	a.echo.Server.BaseContext = func(net.Listener) context.Context { return gctx }

	g.Go(func() error {
		defer a.poller.Close()
		return a.poller.Run(gctx)
	})
	g.Go(func() error {
		return a.processor.Run(gctx, a.poller.Events())
	})
	g.Go(func() error {
		a.logger.Info().Str("addr", addr).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.echo.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if err != nil {
		a.logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	a.logger.Info().Msg("server stopped")
	return nil
}
