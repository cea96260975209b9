package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/http"
	"github.com/yungbote/mdr-backend/internal/observability"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Store    graphstore.Store
	Services Services
	Metrics  *observability.Metrics
	Server   *http.Server

	otelShutdown func(context.Context) error
}

// New loads configuration from the environment and wires every component.
func New(ctx context.Context) (*App, error) {
	log, err := logger.New(LoadConfig(nil).LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.Init(log)
	}

	clients, err := wireClients(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	store, err := wireStore(ctx, cfg, clients, log)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	services, err := wireServices(log, store, clients, metrics)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	handlers := wireHandlers(log, clients, services)
	server := wireServer(cfg, log, metrics, handlers)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Store:        store,
		Services:     services,
		Metrics:      metrics,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts the server down.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("Server listening", "port", a.Cfg.Port)
		return a.Server.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Log.Info("Shutting down server...")
		return a.Server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
