// Package app wires configuration, the host bridge, the engine, execution
// history and the HTTP surface into a runnable service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/hostrunner/internal/api"
	"github.com/seantiz/hostrunner/internal/config"
	"github.com/seantiz/hostrunner/internal/engine"
	"github.com/seantiz/hostrunner/internal/globalctx"
	"github.com/seantiz/hostrunner/internal/hostbridge"
	"github.com/seantiz/hostrunner/internal/model"
	"github.com/seantiz/hostrunner/internal/operation"
	"github.com/seantiz/hostrunner/internal/store"
)

// reconnector is implemented by transports that maintain their own
// connection.
type reconnector interface {
	KeepConnected(ctx context.Context, interval time.Duration) error
}

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	transport hostbridge.Transport
	client    *hostbridge.Client
	store     store.Store
	bus       evbus.Bus
	globals   *globalctx.Store
	registry  *operation.Registry
	engine    *engine.Engine
	broker    *engine.EventBroker
	ledger    *hostbridge.EventLedger
	server    *api.Server
}

// New builds the application. A nil transport is replaced by a websocket
// transport to cfg.BridgeURL, or left nil when no bridge is configured, in
// which case every submission is dropped as host-unreachable.
func New(cfg config.Config, transport hostbridge.Transport, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if transport == nil && cfg.BridgeURL != "" {
		transport = hostbridge.NewWebSocketTransport(cfg.BridgeURL, cfg.BridgeDialTimeout, logger)
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		transport: transport,
		client:    hostbridge.NewClient(transport, logger),
		store:     db,
		bus:       evbus.New(),
		globals:   globalctx.New(),
		broker:    engine.NewEventBroker(),
	}

	a.registry, err = operation.NewDefaultRegistry(a.client, a.globals)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("register operations: %w", err)
	}

	if err := store.NewRecorder(db, logger).Attach(a.bus); err != nil {
		db.Close()
		return nil, fmt.Errorf("attach recorder: %w", err)
	}
	if err := a.broker.Attach(a.bus); err != nil {
		db.Close()
		return nil, fmt.Errorf("attach event broker: %w", err)
	}

	a.ledger = hostbridge.NewEventLedger(a.publishHostEvent)
	a.client.OnEvent(func(ev hostbridge.HostEvent) {
		a.ledger.Record(ev)
	})

	a.engine = engine.New(a.registry, a.client, a.globals, a.bus, logger,
		engine.WithTimeout(cfg.OperationTimeout))

	a.server = api.NewServer(cfg.ListenAddr, api.Deps{
		Registry: a.registry,
		Engine:   a.engine,
		Store:    db,
		Globals:  a.globals,
		Broker:   a.broker,
		Ledger:   a.ledger,
		Bridge:   a.client,
		Logger:   logger,
	})
	return a, nil
}

// Engine returns the operation engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Server returns the HTTP server.
func (a *App) Server() *api.Server { return a.server }

// Run serves until ctx is cancelled or a component fails, then releases
// every resource.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("hostrunner starting",
		"listen_addr", a.cfg.ListenAddr,
		"db_path", a.cfg.DBPath,
		"bridge_url", a.cfg.BridgeURL,
		"operation_timeout", a.engine.Timeout(),
		"operations", len(a.registry.List()),
	)
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	if rc, ok := a.transport.(reconnector); ok {
		g.Go(func() error {
			return rc.KeepConnected(gctx, a.cfg.BridgeReconnect)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("hostrunner stopped")
	return nil
}

// close tears down in dependency order. Closing the bridge first makes any
// still-queued operation fail fast instead of waiting out its deadline.
func (a *App) close() {
	if err := a.client.Close(); err != nil {
		a.logger.Warn("close host bridge", "error", err)
	}
	a.engine.Wait()
	a.bus.WaitAsync()
	a.broker.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}

func (a *App) publishHostEvent(rec hostbridge.EventRecord) {
	a.logger.Debug("host event", "name", rec.Name, "value", rec.SimpleDisplayValue)
	a.bus.Publish(model.TopicHostEvent, model.Event{
		Type:               model.EventHost,
		Operation:          rec.Name,
		Data:               rec.Value,
		SimpleDisplayValue: rec.SimpleDisplayValue,
		At:                 rec.ReceivedAt,
	})
}
