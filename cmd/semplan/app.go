package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360studio/semplan/config"
	"github.com/c360studio/semplan/server"
	"github.com/c360studio/semplan/storage"
	"github.com/c360studio/semplan/tools"
	"github.com/c360studio/semplan/workflow"
)

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	nats *server.NATSConnection
	js   jetstream.JetStream

	// Storage
	planStore storage.Store

	// Workflow
	catalog *workflow.Catalog
	watcher *workflow.CatalogWatcher
	manager *workflow.Manager

	// Tools
	registry *prometheus.Registry
	executor tools.Executor

	// Servers
	natsServer    *server.NATSServer
	metricsServer *server.MetricsServer
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Start initializes storage, the workflow catalog and the tool executor chain.
// Servers are started separately by Serve.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.UsesNATS() {
		if err := a.startNATS(ctx); err != nil {
			return fmt.Errorf("start NATS: %w", err)
		}
	}

	store, err := a.openPlanStore(ctx)
	if err != nil {
		return fmt.Errorf("initialize plan storage: %w", err)
	}
	a.planStore = store

	if err := a.startCatalog(ctx); err != nil {
		return fmt.Errorf("initialize workflow catalog: %w", err)
	}

	managerOpts := []workflow.ManagerOption{workflow.WithLogger(a.logger)}
	if key, ok := a.catalogKeyInPlanStore(); ok {
		managerOpts = append(managerOpts, workflow.WithExcludedKeys(key))
	}
	a.manager = workflow.NewManager(a.planStore, a.catalog, managerOpts...)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry, err := tools.NewRegistry(tools.NewPlanExecutor(a.manager))
	if err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	a.executor = tools.NewRecordingExecutor(registry, tools.NewMetrics(a.registry), a.logger)

	a.logger.Debug("Components initialized",
		"backend", a.cfg.Plans.Backend,
		"workflows", a.catalogPath(),
		"tools", len(a.executor.ListTools()))
	return nil
}

func (a *App) startNATS(_ context.Context) error {
	conn, err := server.ConnectNATS(a.cfg.NATS.URL, a.cfg.NATS.Embedded, a.cfg.NATS.StoreDir, a.logger)
	if err != nil {
		return err
	}
	a.nats = conn

	js, err := jetstream.New(conn.Conn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js
	return nil
}

func (a *App) openPlanStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Plans.Backend {
	case config.BackendNATS:
		return storage.NewKVStore(ctx, a.js, a.cfg.NATS.Bucket)
	default:
		return storage.NewFileStore(a.cfg.ResolvePath(a.cfg.Plans.Dir)), nil
	}
}

func (a *App) catalogPath() string {
	return a.cfg.ResolvePath(a.cfg.Workflows.File)
}

// catalogKeyInPlanStore returns the catalog's key in the plan store when
// the file backend keeps plans in the catalog's directory.
func (a *App) catalogKeyInPlanStore() (string, bool) {
	if a.cfg.Plans.Backend != config.BackendFile {
		return "", false
	}
	path := a.catalogPath()
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(a.cfg.ResolvePath(a.cfg.Plans.Dir)) {
		return "", false
	}
	return filepath.Base(path), true
}

func (a *App) startCatalog(ctx context.Context) error {
	path := a.catalogPath()
	watch := a.cfg.Workflows.WatchEnabled()

	a.catalog = workflow.NewCatalog(
		storage.NewFileStore(filepath.Dir(path)),
		filepath.Base(path),
		workflow.WithCatalogLogger(a.logger),
		workflow.WithCatalogCache(watch),
	)
	if !watch {
		return nil
	}

	w, err := workflow.NewCatalogWatcher(a.catalog, path, a.logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return err
	}
	a.watcher = w
	return nil
}

// Executor returns the instrumented tool executor.
func (a *App) Executor() tools.Executor {
	return a.executor
}

// RemoteExecutor returns an executor that forwards calls to a running
// semplan server over NATS.
func (a *App) RemoteExecutor() (tools.Executor, error) {
	if a.nats == nil {
		return nil, errors.New("NATS is not configured")
	}
	return server.NewClient(a.nats.Conn, a.cfg.NATS.SubjectPrefix, a.cfg.NATS.RequestTimeout), nil
}

// StartMetrics starts the Prometheus endpoint when metrics.addr is set.
func (a *App) StartMetrics() error {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}
	m := server.NewMetricsServer(a.cfg.Metrics.Addr, a.registry, a.logger)
	if err := m.Start(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	a.metricsServer = m
	return nil
}

// Serve runs the configured tool transport until ctx is cancelled or the
// stdio peer disconnects.
func (a *App) Serve(ctx context.Context, stdio StdioStreams) error {
	switch a.cfg.Server.Transport {
	case config.TransportNATS:
		s := server.NewNATSServer(a.nats.Conn, a.executor,
			server.WithSubjectPrefix(a.cfg.NATS.SubjectPrefix),
			server.WithRequestTimeout(a.cfg.NATS.RequestTimeout),
			server.WithNATSLogger(a.logger),
		)
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start NATS tool server: %w", err)
		}
		a.natsServer = s
		<-ctx.Done()
		return nil
	default:
		s, err := server.NewMCPServer(a.cfg.Server.Name, a.executor)
		if err != nil {
			return err
		}
		a.logger.Info("Serving tools over MCP stdio", "name", a.cfg.Server.Name)
		return server.ServeStdio(ctx, s, stdio.In, stdio.Out, a.logger)
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.natsServer != nil {
		errs = append(errs, a.natsServer.Stop())
	}
	if a.metricsServer != nil {
		errs = append(errs, a.metricsServer.Shutdown(ctx))
	}
	if a.watcher != nil {
		errs = append(errs, a.watcher.Stop())
	}
	if a.nats != nil {
		a.nats.Close()
	}
	return errors.Join(errs...)
}
