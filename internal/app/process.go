package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/hodwatch/internal/config"
	"github.com/rickgao/hodwatch/internal/metrics"
	"github.com/rickgao/hodwatch/internal/store"
	"github.com/rickgao/hodwatch/internal/version"
)

// Process carries what every hodwatch binary builds at startup.
type Process struct {
	Name     string
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Store    store.Store // nil until OpenStore

	// MetricsAddr is the health and metrics listen address. MetricsOff
	// disables the server.
	MetricsAddr string
}

// MetricsOff disables the health and metrics server.
const MetricsOff = "off"

// ListenAddr picks the listen address for one component: the override
// (usually a flag) wins, then the component's own port, then the shared
// metrics.port.
func ListenAddr(override string, componentPort, sharedPort int) string {
	switch {
	case override != "":
		return override
	case componentPort > 0:
		return fmt.Sprintf(":%d", componentPort)
	default:
		return fmt.Sprintf(":%d", sharedPort)
	}
}

// Setup loads and validates the config, installs the logger as the slog
// default and registers metrics. Any error is a configuration failure.
func Setup(name, configPath string) (*Process, error) {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := NewLogger(cfg.Logging, os.Stdout).With("instance_id", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting "+name,
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Process{
		Name:     name,
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.New(reg),

		MetricsAddr: ListenAddr("", 0, cfg.Metrics.Port),
	}, nil
}

// OpenStore connects the configured store.
func (p *Process) OpenStore(ctx context.Context) error {
	st, err := OpenStore(ctx, p.Config.Database, p.Logger)
	if err != nil {
		return err
	}
	p.Store = st
	return nil
}

// Run runs worker next to the health and metrics server until ctx is
// cancelled or either of them fails.
func (p *Process) Run(ctx context.Context, worker func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	stop, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return worker(stop)
	})

	if p.MetricsAddr != "" && p.MetricsAddr != MetricsOff {
		var pinger Pinger = noopPinger{}
		if p.Store != nil {
			pinger = p.Store
		}
		srv := &http.Server{
			Addr:    p.MetricsAddr,
			Handler: NewHealthHandler(pinger, p.Registry, p.Config.Metrics.Path, p.Logger),
		}
		g.Go(func() error {
			return ServeHTTP(stop, srv, p.Logger)
		})
	} else {
		p.Logger.Info("health server disabled")
	}

	err := g.Wait()
	p.Logger.Info(p.Name + " stopped")
	return err
}

// Close releases the store, if open.
func (p *Process) Close() {
	if p.Store != nil {
		p.Store.Close()
	}
}

type noopPinger struct{}

func (noopPinger) Ping(context.Context) error { return nil }
