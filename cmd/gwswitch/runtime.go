package main

import (
	"fmt"

	"github.com/rennerdo30/gateway-switcher/internal/adapter"
	"github.com/rennerdo30/gateway-switcher/internal/api/server"
	"github.com/rennerdo30/gateway-switcher/internal/artifact"
	"github.com/rennerdo30/gateway-switcher/internal/config"
	"github.com/rennerdo30/gateway-switcher/internal/logging"
	"github.com/rennerdo30/gateway-switcher/internal/manager"
	"github.com/rennerdo30/gateway-switcher/internal/metrics"
	"github.com/rennerdo30/gateway-switcher/internal/profile"
	"github.com/rennerdo30/gateway-switcher/internal/resolver"
	"github.com/rennerdo30/gateway-switcher/internal/routes"
	"github.com/rennerdo30/gateway-switcher/internal/sysproxy"
	"github.com/rennerdo30/gateway-switcher/internal/sysroute"
)

// runtime is the wired application behind every local command.
type runtime struct {
	cfg      config.AppConfig
	manager  *manager.Manager
	adapters adapter.Configurator
	metrics  *metrics.Metrics
	pac      server.PACSource
}

// buildRuntime wires the platform backends described by cfg.
func buildRuntime(cfg config.AppConfig) (*runtime, error) {
	var mt *metrics.Metrics
	if cfg.Metrics.Enabled {
		mt = metrics.New()
	}

	timeout := cfg.Commands.Timeout.Duration()
	sink := artifact.NewFile(cfg.PACPath)
	rs := routes.New(
		resolver.New(cfg.Resolver.Upstream, cfg.Resolver.Timeout.Duration()),
		sysroute.NewSystem(timeout),
		sink,
		routes.WithMetrics(mt),
		routes.WithLogger(logging.WithComponent("routes")),
	)
	adapters := adapter.New(timeout)

	m := manager.New(
		profile.NewStore(cfg.ProfilesPath),
		adapters,
		sysproxy.New(),
		rs,
		manager.WithPasswordHash(cfg.DefaultProfilePasswordHash),
		manager.WithDefaultAdapter(cfg.Adapter),
		manager.WithMetrics(mt),
	)

	return &runtime{
		cfg:      cfg,
		manager:  m,
		adapters: adapters,
		metrics:  mt,
		pac:      sink,
	}, nil
}

// load reads the config, sets up logging and wires a runtime with its
// profiles loaded. A corrupt profiles file is logged and replaced by an
// empty collection.
func (a *app) load() (*runtime, error) {
	cfg, err := config.LoadApp(a.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	rt, err := a.build(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := rt.manager.Load(); err != nil {
		logging.Warn("failed to load profiles, starting empty", "path", cfg.ProfilesPath, "error", err)
	}
	return rt, nil
}
