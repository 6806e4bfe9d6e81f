package manager

import (
	"context"
	"fmt"

	"github.com/rennerdo30/gateway-switcher/internal/adapter"
	"github.com/rennerdo30/gateway-switcher/internal/bypass"
	"github.com/rennerdo30/gateway-switcher/internal/logging"
	"github.com/rennerdo30/gateway-switcher/internal/profile"
	"github.com/rennerdo30/gateway-switcher/internal/result"
	"github.com/rennerdo30/gateway-switcher/internal/routes"
)

// Apply configures the system for the referenced profile: adapter settings,
// the system proxy, host routes and the PAC script. Route problems are
// reported in the message and never fail the apply.
func (m *Manager) Apply(ctx context.Context, ref string) (res result.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	defer func() { m.metrics.RecordApply(res.Success) }()

	i, err := m.lookup(ref)
	if err != nil {
		return result.Fail("Profile not found.")
	}
	p := m.coll.Profiles[i].Copy()
	logger := m.logger.With("profile", p.Name, "profile_id", p.ID)
	ctx = logging.WithContext(ctx, logger)

	ns := p.NetworkSettings
	if ns.AdapterName == "" {
		ns.AdapterName = m.coll.Settings.SelectedAdapterName
	}
	if ns.AdapterName == "" {
		ns.AdapterName = m.defaultAdapter
	}

	if r := adapter.ApplySettings(ctx, m.adapters, ns); !r.Success {
		logger.Warn("network settings failed", "adapter", ns.AdapterName, "reason", r.Message)
		return r
	}

	ps := p.ProxySettings
	if ps.Enabled {
		if domains := bypass.BuildDomains(p.RouteRules); len(domains) > 0 {
			ps.BypassList = bypass.Merge(ps.BypassList, domains)
		}
	}

	m.clearPrevious(ctx, p.ID)
	m.coll.AppliedRules = nil

	if r := m.proxy.Apply(ps); !r.Success {
		logger.Warn("proxy settings failed", "reason", r.Message)
		return result.Fail("Network settings applied but proxy failed: " + r.Message)
	}

	routeRes := m.routes.Apply(ctx, p.RouteRules, routes.Defaults{
		Gateway:      ns.Gateway,
		ProxyEnabled: ps.Enabled,
		ProxyServer:  ps.ProxyServer,
		ProxyPort:    ps.ProxyPort,
	})
	if routeRes.Success {
		logger.Debug("route rules applied", "result", routeRes.Message)
	} else {
		logger.Warn("route rules warning", "result", routeRes.Message)
	}

	m.syncAutoConfig(ctx)

	m.coll.ActiveProfileID = p.ID
	m.coll.AppliedRules = routes.GatewayRules(profile.Enabled(p.RouteRules))
	if err := m.save(); err != nil {
		logger.Warn("failed to persist active profile", "error", err)
	}

	logger.Info("profile applied", "adapter", ns.AdapterName, "rules", len(p.RouteRules))

	msg := fmt.Sprintf("Profile '%s' applied successfully.", p.Name)
	if len(p.RouteRules) > 0 {
		msg += " " + routeRes.Message
	}
	return result.OK(msg)
}

// clearPrevious removes the host routes installed by the last apply. The
// snapshot is used rather than the stored profile, which may have been edited
// or deleted since.
func (m *Manager) clearPrevious(ctx context.Context, nextID string) {
	if len(m.coll.AppliedRules) == 0 {
		return
	}
	r := m.routes.Clear(ctx, m.coll.AppliedRules)
	logging.FromContext(ctx).Debug("previous routes cleared",
		"previous_profile_id", m.coll.ActiveProfileID,
		"reapply", m.coll.ActiveProfileID == nextID,
		"result", r.Message,
	)
}

// syncAutoConfig points the system auto-config URL at the PAC artifact while
// one exists and removes it otherwise.
func (m *Manager) syncAutoConfig(ctx context.Context) {
	url, ok := m.routes.PACURL()
	if !ok {
		url = ""
	}
	if err := m.proxy.SetAutoConfigURL(url); err != nil {
		logging.FromContext(ctx).Warn("failed to update auto-config URL", "url", url, "error", err)
	}
}
