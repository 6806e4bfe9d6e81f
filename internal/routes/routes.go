// Package routes applies a profile's route rules to the system: host routes
// through custom gateways and the generated PAC script.
package routes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rennerdo30/gateway-switcher/internal/artifact"
	"github.com/rennerdo30/gateway-switcher/internal/bypass"
	"github.com/rennerdo30/gateway-switcher/internal/logging"
	"github.com/rennerdo30/gateway-switcher/internal/metrics"
	"github.com/rennerdo30/gateway-switcher/internal/pac"
	"github.com/rennerdo30/gateway-switcher/internal/profile"
	"github.com/rennerdo30/gateway-switcher/internal/resolver"
	"github.com/rennerdo30/gateway-switcher/internal/result"
	"github.com/rennerdo30/gateway-switcher/internal/routeplan"
	"github.com/rennerdo30/gateway-switcher/internal/sysroute"
)

// maxReportedErrors caps the errors quoted in a route failure message.
const maxReportedErrors = 3

// Defaults are the profile-wide settings rules fall back to.
type Defaults struct {
	// Gateway is the adapter's default gateway. Host routes always use the
	// rule's own gateway; this is informational.
	Gateway      string
	ProxyEnabled bool
	ProxyServer  string
	ProxyPort    int
}

func (d Defaults) pac() pac.Default {
	return pac.Default{Enabled: d.ProxyEnabled, Server: d.ProxyServer, Port: d.ProxyPort}
}

// Service orchestrates the planner, the routing table and the PAC sink.
// Calls must be serialized by the caller.
type Service struct {
	planner *routeplan.Planner
	table   sysroute.Table
	sink    artifact.Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records route and PAC activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service.
func New(r resolver.Resolver, table sysroute.Table, sink artifact.Sink, opts ...Option) *Service {
	s := &Service{
		planner: routeplan.New(r),
		table:   table,
		sink:    sink,
		logger:  logging.WithComponent("routes"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GatewayRules returns the rules with an active gateway override.
func GatewayRules(rules []profile.RouteRule) []profile.RouteRule {
	var out []profile.RouteRule
	for _, r := range rules {
		if r.HasGatewayOverride() {
			out = append(out, r)
		}
	}
	return out
}

// ProxyRules returns the rules that contribute a PAC clause. A rule may be
// both a gateway rule and a proxy rule.
func ProxyRules(rules []profile.RouteRule) []profile.RouteRule {
	var out []profile.RouteRule
	for _, r := range rules {
		if r.HasProxyOverride() {
			out = append(out, r)
		}
	}
	return out
}

// BypassDomains returns the proxy bypass entries derived from rules.
func (s *Service) BypassDomains(rules []profile.RouteRule) []string {
	return bypass.BuildDomains(rules)
}

// PACURL returns the URL of the PAC artifact when one exists.
func (s *Service) PACURL() (string, bool) {
	if !s.sink.Exists() {
		return "", false
	}
	return s.sink.URL(), true
}

// Apply converges host routes and the PAC artifact to rules.
//
// Route and PAC problems are reported in the message only: the result is
// successful whenever the steps ran, so a partial failure never blocks the
// rest of a profile. Success is false only when the orchestration itself
// breaks.
func (s *Service) Apply(ctx context.Context, rules []profile.RouteRule, def Defaults) (res result.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("route application panicked", "panic", r)
			res = result.Failf("Failed to apply route rules: %v", r)
		}
	}()

	if len(rules) == 0 {
		s.removePAC()
		return result.OK("No route rules to apply.")
	}

	enabled := profile.Enabled(rules)
	if len(enabled) == 0 {
		s.removePAC()
		return result.OK("No enabled route rules to apply.")
	}

	s.logger.Debug("applying route rules",
		"rules", len(rules),
		"enabled", len(enabled),
		"default_gateway", def.Gateway,
	)

	var messages []string

	if gw := GatewayRules(enabled); len(gw) > 0 {
		r := s.addRoutes(ctx, gw)
		messages = append(messages, r.Message)
	}

	if pr := ProxyRules(enabled); len(pr) > 0 {
		r := s.writePAC(pr, def)
		messages = append(messages, r.Message)
	} else {
		s.removePAC()
	}

	if len(messages) == 0 {
		return result.OK("Route rules applied.")
	}
	return result.OK(strings.Join(messages, " | "))
}

// Clear removes the host routes of every gateway rule, enabled or not.
// Individual removal failures are logged and never fail the call.
func (s *Service) Clear(ctx context.Context, rules []profile.RouteRule) result.Result {
	plan := s.planner.Plan(ctx, GatewayRules(rules))
	s.metrics.RecordResolveFailures(plan.Unresolved)

	removed := s.removeRoutes(ctx, plan.Routes)
	if removed > 0 {
		return result.OK(fmt.Sprintf("Removed %d static route(s).", removed))
	}
	return result.OK("No routes to remove.")
}

func (s *Service) addRoutes(ctx context.Context, rules []profile.RouteRule) result.Result {
	plan := s.planner.Plan(ctx, rules)
	s.metrics.RecordResolveFailures(plan.Unresolved)

	errs := append([]string(nil), plan.Warnings...)
	added := 0
	for _, route := range plan.Routes {
		if err := s.table.AddHostRoute(ctx, route.Address, route.Gateway); err != nil {
			s.metrics.RecordRouteError(metrics.OpAdd)
			s.logger.Warn("failed to add route",
				"address", route.Address,
				"gateway", route.Gateway,
				"pattern", route.Pattern,
				"error", err,
			)
			errs = append(errs, fmt.Sprintf("Failed to add route for %s: %v", route.Address, err))
			continue
		}
		s.metrics.RecordRouteAdded()
		s.logger.Debug("route added", "address", route.Address, "gateway", route.Gateway)
		added++
	}

	switch {
	case added > 0:
		msg := fmt.Sprintf("Added %d static route(s).", added)
		if len(errs) > 0 {
			msg += fmt.Sprintf(" Errors: %d", len(errs))
		}
		return result.OK(msg)
	case len(errs) > 0:
		if len(errs) > maxReportedErrors {
			errs = errs[:maxReportedErrors]
		}
		return result.Fail("Route errors: " + strings.Join(errs, "; "))
	default:
		return result.OK("No gateway routes to add.")
	}
}

func (s *Service) removeRoutes(ctx context.Context, routes []routeplan.Route) int {
	removed := 0
	for _, route := range routes {
		if err := s.table.RemoveHostRoute(ctx, route.Address); err != nil {
			s.metrics.RecordRouteError(metrics.OpRemove)
			s.logger.Debug("failed to remove route", "address", route.Address, "error", err)
			continue
		}
		s.metrics.RecordRouteRemoved()
		removed++
	}
	return removed
}

func (s *Service) writePAC(rules []profile.RouteRule, def Defaults) result.Result {
	script, err := pac.Generate(rules, def.pac())
	if err != nil {
		s.logger.Warn("failed to render PAC file", "error", err)
		return result.Fail(fmt.Sprintf("Failed to create PAC file: %v", err))
	}
	if err := s.sink.WritePAC(script); err != nil {
		s.logger.Warn("failed to write PAC file", "error", err)
		return result.Fail(fmt.Sprintf("Failed to create PAC file: %v", err))
	}
	s.metrics.RecordPACWrite()
	location := s.sink.URL()
	if f, ok := s.sink.(interface{ Path() string }); ok {
		location = f.Path()
	}
	return result.OK("PAC file created: " + location)
}

func (s *Service) removePAC() {
	if !s.sink.Exists() {
		return
	}
	if err := s.sink.RemovePAC(); err != nil {
		s.logger.Warn("failed to remove PAC file", "error", err)
		return
	}
	s.metrics.RecordPACRemoval()
}
