// Package routeplan resolves gateway-override rules into host routes.
package routeplan

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/rennerdo30/gateway-switcher/internal/profile"
	"github.com/rennerdo30/gateway-switcher/internal/resolver"
)

// Route is a host route for a single IPv4 address through a gateway.
type Route struct {
	Address netip.Addr
	Gateway string
	RuleID  string
	Pattern string
}

// Destination returns the route's destination prefix (full-length mask).
func (r Route) Destination() netip.Prefix {
	return netip.PrefixFrom(r.Address, r.Address.BitLen())
}

// Plan is the result of resolving a rule set. Warnings hold per-rule
// resolution failures and gateway conflicts; they never invalidate the rest
// of the plan.
type Plan struct {
	Routes   []Route
	Warnings []string
	// Unresolved counts the rules whose pattern did not resolve.
	Unresolved int
}

// Planner builds plans. It never touches the routing table.
type Planner struct {
	resolver resolver.Resolver
}

// New creates a planner that resolves names through r.
func New(r resolver.Resolver) *Planner {
	return &Planner{resolver: r}
}

// Plan resolves every rule with a gateway override, in rule order. Callers
// choose whether disabled rules are included. An address claimed by an
// earlier rule is not planned again; a later claim through a different
// gateway is reported as a warning.
func (p *Planner) Plan(ctx context.Context, rules []profile.RouteRule) Plan {
	var plan Plan
	claimed := make(map[netip.Addr]Route)
	for _, r := range rules {
		if !r.HasGatewayOverride() {
			continue
		}
		if err := ctx.Err(); err != nil {
			plan.Warnings = append(plan.Warnings, "Error processing "+r.Pattern+": "+err.Error())
			plan.Unresolved++
			continue
		}
		addrs := p.resolver.ResolveIPv4(ctx, r.Pattern)
		if len(addrs) == 0 {
			plan.Warnings = append(plan.Warnings, "Could not resolve "+r.Pattern)
			plan.Unresolved++
			continue
		}
		for _, a := range addrs {
			if prev, ok := claimed[a]; ok {
				if prev.Gateway != r.CustomGateway {
					plan.Warnings = append(plan.Warnings, fmt.Sprintf(
						"Ignored gateway %s for %s (%s): already routed via %s by %s",
						r.CustomGateway, r.Pattern, a, prev.Gateway, prev.Pattern))
				}
				continue
			}
			route := Route{
				Address: a,
				Gateway: r.CustomGateway,
				RuleID:  r.ID,
				Pattern: r.Pattern,
			}
			claimed[a] = route
			plan.Routes = append(plan.Routes, route)
		}
	}
	return plan
}
