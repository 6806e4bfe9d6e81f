package profile

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"github.com/rennerdo30/gateway-switcher/internal/matcher"
)

// DefaultRuleProxyPort is used for rules that do not set custom_proxy_port.
const DefaultRuleProxyPort = 8080

// RouteRule overrides gateway, proxy or DNS handling for the domains its
// pattern covers. Disabled rules have no effect anywhere.
type RouteRule struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Pattern     string       `json:"pattern"`
	MatchType   matcher.Type `json:"match_type"`
	Enabled     bool         `json:"enabled"`

	UseCustomGateway bool   `json:"use_custom_gateway"`
	CustomGateway    string `json:"custom_gateway"`

	// BypassProxy wins over UseCustomProxy when both are set.
	BypassProxy       bool   `json:"bypass_proxy"`
	UseCustomProxy    bool   `json:"use_custom_proxy"`
	CustomProxyServer string `json:"custom_proxy_server"`
	CustomProxyPort   int    `json:"custom_proxy_port"`

	// Stored and round-tripped only. Nothing consumes these yet.
	UseCustomDNS bool   `json:"use_custom_dns"`
	CustomDNS    string `json:"custom_dns"`
}

// NewRouteRule returns an enabled suffix rule with a fresh identifier.
func NewRouteRule() RouteRule {
	return RouteRule{
		ID:              uuid.NewString(),
		MatchType:       matcher.TypeSuffix,
		Enabled:         true,
		CustomProxyPort: DefaultRuleProxyPort,
	}
}

// UnmarshalJSON fills fields missing from data with NewRouteRule defaults.
func (r *RouteRule) UnmarshalJSON(data []byte) error {
	type plain RouteRule
	p := plain(NewRouteRule())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = RouteRule(p)
	return nil
}

// Matcher compiles the rule's pattern.
func (r RouteRule) Matcher() matcher.Matcher {
	return matcher.Compile(r.MatchType, r.Pattern)
}

// Matches reports whether domain is covered by the pattern. It ignores Enabled.
func (r RouteRule) Matches(domain string) bool {
	return r.Matcher().Match(domain)
}

// HasGatewayOverride reports whether matching traffic should be routed
// through CustomGateway.
func (r RouteRule) HasGatewayOverride() bool {
	return r.UseCustomGateway && r.CustomGateway != ""
}

// HasCustomProxy reports whether the rule redirects to its own proxy.
// It is false when BypassProxy is set.
func (r RouteRule) HasCustomProxy() bool {
	return !r.BypassProxy && r.UseCustomProxy && r.CustomProxyServer != ""
}

// HasProxyOverride reports whether the rule changes the proxy decision.
func (r RouteRule) HasProxyOverride() bool {
	return r.BypassProxy || r.HasCustomProxy()
}

// CustomProxyAddress returns server:port for the rule's proxy.
func (r RouteRule) CustomProxyAddress() string {
	return r.CustomProxyServer + ":" + strconv.Itoa(r.CustomProxyPort)
}

// DisplayName is Name, or Pattern when the rule is unnamed.
func (r RouteRule) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Pattern
}

// FirstMatch returns the first enabled rule in rules that matches domain.
// Earlier rules shadow later ones.
func FirstMatch(rules []RouteRule, domain string) (RouteRule, bool) {
	for _, r := range rules {
		if r.Enabled && r.Matches(domain) {
			return r, true
		}
	}
	return RouteRule{}, false
}

// Enabled filters rules down to the enabled ones, keeping order.
func Enabled(rules []RouteRule) []RouteRule {
	out := make([]RouteRule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// CloneRules copies rules. Identifiers are kept only when preserveIDs is set.
func CloneRules(rules []RouteRule, preserveIDs bool) []RouteRule {
	if rules == nil {
		return nil
	}
	out := make([]RouteRule, len(rules))
	copy(out, rules)
	if !preserveIDs {
		for i := range out {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}
