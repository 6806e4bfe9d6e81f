// Package bypass derives OS proxy bypass entries from route rules.
package bypass

import (
	"strings"

	"github.com/rennerdo30/gateway-switcher/internal/matcher"
	"github.com/rennerdo30/gateway-switcher/internal/profile"
)

// Separator joins entries of a Windows-style bypass list.
const Separator = ";"

// Entries returns the bypass entries for a single rule. The OS bypass syntax
// has no implicit subdomain matching, so a suffix rule yields both the
// wildcard and the bare domain.
func Entries(r profile.RouteRule) []string {
	p := r.Pattern
	if p == "" {
		return nil
	}
	switch r.MatchType {
	case matcher.TypeSuffix:
		return []string{"*." + p, p}
	case matcher.TypeExact:
		return []string{p}
	case matcher.TypeContains:
		return []string{"*" + p + "*"}
	default:
		return []string{p}
	}
}

// BuildDomains returns the entries of every enabled rule with bypass_proxy set,
// in rule order and without duplicates.
func BuildDomains(rules []profile.RouteRule) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range rules {
		if !r.Enabled || !r.BypassProxy {
			continue
		}
		for _, e := range Entries(r) {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// Split breaks a bypass list into trimmed, non-empty entries.
func Split(list string) []string {
	var out []string
	for _, e := range strings.Split(list, Separator) {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Merge appends domains to the existing list. Existing entries keep their
// position; duplicates are dropped by plain string comparison.
func Merge(existing string, domains []string) string {
	entries := Split(existing)
	seen := make(map[string]struct{}, len(entries)+len(domains))
	out := make([]string, 0, len(entries)+len(domains))
	for _, e := range append(entries, domains...) {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return strings.Join(out, Separator)
}
