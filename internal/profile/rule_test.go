package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennerdo30/gateway-switcher/internal/matcher"
)

func rule(id, pattern string, kind matcher.Type) RouteRule {
	return RouteRule{ID: id, Pattern: pattern, MatchType: kind, Enabled: true}
}

func TestNewRouteRuleDefaults(t *testing.T) {
	r := NewRouteRule()

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, matcher.TypeSuffix, r.MatchType)
	assert.True(t, r.Enabled)
	assert.Equal(t, DefaultRuleProxyPort, r.CustomProxyPort)
	assert.NotEqual(t, r.ID, NewRouteRule().ID)
}

func TestFirstMatch_EarliestEnabledWins(t *testing.T) {
	first := rule("1", "a.com", matcher.TypeExact)
	first.BypassProxy = true
	second := rule("2", "a.com", matcher.TypeExact)
	second.UseCustomProxy = true
	second.CustomProxyServer = "p"
	second.CustomProxyPort = 1

	got, ok := FirstMatch([]RouteRule{first, second}, "a.com")
	require.True(t, ok)
	assert.Equal(t, "1", got.ID)

	first.Enabled = false
	got, ok = FirstMatch([]RouteRule{first, second}, "a.com")
	require.True(t, ok)
	assert.Equal(t, "2", got.ID)
}

func TestFirstMatch_None(t *testing.T) {
	_, ok := FirstMatch(nil, "a.com")
	assert.False(t, ok)

	off := rule("1", "a.com", matcher.TypeSuffix)
	off.Enabled = false
	_, ok = FirstMatch([]RouteRule{off, off}, "a.com")
	assert.False(t, ok)

	_, ok = FirstMatch([]RouteRule{rule("1", "b.com", matcher.TypeSuffix)}, "a.com")
	assert.False(t, ok)
}

func TestFirstMatch_ShadowingAcrossKinds(t *testing.T) {
	rules := []RouteRule{
		rule("broad", "example.com", matcher.TypeSuffix),
		rule("narrow", "api.example.com", matcher.TypeExact),
	}

	got, ok := FirstMatch(rules, "api.example.com")
	require.True(t, ok)
	assert.Equal(t, "broad", got.ID)

	p := NetworkProfile{RouteRules: rules}
	got, ok = p.FirstMatch("www.example.com")
	require.True(t, ok)
	assert.Equal(t, "broad", got.ID)
}

func TestProxyOverridePriority(t *testing.T) {
	r := rule("1", "a.com", matcher.TypeExact)
	assert.False(t, r.HasProxyOverride())

	r.UseCustomProxy = true
	assert.False(t, r.HasCustomProxy(), "custom proxy without server")

	r.CustomProxyServer = "10.0.0.5"
	r.CustomProxyPort = 3128
	assert.True(t, r.HasCustomProxy())
	assert.Equal(t, "10.0.0.5:3128", r.CustomProxyAddress())

	r.BypassProxy = true
	assert.False(t, r.HasCustomProxy(), "bypass wins")
	assert.True(t, r.HasProxyOverride())
}

func TestHasGatewayOverride(t *testing.T) {
	r := rule("1", "a.com", matcher.TypeExact)
	r.UseCustomGateway = true
	assert.False(t, r.HasGatewayOverride())

	r.CustomGateway = "192.168.2.1"
	assert.True(t, r.HasGatewayOverride())

	r.UseCustomGateway = false
	assert.False(t, r.HasGatewayOverride())
}

func TestRouteRuleJSONRoundTrip(t *testing.T) {
	in := RouteRule{
		ID:                "8b0f",
		Name:              "corp",
		Description:       "intranet",
		Pattern:           `^intra\d+`,
		MatchType:         matcher.TypeRegex,
		Enabled:           false,
		UseCustomGateway:  true,
		CustomGateway:     "10.1.0.1",
		BypassProxy:       true,
		UseCustomProxy:    true,
		CustomProxyServer: "proxy.corp",
		CustomProxyPort:   3128,
		UseCustomDNS:      true,
		CustomDNS:         "10.1.0.53",
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out RouteRule
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestRouteRuleJSONDefaults(t *testing.T) {
	var r RouteRule
	require.NoError(t, json.Unmarshal([]byte(`{"pattern":"example.com"}`), &r))

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "example.com", r.Pattern)
	assert.Equal(t, matcher.TypeSuffix, r.MatchType)
	assert.True(t, r.Enabled)
	assert.Equal(t, DefaultRuleProxyPort, r.CustomProxyPort)
}

func TestCloneRules(t *testing.T) {
	rules := []RouteRule{rule("a", "x.com", matcher.TypeExact), rule("b", "y.com", matcher.TypeSuffix)}

	kept := CloneRules(rules, true)
	assert.Equal(t, rules, kept)
	kept[0].Pattern = "changed"
	assert.Equal(t, "x.com", rules[0].Pattern)

	fresh := CloneRules(rules, false)
	require.Len(t, fresh, 2)
	assert.NotEqual(t, "a", fresh[0].ID)
	assert.NotEqual(t, "b", fresh[1].ID)
	assert.Equal(t, "y.com", fresh[1].Pattern)

	assert.Nil(t, CloneRules(nil, false))
}

func TestEnabled(t *testing.T) {
	off := rule("b", "y.com", matcher.TypeSuffix)
	off.Enabled = false
	got := Enabled([]RouteRule{rule("a", "x.com", matcher.TypeExact), off, rule("c", "z.com", matcher.TypeExact)})

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestDisplayName(t *testing.T) {
	r := rule("a", "x.com", matcher.TypeExact)
	assert.Equal(t, "x.com", r.DisplayName())
	r.Name = "X"
	assert.Equal(t, "X", r.DisplayName())
}
