package manager

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rennerdo30/gateway-switcher/internal/adapter"
	"github.com/rennerdo30/gateway-switcher/internal/artifact"
	"github.com/rennerdo30/gateway-switcher/internal/matcher"
	"github.com/rennerdo30/gateway-switcher/internal/metrics"
	"github.com/rennerdo30/gateway-switcher/internal/profile"
	"github.com/rennerdo30/gateway-switcher/internal/resolver"
	"github.com/rennerdo30/gateway-switcher/internal/result"
	"github.com/rennerdo30/gateway-switcher/internal/routes"
	"github.com/rennerdo30/gateway-switcher/internal/sysproxy"
	"github.com/rennerdo30/gateway-switcher/internal/sysroute"
	"github.com/rennerdo30/gateway-switcher/internal/util"
)

const pacURL = "file:///gwswitch/proxy.pac"

var hosts = map[string][]netip.Addr{
	"corp.lan":    {netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2")},
	"example.com": {netip.MustParseAddr("93.184.216.34")},
}

type env struct {
	m        *Manager
	store    *profile.Store
	adapters *adapter.Memory
	proxy    *sysproxy.Memory
	table    *sysroute.Memory
	sink     *artifact.Memory
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	e := &env{
		store: profile.NewStore(filepath.Join(t.TempDir(), "profiles.json")),
		adapters: adapter.NewMemory(adapter.Info{
			Name:        "Ethernet",
			Status:      "Up",
			IPAddress:   "192.168.1.20",
			SubnetMask:  "255.255.255.0",
			Gateway:     "192.168.1.1",
			DNSServers:  []string{"192.168.1.1"},
			DHCPEnabled: true,
		}),
		proxy: sysproxy.NewMemory(),
		table: sysroute.NewMemory(),
		sink:  &artifact.Memory{Location: pacURL},
	}
	res := resolver.Func(func(_ context.Context, host string) []netip.Addr {
		return hosts[strings.TrimLeft(host, "*.")]
	})
	rs := routes.New(res, e.table, e.sink)
	e.m = New(e.store, e.adapters, e.proxy, rs, opts...)
	require.NoError(t, e.m.Load())
	return e
}

func gatewayRule(pattern, gw string) profile.RouteRule {
	r := profile.NewRouteRule()
	r.Name = "gw " + pattern
	r.Pattern = pattern
	r.UseCustomGateway = true
	r.CustomGateway = gw
	return r
}

func bypassRule(pattern string, kind matcher.Type) profile.RouteRule {
	r := profile.NewRouteRule()
	r.Name = "bypass " + pattern
	r.Pattern = pattern
	r.MatchType = kind
	r.BypassProxy = true
	return r
}

func workProfile() profile.NetworkProfile {
	p := profile.New("Work")
	p.NetworkSettings.AdapterName = "Ethernet"
	p.ProxySettings.Enabled = true
	p.ProxySettings.ProxyServer = "proxy.corp"
	p.ProxySettings.ProxyPort = 3128
	p.ProxySettings.BypassList = "localhost"
	p.RouteRules = []profile.RouteRule{
		gatewayRule("corp.lan", "10.0.0.254"),
		bypassRule("example.com", matcher.TypeExact),
	}
	return p
}

func TestProfileCRUD(t *testing.T) {
	e := newEnv(t)

	work, err := e.m.Add(workProfile())
	require.NoError(t, err)
	_, err = e.m.Add(work)
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	got, err := e.m.Get("work")
	require.NoError(t, err)
	assert.Equal(t, work.ID, got.ID)

	_, err = e.m.Get("nope")
	assert.True(t, util.IsNotFound(err))

	got.Name = "Office"
	before := got.LastModified
	require.NoError(t, e.m.Update(got))
	updated, err := e.m.Get(work.ID)
	require.NoError(t, err)
	assert.Equal(t, "Office", updated.Name)
	assert.False(t, updated.LastModified.Before(before.Time))

	assert.True(t, util.IsNotFound(e.m.Update(profile.New("ghost"))))

	dup, err := e.m.Duplicate(work.ID)
	require.NoError(t, err)
	assert.Equal(t, "Office (Copy)", dup.Name)
	assert.NotEqual(t, work.ID, dup.ID)
	assert.Len(t, e.m.Profiles(), 2)

	// Persisted.
	reloaded := New(e.store, e.adapters, e.proxy, nil)
	require.NoError(t, reloaded.Load())
	assert.Len(t, reloaded.Profiles(), 2)
}

func TestProfilesReturnsCopies(t *testing.T) {
	e := newEnv(t)
	_, err := e.m.Add(workProfile())
	require.NoError(t, err)

	list := e.m.Profiles()
	list[0].RouteRules[0].Pattern = "mutated"

	got, err := e.m.Get("Work")
	require.NoError(t, err)
	assert.Equal(t, "corp.lan", got.RouteRules[0].Pattern)
}

func TestDelete(t *testing.T) {
	e := newEnv(t)

	def, created, err := e.m.InitializeFirstRun(context.Background(), "Ethernet")
	require.NoError(t, err)
	require.True(t, created)
	work, err := e.m.Add(workProfile())
	require.NoError(t, err)

	assert.ErrorIs(t, e.m.Delete(def.ID), util.ErrDefaultProfile)
	assert.True(t, util.IsNotFound(e.m.Delete("missing")))

	res := e.m.Apply(context.Background(), work.ID)
	require.True(t, res.Success, res.Message)

	require.NoError(t, e.m.Delete(work.ID))
	active, ok := e.m.Active()
	require.True(t, ok)
	assert.Equal(t, def.ID, active.ID)
}

func TestInitializeFirstRun(t *testing.T) {
	e := newEnv(t)
	require.True(t, e.proxy.Apply(profile.ProxySettings{
		Enabled:     true,
		ProxyServer: "proxy.corp",
		ProxyPort:   3128,
		BypassList:  "*.corp;<local>",
	}).Success)

	assert.True(t, e.m.IsFirstRun())
	p, created, err := e.m.InitializeFirstRun(context.Background(), "Ethernet")
	require.NoError(t, err)
	require.True(t, created)

	assert.Equal(t, DefaultProfileName, p.Name)
	assert.True(t, p.IsDefault)
	assert.Equal(t, "Ethernet", p.NetworkSettings.AdapterName)
	assert.Equal(t, "192.168.1.20", p.NetworkSettings.IPAddress)
	assert.True(t, p.ProxySettings.Enabled)
	assert.Equal(t, "proxy.corp", p.ProxySettings.ProxyServer)
	assert.Equal(t, 3128, p.ProxySettings.ProxyPort)
	assert.True(t, p.ProxySettings.BypassLocal)

	active, ok := e.m.Active()
	require.True(t, ok)
	assert.Equal(t, p.ID, active.ID)
	assert.False(t, e.m.IsFirstRun())
	assert.Equal(t, "Ethernet", e.m.Settings().SelectedAdapterName)

	_, created, err = e.m.InitializeFirstRun(context.Background(), "Ethernet")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, e.m.Profiles(), 1)
}

func TestUpdateDefaultFromSystem(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("ca26"), bcrypt.MinCost)
	require.NoError(t, err)

	e := newEnv(t, WithPasswordHash(string(hash)))
	ctx := context.Background()

	res := e.m.UpdateDefaultFromSystem(ctx, "ca26", "Ethernet")
	assert.Equal(t, result.Fail("No default profile found."), res)

	_, _, err = e.m.InitializeFirstRun(ctx, "Ethernet")
	require.NoError(t, err)

	res = e.m.UpdateDefaultFromSystem(ctx, "wrong", "Ethernet")
	assert.Equal(t, result.Fail("Invalid password. Default profile update denied."), res)

	require.True(t, e.adapters.SetStatic(ctx, "Ethernet", "10.1.1.5", "255.255.0.0", "10.1.0.1").Success)
	res = e.m.UpdateDefaultFromSystem(ctx, "ca26", "Ethernet")
	assert.Equal(t, result.OK("Default profile updated with current system settings."), res)

	def, err := e.m.Get(DefaultProfileName)
	require.NoError(t, err)
	assert.False(t, def.NetworkSettings.UseDHCP)
	assert.Equal(t, "10.1.1.5", def.NetworkSettings.IPAddress)
}

func TestUpdateDefaultFromSystem_NoHashConfigured(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.m.InitializeFirstRun(context.Background(), "Ethernet")
	require.NoError(t, err)

	res := e.m.UpdateDefaultFromSystem(context.Background(), "", "Ethernet")
	assert.False(t, res.Success)
}

func TestApply(t *testing.T) {
	mt := metrics.New()
	e := newEnv(t, WithMetrics(mt))
	work, err := e.m.Add(workProfile())
	require.NoError(t, err)

	res := e.m.Apply(context.Background(), "Work")
	require.True(t, res.Success, res.Message)
	assert.Equal(t,
		"Profile 'Work' applied successfully. Added 2 static route(s). | PAC file created: "+pacURL,
		res.Message)

	assert.Equal(t, []string{"dhcp Ethernet", "dns-dhcp Ethernet"}, e.adapters.Calls)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2")}, e.table.Addresses())

	override, ok := e.proxy.Value("ProxyOverride")
	require.True(t, ok)
	assert.Equal(t, "localhost;example.com;<local>", override)
	server, _ := e.proxy.Value("ProxyServer")
	assert.Equal(t, "proxy.corp:3128", server)

	assert.True(t, e.sink.Present)
	assert.Contains(t, e.sink.Script, `if (host == "example.com") return "DIRECT";`)
	assert.Equal(t, pacURL, e.proxy.AutoConfigURL())

	active, ok := e.m.Active()
	require.True(t, ok)
	assert.Equal(t, work.ID, active.ID)

	stored, err := e.m.Get(work.ID)
	require.NoError(t, err)
	assert.Equal(t, "localhost", stored.ProxySettings.BypassList)
}

func TestApply_ReapplyDoesNotDuplicateRoutes(t *testing.T) {
	e := newEnv(t)
	_, err := e.m.Add(workProfile())
	require.NoError(t, err)

	require.True(t, e.m.Apply(context.Background(), "Work").Success)
	res := e.m.Apply(context.Background(), "Work")
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "Added 2 static route(s).")
	assert.NotContains(t, res.Message, "Errors")
	assert.Len(t, e.table.Addresses(), 2)
}

func TestApply_SwitchingProfilesConverges(t *testing.T) {
	e := newEnv(t)
	_, err := e.m.Add(workProfile())
	require.NoError(t, err)
	home := profile.New("Home")
	home.NetworkSettings.AdapterName = "Ethernet"
	_, err = e.m.Add(home)
	require.NoError(t, err)

	require.True(t, e.m.Apply(context.Background(), "Work").Success)
	require.True(t, e.sink.Present)

	res := e.m.Apply(context.Background(), "Home")
	assert.Equal(t, result.OK("Profile 'Home' applied successfully."), res)

	assert.Empty(t, e.table.Addresses())
	assert.False(t, e.sink.Present)
	assert.Equal(t, "", e.proxy.AutoConfigURL())
	enabled, _ := e.proxy.Value("ProxyEnable")
	assert.Equal(t, uint32(0), enabled)
}

func TestApply_EditedActiveProfileConverges(t *testing.T) {
	e := newEnv(t)
	work, err := e.m.Add(workProfile())
	require.NoError(t, err)
	require.True(t, e.m.Apply(context.Background(), "Work").Success)
	require.Len(t, e.table.Addresses(), 2)

	work.RouteRules[0].Pattern = "example.com"
	require.NoError(t, e.m.Update(work))

	res := e.m.Apply(context.Background(), "Work")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("93.184.216.34")}, e.table.Addresses())
}

func TestApply_AfterDeletingActiveProfile(t *testing.T) {
	e := newEnv(t)
	home := profile.New("Home")
	home.NetworkSettings.AdapterName = "Ethernet"
	home.RouteRules = []profile.RouteRule{gatewayRule("example.com", "10.0.0.253")}
	_, err := e.m.Add(home)
	require.NoError(t, err)
	_, err = e.m.Add(workProfile())
	require.NoError(t, err)

	require.True(t, e.m.Apply(context.Background(), "Work").Success)
	require.NoError(t, e.m.Delete("Work"))

	res := e.m.Apply(context.Background(), "Home")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("93.184.216.34")}, e.table.Addresses())
	gw, ok := e.table.Gateway(netip.MustParseAddr("93.184.216.34"))
	require.True(t, ok)
	assert.Equal(t, "10.0.0.253", gw)
}

func TestApply_AppliedRulesSurviveReload(t *testing.T) {
	e := newEnv(t)
	work, err := e.m.Add(workProfile())
	require.NoError(t, err)
	home := profile.New("Home")
	home.NetworkSettings.AdapterName = "Ethernet"
	_, err = e.m.Add(home)
	require.NoError(t, err)
	require.True(t, e.m.Apply(context.Background(), "Work").Success)

	work.RouteRules = nil
	require.NoError(t, e.m.Update(work))

	rs := routes.New(resolver.Func(func(_ context.Context, host string) []netip.Addr {
		return hosts[strings.TrimLeft(host, "*.")]
	}), e.table, e.sink)
	reloaded := New(e.store, e.adapters, e.proxy, rs)
	require.NoError(t, reloaded.Load())

	require.True(t, reloaded.Apply(context.Background(), "Home").Success)
	assert.Empty(t, e.table.Addresses())
}

func TestClear_EditedActiveProfile(t *testing.T) {
	e := newEnv(t)
	work, err := e.m.Add(workProfile())
	require.NoError(t, err)
	require.True(t, e.m.Apply(context.Background(), "Work").Success)

	work.RouteRules = nil
	require.NoError(t, e.m.Update(work))

	assert.Equal(t, result.OK("Removed 2 static route(s)."), e.m.Clear(context.Background(), "Work"))
	assert.Empty(t, e.table.Addresses())
}

func TestApply_AdapterFallback(t *testing.T) {
	e := newEnv(t, WithDefaultAdapter("Ethernet"))
	p := profile.New("Roaming")
	_, err := e.m.Add(p)
	require.NoError(t, err)

	res := e.m.Apply(context.Background(), "Roaming")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"dhcp Ethernet", "dns-dhcp Ethernet"}, e.adapters.Calls)

	bare := newEnv(t)
	_, err = bare.m.Add(p)
	require.NoError(t, err)
	assert.Equal(t, result.Fail("No network adapter specified."), bare.m.Apply(context.Background(), "Roaming"))
}

func TestApply_NetworkFailureAborts(t *testing.T) {
	e := newEnv(t)
	_, err := e.m.Add(workProfile())
	require.NoError(t, err)
	e.adapters.Fail["dhcp"] = "Failed to enable DHCP: access denied"

	res := e.m.Apply(context.Background(), "Work")
	assert.Equal(t, result.Fail("Failed to enable DHCP: access denied"), res)

	_, ok := e.m.Active()
	assert.False(t, ok)
	assert.Empty(t, e.table.Addresses())
	_, ok = e.proxy.Value("ProxyEnable")
	assert.False(t, ok)
}

type deniedProxy struct {
	*sysproxy.Memory
}

func (deniedProxy) Apply(profile.ProxySettings) result.Result {
	return result.Fail("Permission denied. Run as administrator to change proxy settings.")
}

func TestApply_ProxyFailure(t *testing.T) {
	e := newEnv(t)
	rs := routes.New(resolver.Func(func(context.Context, string) []netip.Addr { return nil }), e.table, e.sink)
	m := New(e.store, e.adapters, deniedProxy{sysproxy.NewMemory()}, rs)
	_, err := m.Add(workProfile())
	require.NoError(t, err)

	res := m.Apply(context.Background(), "Work")
	assert.Equal(t, result.Fail(
		"Network settings applied but proxy failed: Permission denied. Run as administrator to change proxy settings."), res)
	assert.Empty(t, e.table.Addresses())
}

func TestApply_UnknownProfile(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, result.Fail("Profile not found."), e.m.Apply(context.Background(), "nope"))
}

func TestClear(t *testing.T) {
	e := newEnv(t)
	_, err := e.m.Add(workProfile())
	require.NoError(t, err)
	require.True(t, e.m.Apply(context.Background(), "Work").Success)

	assert.Equal(t, result.OK("Removed 2 static route(s)."), e.m.Clear(context.Background(), "Work"))
	assert.Equal(t, result.OK("No routes to remove."), e.m.Clear(context.Background(), "Work"))
	assert.Equal(t, result.Fail("Profile not found."), e.m.Clear(context.Background(), "nope"))
}

func TestMatchBypassPAC(t *testing.T) {
	e := newEnv(t)
	p := workProfile()
	p.RouteRules = append(p.RouteRules, bypassRule("intranet", matcher.TypeContains))
	_, err := e.m.Add(p)
	require.NoError(t, err)

	r, ok, err := e.m.Match("Work", "git.corp.lan")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "corp.lan", r.Pattern)

	_, ok, err = e.m.Match("Work", "example.org")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = e.m.Match("nope", "x")
	assert.True(t, util.IsNotFound(err))

	list, err := e.m.Bypass("Work")
	require.NoError(t, err)
	assert.Equal(t, "localhost;example.com;*intranet*", list)

	script, err := e.m.PAC("Work")
	require.NoError(t, err)
	assert.Contains(t, script, `return "PROXY proxy.corp:3128";`)
	assert.Contains(t, script, `host.indexOf("intranet") !== -1`)
	assert.False(t, e.sink.Present, "PAC preview must not write the artifact")
}

func TestLoad_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	m := New(profile.NewStore(path), adapter.NewMemory(), sysproxy.NewMemory(), nil)
	err := m.Load()
	require.Error(t, err)
	assert.False(t, errors.Is(err, util.ErrNotFound))
	assert.Empty(t, m.Profiles())
}
