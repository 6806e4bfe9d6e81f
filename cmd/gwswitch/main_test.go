package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rennerdo30/gateway-switcher/internal/adapter"
	"github.com/rennerdo30/gateway-switcher/internal/artifact"
	"github.com/rennerdo30/gateway-switcher/internal/config"
	"github.com/rennerdo30/gateway-switcher/internal/manager"
	"github.com/rennerdo30/gateway-switcher/internal/metrics"
	"github.com/rennerdo30/gateway-switcher/internal/profile"
	"github.com/rennerdo30/gateway-switcher/internal/resolver"
	"github.com/rennerdo30/gateway-switcher/internal/routes"
	"github.com/rennerdo30/gateway-switcher/internal/sysproxy"
	"github.com/rennerdo30/gateway-switcher/internal/sysroute"
	"github.com/rennerdo30/gateway-switcher/internal/version"
)

// harness runs commands against memory backends that persist across
// invocations, like the real system would.
type harness struct {
	dir        string
	configFile string
	table      *sysroute.Memory
	proxy      *sysproxy.Memory
	adapters   *adapter.Memory
}

func newHarness(t *testing.T, extra string) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		dir:        dir,
		configFile: filepath.Join(dir, "config.yaml"),
		table:      sysroute.NewMemory(),
		proxy:      sysproxy.NewMemory(),
		adapters: adapter.NewMemory(adapter.Info{
			Name:        "Ethernet",
			Status:      "Up",
			IPAddress:   "192.168.1.20",
			SubnetMask:  "255.255.255.0",
			Gateway:     "192.168.1.1",
			DHCPEnabled: true,
		}),
	}
	cfg := fmt.Sprintf(`profiles_path: %q
pac_path: %q
adapter: Ethernet
logging:
  level: error
%s`, filepath.Join(dir, "profiles.json"), filepath.Join(dir, "proxy.pac"), extra)
	require.NoError(t, os.WriteFile(h.configFile, []byte(cfg), 0600))
	return h
}

func (h *harness) build(cfg config.AppConfig) (*runtime, error) {
	res := resolver.Func(func(_ context.Context, host string) []netip.Addr {
		if strings.TrimLeft(host, "*.") == "corp.lan" {
			return []netip.Addr{netip.MustParseAddr("10.0.0.1")}
		}
		return nil
	})
	var mt *metrics.Metrics
	if cfg.Metrics.Enabled {
		mt = metrics.New()
	}
	sink := artifact.NewFile(cfg.PACPath)
	rs := routes.New(res, h.table, sink, routes.WithMetrics(mt))
	m := manager.New(profile.NewStore(cfg.ProfilesPath), h.adapters, h.proxy, rs,
		manager.WithPasswordHash(cfg.DefaultProfilePasswordHash),
		manager.WithDefaultAdapter(cfg.Adapter),
		manager.WithMetrics(mt),
	)
	return &runtime{cfg: cfg, manager: m, adapters: h.adapters, metrics: mt, pac: sink}, nil
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	a := &app{build: h.build}
	cmd := a.rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", h.configFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) writeWorkProfile(t *testing.T) string {
	t.Helper()
	p := profile.New("Work")
	gw := profile.NewRouteRule()
	gw.Name = "corp"
	gw.Pattern = "corp.lan"
	gw.UseCustomGateway = true
	gw.CustomGateway = "10.8.0.1"
	px := profile.NewRouteRule()
	px.Pattern = "example.com"
	px.UseCustomProxy = true
	px.CustomProxyServer = "proxy.example.net"
	px.CustomProxyPort = 3128
	p.RouteRules = []profile.RouteRule{gw, px}

	path := filepath.Join(h.dir, "work.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, writeProfile(f, p))
	return path
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t, "")
	out, err := h.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, version.Full()+"\n", out)
}

func TestValidateCommand(t *testing.T) {
	h := newHarness(t, "")
	out, err := h.run(t, "", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	bad := newHarness(t, "api:\n  enabled: true\n  listen: nope\n")
	_, err = bad.run(t, "", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration invalid")
}

func TestConfigInit(t *testing.T) {
	h := newHarness(t, "")
	path := filepath.Join(h.dir, "new", "config.yaml")

	out, err := h.run(t, "", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = h.run(t, "", "--config", path, "config", "init")
	assert.Error(t, err)

	_, err = h.run(t, "", "--config", path, "config", "init", "--force")
	assert.NoError(t, err)

	cfg := config.DefaultAppConfig()
	assert.NoError(t, config.LoadAndValidate(path, &cfg))
}

func TestConfigHashPassword(t *testing.T) {
	h := newHarness(t, "")

	out, err := h.run(t, "secret\n", "config", "hash-password")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")))

	out, err = h.run(t, "", "config", "hash-password", "--password", "other")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("other")))

	_, err = h.run(t, "", "config", "hash-password")
	assert.Error(t, err)
}

func TestInitAndList(t *testing.T) {
	h := newHarness(t, "")

	out, err := h.run(t, "", "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No profiles")

	out, err = h.run(t, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created '"+manager.DefaultProfileName+"'")

	out, err = h.run(t, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Already initialized.")

	out, err = h.run(t, "", "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, manager.DefaultProfileName+" (default)")
	assert.Contains(t, out, "*")

	_, err = h.run(t, "", "profiles", "delete", manager.DefaultProfileName)
	assert.Error(t, err)
}

func TestApplyMatchAndClear(t *testing.T) {
	h := newHarness(t, "")
	path := h.writeWorkProfile(t)

	out, err := h.run(t, "", "profiles", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 'Work'")

	out, err = h.run(t, "", "apply", "Work")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile 'Work' applied successfully.")
	assert.Contains(t, out, "Added 1 static route(s).")
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.1")}, h.table.Addresses())
	assert.FileExists(t, filepath.Join(h.dir, "proxy.pac"))
	assert.NotEmpty(t, h.proxy.AutoConfigURL())

	out, err = h.run(t, "", "match", "Work", "app.corp.lan")
	require.NoError(t, err)
	assert.Contains(t, out, "corp")
	assert.Contains(t, out, "10.8.0.1")

	out, err = h.run(t, "", "match", "Work", "unrelated.org")
	require.NoError(t, err)
	assert.Contains(t, out, "no rule matches")

	out, err = h.run(t, "", "pac", "Work")
	require.NoError(t, err)
	assert.Contains(t, out, "FindProxyForURL")
	assert.Contains(t, out, "PROXY proxy.example.net:3128")

	out, err = h.run(t, "", "bypass", "Work")
	require.NoError(t, err)
	assert.Contains(t, out, "localhost")

	out, err = h.run(t, "", "clear", "Work")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 static route(s).")
	assert.Empty(t, h.table.Addresses())

	_, err = h.run(t, "", "apply", "Nope")
	assert.Error(t, err)
}

func TestImportExistingIDCreatesCopy(t *testing.T) {
	h := newHarness(t, "")
	path := h.writeWorkProfile(t)

	_, err := h.run(t, "", "profiles", "import", path)
	require.NoError(t, err)
	_, err = h.run(t, "", "profiles", "import", path)
	require.NoError(t, err)

	rt, err := (&app{configFile: h.configFile, build: h.build}).load()
	require.NoError(t, err)
	profiles := rt.manager.Profiles()
	require.Len(t, profiles, 2)
	assert.NotEqual(t, profiles[0].ID, profiles[1].ID)
	assert.Equal(t, "Work", profiles[1].Name)
}

func TestProfileShowExportDuplicate(t *testing.T) {
	h := newHarness(t, "")
	p := profile.New("Proxy")
	p.ProxySettings.Enabled = true
	p.ProxySettings.ProxyServer = "proxy.local"
	p.ProxySettings.Password = "hunter2"
	path := filepath.Join(h.dir, "proxy.json")
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	_, err = h.run(t, "", "profiles", "import", path)
	require.NoError(t, err)

	out, err := h.run(t, "", "profiles", "show", "Proxy")
	require.NoError(t, err)
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "hunter2")

	exported := filepath.Join(h.dir, "export.json")
	_, err = h.run(t, "", "profiles", "export", "Proxy", "-o", exported)
	require.NoError(t, err)
	got, err := readProfile(exported)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "hunter2", got.ProxySettings.Password)

	out, err = h.run(t, "", "profiles", "duplicate", "Proxy")
	require.NoError(t, err)
	assert.Contains(t, out, "Proxy (Copy)")
}

func TestUpdateDefault(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("ca26"), bcrypt.MinCost)
	require.NoError(t, err)
	h := newHarness(t, fmt.Sprintf("default_profile_password_hash: %q\n", string(hash)))

	_, err = h.run(t, "", "init")
	require.NoError(t, err)

	_, err = h.run(t, "wrong\n", "profiles", "update-default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid password")

	out, err := h.run(t, "ca26\n", "profiles", "update-default")
	require.NoError(t, err)
	assert.Contains(t, out, "Default profile updated")
}

func TestAdaptersCommand(t *testing.T) {
	h := newHarness(t, "")
	out, err := h.run(t, "", "adapters")
	require.NoError(t, err)
	assert.Contains(t, out, "Ethernet")
	assert.Contains(t, out, "Connected")
	assert.Contains(t, out, "192.168.1.1")
}

func TestServeAPI(t *testing.T) {
	h := newHarness(t, "")
	rt, err := (&app{configFile: h.configFile, build: h.build}).load()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveAPI(ctx, rt, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/v1/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serveAPI did not return after cancel")
	}
}
