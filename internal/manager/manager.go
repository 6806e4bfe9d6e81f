// Package manager owns the profile document and applies profiles to the
// system: adapter settings, the system proxy, host routes and the PAC script.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/rennerdo30/gateway-switcher/internal/adapter"
	"github.com/rennerdo30/gateway-switcher/internal/bypass"
	"github.com/rennerdo30/gateway-switcher/internal/logging"
	"github.com/rennerdo30/gateway-switcher/internal/metrics"
	"github.com/rennerdo30/gateway-switcher/internal/pac"
	"github.com/rennerdo30/gateway-switcher/internal/profile"
	"github.com/rennerdo30/gateway-switcher/internal/result"
	"github.com/rennerdo30/gateway-switcher/internal/routes"
	"github.com/rennerdo30/gateway-switcher/internal/sysproxy"
	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// DefaultProfileName is the name of the profile captured on first run.
const DefaultProfileName = "Default (Current Settings)"

// Manager is safe for concurrent use; applies are serialized.
type Manager struct {
	store    *profile.Store
	adapters adapter.Configurator
	proxy    sysproxy.Manager
	routes   *routes.Service

	passwordHash   string
	defaultAdapter string
	metrics        *metrics.Metrics
	logger         *slog.Logger

	mu   sync.Mutex
	coll *profile.Collection
}

// Option configures a Manager.
type Option func(*Manager)

// WithPasswordHash sets the bcrypt hash required by UpdateDefaultFromSystem.
func WithPasswordHash(hash string) Option {
	return func(m *Manager) { m.passwordHash = hash }
}

// WithDefaultAdapter names the adapter used when neither the profile nor
// the app settings select one.
func WithDefaultAdapter(name string) Option {
	return func(m *Manager) { m.defaultAdapter = name }
}

// WithMetrics records apply outcomes in mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager holding an empty collection until Load is called.
func New(store *profile.Store, adapters adapter.Configurator, proxy sysproxy.Manager, rs *routes.Service, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		adapters: adapters,
		proxy:    proxy,
		routes:   rs,
		logger:   logging.WithComponent("manager"),
		coll:     profile.NewCollection(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads the profile document. On error the collection is reset to an
// empty one and the error is returned.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.store.Load()
	if err != nil {
		m.coll = profile.NewCollection()
		return err
	}
	m.coll = c
	return nil
}

// Save writes the profile document.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save()
}

func (m *Manager) save() error {
	if err := m.store.Save(m.coll); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}
	return nil
}

// Profiles returns copies of every profile in document order.
func (m *Manager) Profiles() []profile.NetworkProfile {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]profile.NetworkProfile, len(m.coll.Profiles))
	for i, p := range m.coll.Profiles {
		out[i] = p.Copy()
	}
	return out
}

// Settings returns the application settings.
func (m *Manager) Settings() profile.AppSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coll.Settings
}

// IsFirstRun reports whether InitializeFirstRun has not completed yet.
func (m *Manager) IsFirstRun() bool {
	return !m.Settings().FirstRunCompleted
}

// Get returns the profile referenced by ID or name.
func (m *Manager) Get(ref string) (profile.NetworkProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.lookup(ref)
	if err != nil {
		return profile.NetworkProfile{}, err
	}
	return m.coll.Profiles[i].Copy(), nil
}

func (m *Manager) lookup(ref string) (int, error) {
	i, ok := m.coll.Lookup(ref)
	if !ok {
		return -1, fmt.Errorf("profile %q: %w", ref, util.ErrNotFound)
	}
	return i, nil
}

// Active returns the active profile.
func (m *Manager) Active() (profile.NetworkProfile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.coll.ActiveProfileID == "" {
		return profile.NetworkProfile{}, false
	}
	i := m.coll.Find(m.coll.ActiveProfileID)
	if i < 0 {
		return profile.NetworkProfile{}, false
	}
	return m.coll.Profiles[i].Copy(), true
}

// Add appends p and saves.
func (m *Manager) Add(p profile.NetworkProfile) (profile.NetworkProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = profile.New(p.Name).ID
	}
	if m.coll.Find(p.ID) >= 0 {
		return profile.NetworkProfile{}, fmt.Errorf("%w: duplicate profile id %s", util.ErrInvalidConfig, p.ID)
	}
	m.coll.Profiles = append(m.coll.Profiles, p.Copy())
	return p, m.save()
}

// Update replaces the stored profile with the same ID and bumps its
// modification time.
func (m *Manager) Update(p profile.NetworkProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.coll.Find(p.ID)
	if i < 0 {
		return fmt.Errorf("profile %q: %w", p.ID, util.ErrNotFound)
	}
	p = p.Copy()
	p.LastModified = profile.Now()
	m.coll.Profiles[i] = p
	return m.save()
}

// Delete removes a profile. The default profile cannot be deleted. When the
// active profile is removed the first remaining profile becomes active; the
// host routes of the deleted profile stay recorded and are removed by the
// next apply.
func (m *Manager) Delete(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.lookup(ref)
	if err != nil {
		return err
	}
	p := m.coll.Profiles[i]
	if p.IsDefault {
		return fmt.Errorf("profile %q: %w", p.Name, util.ErrDefaultProfile)
	}

	m.coll.Profiles = append(m.coll.Profiles[:i], m.coll.Profiles[i+1:]...)
	if m.coll.ActiveProfileID == p.ID {
		m.coll.ActiveProfileID = ""
		if len(m.coll.Profiles) > 0 {
			m.coll.ActiveProfileID = m.coll.Profiles[0].ID
		}
	}
	return m.save()
}

// Duplicate stores a clone of the referenced profile and returns it.
func (m *Manager) Duplicate(ref string) (profile.NetworkProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.lookup(ref)
	if err != nil {
		return profile.NetworkProfile{}, err
	}
	clone := m.coll.Profiles[i].Clone()
	m.coll.Profiles = append(m.coll.Profiles, clone)
	return clone.Copy(), m.save()
}

// InitializeFirstRun captures the live system state as the default profile
// and makes it active. It returns false when the first run already
// completed.
func (m *Manager) InitializeFirstRun(ctx context.Context, adapterName string) (profile.NetworkProfile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.coll.Settings.FirstRunCompleted {
		return profile.NetworkProfile{}, false, nil
	}

	p := profile.New(DefaultProfileName)
	p.IsDefault = true
	p.NetworkSettings, p.ProxySettings = m.systemSettings(ctx, adapterName)

	m.coll.Profiles = append(m.coll.Profiles, p)
	m.coll.ActiveProfileID = p.ID
	m.coll.Settings.SelectedAdapterName = adapterName
	m.coll.Settings.FirstRunCompleted = true

	m.logger.Info("first run initialized", "adapter", adapterName, "profile_id", p.ID)
	return p.Copy(), true, m.save()
}

// UpdateDefaultFromSystem refreshes the default profile from live system
// state once password matches the configured hash.
func (m *Manager) UpdateDefaultFromSystem(ctx context.Context, password, adapterName string) result.Result {
	if err := m.checkPassword(password); err != nil {
		m.logger.Warn("default profile update denied", "error", err)
		return result.Fail("Invalid password. Default profile update denied.")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.coll.DefaultProfile()
	if i < 0 {
		return result.Fail("No default profile found.")
	}

	p := &m.coll.Profiles[i]
	p.NetworkSettings, p.ProxySettings = m.systemSettings(ctx, adapterName)
	p.LastModified = profile.Now()

	if err := m.save(); err != nil {
		return result.FromError(err, "")
	}
	return result.OK("Default profile updated with current system settings.")
}

func (m *Manager) checkPassword(password string) error {
	if m.passwordHash == "" {
		return fmt.Errorf("no default profile password configured: %w", util.ErrBadPassword)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.passwordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return util.ErrBadPassword
		}
		return fmt.Errorf("%w: %v", util.ErrBadPassword, err)
	}
	return nil
}

// systemSettings reads the live adapter and proxy state. Read failures fall
// back to the defaults.
func (m *Manager) systemSettings(ctx context.Context, adapterName string) (profile.NetworkSettings, profile.ProxySettings) {
	ns, err := adapter.Current(ctx, m.adapters, adapterName)
	if err != nil {
		m.logger.Warn("failed to read adapter settings", "adapter", adapterName, "error", err)
	}
	ns.AdapterName = adapterName

	ps, err := m.proxy.Current()
	if err != nil {
		m.logger.Warn("failed to read proxy settings", "error", err)
		ps = profile.DefaultProxySettings()
	}
	return ns, ps
}

// Match returns the first enabled rule of the referenced profile matching
// domain.
func (m *Manager) Match(ref, domain string) (profile.RouteRule, bool, error) {
	p, err := m.Get(ref)
	if err != nil {
		return profile.RouteRule{}, false, err
	}
	r, ok := p.FirstMatch(domain)
	return r, ok, nil
}

// Bypass returns the referenced profile's effective bypass list: the proxy
// bypass list merged with the entries derived from its rules.
func (m *Manager) Bypass(ref string) (string, error) {
	p, err := m.Get(ref)
	if err != nil {
		return "", err
	}
	return bypass.Merge(p.ProxySettings.BypassList, bypass.BuildDomains(p.RouteRules)), nil
}

// PAC renders the PAC script the referenced profile would install, without
// writing it.
func (m *Manager) PAC(ref string) (string, error) {
	p, err := m.Get(ref)
	if err != nil {
		return "", err
	}
	ps := p.ProxySettings
	return pac.Generate(routes.ProxyRules(profile.Enabled(p.RouteRules)), pac.Default{
		Enabled: ps.Enabled,
		Server:  ps.ProxyServer,
		Port:    ps.ProxyPort,
	})
}

// Clear removes the host routes of the referenced profile.
func (m *Manager) Clear(ctx context.Context, ref string) result.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.lookup(ref)
	if err != nil {
		return result.Fail("Profile not found.")
	}
	p := m.coll.Profiles[i]
	if p.ID != m.coll.ActiveProfileID || len(m.coll.AppliedRules) == 0 {
		return m.routes.Clear(ctx, p.RouteRules)
	}

	// The active profile may have been edited since it was applied.
	rules := append(append([]profile.RouteRule(nil), m.coll.AppliedRules...), p.RouteRules...)
	res := m.routes.Clear(ctx, rules)
	m.coll.AppliedRules = nil
	if err := m.save(); err != nil {
		m.logger.Warn("failed to persist cleared routes", "error", err)
	}
	return res
}
