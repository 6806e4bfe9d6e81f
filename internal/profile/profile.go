// Package profile holds the network profile model and its JSON document store.
package profile

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NetworkSettings is the adapter configuration of a profile.
type NetworkSettings struct {
	UseDHCP      bool   `json:"use_dhcp"`
	IPAddress    string `json:"ip_address"`
	SubnetMask   string `json:"subnet_mask"`
	Gateway      string `json:"gateway"`
	UseDHCPDNS   bool   `json:"use_dhcp_dns"`
	PrimaryDNS   string `json:"primary_dns"`
	SecondaryDNS string `json:"secondary_dns"`
	AdapterName  string `json:"adapter_name"`
}

// DefaultNetworkSettings returns DHCP for both address and DNS.
func DefaultNetworkSettings() NetworkSettings {
	return NetworkSettings{
		UseDHCP:    true,
		SubnetMask: "255.255.255.0",
		UseDHCPDNS: true,
	}
}

func (s *NetworkSettings) UnmarshalJSON(data []byte) error {
	type plain NetworkSettings
	p := plain(DefaultNetworkSettings())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = NetworkSettings(p)
	return nil
}

// ProxySettings is the system proxy configuration of a profile.
type ProxySettings struct {
	Enabled           bool   `json:"enabled"`
	ProxyServer       string `json:"proxy_server"`
	ProxyPort         int    `json:"proxy_port"`
	UseAuthentication bool   `json:"use_authentication"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	BypassList        string `json:"bypass_list"`
	BypassLocal       bool   `json:"bypass_local"`
}

// LocalBypass is the OS token for "bypass the proxy for local names".
const LocalBypass = "<local>"

// DefaultProxySettings returns a disabled proxy with the stock bypass list.
func DefaultProxySettings() ProxySettings {
	return ProxySettings{
		ProxyPort:   8080,
		BypassList:  "localhost;127.0.0.1",
		BypassLocal: true,
	}
}

func (s *ProxySettings) UnmarshalJSON(data []byte) error {
	type plain ProxySettings
	p := plain(DefaultProxySettings())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = ProxySettings(p)
	return nil
}

// FullAddress returns server:port, or "" without a server.
func (s ProxySettings) FullAddress() string {
	if s.ProxyServer == "" {
		return ""
	}
	return s.ProxyServer + ":" + strconv.Itoa(s.ProxyPort)
}

// EffectiveBypass is BypassList with <local> appended when BypassLocal asks
// for it.
func (s ProxySettings) EffectiveBypass() string {
	list := s.BypassList
	if s.BypassLocal && !strings.Contains(list, LocalBypass) {
		if list == "" {
			return LocalBypass
		}
		return list + ";" + LocalBypass
	}
	return list
}

// NetworkProfile is a named bundle of network, proxy and routing
// configuration that is applied as a unit.
type NetworkProfile struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	IsDefault       bool            `json:"is_default"`
	CreatedAt       Timestamp       `json:"created_at"`
	LastModified    Timestamp       `json:"last_modified"`
	NetworkSettings NetworkSettings `json:"network_settings"`
	ProxySettings   ProxySettings   `json:"proxy_settings"`
	RouteRules      []RouteRule     `json:"route_rules"`
}

// New returns an empty profile with a fresh identifier.
func New(name string) NetworkProfile {
	now := Now()
	return NetworkProfile{
		ID:              uuid.NewString(),
		Name:            name,
		CreatedAt:       now,
		LastModified:    now,
		NetworkSettings: DefaultNetworkSettings(),
		ProxySettings:   DefaultProxySettings(),
		RouteRules:      []RouteRule{},
	}
}

func (p *NetworkProfile) UnmarshalJSON(data []byte) error {
	type plain NetworkProfile
	v := plain(New("New Profile"))
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.RouteRules == nil {
		v.RouteRules = []RouteRule{}
	}
	*p = NetworkProfile(v)
	return nil
}

// FirstMatch returns the first enabled rule of the profile matching domain.
func (p NetworkProfile) FirstMatch(domain string) (RouteRule, bool) {
	return FirstMatch(p.RouteRules, domain)
}

// GatewayRules returns the rules that carry a gateway override, enabled or not.
func (p NetworkProfile) GatewayRules() []RouteRule {
	var out []RouteRule
	for _, r := range p.RouteRules {
		if r.HasGatewayOverride() {
			out = append(out, r)
		}
	}
	return out
}

// Clone copies the profile under a new identity: fresh ID, "(Copy)" name,
// not default, new timestamps and fresh rule identifiers.
func (p NetworkProfile) Clone() NetworkProfile {
	now := Now()
	return NetworkProfile{
		ID:              uuid.NewString(),
		Name:            p.Name + " (Copy)",
		CreatedAt:       now,
		LastModified:    now,
		NetworkSettings: p.NetworkSettings,
		ProxySettings:   p.ProxySettings,
		RouteRules:      CloneRules(p.RouteRules, false),
	}
}

// Copy is a deep copy that keeps every identifier, for in-place edits.
func (p NetworkProfile) Copy() NetworkProfile {
	c := p
	c.RouteRules = CloneRules(p.RouteRules, true)
	return c
}

// AppSettings are application-wide preferences stored with the profiles.
type AppSettings struct {
	StartWithSystem     bool   `json:"start_with_windows"`
	StartMinimized      bool   `json:"start_minimized"`
	ShowNotifications   bool   `json:"show_notifications"`
	SelectedAdapterName string `json:"selected_adapter_name"`
	FirstRunCompleted   bool   `json:"first_run_completed"`
}

// DefaultAppSettings returns the settings of a fresh install.
func DefaultAppSettings() AppSettings {
	return AppSettings{StartMinimized: true, ShowNotifications: true}
}

func (s *AppSettings) UnmarshalJSON(data []byte) error {
	type plain AppSettings
	p := plain(DefaultAppSettings())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = AppSettings(p)
	return nil
}

// DocumentVersion is written into new documents.
const DocumentVersion = "1.0"

// Collection is the persisted document: every profile plus app settings.
type Collection struct {
	Version         string           `json:"version"`
	ActiveProfileID string           `json:"active_profile_id"`
	Profiles        []NetworkProfile `json:"profiles"`
	Settings        AppSettings      `json:"settings"`

	// AppliedRules are the enabled gateway rules whose host routes the last
	// apply installed. The next apply removes exactly these.
	AppliedRules []RouteRule `json:"applied_rules,omitempty"`
}

// NewCollection returns an empty document.
func NewCollection() *Collection {
	return &Collection{
		Version:  DocumentVersion,
		Profiles: []NetworkProfile{},
		Settings: DefaultAppSettings(),
	}
}

func (c *Collection) UnmarshalJSON(data []byte) error {
	type plain Collection
	v := plain(*NewCollection())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Profiles == nil {
		v.Profiles = []NetworkProfile{}
	}
	*c = Collection(v)
	return nil
}

// Find returns the index of the profile with id, or -1.
func (c *Collection) Find(id string) int {
	for i := range c.Profiles {
		if c.Profiles[i].ID == id {
			return i
		}
	}
	return -1
}

// Lookup resolves ref as a profile ID first, then as a case-insensitive name.
func (c *Collection) Lookup(ref string) (int, bool) {
	if i := c.Find(ref); i >= 0 {
		return i, true
	}
	for i := range c.Profiles {
		if strings.EqualFold(c.Profiles[i].Name, ref) {
			return i, true
		}
	}
	return -1, false
}

// DefaultProfile returns the index of the profile flagged is_default, or -1.
func (c *Collection) DefaultProfile() int {
	for i := range c.Profiles {
		if c.Profiles[i].IsDefault {
			return i
		}
	}
	return -1
}

// Timestamp is a time stored as an ISO-8601 string. It accepts RFC 3339 and
// the zone-less form written by older releases.
type Timestamp struct{ time.Time }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Now returns the current time truncated to microseconds.
func Now() Timestamp {
	return Timestamp{time.Now().Truncate(time.Microsecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}
