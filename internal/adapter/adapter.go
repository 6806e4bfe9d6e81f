// Package adapter reads and configures the IPv4 settings of network adapters.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rennerdo30/gateway-switcher/internal/profile"
	"github.com/rennerdo30/gateway-switcher/internal/result"
	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// Info describes a network adapter.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	IPAddress   string   `json:"ip_address"`
	SubnetMask  string   `json:"subnet_mask"`
	Gateway     string   `json:"gateway"`
	DNSServers  []string `json:"dns_servers"`
	DHCPEnabled bool     `json:"dhcp_enabled"`
}

// Connected reports whether the adapter has link.
func (i Info) Connected() bool {
	switch strings.ToLower(i.Status) {
	case "connected", "up":
		return true
	}
	return false
}

// StatusText is "Connected" or "Disconnected".
func (i Info) StatusText() string {
	if i.Connected() {
		return "Connected"
	}
	return "Disconnected"
}

// Configurator is the adapter configuration service. Every setter returns a
// displayable result; a failed result carries the reason.
type Configurator interface {
	List(ctx context.Context) ([]Info, error)
	SetDHCP(ctx context.Context, adapter string) result.Result
	SetStatic(ctx context.Context, adapter, ip, mask, gateway string) result.Result
	SetDNSDHCP(ctx context.Context, adapter string) result.Result
	SetDNSStatic(ctx context.Context, adapter, primary, secondary string) result.Result
}

// New returns the configurator of the running platform. Each external
// command is bounded by timeout.
func New(timeout time.Duration) Configurator {
	return newPlatformConfigurator(util.NewCommandRunner(timeout))
}

// Find returns the adapter called name.
func Find(ctx context.Context, c Configurator, name string) (Info, error) {
	adapters, err := c.List(ctx)
	if err != nil {
		return Info{}, err
	}
	for _, a := range adapters {
		if a.Name == name {
			return a, nil
		}
	}
	return Info{}, fmt.Errorf("adapter %q: %w", name, util.ErrNotFound)
}

// Current reads the live settings of an adapter. An unknown adapter yields
// the default (DHCP) settings.
func Current(ctx context.Context, c Configurator, name string) (profile.NetworkSettings, error) {
	a, err := Find(ctx, c, name)
	if util.IsNotFound(err) {
		return profile.DefaultNetworkSettings(), nil
	}
	if err != nil {
		return profile.DefaultNetworkSettings(), err
	}

	s := profile.NetworkSettings{
		AdapterName: a.Name,
		UseDHCP:     a.DHCPEnabled,
		IPAddress:   a.IPAddress,
		SubnetMask:  a.SubnetMask,
		Gateway:     a.Gateway,
		UseDHCPDNS:  a.DHCPEnabled,
	}
	if len(a.DNSServers) > 0 {
		s.PrimaryDNS = a.DNSServers[0]
	}
	if len(a.DNSServers) > 1 {
		s.SecondaryDNS = a.DNSServers[1]
	}
	return s, nil
}

// ApplySettings configures address then DNS of s.AdapterName. The first
// failing step aborts with its result.
func ApplySettings(ctx context.Context, c Configurator, s profile.NetworkSettings) result.Result {
	name := s.AdapterName
	if name == "" {
		return result.Fail("No network adapter specified.")
	}

	if s.UseDHCP {
		if r := c.SetDHCP(ctx, name); !r.Success {
			return r
		}
	} else {
		if s.IPAddress == "" || s.SubnetMask == "" {
			return result.Fail("IP address and subnet mask are required for static configuration.")
		}
		if r := c.SetStatic(ctx, name, s.IPAddress, s.SubnetMask, s.Gateway); !r.Success {
			return r
		}
	}

	if s.UseDHCPDNS {
		if r := c.SetDNSDHCP(ctx, name); !r.Success {
			return r
		}
	} else if s.PrimaryDNS != "" {
		if r := c.SetDNSStatic(ctx, name, s.PrimaryDNS, s.SecondaryDNS); !r.Success {
			return r
		}
	}

	return result.OK("Network settings applied successfully.")
}

// stringList decodes a JSON null, string or array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
		} else {
			*l = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// Memory is an in-process Configurator for tests and dry runs.
type Memory struct {
	mu       sync.Mutex
	adapters []Info
	// Fail makes the named operation fail ("dhcp", "static", "dns-dhcp", "dns-static").
	Fail  map[string]string
	Calls []string
}

// NewMemory returns a configurator holding adapters.
func NewMemory(adapters ...Info) *Memory {
	return &Memory{adapters: slices.Clone(adapters), Fail: map[string]string{}}
}

func (m *Memory) List(context.Context) ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, len(m.adapters))
	for i, a := range m.adapters {
		a.DNSServers = slices.Clone(a.DNSServers)
		out[i] = a
	}
	return out, nil
}

func (m *Memory) update(op, name string, fn func(*Info)) result.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, op+" "+name)
	if msg, ok := m.Fail[op]; ok {
		return result.Fail(msg)
	}
	for i := range m.adapters {
		if m.adapters[i].Name == name {
			fn(&m.adapters[i])
			return result.OK(op + " applied")
		}
	}
	return result.Failf("Adapter %q not found.", name)
}

func (m *Memory) SetDHCP(_ context.Context, name string) result.Result {
	return m.update("dhcp", name, func(a *Info) {
		a.DHCPEnabled = true
		a.IPAddress, a.SubnetMask, a.Gateway = "", "", ""
	})
}

func (m *Memory) SetStatic(_ context.Context, name, ip, mask, gateway string) result.Result {
	return m.update("static", name, func(a *Info) {
		a.DHCPEnabled = false
		a.IPAddress, a.SubnetMask, a.Gateway = ip, mask, gateway
	})
}

func (m *Memory) SetDNSDHCP(_ context.Context, name string) result.Result {
	return m.update("dns-dhcp", name, func(a *Info) { a.DNSServers = nil })
}

func (m *Memory) SetDNSStatic(_ context.Context, name, primary, secondary string) result.Result {
	return m.update("dns-static", name, func(a *Info) {
		a.DNSServers = []string{primary}
		if secondary != "" {
			a.DNSServers = append(a.DNSServers, secondary)
		}
	})
}
