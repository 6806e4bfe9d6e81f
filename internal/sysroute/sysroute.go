// Package sysroute adds and removes single-address host routes in the OS
// routing table.
package sysroute

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// HostMask is the dotted mask of an IPv4 host route.
const HostMask = "255.255.255.255"

// Table manages host routes.
type Table interface {
	// AddHostRoute routes addr through gateway.
	AddHostRoute(ctx context.Context, addr netip.Addr, gateway string) error

	// RemoveHostRoute deletes the host route for addr.
	RemoveHostRoute(ctx context.Context, addr netip.Addr) error
}

// NewSystem returns the routing table of the running platform. Each external
// command is bounded by timeout.
func NewSystem(timeout time.Duration) Table {
	return newPlatformTable(util.NewCommandRunner(timeout))
}

func parseGateway(gateway string) (netip.Addr, error) {
	gw, err := netip.ParseAddr(gateway)
	if err != nil || !gw.Is4() {
		return netip.Addr{}, fmt.Errorf("invalid gateway %q", gateway)
	}
	return gw, nil
}

func checkHost(addr netip.Addr) error {
	if !addr.Is4() {
		return fmt.Errorf("host routes require an IPv4 address, got %s", addr)
	}
	return nil
}

// Memory is an in-process Table for dry runs and tests.
type Memory struct {
	mu     sync.Mutex
	routes map[netip.Addr]string
}

// NewMemory creates an empty in-memory table.
func NewMemory() *Memory {
	return &Memory{routes: make(map[netip.Addr]string)}
}

// AddHostRoute records the route. Adding an address twice fails like the OS
// tools do.
func (m *Memory) AddHostRoute(ctx context.Context, addr netip.Addr, gateway string) error {
	if err := checkHost(addr); err != nil {
		return err
	}
	if _, err := parseGateway(gateway); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[addr]; ok {
		return fmt.Errorf("route for %s already exists", addr)
	}
	m.routes[addr] = gateway
	return nil
}

// RemoveHostRoute deletes the route, or returns util.ErrNotFound.
func (m *Memory) RemoveHostRoute(ctx context.Context, addr netip.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[addr]; !ok {
		return fmt.Errorf("route for %s: %w", addr, util.ErrNotFound)
	}
	delete(m.routes, addr)
	return nil
}

// Gateway returns the gateway recorded for addr.
func (m *Memory) Gateway(addr netip.Addr) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gw, ok := m.routes[addr]
	return gw, ok
}

// Addresses returns the routed addresses in ascending order.
func (m *Memory) Addresses() []netip.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]netip.Addr, 0, len(m.routes))
	for a := range m.routes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
