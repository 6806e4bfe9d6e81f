//go:build linux

package adapter

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/miekg/dns"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/rennerdo30/gateway-switcher/internal/result"
	"github.com/rennerdo30/gateway-switcher/internal/util"
)

const resolvConf = "/etc/resolv.conf"

// linuxConfigurator sets addresses over netlink, DNS through resolvectl and
// DHCP through dhclient.
type linuxConfigurator struct {
	run util.CommandRunner
}

func newPlatformConfigurator(run util.CommandRunner) Configurator {
	return &linuxConfigurator{run: run}
}

func (c *linuxConfigurator) List(ctx context.Context) ([]Info, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	var servers []string
	if cfg, err := dns.ClientConfigFromFile(resolvConf); err == nil {
		servers = cfg.Servers
	}

	var out []Info
	for _, link := range links {
		attrs := link.Attrs()
		if attrs.Flags&net.FlagLoopback != 0 {
			continue
		}
		info := Info{
			Name:        attrs.Name,
			Description: link.Type(),
			Status:      "Down",
			DNSServers:  servers,
		}
		if attrs.OperState == netlink.OperUp {
			info.Status = "Up"
		}

		addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
		if err == nil && len(addrs) > 0 {
			a := addrs[0]
			info.IPAddress = a.IP.String()
			info.SubnetMask = net.IP(a.Mask).String()
			info.DHCPEnabled = a.Flags&unix.IFA_F_PERMANENT == 0
		}

		routes, err := netlink.RouteList(link, netlink.FAMILY_V4)
		if err == nil {
			for _, r := range routes {
				if r.Gw != nil && (r.Dst == nil || r.Dst.IP.IsUnspecified()) {
					info.Gateway = r.Gw.String()
					break
				}
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func (c *linuxConfigurator) SetDHCP(ctx context.Context, adapter string) result.Result {
	if _, err := c.run(ctx, "dhclient", adapter); err != nil {
		return result.Failf("Failed to enable DHCP: %v", err)
	}
	return result.OK("DHCP enabled.")
}

func (c *linuxConfigurator) SetStatic(ctx context.Context, adapter, ip, mask, gateway string) result.Result {
	if err := setStatic(adapter, ip, mask, gateway); err != nil {
		return result.Failf("Failed to set static IP: %v", err)
	}
	return result.OK("Static IP configured.")
}

func setStatic(adapter, ip, mask, gateway string) error {
	link, err := netlink.LinkByName(adapter)
	if err != nil {
		return fmt.Errorf("adapter %q: %w", adapter, err)
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return fmt.Errorf("invalid IP address %q", ip)
	}
	m, err := netip.ParseAddr(mask)
	if err != nil || !m.Is4() {
		return fmt.Errorf("invalid subnet mask %q", mask)
	}
	ones, bits := net.IPMask(m.AsSlice()).Size()
	if bits == 0 {
		return fmt.Errorf("non-contiguous subnet mask %q", mask)
	}

	ipNet := &net.IPNet{IP: net.IP(addr.AsSlice()), Mask: net.CIDRMask(ones, 32)}
	if err := netlink.AddrReplace(link, &netlink.Addr{IPNet: ipNet}); err != nil {
		return fmt.Errorf("failed to set address: %w", err)
	}

	if gateway == "" || gateway == "none" {
		return nil
	}
	gw, err := netip.ParseAddr(gateway)
	if err != nil || !gw.Is4() {
		return fmt.Errorf("invalid gateway %q", gateway)
	}
	route := &netlink.Route{LinkIndex: link.Attrs().Index, Gw: net.IP(gw.AsSlice())}
	if err := netlink.RouteReplace(route); err != nil {
		return fmt.Errorf("failed to set default gateway: %w", err)
	}
	return nil
}

func (c *linuxConfigurator) SetDNSDHCP(ctx context.Context, adapter string) result.Result {
	if _, err := c.run(ctx, "resolvectl", "revert", adapter); err != nil {
		return result.Failf("Failed to set DHCP DNS: %v", err)
	}
	return result.OK("DNS set to DHCP.")
}

func (c *linuxConfigurator) SetDNSStatic(ctx context.Context, adapter, primary, secondary string) result.Result {
	args := []string{"dns", adapter, primary}
	if secondary != "" {
		args = append(args, secondary)
	}
	if _, err := c.run(ctx, "resolvectl", args...); err != nil {
		return result.Failf("Failed to set primary DNS: %v", err)
	}
	return result.OK("Static DNS configured.")
}
