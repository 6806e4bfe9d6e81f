//go:build linux

package sysroute

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"

	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// linuxTable talks to the kernel over netlink.
type linuxTable struct{}

func newPlatformTable(util.CommandRunner) Table {
	return &linuxTable{}
}

func hostNet(addr netip.Addr) *net.IPNet {
	return &net.IPNet{IP: net.IP(addr.AsSlice()), Mask: net.CIDRMask(32, 32)}
}

func (t *linuxTable) AddHostRoute(ctx context.Context, addr netip.Addr, gateway string) error {
	if err := checkHost(addr); err != nil {
		return err
	}
	gw, err := parseGateway(gateway)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	route := &netlink.Route{Dst: hostNet(addr), Gw: net.IP(gw.AsSlice())}
	if err := netlink.RouteAdd(route); err != nil {
		return fmt.Errorf("route add %s via %s failed: %w", addr, gw, err)
	}
	return nil
}

func (t *linuxTable) RemoveHostRoute(ctx context.Context, addr netip.Addr) error {
	if err := checkHost(addr); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := netlink.RouteDel(&netlink.Route{Dst: hostNet(addr)}); err != nil {
		return fmt.Errorf("route delete %s failed: %w", addr, err)
	}
	return nil
}
