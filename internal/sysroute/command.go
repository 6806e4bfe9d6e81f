package sysroute

import (
	"context"
	"net/netip"

	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// commandTable drives a route tool through an external command.
type commandTable struct {
	run util.CommandRunner
	add func(addr, gw netip.Addr) []string
	del func(addr netip.Addr) []string
}

// routeExe builds route.exe invocations:
// "route ADD <ip> MASK 255.255.255.255 <gw>" and "route DELETE <ip>".
func routeExe(run util.CommandRunner) *commandTable {
	return &commandTable{
		run: run,
		add: func(addr, gw netip.Addr) []string {
			return []string{"route", "ADD", addr.String(), "MASK", HostMask, gw.String()}
		},
		del: func(addr netip.Addr) []string {
			return []string{"route", "DELETE", addr.String()}
		},
	}
}

// bsdRoute builds BSD route(8) invocations.
func bsdRoute(run util.CommandRunner) *commandTable {
	return &commandTable{
		run: run,
		add: func(addr, gw netip.Addr) []string {
			return []string{"route", "-n", "add", "-host", addr.String(), gw.String()}
		},
		del: func(addr netip.Addr) []string {
			return []string{"route", "-n", "delete", "-host", addr.String()}
		},
	}
}

func (t *commandTable) AddHostRoute(ctx context.Context, addr netip.Addr, gateway string) error {
	if err := checkHost(addr); err != nil {
		return err
	}
	gw, err := parseGateway(gateway)
	if err != nil {
		return err
	}
	argv := t.add(addr, gw)
	_, err = t.run(ctx, argv[0], argv[1:]...)
	return err
}

func (t *commandTable) RemoveHostRoute(ctx context.Context, addr netip.Addr) error {
	if err := checkHost(addr); err != nil {
		return err
	}
	argv := t.del(addr)
	_, err := t.run(ctx, argv[0], argv[1:]...)
	return err
}
