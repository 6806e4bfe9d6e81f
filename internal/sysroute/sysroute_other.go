//go:build !linux && !darwin && !windows

package sysroute

import (
	"context"
	"net/netip"

	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// noopTable is used on platforms without route support.
type noopTable struct{}

func newPlatformTable(util.CommandRunner) Table {
	return noopTable{}
}

func (noopTable) AddHostRoute(context.Context, netip.Addr, string) error {
	return util.ErrNotSupported
}

func (noopTable) RemoveHostRoute(context.Context, netip.Addr) error {
	return util.ErrNotSupported
}
