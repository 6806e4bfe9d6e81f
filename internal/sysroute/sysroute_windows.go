//go:build windows

package sysroute

import "github.com/rennerdo30/gateway-switcher/internal/util"

func newPlatformTable(run util.CommandRunner) Table {
	return routeExe(run)
}
