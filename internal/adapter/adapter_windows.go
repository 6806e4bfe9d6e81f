//go:build windows

package adapter

import "github.com/rennerdo30/gateway-switcher/internal/util"

func newPlatformConfigurator(run util.CommandRunner) Configurator {
	return &netsh{run: run}
}
