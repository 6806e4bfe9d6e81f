//go:build !windows && !linux

package adapter

import (
	"context"

	"github.com/rennerdo30/gateway-switcher/internal/result"
	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// unsupported is used on platforms without adapter configuration.
type unsupported struct{}

func newPlatformConfigurator(util.CommandRunner) Configurator {
	return unsupported{}
}

func (unsupported) List(context.Context) ([]Info, error) {
	return nil, util.ErrNotSupported
}

func (unsupported) SetDHCP(context.Context, string) result.Result {
	return result.Fail("Adapter configuration is " + util.ErrNotSupported.Error() + ".")
}

func (unsupported) SetStatic(context.Context, string, string, string, string) result.Result {
	return result.Fail("Adapter configuration is " + util.ErrNotSupported.Error() + ".")
}

func (unsupported) SetDNSDHCP(context.Context, string) result.Result {
	return result.Fail("Adapter configuration is " + util.ErrNotSupported.Error() + ".")
}

func (unsupported) SetDNSStatic(context.Context, string, string, string) result.Result {
	return result.Fail("Adapter configuration is " + util.ErrNotSupported.Error() + ".")
}
