//go:build !windows

package service

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rennerdo30/gateway-switcher/internal/logging"
)

func run(name string, fn RunFunc) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Debug("running interactively", "service", name)
	return fn(ctx)
}
