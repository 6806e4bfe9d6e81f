//go:build windows

package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/windows/svc"

	"github.com/rennerdo30/gateway-switcher/internal/logging"
)

// ShutdownTimeout bounds how long a stop request waits for the body.
const ShutdownTimeout = 30 * time.Second

func run(name string, fn RunFunc) error {
	isService, err := svc.IsWindowsService()
	if err != nil {
		logging.Warn("Failed to detect if running as Windows Service, assuming interactive", "error", err)
	}
	if err != nil || !isService {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return fn(ctx)
	}
	return svc.Run(name, &serviceHandler{fn: fn})
}

type serviceHandler struct {
	fn RunFunc
}

func (h *serviceHandler) Execute(args []string, r <-chan svc.ChangeRequest, s chan<- svc.Status) (bool, uint32) {
	const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown

	s <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.fn(ctx) }()

	s <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}

	for {
		select {
		case err := <-done:
			if err != nil {
				logging.Error("Service stopped with error", "error", err)
				return true, 1
			}
			return false, 0
		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				s <- c.CurrentStatus
			case svc.Stop, svc.Shutdown:
				logging.Info("Service stopping...")
				s <- svc.Status{State: svc.StopPending}
				cancel()
				select {
				case err := <-done:
					if err != nil {
						logging.Error("Error stopping service", "error", err)
					}
				case <-time.After(ShutdownTimeout):
					logging.Warn("Service did not stop in time")
				}
				return false, 0
			default:
				logging.Warn("Unexpected service control request", "cmd", c.Cmd)
			}
		}
	}
}
