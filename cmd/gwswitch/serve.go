package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rennerdo30/gateway-switcher/internal/accesscontrol"
	"github.com/rennerdo30/gateway-switcher/internal/api/server"
	"github.com/rennerdo30/gateway-switcher/internal/logging"
	"github.com/rennerdo30/gateway-switcher/internal/metrics"
	"github.com/rennerdo30/gateway-switcher/internal/service"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local control API",
		Long: `Serves the control API, the current PAC file at /proxy.pac and, when
metrics are enabled, Prometheus metrics. Runs until interrupted or, under
the Windows service manager, until the service is stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			addr := rt.cfg.API.Listen
			if listen != "" {
				addr = listen
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}

			return service.Run(service.DefaultName, func(ctx context.Context) error {
				return serveAPI(ctx, rt, ln)
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: api.listen)")
	return cmd
}

// serveAPI runs the API on ln until ctx is done, then shuts it down
// gracefully.
func serveAPI(ctx context.Context, rt *runtime, ln net.Listener) error {
	allowed, err := accesscontrol.Parse(rt.cfg.API.AllowedClients)
	if err != nil {
		ln.Close()
		return fmt.Errorf("api.allowed_clients: %w", err)
	}
	api := server.New(server.Config{
		Manager:        rt.manager,
		PAC:            rt.pac,
		Metrics:        rt.metrics,
		Token:          rt.cfg.API.Token,
		AllowedClients: allowed,
	})

	if rt.metrics != nil {
		collector := metrics.NewCollectorWithInterval(rt.metrics, rt.cfg.Metrics.CollectionInterval.Duration())
		collector.Start()
		defer collector.Stop()
	}

	srv := &http.Server{
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("API server listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
