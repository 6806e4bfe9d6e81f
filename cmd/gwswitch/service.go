package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rennerdo30/gateway-switcher/internal/service"
)

func (a *app) serviceCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install gwswitch serve as a system service",
	}
	cmd.PersistentFlags().StringVar(&name, "name", service.DefaultName, "service name")

	newManager := func() (*service.Manager, error) {
		bin, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		return service.New(service.Config{
			Name:       name,
			BinaryPath: bin,
			ConfigPath: a.configFile,
		})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Register and enable the service",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newManager()
				if err != nil {
					return err
				}
				msg, err := m.Install(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Stop and remove the service",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newManager()
				if err != nil {
					return err
				}
				if err := m.Uninstall(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Service uninstalled: %s\n", m.Name())
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the service is installed and running",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newManager()
				if err != nil {
					return err
				}
				status, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", m.Name(), status)
				return nil
			},
		},
	)
	return cmd
}
