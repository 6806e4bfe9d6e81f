// Package main provides the gwswitch entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rennerdo30/gateway-switcher/internal/cli/ctl"
	"github.com/rennerdo30/gateway-switcher/internal/config"
	"github.com/rennerdo30/gateway-switcher/internal/version"
)

// app carries the state shared by every command.
type app struct {
	configFile string
	// build wires the runtime from a loaded config. Tests swap in memory
	// backends.
	build func(cfg config.AppConfig) (*runtime, error)
}

func newRootCmd() *cobra.Command {
	a := &app{build: buildRuntime}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gwswitch",
		Short: "Gateway Switcher",
		Long: `gwswitch applies network profiles: adapter addressing, system proxy,
per-domain host routes through alternative gateways and a PAC file for
per-domain proxy selection.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", config.DefaultPath(), "config file path")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultAppConfig()
			if err := config.LoadAndValidate(a.configFile, &cfg); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})

	root.AddCommand(
		a.configCmd(),
		a.profilesCmd(),
		a.applyCmd(),
		a.clearCmd(),
		a.matchCmd(),
		a.pacCmd(),
		a.bypassCmd(),
		a.initCmd(),
		a.adaptersCmd(),
		a.serveCmd(),
		a.serviceCmd(),
		ctl.NewCommands(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
