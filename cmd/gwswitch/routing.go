package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rennerdo30/gateway-switcher/internal/profile"
)

func (a *app) applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <id|name>",
		Short: "Apply a profile: adapter, proxy, host routes and PAC file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			res := rt.manager.Apply(cmd.Context(), args[0])
			return report(cmd.OutOrStdout(), res.Success, res.Message)
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <id|name>",
		Short: "Remove the host routes of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			res := rt.manager.Clear(cmd.Context(), args[0])
			return report(cmd.OutOrStdout(), res.Success, res.Message)
		},
	}
}

func (a *app) matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <id|name> <domain>",
		Short: "Show the first enabled rule of a profile matching a domain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			rule, ok, err := rt.manager.Match(args[0], args[1])
			if err != nil {
				return err
			}
			printMatch(cmd.OutOrStdout(), args[1], rule, ok)
			return nil
		},
	}
}

func printMatch(w io.Writer, domain string, r profile.RouteRule, ok bool) {
	if !ok {
		fmt.Fprintf(w, "%s: no rule matches, profile defaults apply\n", domain)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Domain:\t%s\n", domain)
	fmt.Fprintf(tw, "Rule:\t%s (%s %s)\n", r.DisplayName(), r.MatchType, r.Pattern)
	if r.UseCustomGateway {
		fmt.Fprintf(tw, "Gateway:\t%s\n", r.CustomGateway)
	}
	switch {
	case r.BypassProxy:
		fmt.Fprintf(tw, "Proxy:\tDIRECT\n")
	case r.UseCustomProxy:
		fmt.Fprintf(tw, "Proxy:\t%s:%d\n", r.CustomProxyServer, r.CustomProxyPort)
	}
	_ = tw.Flush()
}

func (a *app) pacCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pac <id|name>",
		Short: "Print the PAC script a profile would install",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			script, err := rt.manager.PAC(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), script)
			return nil
		},
	}
}

func (a *app) bypassCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bypass <id|name>",
		Short: "Print the effective proxy bypass list of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			list, err := rt.manager.Bypass(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func (a *app) initCmd() *cobra.Command {
	var adapterName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Capture the current settings as the default profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			name := adapterName
			if name == "" {
				name = rt.cfg.Adapter
			}
			p, created, err := rt.manager.InitializeFirstRun(cmd.Context(), name)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintln(cmd.OutOrStdout(), "Already initialized.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created '%s' (%s).\n", p.Name, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&adapterName, "adapter", "", "adapter whose settings are captured (default: config adapter)")
	return cmd
}

func (a *app) adaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List network adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			list, err := rt.adapters.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTATUS\tDHCP\tADDRESS\tGATEWAY\tDESCRIPTION")
			for _, ad := range list {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\n",
					ad.Name, ad.StatusText(), ad.DHCPEnabled, ad.IPAddress, ad.Gateway, ad.Description)
			}
			return tw.Flush()
		},
	}
}
