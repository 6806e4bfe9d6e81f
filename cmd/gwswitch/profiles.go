package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rennerdo30/gateway-switcher/internal/profile"
)

const redacted = "********"

func (a *app) profilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "Manage stored profiles",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			active, _ := rt.manager.Active()
			return printProfiles(cmd.OutOrStdout(), rt.manager.Profiles(), active.ID)
		},
	}

	var reveal bool
	showCmd := &cobra.Command{
		Use:   "show <id|name>",
		Short: "Print a profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			p, err := rt.manager.Get(args[0])
			if err != nil {
				return err
			}
			if !reveal && p.ProxySettings.Password != "" {
				p.ProxySettings.Password = redacted
			}
			return writeProfile(cmd.OutOrStdout(), p)
		},
	}
	showCmd.Flags().BoolVar(&reveal, "reveal", false, "include the proxy password")

	deleteCmd := &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			if err := rt.manager.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted.\n", args[0])
			return nil
		},
	}

	duplicateCmd := &cobra.Command{
		Use:   "duplicate <id|name>",
		Short: "Copy a profile under a new identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			p, err := rt.manager.Duplicate(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created '%s' (%s).\n", p.Name, p.ID)
			return nil
		},
	}

	var output string
	exportCmd := &cobra.Command{
		Use:   "export <id|name>",
		Short: "Write a profile as JSON to stdout or --output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			p, err := rt.manager.Get(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				return writeProfile(cmd.OutOrStdout(), p)
			}
			f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // G304: Path is provided by the user
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer f.Close()
			return writeProfile(f, p)
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file")

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add a profile from a JSON file",
		Long: `Adds the profile stored in file. A profile whose ID already exists is
imported as a copy with fresh identifiers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			p, err := readProfile(args[0])
			if err != nil {
				return err
			}
			if _, err := rt.manager.Get(p.ID); err == nil {
				name := p.Name
				p = p.Clone()
				p.Name = name
			}
			p.IsDefault = false
			added, err := rt.manager.Add(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported '%s' (%s).\n", added.Name, added.ID)
			return nil
		},
	}

	var password, adapterName string
	updateDefaultCmd := &cobra.Command{
		Use:   "update-default",
		Short: "Refresh the default profile from the live system settings",
		Long: `Captures the current adapter and proxy settings into the default
profile. Requires the password matching default_profile_password_hash;
without --password the first line of stdin is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.load()
			if err != nil {
				return err
			}
			pw := password
			if pw == "" {
				if pw, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			name := adapterName
			if name == "" {
				name = rt.manager.Settings().SelectedAdapterName
			}
			if name == "" {
				name = rt.cfg.Adapter
			}
			res := rt.manager.UpdateDefaultFromSystem(cmd.Context(), pw, name)
			return report(cmd.OutOrStdout(), res.Success, res.Message)
		},
	}
	updateDefaultCmd.Flags().StringVar(&password, "password", "", "default profile password")
	updateDefaultCmd.Flags().StringVar(&adapterName, "adapter", "", "adapter to read (default: selected adapter)")

	cmd.AddCommand(listCmd, showCmd, deleteCmd, duplicateCmd, exportCmd, importCmd, updateDefaultCmd)
	return cmd
}

func printProfiles(w io.Writer, profiles []profile.NetworkProfile, activeID string) error {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No profiles. Run 'gwswitch init' to capture the current settings.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVE\tNAME\tID\tRULES\tPROXY")
	for _, p := range profiles {
		mark := ""
		if p.ID == activeID {
			mark = "*"
		}
		name := p.Name
		if p.IsDefault {
			name += " (default)"
		}
		proxy := "-"
		if p.ProxySettings.Enabled {
			proxy = p.ProxySettings.FullAddress()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", mark, name, p.ID, len(p.RouteRules), proxy)
	}
	return tw.Flush()
}

func writeProfile(w io.Writer, p profile.NetworkProfile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func readProfile(path string) (profile.NetworkProfile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is provided by the user
	if err != nil {
		return profile.NetworkProfile{}, fmt.Errorf("read %s: %w", path, err)
	}
	var p profile.NetworkProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return profile.NetworkProfile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

// report prints msg and turns a failed result into a command error.
func report(w io.Writer, success bool, msg string) error {
	if !success {
		return errors.New(msg)
	}
	fmt.Fprintln(w, msg)
	return nil
}
