// Package ctl provides the "gwswitch ctl" commands that drive a running
// gwswitch API.
package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// DefaultAPIURL matches the default api.listen address.
const DefaultAPIURL = "http://127.0.0.1:7390"

// APIClient is a client for the control API.
type APIClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
	Out     io.Writer
}

// NewAPIClient creates a new API client writing to stdout.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 2 * time.Minute},
		Out:     os.Stdout,
	}
}

// NewCommands creates the ctl command tree.
func NewCommands() *cobra.Command {
	var apiURL string
	var apiToken string

	root := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running gwswitch API",
	}

	root.PersistentFlags().StringVar(&apiURL, "api", DefaultAPIURL, "API server URL")
	root.PersistentFlags().StringVar(&apiToken, "token", "", "API authentication token (default $GWSWITCH_API_TOKEN)")

	client := func(cmd *cobra.Command) *APIClient {
		token := apiToken
		if token == "" {
			token = os.Getenv("GWSWITCH_API_TOKEN")
		}
		c := NewAPIClient(apiURL, token)
		c.Out = cmd.OutOrStdout()
		return c
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show status and the active profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client(cmd).ShowStatus(cmd.Context())
		},
	}

	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client(cmd).ListProfiles(cmd.Context())
		},
	}

	applyCmd := &cobra.Command{
		Use:   "apply <id|name>",
		Short: "Apply a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client(cmd).Apply(cmd.Context(), args[0])
		},
	}

	matchCmd := &cobra.Command{
		Use:   "match <id|name> <domain>",
		Short: "Show which rule of a profile matches a domain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client(cmd).Match(cmd.Context(), args[0], args[1])
		},
	}

	var historyCount int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent profile applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client(cmd).ShowHistory(cmd.Context(), historyCount)
		},
	}
	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 20, "Number of entries to show")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check API health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client(cmd).CheckHealth(cmd.Context())
		},
	}

	root.AddCommand(statusCmd, profilesCmd, applyCmd, matchCmd, historyCmd, healthCmd)
	return root
}

func (c *APIClient) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")
	return c.Client.Do(req)
}

// callJSON performs a request and decodes a JSON body. Statuses outside okStatus
// become errors carrying the API's error message.
func (c *APIClient) callJSON(ctx context.Context, method, path string, v interface{}, okStatus ...int) error {
	resp, err := c.doRequest(ctx, method, path, nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	for _, s := range okStatus {
		ok = ok || resp.StatusCode == s
	}
	if !ok {
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // Best effort read for error message
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API error: %s - %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *APIClient) getJSON(ctx context.Context, path string, v interface{}) error {
	return c.callJSON(ctx, http.MethodGet, path, v)
}

// ShowStatus displays the API status.
func (c *APIClient) ShowStatus(ctx context.Context) error {
	var status map[string]interface{}
	if err := c.getJSON(ctx, "/api/v1/status", &status); err != nil {
		return err
	}

	fmt.Fprintf(c.Out, "Status: %v\n", status["status"])
	fmt.Fprintf(c.Out, "Version: %v\n", status["version"])
	fmt.Fprintf(c.Out, "Uptime: %v\n", status["uptime"])
	if n, ok := status["profiles"].(float64); ok {
		fmt.Fprintf(c.Out, "Profiles: %.0f\n", n)
	}
	active := "none"
	if p, ok := status["active_profile"].(map[string]interface{}); ok {
		active = fmt.Sprintf("%v (%v)", p["name"], p["id"])
	}
	fmt.Fprintf(c.Out, "Active profile: %s\n", active)
	fmt.Fprintf(c.Out, "PAC installed: %v\n", status["pac_present"])
	return nil
}

// ListProfiles prints a table of profiles.
func (c *APIClient) ListProfiles(ctx context.Context) error {
	var profiles []map[string]interface{}
	if err := c.getJSON(ctx, "/api/v1/profiles", &profiles); err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACTIVE\tNAME\tID\tADAPTER\tPROXY\tRULES")
	for _, p := range profiles {
		mark := ""
		if p["active"] == true {
			mark = "*"
		}
		name := p["name"]
		if p["is_default"] == true {
			name = fmt.Sprintf("%v [default]", name)
		}
		fmt.Fprintf(w, "%s\t%v\t%v\t%v\t%v\t%v\n", mark, name, p["id"], p["adapter"], p["proxy_enabled"], p["rules"])
	}
	return w.Flush()
}

// Apply applies a profile and prints the outcome. A failed apply is
// returned as an error.
func (c *APIClient) Apply(ctx context.Context, ref string) error {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	err := c.callJSON(ctx, http.MethodPost, "/api/v1/profiles/"+url.PathEscape(ref)+"/apply", &resp,
		http.StatusInternalServerError)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("apply failed: %s", resp.Message)
	}
	fmt.Fprintln(c.Out, resp.Message)
	return nil
}

// Match prints the rule of a profile that matches domain.
func (c *APIClient) Match(ctx context.Context, ref, domain string) error {
	var result struct {
		Domain  string `json:"domain"`
		Matched bool   `json:"matched"`
		Rule    *struct {
			Name      string `json:"name"`
			Pattern   string `json:"pattern"`
			MatchType string `json:"match_type"`
		} `json:"rule"`
		Gateway string `json:"gateway"`
		Proxy   string `json:"proxy"`
	}
	path := "/api/v1/profiles/" + url.PathEscape(ref) + "/match?domain=" + url.QueryEscape(domain)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return err
	}

	fmt.Fprintf(c.Out, "Domain: %s\n", result.Domain)
	if !result.Matched || result.Rule == nil {
		fmt.Fprintln(c.Out, "Rule: none")
	} else {
		name := result.Rule.Name
		if name == "" {
			name = result.Rule.Pattern
		}
		fmt.Fprintf(c.Out, "Rule: %s (%s %s)\n", name, result.Rule.MatchType, result.Rule.Pattern)
	}
	if result.Gateway != "" {
		fmt.Fprintf(c.Out, "Gateway: %s\n", result.Gateway)
	}
	fmt.Fprintf(c.Out, "Proxy: %s\n", result.Proxy)
	return nil
}

// ShowHistory prints recent applies, newest first.
func (c *APIClient) ShowHistory(ctx context.Context, count int) error {
	var entries []struct {
		Timestamp   time.Time `json:"timestamp"`
		ProfileName string    `json:"profile_name"`
		Success     bool      `json:"success"`
		Message     string    `json:"message"`
		Duration    int64     `json:"duration_ms"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/history?limit=%d", count), &entries); err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPROFILE\tOK\tDURATION\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%v\t%dms\t%s\n",
			e.Timestamp.Local().Format("15:04:05"), e.ProfileName, e.Success, e.Duration, e.Message)
	}
	return w.Flush()
}

// CheckHealth checks API health.
func (c *APIClient) CheckHealth(ctx context.Context) error {
	var health map[string]interface{}
	if err := c.getJSON(ctx, "/api/v1/health", &health); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Health: %v\n", health["status"])
	return nil
}
