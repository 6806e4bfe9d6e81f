// Package pac compiles route rules into a proxy auto-config script.
package pac

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"github.com/rennerdo30/gateway-switcher/internal/matcher"
	"github.com/rennerdo30/gateway-switcher/internal/profile"
)

// Direct is the PAC action for a connection without proxy.
const Direct = "DIRECT"

// ContentType is the MIME type PAC consumers expect.
const ContentType = "application/x-ns-proxy-autoconfig"

var pacTemplate = template.Must(template.New("pac").Parse(`// Gateway Switcher Auto-Generated PAC File
// Do not edit manually - changes will be overwritten

function FindProxyForURL(url, host) {
    // Normalize hostname
    host = host.toLowerCase();

    // Custom route rules
{{- range .Clauses}}
{{- if .Comment}}
    // {{.Comment}}
{{- end}}
    if ({{.Condition}}) return "{{.Action}}";
{{- end}}

    // Default
    return "{{.Default}}";
}
`))

// Default describes the fallback proxy used when no rule matches.
type Default struct {
	Enabled bool
	Server  string
	Port    int
}

// Action returns "PROXY server:port" for an enabled default proxy with a
// server, otherwise DIRECT.
func (d Default) Action() string {
	if d.Enabled && d.Server != "" {
		return proxyAction(d.Server, d.Port)
	}
	return Direct
}

type clause struct {
	Comment   string
	Condition string
	Action    string
}

// Action returns the PAC action a rule contributes. ok is false for rules
// that do not affect proxy selection.
func Action(r profile.RouteRule) (action string, ok bool) {
	switch {
	case r.BypassProxy:
		return Direct, true
	case r.HasCustomProxy():
		return proxyAction(r.CustomProxyServer, r.CustomProxyPort), true
	}
	return "", false
}

// Condition returns the JavaScript test for the host against the rule's
// pattern. Literal patterns are compared in lower case.
func Condition(kind matcher.Type, pattern string) string {
	switch kind {
	case matcher.TypeExact:
		return `host == "` + literal(pattern) + `"`
	case matcher.TypeSuffix:
		p := literal(pattern)
		return `host == "` + p + `" || dnsDomainIs(host, ".` + p + `")`
	case matcher.TypeContains:
		return `host.indexOf("` + literal(pattern) + `") !== -1`
	default:
		return `shExpMatch(host, "` + escapeJS(pattern) + `")`
	}
}

// Generate renders the script for the enabled proxy-affecting rules in order,
// followed by the default action. Equal input yields byte-identical output.
func Generate(rules []profile.RouteRule, def Default) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, rules, def); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Write renders the script to w.
func Write(w io.Writer, rules []profile.RouteRule, def Default) error {
	var clauses []clause
	for _, r := range rules {
		if !r.Enabled || r.Pattern == "" {
			continue
		}
		action, ok := Action(r)
		if !ok {
			continue
		}
		clauses = append(clauses, clause{
			Comment:   comment(r.Name),
			Condition: Condition(r.MatchType, r.Pattern),
			Action:    action,
		})
	}

	err := pacTemplate.Execute(w, struct {
		Clauses []clause
		Default string
	}{clauses, def.Action()})
	if err != nil {
		return fmt.Errorf("render PAC script: %w", err)
	}
	return nil
}

func proxyAction(server string, port int) string {
	return "PROXY " + escapeJS(server) + ":" + strconv.Itoa(port)
}

func literal(s string) string {
	return escapeJS(strings.ToLower(s))
}

// comment flattens a rule name onto a single comment line.
func comment(name string) string {
	name = strings.TrimSpace(name)
	return strings.NewReplacer("\r", " ", "\n", " ", "*/", "* /").Replace(name)
}

// escapeJS escapes a string for use inside a double-quoted JavaScript literal.
func escapeJS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "'", "\\'")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}
