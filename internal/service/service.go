// Package service installs gwswitch serve as a system service so profiles
// stay controllable from boot.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// DefaultName is the service name used when Config.Name is empty.
const DefaultName = "gwswitch"

// Config holds service installation configuration.
type Config struct {
	Name        string
	Description string
	// BinaryPath is the gwswitch executable. Relative paths are resolved.
	BinaryPath string
	// ConfigPath is passed to the service as --config.
	ConfigPath string
	WorkingDir string
}

// Manager installs, removes and inspects the service.
type Manager struct {
	config Config
	goos   string
	run    util.CommandRunner
	// unitDir overrides the systemd or launchd directory.
	unitDir string
}

// Option configures a Manager.
type Option func(*Manager)

// WithRunner replaces the command runner used for systemctl, launchctl and
// sc.
func WithRunner(run util.CommandRunner) Option {
	return func(m *Manager) { m.run = run }
}

// WithPlatform overrides the target platform (runtime.GOOS by default).
func WithPlatform(goos string) Option {
	return func(m *Manager) { m.goos = goos }
}

// WithUnitDir overrides where unit and plist files are written.
func WithUnitDir(dir string) Option {
	return func(m *Manager) { m.unitDir = dir }
}

// New creates a service manager.
func New(cfg Config, opts ...Option) (*Manager, error) {
	for _, p := range []*string{&cfg.BinaryPath, &cfg.ConfigPath} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, fmt.Errorf("resolve path %s: %w", *p, err)
		}
		*p = abs
	}
	if cfg.BinaryPath == "" {
		return nil, errors.New("binary path is required")
	}
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = filepath.Dir(cfg.BinaryPath)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Description == "" {
		cfg.Description = "Gateway Switcher control API"
	}

	m := &Manager{
		config: cfg,
		goos:   runtime.GOOS,
		run:    util.NewCommandRunner(util.DefaultCommandTimeout),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name returns the service name.
func (m *Manager) Name() string {
	return m.config.Name
}

// Install registers the service and returns a hint on how to start it.
func (m *Manager) Install(ctx context.Context) (string, error) {
	if _, err := os.Stat(m.config.BinaryPath); err != nil {
		return "", fmt.Errorf("binary not found: %s", m.config.BinaryPath)
	}
	if m.config.ConfigPath != "" {
		if _, err := os.Stat(m.config.ConfigPath); err != nil {
			return "", fmt.Errorf("config not found: %s", m.config.ConfigPath)
		}
	}

	switch m.goos {
	case "linux":
		return m.installSystemd(ctx)
	case "darwin":
		return m.installLaunchd(ctx)
	case "windows":
		return m.installWindows(ctx)
	default:
		return "", fmt.Errorf("%w: services on %s", util.ErrNotSupported, m.goos)
	}
}

// Uninstall stops and removes the service.
func (m *Manager) Uninstall(ctx context.Context) error {
	switch m.goos {
	case "linux":
		return m.uninstallSystemd(ctx)
	case "darwin":
		return m.uninstallLaunchd(ctx)
	case "windows":
		return m.uninstallWindows(ctx)
	default:
		return fmt.Errorf("%w: services on %s", util.ErrNotSupported, m.goos)
	}
}

// Status describes the installation and run state.
func (m *Manager) Status(ctx context.Context) (string, error) {
	switch m.goos {
	case "linux":
		return m.statusSystemd(ctx), nil
	case "darwin":
		return m.statusLaunchd(ctx), nil
	case "windows":
		return m.statusWindows(ctx), nil
	default:
		return "", fmt.Errorf("%w: services on %s", util.ErrNotSupported, m.goos)
	}
}

// Args is the command line the service runs.
func (m *Manager) Args() []string {
	args := []string{m.config.BinaryPath}
	if m.config.ConfigPath != "" {
		args = append(args, "--config", m.config.ConfigPath)
	}
	return append(args, "serve")
}

func render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

func (m *Manager) templateData() map[string]any {
	return map[string]any{
		"Name":        m.config.Name,
		"Description": m.config.Description,
		"WorkingDir":  m.config.WorkingDir,
		"Args":        m.Args(),
		"ExecStart":   strings.Join(quoteAll(m.Args()), " "),
	}
}

// quoteAll double-quotes arguments containing spaces.
func quoteAll(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t") {
			a = `"` + a + `"`
		}
		out[i] = a
	}
	return out
}
