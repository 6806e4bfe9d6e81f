package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Name}}</string>
    <key>ProgramArguments</key>
    <array>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>WorkingDirectory</key>
    <string>{{.WorkingDir}}</string>
</dict>
</plist>
`

// LaunchdPlist renders the launchd property list.
func (m *Manager) LaunchdPlist() (string, error) {
	return render("launchd", launchdTemplate, m.templateData())
}

// launchdPath uses LaunchDaemons; routes and network settings need root.
func (m *Manager) launchdPath() string {
	dir := m.unitDir
	if dir == "" {
		dir = "/Library/LaunchDaemons"
	}
	return filepath.Join(dir, m.config.Name+".plist")
}

func (m *Manager) installLaunchd(ctx context.Context) (string, error) {
	plist, err := m.LaunchdPlist()
	if err != nil {
		return "", err
	}
	path := m.launchdPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil { //nolint:gosec // G301: launchd directories are world-readable
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(plist), 0644); err != nil { //nolint:gosec // G306: plists are world-readable
		return "", fmt.Errorf("write plist: %w (try running with sudo)", err)
	}
	if _, err := m.run(ctx, "launchctl", "load", path); err != nil {
		return "", fmt.Errorf("load service: %w", err)
	}
	return fmt.Sprintf("Service installed: %s\nService is now running.", path), nil
}

func (m *Manager) uninstallLaunchd(ctx context.Context) error {
	path := m.launchdPath()
	_, _ = m.run(ctx, "launchctl", "unload", path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist: %w", err)
	}
	return nil
}

func (m *Manager) statusLaunchd(ctx context.Context) string {
	if _, err := os.Stat(m.launchdPath()); os.IsNotExist(err) {
		return "not installed"
	}
	out, err := m.run(ctx, "launchctl", "list", m.config.Name)
	if err != nil || !strings.Contains(string(out), m.config.Name) {
		return "installed (not running)"
	}
	return "installed (running)"
}
