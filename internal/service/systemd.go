package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const systemdTemplate = `[Unit]
Description={{.Description}}
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.ExecStart}}
WorkingDirectory={{.WorkingDir}}
Restart=on-failure
RestartSec=5
StandardOutput=journal
StandardError=journal
SyslogIdentifier={{.Name}}

[Install]
WantedBy=multi-user.target
`

// SystemdUnit renders the unit file.
func (m *Manager) SystemdUnit() (string, error) {
	return render("systemd", systemdTemplate, m.templateData())
}

func (m *Manager) systemdPath() string {
	dir := m.unitDir
	if dir == "" {
		dir = "/etc/systemd/system"
	}
	return filepath.Join(dir, m.config.Name+".service")
}

func (m *Manager) installSystemd(ctx context.Context) (string, error) {
	unit, err := m.SystemdUnit()
	if err != nil {
		return "", err
	}
	path := m.systemdPath()
	if err := os.WriteFile(path, []byte(unit), 0644); err != nil { //nolint:gosec // G306: unit files are world-readable
		return "", fmt.Errorf("write unit file: %w (try running with sudo)", err)
	}
	if _, err := m.run(ctx, "systemctl", "daemon-reload"); err != nil {
		return "", fmt.Errorf("reload systemd: %w", err)
	}
	if _, err := m.run(ctx, "systemctl", "enable", m.config.Name); err != nil {
		return "", fmt.Errorf("enable service: %w", err)
	}
	return fmt.Sprintf("Service installed: %s\nStart with: sudo systemctl start %s", path, m.config.Name), nil
}

func (m *Manager) uninstallSystemd(ctx context.Context) error {
	_, _ = m.run(ctx, "systemctl", "stop", m.config.Name)
	_, _ = m.run(ctx, "systemctl", "disable", m.config.Name)
	if err := os.Remove(m.systemdPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}
	_, _ = m.run(ctx, "systemctl", "daemon-reload")
	return nil
}

func (m *Manager) statusSystemd(ctx context.Context) string {
	if _, err := os.Stat(m.systemdPath()); os.IsNotExist(err) {
		return "not installed"
	}
	out, err := m.run(ctx, "systemctl", "is-active", m.config.Name)
	if err != nil {
		return "installed (inactive)"
	}
	return fmt.Sprintf("installed (%s)", strings.TrimSpace(string(out)))
}
