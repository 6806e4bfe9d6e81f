package service

import (
	"context"
	"fmt"
	"strings"
)

func (m *Manager) installWindows(ctx context.Context) (string, error) {
	binPath := strings.Join(quoteAll(m.Args()), " ")
	if _, err := m.run(ctx, "sc", "create", m.config.Name,
		"binPath=", binPath,
		"DisplayName=", m.config.Description,
		"start=", "auto",
	); err != nil {
		return "", fmt.Errorf("create service: %w", err)
	}
	_, _ = m.run(ctx, "sc", "description", m.config.Name, m.config.Description)
	return fmt.Sprintf("Service installed: %s\nStart with: sc start %s", m.config.Name, m.config.Name), nil
}

func (m *Manager) uninstallWindows(ctx context.Context) error {
	_, _ = m.run(ctx, "sc", "stop", m.config.Name)
	if _, err := m.run(ctx, "sc", "delete", m.config.Name); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}

func (m *Manager) statusWindows(ctx context.Context) string {
	out, err := m.run(ctx, "sc", "query", m.config.Name)
	if err != nil {
		return "not installed"
	}
	switch s := string(out); {
	case strings.Contains(s, "RUNNING"):
		return "installed (running)"
	case strings.Contains(s, "STOPPED"):
		return "installed (stopped)"
	}
	return "installed"
}
