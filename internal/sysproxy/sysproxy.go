// Package sysproxy reads and writes the system-wide proxy configuration.
package sysproxy

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"

	"github.com/rennerdo30/gateway-switcher/internal/profile"
	"github.com/rennerdo30/gateway-switcher/internal/result"
	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// Registry value names under the Internet Settings key.
const (
	valueEnable        = "ProxyEnable"
	valueServer        = "ProxyServer"
	valueOverride      = "ProxyOverride"
	valueAutoConfigURL = "AutoConfigURL"
)

// Manager allows managing system proxy settings.
type Manager interface {
	// Current reads the live proxy configuration.
	Current() (profile.ProxySettings, error)
	// Apply writes s and notifies the OS of the change.
	Apply(s profile.ProxySettings) result.Result
	// SetAutoConfigURL points the OS at a PAC script. An empty url removes it.
	SetAutoConfigURL(url string) error
}

// New returns a new system proxy manager for the current platform.
func New() Manager {
	return newPlatformManager()
}

// ErrNotSupported is returned when the platform does not support system proxy configuration.
var ErrNotSupported = util.ErrNotSupported

// keyStore is the value store behind the proxy settings.
type keyStore interface {
	GetString(name string) (string, error)
	GetDWord(name string) (uint32, error)
	SetString(name, value string) error
	SetDWord(name string, value uint32) error
	DeleteValue(name string) error
	Close() error
}

// keyManager implements Manager over a keyStore.
type keyManager struct {
	open   func(write bool) (keyStore, error)
	notify func()
}

func (m *keyManager) Current() (profile.ProxySettings, error) {
	s := profile.DefaultProxySettings()

	k, err := m.open(false)
	if err != nil {
		return s, fmt.Errorf("open proxy settings: %w", err)
	}
	defer k.Close()

	if v, err := k.GetDWord(valueEnable); err == nil {
		s.Enabled = v == 1
	}
	if v, err := k.GetString(valueServer); err == nil {
		if host, port, ok := ParseServer(v); ok {
			s.ProxyServer = host
			if port > 0 {
				s.ProxyPort = port
			}
		}
	}
	if v, err := k.GetString(valueOverride); err == nil {
		s.BypassList = v
		s.BypassLocal = strings.Contains(v, profile.LocalBypass)
	}
	return s, nil
}

func (m *keyManager) Apply(s profile.ProxySettings) result.Result {
	if err := m.write(s); err != nil {
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, util.ErrPermission) {
			return result.Fail("Permission denied. Run as administrator to change proxy settings.")
		}
		return result.Failf("Failed to apply proxy settings: %v", err)
	}
	m.notify()

	msg := "Proxy settings applied successfully."
	if s.Enabled && s.UseAuthentication {
		msg += " Note: Some apps may prompt for credentials."
	}
	return result.OK(msg)
}

func (m *keyManager) write(s profile.ProxySettings) error {
	k, err := m.open(true)
	if err != nil {
		return fmt.Errorf("open proxy settings: %w", err)
	}
	defer k.Close()

	var enable uint32
	if s.Enabled {
		enable = 1
	}
	if err := k.SetDWord(valueEnable, enable); err != nil {
		return fmt.Errorf("set %s: %w", valueEnable, err)
	}

	if !s.Enabled {
		// The bypass list is left alone so re-enabling restores it.
		if err := k.SetString(valueServer, ""); err != nil {
			return fmt.Errorf("set %s: %w", valueServer, err)
		}
		return nil
	}

	if err := k.SetString(valueServer, s.FullAddress()); err != nil {
		return fmt.Errorf("set %s: %w", valueServer, err)
	}
	if err := k.SetString(valueOverride, s.EffectiveBypass()); err != nil {
		return fmt.Errorf("set %s: %w", valueOverride, err)
	}
	return nil
}

func (m *keyManager) SetAutoConfigURL(url string) error {
	k, err := m.open(true)
	if err != nil {
		return fmt.Errorf("open proxy settings: %w", err)
	}
	defer k.Close()

	if url == "" {
		if err := k.DeleteValue(valueAutoConfigURL); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", valueAutoConfigURL, err)
		}
	} else if err := k.SetString(valueAutoConfigURL, url); err != nil {
		return fmt.Errorf("set %s: %w", valueAutoConfigURL, err)
	}
	m.notify()
	return nil
}

// ParseServer parses a ProxyServer value. Both "host:port" and the
// per-protocol "http=host:port;https=host:port" forms are accepted; for the
// latter the http entry is used. port is 0 when absent or malformed.
func ParseServer(value string) (host string, port int, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", 0, false
	}
	if strings.Contains(value, "=") {
		found := false
		for _, entry := range strings.Split(value, ";") {
			if addr, match := strings.CutPrefix(strings.TrimSpace(entry), "http="); match {
				value, found = addr, true
				break
			}
		}
		if !found {
			return "", 0, false
		}
	}
	host, portStr, hasPort := strings.Cut(value, ":")
	if hasPort {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}
	return host, port, host != ""
}

// memoryStore is a keyStore held in process memory.
type memoryStore struct {
	mu     sync.Mutex
	values map[string]any
}

func (s *memoryStore) get(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return v, nil
}

func (s *memoryStore) GetString(name string) (string, error) {
	v, err := s.get(name)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s is not a string value", name)
	}
	return str, nil
}

func (s *memoryStore) GetDWord(name string) (uint32, error) {
	v, err := s.get(name)
	if err != nil {
		return 0, err
	}
	d, ok := v.(uint32)
	if !ok {
		return 0, fmt.Errorf("%s is not a DWORD value", name)
	}
	return d, nil
}

func (s *memoryStore) set(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
	return nil
}

func (s *memoryStore) SetString(name, value string) error { return s.set(name, value) }

func (s *memoryStore) SetDWord(name string, value uint32) error { return s.set(name, value) }

func (s *memoryStore) DeleteValue(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[name]; !ok {
		return fs.ErrNotExist
	}
	delete(s.values, name)
	return nil
}

func (s *memoryStore) Close() error { return nil }

// Memory is a Manager that keeps the proxy configuration in process memory.
// It stands in for the OS on platforms without a settings registry and in
// tests.
type Memory struct {
	keyManager
	store *memoryStore
}

// NewMemory returns an empty in-memory manager.
func NewMemory() *Memory {
	store := &memoryStore{values: make(map[string]any)}
	m := &Memory{store: store}
	m.keyManager = keyManager{
		open:   func(bool) (keyStore, error) { return store, nil },
		notify: func() {},
	}
	return m
}

// AutoConfigURL returns the stored PAC URL.
func (m *Memory) AutoConfigURL() string {
	v, _ := m.store.GetString(valueAutoConfigURL)
	return v
}

// Value returns a raw stored value by registry name.
func (m *Memory) Value(name string) (any, bool) {
	v, err := m.store.get(name)
	return v, err == nil
}
