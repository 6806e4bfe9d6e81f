//go:build windows

package sysproxy

import (
	"syscall"

	"golang.org/x/sys/windows/registry"
)

var (
	modwininet            = syscall.NewLazyDLL("wininet.dll")
	procInternetSetOption = modwininet.NewProc("InternetSetOptionW")
)

const (
	INTERNET_OPTION_SETTINGS_CHANGED = 39
	INTERNET_OPTION_REFRESH          = 37
)

const internetSettingsPath = `Software\Microsoft\Windows\CurrentVersion\Internet Settings`

// registryStore adapts a registry key to keyStore. Missing values surface as
// syscall.ERROR_FILE_NOT_FOUND, which matches fs.ErrNotExist.
type registryStore struct {
	key registry.Key
}

func openRegistry(write bool) (keyStore, error) {
	access := uint32(registry.QUERY_VALUE)
	if write {
		access |= registry.SET_VALUE
	}
	k, err := registry.OpenKey(registry.CURRENT_USER, internetSettingsPath, access)
	if err != nil {
		return nil, err
	}
	return &registryStore{key: k}, nil
}

func (s *registryStore) GetString(name string) (string, error) {
	v, _, err := s.key.GetStringValue(name)
	return v, err
}

func (s *registryStore) GetDWord(name string) (uint32, error) {
	v, _, err := s.key.GetIntegerValue(name)
	return uint32(v), err
}

func (s *registryStore) SetString(name, value string) error {
	return s.key.SetStringValue(name, value)
}

func (s *registryStore) SetDWord(name string, value uint32) error {
	return s.key.SetDWordValue(name, value)
}

func (s *registryStore) DeleteValue(name string) error {
	return s.key.DeleteValue(name)
}

func (s *registryStore) Close() error {
	return s.key.Close()
}

func newPlatformManager() Manager {
	return &keyManager{open: openRegistry, notify: notifySettingsChange}
}

func notifySettingsChange() {
	// Notification only; failures are ignored.
	procInternetSetOption.Call(0, INTERNET_OPTION_SETTINGS_CHANGED, 0, 0) //nolint:errcheck
	procInternetSetOption.Call(0, INTERNET_OPTION_REFRESH, 0, 0)          //nolint:errcheck
}
