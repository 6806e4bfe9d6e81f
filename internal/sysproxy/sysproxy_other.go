//go:build !windows

package sysproxy

// Without a system-wide proxy registry the configuration lives in memory for
// the lifetime of the process.
func newPlatformManager() Manager {
	return NewMemory()
}
