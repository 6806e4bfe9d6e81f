// Package artifact stores the generated PAC script.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is the PAC file name inside the data directory.
const DefaultFileName = "proxy.pac"

// Sink persists the PAC script and exposes its location.
type Sink interface {
	WritePAC(script string) error
	RemovePAC() error
	Exists() bool
	// URL is the address OS proxy settings use to load the script.
	URL() string
}

// File is a Sink backed by a file on disk.
type File struct {
	path string
}

// NewFile returns a sink writing to path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// WritePAC replaces the file atomically.
func (f *File) WritePAC(script string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create PAC directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".proxy-*.pac")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after rename

	if _, err := tmp.WriteString(script); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

// RemovePAC deletes the file. A missing file is not an error.
func (f *File) RemovePAC() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether the file is present.
func (f *File) Exists() bool {
	info, err := os.Stat(f.path)
	return err == nil && info.Mode().IsRegular()
}

// Read returns the current script.
func (f *File) Read() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// URL returns a file:/// URL for the PAC file.
func (f *File) URL() string {
	return FileURL(f.path)
}

// FileURL converts a local path to a file:/// URL. Windows drive paths keep
// their drive letter ("C:/Users/x/proxy.pac").
func FileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := strings.ReplaceAll(path, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return "file://" + u.EscapedPath()
}

// Memory is an in-process Sink for tests and dry runs.
type Memory struct {
	Script  string
	Present bool
	// Location is returned by URL.
	Location string
}

func (m *Memory) WritePAC(script string) error {
	m.Script, m.Present = script, true
	return nil
}

func (m *Memory) RemovePAC() error {
	m.Script, m.Present = "", false
	return nil
}

func (m *Memory) Exists() bool { return m.Present }

func (m *Memory) URL() string { return m.Location }
