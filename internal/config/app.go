package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rennerdo30/gateway-switcher/internal/accesscontrol"
	"github.com/rennerdo30/gateway-switcher/internal/logging"
	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// AppDirName is the per-user directory holding profiles, the PAC file and
// the config file.
const AppDirName = "GatewaySwitcher"

// AppConfig is the gwswitch configuration.
type AppConfig struct {
	ProfilesPath string          `yaml:"profiles_path" json:"profiles_path"`
	PACPath      string          `yaml:"pac_path" json:"pac_path"`
	Adapter      string          `yaml:"adapter" json:"adapter"`
	Resolver     ResolverConfig  `yaml:"resolver" json:"resolver"`
	Commands     CommandsConfig  `yaml:"commands" json:"commands"`
	API          APIConfig       `yaml:"api" json:"api"`
	Metrics      MetricsConfig   `yaml:"metrics" json:"metrics"`
	Logging      logging.Config  `yaml:"logging" json:"logging"`
	// DefaultProfilePasswordHash is the bcrypt hash guarding updates of the
	// default profile from live system state. Empty disables the update.
	DefaultProfilePasswordHash string `yaml:"default_profile_password_hash" json:"-"`
}

// ResolverConfig selects the DNS servers used to resolve gateway rule
// patterns. Without upstream servers the system resolver is used.
type ResolverConfig struct {
	Upstream []string `yaml:"upstream,omitempty" json:"upstream,omitempty"`
	Timeout  Duration `yaml:"timeout" json:"timeout"`
}

// CommandsConfig bounds external commands (route, netsh, resolvectl).
type CommandsConfig struct {
	Timeout Duration `yaml:"timeout" json:"timeout"`
}

// APIConfig contains local control API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
	Token   string `yaml:"token" json:"-"`
	// AllowedClients are IPs and CIDR ranges permitted to call the API.
	// Empty allows every client that can reach Listen.
	AllowedClients []string `yaml:"allowed_clients,omitempty" json:"allowed_clients,omitempty"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled            bool     `yaml:"enabled" json:"enabled"`
	CollectionInterval Duration `yaml:"collection_interval" json:"collection_interval"`
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// AppDir returns the per-user data directory, falling back to the working
// directory when the OS reports none.
func AppDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return AppDirName
	}
	return filepath.Join(dir, AppDirName)
}

// DefaultPath is where the config file lives unless --config says otherwise.
func DefaultPath() string {
	return filepath.Join(AppDir(), "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() AppConfig {
	dir := AppDir()
	return AppConfig{
		ProfilesPath: filepath.Join(dir, "profiles.json"),
		PACPath:      filepath.Join(dir, "proxy.pac"),
		Resolver: ResolverConfig{
			Timeout: Duration(5 * time.Second),
		},
		Commands: CommandsConfig{
			Timeout: Duration(util.DefaultCommandTimeout),
		},
		API: APIConfig{
			Listen: "127.0.0.1:7390",
		},
		Metrics: MetricsConfig{
			Enabled:            true,
			CollectionInterval: Duration(15 * time.Second),
		},
		Logging: logging.DefaultConfig(),
	}
}

// LoadApp reads path over the defaults and validates the result. A missing
// file yields the defaults.
func LoadApp(path string) (AppConfig, error) {
	cfg := DefaultAppConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if err := LoadAndValidate(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *AppConfig) Validate() error {
	if c.ProfilesPath == "" {
		return fmt.Errorf("%w: profiles_path is required", util.ErrInvalidConfig)
	}
	if c.PACPath == "" {
		return fmt.Errorf("%w: pac_path is required", util.ErrInvalidConfig)
	}
	if c.Resolver.Timeout < 0 {
		return fmt.Errorf("%w: resolver.timeout must not be negative", util.ErrInvalidConfig)
	}
	if c.Commands.Timeout < 0 {
		return fmt.Errorf("%w: commands.timeout must not be negative", util.ErrInvalidConfig)
	}
	for _, s := range c.Resolver.Upstream {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: empty resolver upstream", util.ErrInvalidConfig)
		}
	}
	if c.API.Enabled {
		if c.API.Listen == "" {
			return fmt.Errorf("%w: api.listen is required when the API is enabled", util.ErrInvalidConfig)
		}
		if _, _, err := net.SplitHostPort(c.API.Listen); err != nil {
			return fmt.Errorf("%w: api.listen: %v", util.ErrInvalidConfig, err)
		}
	}
	if _, err := accesscontrol.Parse(c.API.AllowedClients); err != nil {
		return fmt.Errorf("%w: api.allowed_clients: %v", util.ErrInvalidConfig, err)
	}
	if c.DefaultProfilePasswordHash != "" && !strings.HasPrefix(c.DefaultProfilePasswordHash, "$2") {
		return fmt.Errorf("%w: default_profile_password_hash is not a bcrypt hash", util.ErrInvalidConfig)
	}
	return nil
}
