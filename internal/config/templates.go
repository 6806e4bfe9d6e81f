package config

// DefaultConfigTemplate is the commented configuration written by
// "gwswitch config init".
const DefaultConfigTemplate = `# Gateway Switcher configuration
# Relative paths are resolved from the working directory.
# ${VAR} references are expanded from the environment.

# Profile document (JSON). Defaults to the per-user GatewaySwitcher directory.
# profiles_path: "/path/to/profiles.json"

# Generated PAC script. The system auto-config URL points here while a
# profile with proxy rules is active.
# pac_path: "/path/to/proxy.pac"

# Adapter used when a profile does not name one.
adapter: ""

# DNS resolution of gateway rule patterns.
resolver:
  upstream: []          # e.g. ["10.0.0.53", "1.1.1.1:53"]; empty uses the system resolver
  timeout: "5s"

# Timeout of each external command (route, netsh, resolvectl, dhclient).
commands:
  timeout: "30s"

# Local control API used by "gwswitch ctl".
api:
  enabled: false
  listen: "127.0.0.1:7390"
  token: ""             # Bearer token; empty disables authentication
  allowed_clients: []   # IPs or CIDRs allowed to call the API; empty allows all

# Prometheus metrics, served by the API at /metrics.
metrics:
  enabled: true
  collection_interval: "15s"

# bcrypt hash required to refresh the default profile from system state.
# Generate one with: gwswitch config hash-password
default_profile_password_hash: ""

logging:
  level: info           # debug, info, warn, error
  format: text          # text, json
  output: stderr        # stdout, stderr, or a file path
  time_format: "2006-01-02T15:04:05.000Z07:00"
`
