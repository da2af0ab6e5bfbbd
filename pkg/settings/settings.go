// Package settings manages persistent settings for the switchd agent.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/newtron-network/switchd/pkg/manager"
)

const (
	defaultRedisAddr = "127.0.0.1:6379"
	defaultStateDir  = "/var/lib/switchd"
)

// Settings holds persistent agent preferences
type Settings struct {
	// RedisAddr is the address of the switch's Redis server
	RedisAddr string `json:"redis_addr,omitempty"`

	// ASICDB overrides the ASIC_DB database number
	ASICDB *int `json:"asic_db,omitempty"`

	// SSHHost, when set, reaches Redis through an SSH tunnel to this host
	SSHHost string `json:"ssh_host,omitempty"`
	SSHUser string `json:"ssh_user,omitempty"`
	SSHPort int    `json:"ssh_port,omitempty"`
	// SSHKnownHosts pins the tunnel's host key against a known_hosts file.
	SSHKnownHosts string `json:"ssh_known_hosts,omitempty"`

	// ConfigPath is the default switch config for apply
	ConfigPath string `json:"config_path,omitempty"`

	// StateDir holds the warm-boot files
	StateDir string `json:"state_dir,omitempty"`

	// AuditLog is the audit log file; empty disables auditing
	AuditLog string `json:"audit_log,omitempty"`

	// Policy is the reconcile policy: "continue" or "abort"
	Policy string `json:"policy,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "switchd_settings.json"
	}
	return filepath.Join(home, ".switchd", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetRedisAddr returns the Redis address (with fallback)
func (s *Settings) GetRedisAddr() string {
	if s.RedisAddr != "" {
		return s.RedisAddr
	}
	return defaultRedisAddr
}

// GetASICDB returns the ASIC_DB number (with fallback)
func (s *Settings) GetASICDB() int {
	if s.ASICDB != nil {
		return *s.ASICDB
	}
	return 1
}

// SetASICDB sets the ASIC_DB number
func (s *Settings) SetASICDB(db int) {
	s.ASICDB = &db
}

// GetSSHPort returns the SSH port (with fallback)
func (s *Settings) GetSSHPort() int {
	if s.SSHPort != 0 {
		return s.SSHPort
	}
	return 22
}

// GetStateDir returns the warm-boot directory (with fallback)
func (s *Settings) GetStateDir() string {
	if s.StateDir != "" {
		return s.StateDir
	}
	return defaultStateDir
}

// GetPolicy returns the parsed reconcile policy.
func (s *Settings) GetPolicy() (manager.Policy, error) {
	return manager.ParsePolicy(s.Policy)
}

// Set assigns a setting by its JSON name. It is what `switchd settings set`
// calls.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "redis_addr":
		s.RedisAddr = value
	case "ssh_host":
		s.SSHHost = value
	case "ssh_user":
		s.SSHUser = value
	case "ssh_known_hosts":
		s.SSHKnownHosts = value
	case "config_path":
		s.ConfigPath = value
	case "state_dir":
		s.StateDir = value
	case "audit_log":
		s.AuditLog = value
	case "policy":
		if _, err := manager.ParsePolicy(value); err != nil {
			return err
		}
		s.Policy = value
	case "asic_db", "ssh_port":
		var n int
		if err := json.Unmarshal([]byte(value), &n); err != nil {
			return fmt.Errorf("%s: %q is not a number", key, value)
		}
		if key == "asic_db" {
			s.SetASICDB(n)
		} else {
			s.SSHPort = n
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
