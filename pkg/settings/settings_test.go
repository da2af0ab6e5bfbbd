package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/switchd/pkg/manager"
)

func TestSettings_Defaults(t *testing.T) {
	s := &Settings{}

	if got := s.GetRedisAddr(); got != "127.0.0.1:6379" {
		t.Errorf("GetRedisAddr() default = %q", got)
	}
	if got := s.GetASICDB(); got != 1 {
		t.Errorf("GetASICDB() default = %d, want 1", got)
	}
	if got := s.GetSSHPort(); got != 22 {
		t.Errorf("GetSSHPort() default = %d, want 22", got)
	}
	if got := s.GetStateDir(); got != "/var/lib/switchd" {
		t.Errorf("GetStateDir() default = %q", got)
	}
	if p, err := s.GetPolicy(); err != nil || p != manager.ContinueOnError {
		t.Errorf("GetPolicy() default = %v, %v", p, err)
	}
}

func TestSettings_ASICDBZeroIsExplicit(t *testing.T) {
	s := &Settings{}
	s.SetASICDB(0)
	if got := s.GetASICDB(); got != 0 {
		t.Errorf("GetASICDB() = %d, want explicit 0", got)
	}
}

func TestSettings_Set(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    bool
		check      func(*Settings) bool
	}{
		{"redis_addr", "10.0.0.1:6379", false, func(s *Settings) bool { return s.GetRedisAddr() == "10.0.0.1:6379" }},
		{"asic_db", "3", false, func(s *Settings) bool { return s.GetASICDB() == 3 }},
		{"ssh_port", "2222", false, func(s *Settings) bool { return s.GetSSHPort() == 2222 }},
		{"ssh_host", "leaf1", false, func(s *Settings) bool { return s.SSHHost == "leaf1" }},
		{"ssh_known_hosts", "/etc/ssh/ssh_known_hosts", false, func(s *Settings) bool { return s.SSHKnownHosts == "/etc/ssh/ssh_known_hosts" }},
		{"policy", "abort", false, func(s *Settings) bool { p, _ := s.GetPolicy(); return p == manager.AbortOnError }},
		{"policy", "sometimes", true, nil},
		{"asic_db", "one", true, nil},
		{"colour", "blue", true, nil},
	}

	for _, tt := range tests {
		s := &Settings{}
		err := s.Set(tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			continue
		}
		if tt.check != nil && !tt.check(s) {
			t.Errorf("Set(%q, %q) did not apply: %+v", tt.key, tt.value, s)
		}
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{RedisAddr: "x", SSHHost: "h", Policy: "abort"}
	s.SetASICDB(2)

	s.Clear()

	if diff := cmp.Diff(&Settings{}, s); diff != "" {
		t.Errorf("Clear() left fields set:\n%s", diff)
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	original := &Settings{
		RedisAddr:  "10.1.1.1:6379",
		SSHHost:    "leaf1",
		SSHUser:    "admin",
		ConfigPath: "/etc/switchd/switch.yaml",
		StateDir:   "/tmp/switchd",
		AuditLog:   "/var/log/switchd/audit.log",
		Policy:     "abort",
	}
	original.SetASICDB(1)

	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}
	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if diff := cmp.Diff(original, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSettings_LoadNonExistent(t *testing.T) {
	s, err := LoadFrom("/nonexistent/path/settings.json")
	if err != nil {
		t.Fatalf("LoadFrom() non-existent should not error: %v", err)
	}
	if s == nil || s.RedisAddr != "" {
		t.Error("LoadFrom() non-existent should return empty settings")
	}
}

func TestSettings_LoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("invalid json {"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() with invalid JSON should error")
	}
}

func TestSettings_SaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "nested", "settings.json")

	s := &Settings{RedisAddr: "x"}
	if err := s.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() should create directories: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("SaveTo() should have created the file")
	}
}

func TestDefaultSettingsPath(t *testing.T) {
	path := DefaultSettingsPath()
	if !filepath.IsAbs(path) && path != "switchd_settings.json" {
		t.Errorf("DefaultSettingsPath() should be absolute or fallback, got %q", path)
	}
}

func TestLoad(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s := &Settings{SSHHost: "spine1"}
	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".switchd", "settings.json")); err != nil {
		t.Fatalf("settings not written under HOME: %v", err)
	}
	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.SSHHost != "spine1" {
		t.Errorf("Load() SSHHost = %q", loaded.SSHHost)
	}
}
