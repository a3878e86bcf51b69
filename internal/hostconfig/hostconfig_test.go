package hostconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadParsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
time:
  time_zone: "America/New_York"
  ntp_enabled: true
  ntp_servers:
    - "pool.ntp.org"
  ntp_timeout: 10
elevate: true
`
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Time.TimeZone != "America/New_York" {
		t.Errorf("TimeZone = %q, want %q", cfg.Time.TimeZone, "America/New_York")
	}
	if !cfg.Time.NTPEnabled {
		t.Error("NTPEnabled = false, want true")
	}
	if len(cfg.Time.NTPServers) != 1 || cfg.Time.NTPServers[0] != "pool.ntp.org" {
		t.Errorf("NTPServers = %v, want [pool.ntp.org]", cfg.Time.NTPServers)
	}
	if cfg.Time.NTPTimeout != 10 {
		t.Errorf("NTPTimeout = %d, want 10", cfg.Time.NTPTimeout)
	}
	if !cfg.Elevate {
		t.Error("Elevate = false, want true")
	}
}

func TestLoadOrDefaultFallsBackWhenMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("LoadOrDefault() = %+v, want default config", cfg)
	}
}

func TestLoadReturnsErrorForMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("time: [this is not a mapping"), 0o640); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should have failed on malformed YAML")
	}
}
