// Package hostconfig loads the collector's host-level configuration file
// (time zone and NTP settings, privilege elevation behavior), independent
// of the per-run workflow definition.
package hostconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Time describes the collector's clock-discipline settings: whether to
// trust the system clock as-is or query NTP servers before timestamping
// collected evidence, and the zone to render timestamps in.
type Time struct {
	TimeZone   string   `yaml:"time_zone"`
	NTPEnabled bool     `yaml:"ntp_enabled"`
	NTPServers []string `yaml:"ntp_servers"`
	NTPTimeout uint32   `yaml:"ntp_timeout"`
}

// Config is the top-level shape of config.yaml.
type Config struct {
	Time    Time `yaml:"time"`
	Elevate bool `yaml:"elevate"`
}

// DefaultConfig returns the settings used when no config.yaml is present:
// local system clock, no NTP, no elevation requirement.
func DefaultConfig() Config {
	return Config{
		Time: Time{
			TimeZone:   "UTC",
			NTPEnabled: false,
			NTPServers: nil,
			NTPTimeout: 5,
		},
		Elevate: false,
	}
}

// Load reads and parses a config.yaml file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("hostconfig: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("hostconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load, but returns DefaultConfig() instead of
// an error when path does not exist.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}
