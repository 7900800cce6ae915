package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProfileFast     = "fast"
	ProfileStandard = "standard"
)

type SpeedProfile struct {
	Name            string `yaml:"-" json:"name"`
	Label           string `yaml:"label" json:"label"`
	HostConcurrency int    `yaml:"host_concurrency" json:"host_concurrency"`
	PortConcurrency int    `yaml:"port_concurrency" json:"port_concurrency"`
	ProbeTimeoutMs  int    `yaml:"probe_timeout_ms" json:"probe_timeout_ms"`
}

func (p SpeedProfile) ProbeTimeout() time.Duration {
	return time.Duration(p.ProbeTimeoutMs) * time.Millisecond
}

type DiscoveryConfig struct {
	Method             string `yaml:"method"` // auto|icmp|exec
	ARP                string `yaml:"arp"`    // auto|cache|active|off
	Interface          string `yaml:"interface"`
	PingTimeoutMs      int    `yaml:"ping_timeout_ms"`
	PingCeilingSeconds int    `yaml:"ping_ceiling_seconds"`
}

func (d DiscoveryConfig) PingTimeout() time.Duration {
	return time.Duration(d.PingTimeoutMs) * time.Millisecond
}

func (d DiscoveryConfig) PingCeiling() time.Duration {
	return time.Duration(d.PingCeilingSeconds) * time.Second
}

// NetworkConfig pins parts of the network profile instead of detecting them.
type NetworkConfig struct {
	LocalIP string `yaml:"local_ip"`
	Gateway string `yaml:"gateway"`
	Subnet  string `yaml:"subnet"`
}

type WebUIConfig struct {
	Listen string `yaml:"listen"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// NotifyConfig controls alerts for ports that were not open on the
// previous scan.
type NotifyConfig struct {
	MinRisk  string         `yaml:"min_risk"` // low|medium|high
	Telegram TelegramConfig `yaml:"telegram"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console|json
}

type Config struct {
	DBPath        string                  `yaml:"db_path"`
	SpeedProfile  string                  `yaml:"speed_profile"`
	Profiles      map[string]SpeedProfile `yaml:"profiles"`
	ProgressEvery int                     `yaml:"progress_every"`
	HistoryLimit  int                     `yaml:"history_limit"`

	Discovery DiscoveryConfig `yaml:"discovery"`
	Network   NetworkConfig   `yaml:"network"`
	WebUI     WebUIConfig     `yaml:"webui"`
	Database  DatabaseConfig  `yaml:"database"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
}

func DefaultProfiles() map[string]SpeedProfile {
	return map[string]SpeedProfile{
		ProfileFast: {
			Name:            ProfileFast,
			Label:           "Fast",
			HostConcurrency: 254,
			PortConcurrency: 500,
			ProbeTimeoutMs:  100,
		},
		ProfileStandard: {
			Name:            ProfileStandard,
			Label:           "Standard",
			HostConcurrency: 50,
			PortConcurrency: 50,
			ProbeTimeoutMs:  500,
		},
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a YAML file. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "data/homeports.db"
	}

	profiles := DefaultProfiles()
	for name, p := range c.Profiles {
		name = strings.ToLower(strings.TrimSpace(name))
		base, ok := profiles[name]
		if !ok {
			base = profiles[ProfileStandard]
			base.Label = name
		}
		if p.Label != "" {
			base.Label = p.Label
		}
		if p.HostConcurrency > 0 {
			base.HostConcurrency = p.HostConcurrency
		}
		if p.PortConcurrency > 0 {
			base.PortConcurrency = p.PortConcurrency
		}
		if p.ProbeTimeoutMs > 0 {
			base.ProbeTimeoutMs = p.ProbeTimeoutMs
		}
		base.Name = name
		profiles[name] = base
	}
	c.Profiles = profiles

	c.SpeedProfile = strings.ToLower(strings.TrimSpace(c.SpeedProfile))
	if c.SpeedProfile == "" {
		c.SpeedProfile = ProfileFast
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 50
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}

	if c.Discovery.Method == "" {
		c.Discovery.Method = "auto"
	}
	if c.Discovery.ARP == "" {
		c.Discovery.ARP = "auto"
	}
	if c.Discovery.PingTimeoutMs <= 0 {
		c.Discovery.PingTimeoutMs = 500
	}
	if c.Discovery.PingCeilingSeconds <= 0 {
		c.Discovery.PingCeilingSeconds = 3
	}

	if c.Notify.MinRisk == "" {
		c.Notify.MinRisk = "high"
	}
	if c.WebUI.Listen == "" {
		c.WebUI.Listen = "127.0.0.1:2333"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func (c *Config) Validate() error {
	if _, ok := c.Profiles[c.SpeedProfile]; !ok {
		return fmt.Errorf("speed_profile %q is not defined", c.SpeedProfile)
	}
	switch c.Discovery.Method {
	case "auto", "icmp", "exec":
	default:
		return fmt.Errorf("discovery.method %q: want auto, icmp or exec", c.Discovery.Method)
	}
	switch c.Discovery.ARP {
	case "auto", "cache", "active", "off":
	default:
		return fmt.Errorf("discovery.arp %q: want auto, cache, active or off", c.Discovery.ARP)
	}
	switch c.Notify.MinRisk {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("notify.min_risk %q: want low, medium or high", c.Notify.MinRisk)
	}
	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.Token == "" || c.Notify.Telegram.ChatID == "") {
		return errors.New("notify.telegram: token and chat_id are required when enabled")
	}
	return nil
}

// Profile looks up a speed profile by name (case-insensitive).
func (c *Config) Profile(name string) (SpeedProfile, bool) {
	p, ok := c.Profiles[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// ProfileNames returns the configured profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for n := range c.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
