// Package cli holds the flag and environment handling shared by the
// homeports binaries.
package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/L1nMay/homeports/internal/config"
	"github.com/L1nMay/homeports/internal/logger"
)

const envPrefix = "HOMEPORTS"

// overrides maps viper keys to the config fields they replace. Every key can
// be set as HOMEPORTS_<KEY> with dots turned into underscores.
var overrides = map[string]func(c *config.Config, v string){
	"db_path":             func(c *config.Config, v string) { c.DBPath = v },
	"speed_profile":       func(c *config.Config, v string) { c.SpeedProfile = strings.ToLower(strings.TrimSpace(v)) },
	"webui.listen":        func(c *config.Config, v string) { c.WebUI.Listen = v },
	"database.dsn":        func(c *config.Config, v string) { c.Database.DSN = v },
	"log.level":           func(c *config.Config, v string) { c.Log.Level = v },
	"log.format":          func(c *config.Config, v string) { c.Log.Format = v },
	"network.local_ip":    func(c *config.Config, v string) { c.Network.LocalIP = v },
	"network.gateway":     func(c *config.Config, v string) { c.Network.Gateway = v },
	"network.subnet":      func(c *config.Config, v string) { c.Network.Subnet = v },
	"discovery.method":    func(c *config.Config, v string) { c.Discovery.Method = v },
	"discovery.arp":       func(c *config.Config, v string) { c.Discovery.ARP = v },
	"discovery.interface": func(c *config.Config, v string) { c.Discovery.Interface = v },
	"notify.min_risk":     func(c *config.Config, v string) { c.Notify.MinRisk = v },
	"notify.telegram.token": func(c *config.Config, v string) {
		c.Notify.Telegram.Token = v
		c.Notify.Telegram.Enabled = true
	},
	"notify.telegram.chat_id": func(c *config.Config, v string) { c.Notify.Telegram.ChatID = v },
}

// BindFlags registers the persistent flags every binary accepts.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()
	flags.String("config", "config.yaml", "path to config file")
	flags.String("db", "", "bbolt database path (overrides db_path)")
	flags.String("speed", "", "speed profile (overrides speed_profile)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.String("subnet", "", "IPv4 /24 to sweep instead of the detected one")
	flags.String("iface", "", "network interface for active ARP")

	bind := map[string]string{
		"config":              "config",
		"db_path":             "db",
		"speed_profile":       "speed",
		"log.level":           "log-level",
		"log.format":          "log-format",
		"network.subnet":      "subnet",
		"discovery.interface": "iface",
	}
	for key, flag := range bind {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			logger.Warnf("failed to bind %s flag: %v", flag, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadConfig reads the YAML file named by the config key, applies flag and
// environment overrides and sets up logging.
func LoadConfig(v *viper.Viper) (*config.Config, error) {
	path := v.GetString("config")
	if path == "" {
		path = "config.yaml"
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	for key, apply := range overrides {
		if v.IsSet(key) {
			if val := v.GetString(key); val != "" {
				apply(cfg, val)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
