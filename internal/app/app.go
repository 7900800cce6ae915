// Package app assembles the scanner from configuration. Both binaries build
// their runtime through New.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/L1nMay/homeports/internal/config"
	"github.com/L1nMay/homeports/internal/discovery"
	"github.com/L1nMay/homeports/internal/envdetect"
	"github.com/L1nMay/homeports/internal/logger"
	"github.com/L1nMay/homeports/internal/metrics"
	"github.com/L1nMay/homeports/internal/model"
	"github.com/L1nMay/homeports/internal/notifier"
	"github.com/L1nMay/homeports/internal/portscan"
	"github.com/L1nMay/homeports/internal/scan"
	"github.com/L1nMay/homeports/internal/storage"
)

type App struct {
	Config   *config.Config
	Store    *storage.Storage
	Postgres *storage.Postgres
	Runner   *scan.Runner
	Metrics  *metrics.Metrics
}

// New detects the network, opens storage and builds an idle runner seeded
// with the persisted device set.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	network, err := envdetect.DetectNetworkProfile(ctx, envdetect.Pin{
		LocalIP:   cfg.Network.LocalIP,
		Gateway:   cfg.Network.Gateway,
		Subnet:    cfg.Network.Subnet,
		Interface: cfg.Discovery.Interface,
	})
	if err != nil {
		return nil, fmt.Errorf("network profile: %w", err)
	}
	logger.Infof("Network: local=%s subnet=%s gateway=%s iface=%s",
		network.LocalIP, network.Subnet, network.Gateway, network.Interface)

	local, _ := netip.ParseAddr(network.LocalIP)
	prober := discovery.NewProber(discovery.Options{
		Method:      cfg.Discovery.Method,
		ARP:         cfg.Discovery.ARP,
		Interface:   network.Interface,
		Local:       local,
		Timeout:     cfg.Discovery.PingTimeout(),
		PingCeiling: cfg.Discovery.PingCeiling(),
	})

	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", cfg.DBPath, err)
	}

	a := &App{Config: cfg, Store: store, Metrics: metrics.New()}

	devices, err := store.LoadDevices()
	if err != nil {
		logger.Warnf("load saved devices: %v", err)
	}

	savers := storage.Fanout{store}
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			_ = store.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		a.Postgres = pg
		savers = append(savers, pg)
	}
	if tg := cfg.Notify.Telegram; tg.Enabled {
		w := notifier.NewWatcher(notifier.NewTelegramNotifier(tg.Token, tg.ChatID), model.RiskLevel(cfg.Notify.MinRisk))
		w.Prime(devices)
		savers = append(savers, w)
		logger.Infof("Telegram alerts enabled for %s risk ports and above", cfg.Notify.MinRisk)
	}

	a.Runner = scan.NewRunner(cfg, network, discovery.NewSweeper(prober), portscan.NewScanner(cfg.ProgressEvery), savers)
	a.Runner.SetMetrics(a.Metrics)
	a.Runner.AddRecorder(store)
	if a.Postgres != nil {
		a.Runner.AddRecorder(a.Postgres)
	}

	a.Runner.LoadDevices(devices)
	if len(devices) > 0 {
		logger.Infof("Loaded %d saved devices", len(devices))
	}

	return a, nil
}

// Close stops any running scan and releases storage.
func (a *App) Close() error {
	a.Runner.Close()
	return errors.Join(a.Postgres.Close(), a.Store.Close())
}
