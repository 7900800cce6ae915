package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/L1nMay/homeports/internal/app"
	"github.com/L1nMay/homeports/internal/cli"
	"github.com/L1nMay/homeports/internal/logger"
	"github.com/L1nMay/homeports/internal/model"
	"github.com/L1nMay/homeports/internal/scan"
)

const pollInterval = time.Second

// withApp loads configuration, builds the app and closes it after fn.
func withApp(ctx context.Context, v *viper.Viper, fn func(*app.App) error) error {
	cfg, err := cli.LoadConfig(v)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Errorf("close: %v", err)
		}
	}()
	return fn(a)
}

// runScan starts a scan and follows its events until it completes. An
// interrupt cancels the scan and still waits for its result.
func runScan(ctx context.Context, a *app.App, start func() error) (*model.ScanRun, error) {
	events := a.Runner.Subscribe()
	defer a.Runner.Unsubscribe(events)

	if err := start(); err != nil {
		if errors.Is(err, scan.ErrNotFound) {
			return nil, fmt.Errorf("%w (run discover first)", err)
		}
		return nil, err
	}

	// Slow consumers can miss hub events, so idleness is also polled.
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	done := ctx.Done()
	lastProgress := -1
	for {
		select {
		case <-poll.C:
			if !a.Runner.State().Scanning {
				a.Runner.Wait()
				return lastRun(a)
			}
		case <-done:
			logger.Warnf("Interrupted, cancelling scan")
			a.Runner.CancelRunning()
			done = nil
		case b, ok := <-events:
			if !ok {
				return nil, errors.New("event stream closed")
			}
			var ev scan.Event
			if err := json.Unmarshal(b, &ev); err != nil {
				continue
			}
			switch ev.Type {
			case scan.EventState:
				if ev.State != nil && ev.State.Scanning && ev.State.Progress/10 != lastProgress/10 {
					lastProgress = ev.State.Progress
					logger.Infof("Progress %d%% %s", ev.State.Progress, ev.State.CurrentTarget)
				}
			case scan.EventPort:
				if ev.Port != nil {
					logger.Infof("Open %s:%d %s (%s)", ev.Target, ev.Port.Port, ev.Port.Service, ev.Port.Risk)
				}
			case scan.EventDone:
				a.Runner.Wait()
				return ev.Run, nil
			}
		}
	}
}

func lastRun(a *app.App) (*model.ScanRun, error) {
	runs, err := a.Store.ListScanRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.New("no scan recorded")
	}
	return &runs[0], nil
}

func report(run *model.ScanRun, a *app.App) error {
	if run == nil {
		return errors.New("scan ended without a result")
	}
	names, _ := a.Store.Names()
	printDevices(os.Stdout, a.Runner.Devices(names))
	fmt.Fprintln(os.Stdout, run.String())
	if run.Status == model.StatusFailed {
		return fmt.Errorf("scan failed: %s", run.Error)
	}
	return nil
}

func discoverCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Sweep the subnet for live devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), v, func(a *app.App) error {
				run, err := runScan(cmd.Context(), a, a.Runner.StartDeviceDiscovery)
				if err != nil {
					return err
				}
				return report(run, a)
			})
		},
	}
}

func scanCmd(v *viper.Viper) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "scan <ip>",
		Short: "Scan the ports of one known device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := scan.ValidateAddress(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), v, func(a *app.App) error {
				run, err := runScan(cmd.Context(), a, func() error {
					return a.Runner.StartPortScan(addr.String(), mode)
				})
				if err != nil {
					return err
				}
				return report(run, a)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "common", "port set: common or full")
	return cmd
}

func fullCmd(v *viper.Viper) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "full",
		Short: "Sweep the subnet, then scan every device found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), v, func(a *app.App) error {
				run, err := runScan(cmd.Context(), a, func() error {
					return a.Runner.StartFullDiscovery(mode)
				})
				if err != nil {
					return err
				}
				return report(run, a)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "common", "port set: common or full")
	return cmd
}

func devicesCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List saved devices and their open ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), v, func(a *app.App) error {
				names, err := a.Store.Names()
				if err != nil {
					return err
				}
				devices := a.Runner.Devices(names)
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{"devices": devices})
				}
				printDevices(os.Stdout, devices)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the export document instead of a table")
	return cmd
}

func historyCmd(v *viper.Viper) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scan runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), v, func(a *app.App) error {
				if limit <= 0 {
					limit = a.Config.HistoryLimit
				}
				runs, err := a.Store.ListScanRuns(limit)
				if err != nil {
					return err
				}
				printRuns(os.Stdout, runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of runs to show (default history_limit)")
	return cmd
}

func noteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "name <ip> [name]",
		Short: "Set or clear the display name of a device",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := scan.ValidateAddress(args[0])
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return withApp(cmd.Context(), v, func(a *app.App) error {
				return a.Store.SetNote(addr.String(), name)
			})
		},
	}
}

func clearCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget every saved device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), v, func(a *app.App) error {
				return a.Runner.ClearDevices()
			})
		},
	}
}
