package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/L1nMay/homeports/internal/cli"
)

func main() {
	v := viper.New()

	root := &cobra.Command{
		Use:          "homeports",
		Short:        "Discover devices on the home network and scan their open ports",
		SilenceUsage: true,
	}
	cli.BindFlags(root, v)
	root.AddCommand(
		discoverCmd(v),
		scanCmd(v),
		fullCmd(v),
		devicesCmd(v),
		historyCmd(v),
		noteCmd(v),
		clearCmd(v),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
