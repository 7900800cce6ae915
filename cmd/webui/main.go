package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/L1nMay/homeports/internal/app"
	"github.com/L1nMay/homeports/internal/cli"
	"github.com/L1nMay/homeports/internal/logger"
	"github.com/L1nMay/homeports/internal/webui"
)

const shutdownTimeout = 5 * time.Second

func main() {
	v := viper.New()

	root := &cobra.Command{
		Use:          "homeports-webui",
		Short:        "Serve the home network port manager UI",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), v)
		},
	}
	cli.BindFlags(root, v)
	root.Flags().String("listen", "", "listen address (overrides webui.listen)")
	if err := v.BindPFlag("webui.listen", root.Flags().Lookup("listen")); err != nil {
		logger.Warnf("failed to bind listen flag: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, v *viper.Viper) error {
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

	srv := &http.Server{
		Addr:              cfg.WebUI.Listen,
		Handler:           webui.NewServer(cfg, a.Store, a.Runner, a.Metrics).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Web UI listening on http://%s", cfg.WebUI.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
