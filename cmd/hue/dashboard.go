package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	var (
		flags commonFlags
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Start the read-only web dashboard",
		Long:  "Serves diagnosis history, recorded transcripts and share deliveries as JSON on a local address.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, flags, addr)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8080", "address to listen on")
	return cmd
}

func runDashboard(cmd *cobra.Command, flags commonFlags, addr string) error {
	a, err := openApp(flags)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := a.ensureUser(ctx); err != nil {
		return err
	}
	svc := a.history()
	if _, err := svc.StartAutoRefresh(ctx, a.cfg.Cache.RefreshSchedule); err != nil {
		return err
	}
	if err := a.cache.StartJanitor(ctx, "@every 10m"); err != nil {
		return err
	}
	a.cache.Start()

	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:      a.db,
		History: svc,
		Addr:    addr,
		Out:     cmd.OutOrStdout(),
		Logger:  a.log.With("component", "dashboard"),
	})
}
