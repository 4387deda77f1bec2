package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/cache"
	"github.com/zulandar/huebot/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse stored diagnoses",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDeleteCmd())
	cmd.AddCommand(newHistoryWatchCmd())
	return cmd
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func newHistoryListCmd() *cobra.Command {
	var (
		flags commonFlags
		live  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored diagnoses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.ensureUser(cmd.Context()); err != nil {
				return err
			}

			mode := history.ModeNormal
			if live {
				mode = history.ModeLive
			}
			list, err := a.history().List(cmd.Context(), mode)
			if err != nil {
				return err
			}
			printDiagnosisTable(cmd.OutOrStdout(), list)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&live, "live", false, "use the short freshness window")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one diagnosis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.ensureUser(cmd.Context()); err != nil {
				return err
			}

			d, err := a.history().Detail(cmd.Context(), id)
			if err != nil {
				return err
			}
			printDiagnosis(cmd.OutOrStdout(), d)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newHistoryDeleteCmd() *cobra.Command {
	var (
		flags commonFlags
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored diagnosis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.ensureUser(cmd.Context()); err != nil {
				return err
			}

			if !yes {
				ok, err := newPrompter(cmd).Confirm(fmt.Sprintf("Delete diagnosis #%d?", id))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}

			msg, err := a.history().Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), firstNonEmpty(msg.Message, fmt.Sprintf("Deleted diagnosis #%d", id)))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newHistoryWatchCmd() *cobra.Command {
	var (
		flags    commonFlags
		schedule string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the history list and reprint it whenever it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryWatch(cmd, flags, schedule)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&schedule, "schedule", "", "refresh schedule (default from config)")
	return cmd
}

func runHistoryWatch(cmd *cobra.Command, flags commonFlags, schedule string) error {
	a, err := openApp(flags)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := a.ensureUser(ctx); err != nil {
		return err
	}
	if schedule == "" {
		schedule = a.cfg.Cache.RefreshSchedule
	}
	if err := cache.ValidateSchedule(schedule); err != nil {
		return err
	}

	svc := a.history()
	obs, err := svc.Watch(history.ModeLive)
	if err != nil {
		return err
	}
	defer obs.Close()

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	show := func(ctx context.Context) {
		list, err := obs.Get(ctx)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			fmt.Fprintf(out, "refresh failed: %v\n", err)
			return
		}
		fmt.Fprintln(out)
		printDiagnosisTable(out, list)
	}

	show(ctx)

	listKey := svc.ListKey()
	a.cache.OnUpdate(func(k cache.Key) {
		if k == listKey && ctx.Err() == nil {
			show(ctx)
		}
	})
	if _, err := svc.StartAutoRefresh(ctx, schedule); err != nil {
		return err
	}
	if err := a.cache.StartJanitor(ctx, "@every 10m"); err != nil {
		return err
	}
	a.cache.Start()
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching history (%s). Press Ctrl-C to stop.\n", schedule)

	<-ctx.Done()
	return nil
}
