package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/transcript"
)

func newTranscriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Recorded chat transcripts",
	}

	cmd.AddCommand(newTranscriptListCmd())
	cmd.AddCommand(newTranscriptShowCmd())
	cmd.AddCommand(newTranscriptDeleteCmd())
	return cmd
}

func newTranscriptListCmd() *cobra.Command {
	var (
		flags commonFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.ensureUser(cmd.Context()); err != nil {
				return err
			}

			rows, err := transcript.ListSessions(cmd.Context(), a.db, a.userID, limit)
			if err != nil {
				return err
			}
			printSessionTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max sessions to show (0 for all)")
	return cmd
}

func newTranscriptShowCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "show <history-id>",
		Short: "Print a recorded chat transcript",
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

			t, err := transcript.Load(cmd.Context(), a.db, a.userID, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %d (%s), started %s\n", t.HistoryID, t.Status, api.FormatDate(t.CreatedAt, true))
			if t.Feedback != "" {
				fmt.Fprintf(out, "Feedback: %s\n", t.Feedback)
			}
			fmt.Fprintln(out)
			for _, m := range t.Entries {
				printMessage(out, m)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newTranscriptDeleteCmd() *cobra.Command {
	var (
		flags commonFlags
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "delete <history-id>",
		Short: "Delete a recorded chat transcript",
		Long:  "Removes the local copy only; the session stays on the server.",
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
				ok, err := newPrompter(cmd).Confirm(fmt.Sprintf("Delete the transcript of session %d?", id))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}
			if err := transcript.Delete(cmd.Context(), a.db, a.userID, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted transcript of session %d\n", id)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
