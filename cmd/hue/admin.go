package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/api"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Service-wide views for admin accounts",
		Long:  "Lists accounts, chat sessions and AI answer evaluations across all users. The signed-in account needs the admin role.",
	}

	cmd.AddCommand(newAdminUsersCmd())
	cmd.AddCommand(newAdminHistoriesCmd())
	cmd.AddCommand(newAdminFeedbackCmd())
	return cmd
}

// adminError turns a 403 into a hint about the account's role.
func adminError(what string, err error) error {
	if api.StatusCode(err) == http.StatusForbidden {
		return fmt.Errorf("%s: this account does not have the admin role: %w", what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func newAdminUsersCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List every account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireLogin(); err != nil {
				return err
			}

			users, err := a.client.AdminUsers(cmd.Context())
			if err != nil {
				return adminError("list users", err)
			}
			printUserTable(cmd.OutOrStdout(), users)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newAdminHistoriesCmd() *cobra.Command {
	var (
		flags commonFlags
		q     api.AdminHistoryQuery
		pairs bool
	)

	cmd := &cobra.Command{
		Use:   "histories",
		Short: "Page through every chat session, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if q.Page < 1 {
				return fmt.Errorf("--page must be at least 1")
			}
			if q.PageSize < 1 || q.PageSize > api.MaxAdminPageSize {
				return fmt.Errorf("--page-size must be between 1 and %d", api.MaxAdminPageSize)
			}
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireLogin(); err != nil {
				return err
			}

			page, err := a.client.AdminChatHistories(cmd.Context(), q)
			if err != nil {
				return adminError("list chat histories", err)
			}
			printAdminHistoryTable(cmd.OutOrStdout(), page, pairs)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", api.DefaultAdminPageSize, "sessions per page")
	cmd.Flags().IntVar(&q.UserID, "user", 0, "only this user's sessions")
	cmd.Flags().BoolVar(&q.IncludeAIFeedback, "ai-feedback", true, "include AI answer evaluations")
	cmd.Flags().BoolVar(&pairs, "pairs", false, "print each session's questions and answers")
	return cmd
}

func newAdminFeedbackCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "List the automatic evaluations of assistant answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireLogin(); err != nil {
				return err
			}

			rows, err := a.client.AdminAIFeedback(cmd.Context())
			if err != nil {
				return adminError("list AI feedback", err)
			}
			printAIFeedbackTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
