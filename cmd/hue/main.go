package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hue",
		Short:        "Personal-color diagnosis client",
		Long:         "hue talks to the personal-color diagnosis service: questionnaire results, diagnosis history and the AI chat consultant.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newSurveyCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newFeedbackCmd())
	cmd.AddCommand(newTranscriptCmd())
	cmd.AddCommand(newShareCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newAdminCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hue %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
