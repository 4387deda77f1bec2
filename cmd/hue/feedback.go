package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/api"
)

func newFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Chat session feedback",
	}

	cmd.AddCommand(newFeedbackShowCmd())
	cmd.AddCommand(newFeedbackSendCmd())
	return cmd
}

func newFeedbackShowCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "show <history-id>",
		Short: "Show the feedback stored for a chat session",
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
			if err := a.requireLogin(); err != nil {
				return err
			}

			fb, err := a.client.GetFeedback(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %d: %s\n", fb.HistoryID, fb.Feedback)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// parseFeedback accepts the service's own words or like/dislike.
func parseFeedback(s string) (api.Feedback, error) {
	switch s {
	case "like", "good", "+", string(api.FeedbackPositive):
		return api.FeedbackPositive, nil
	case "dislike", "bad", "-", string(api.FeedbackNegative):
		return api.FeedbackNegative, nil
	}
	return "", fmt.Errorf("feedback must be like or dislike, got %q", s)
}

func newFeedbackSendCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "send <history-id> <like|dislike>",
		Short: "Send feedback for an ended chat session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			verdict, err := parseFeedback(args[1])
			if err != nil {
				return err
			}
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.requireLogin(); err != nil {
				return err
			}

			res, err := a.client.SubmitFeedback(cmd.Context(), id, verdict)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for session %d\n", res.Feedback, id)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
