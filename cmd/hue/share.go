package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/config"
	"github.com/zulandar/huebot/internal/share"
)

func newShareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Post diagnoses to Slack or Discord",
	}

	cmd.AddCommand(newShareSendCmd())
	cmd.AddCommand(newShareLogCmd())
	return cmd
}

// publishers builds the configured publishers. With neither flag set every
// configured target is used.
func publishers(cfg config.ShareConfig, slackOnly, discordOnly bool) ([]share.Publisher, error) {
	all := !slackOnly && !discordOnly
	var pubs []share.Publisher

	if slackOnly || all {
		if cfg.SlackWebhook != "" {
			s, err := share.NewSlack(cfg.SlackWebhook)
			if err != nil {
				return nil, err
			}
			pubs = append(pubs, s)
		} else if slackOnly {
			return nil, fmt.Errorf("share.slack_webhook is not configured")
		}
	}
	if discordOnly || all {
		if cfg.DiscordWebhook != "" {
			d, err := share.NewDiscord(share.DiscordOpts{WebhookURL: cfg.DiscordWebhook, Username: "hue"})
			if err != nil {
				return nil, err
			}
			pubs = append(pubs, d)
		} else if discordOnly {
			return nil, fmt.Errorf("share.discord_webhook is not configured")
		}
	}

	if len(pubs) == 0 {
		return nil, fmt.Errorf("no share targets configured; set share.slack_webhook or share.discord_webhook")
	}
	return pubs, nil
}

func newShareSendCmd() *cobra.Command {
	var (
		flags       commonFlags
		slackOnly   bool
		discordOnly bool
	)

	cmd := &cobra.Command{
		Use:   "send <diagnosis-id>",
		Short: "Post a diagnosis card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runShareSend(cmd, flags, id, slackOnly, discordOnly)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&slackOnly, "slack", false, "post to Slack only")
	cmd.Flags().BoolVar(&discordOnly, "discord", false, "post to Discord only")
	return cmd
}

func runShareSend(cmd *cobra.Command, flags commonFlags, id int, slackOnly, discordOnly bool) error {
	a, err := openApp(flags)
	if err != nil {
		return err
	}
	defer a.close()

	pubs, err := publishers(a.cfg.Share, slackOnly, discordOnly)
	if err != nil {
		return err
	}
	if err := a.ensureUser(cmd.Context()); err != nil {
		return err
	}

	d, err := a.history().Detail(cmd.Context(), id)
	if err != nil {
		return err
	}

	sharer := share.NewSharer(a.db, a.log, pubs...)
	results := sharer.Share(cmd.Context(), d)

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "%-8s failed: %v\n", r.Target, r.Err)
			continue
		}
		fmt.Fprintf(out, "%-8s sent\n", r.Target)
	}
	if failed == len(results) {
		return fmt.Errorf("diagnosis #%d was not shared", id)
	}
	return nil
}

func newShareLogCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "log [diagnosis-id]",
		Short: "List recorded share deliveries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := 0
			if len(args) == 1 {
				var err error
				if id, err = parseID(args[0]); err != nil {
					return err
				}
			}
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			rows, err := share.Deliveries(cmd.Context(), a.db, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No deliveries recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DIAGNOSIS\tTARGET\tSTATUS\tWHEN\tERROR")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
					r.DiagnosisID, r.Target, r.Status, api.FormatDate(r.CreatedAt, true), truncate(r.Error, 60))
			}
			tw.Flush()
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
