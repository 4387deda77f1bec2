package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Detailed diagnosis reports",
	}

	cmd.AddCommand(newReportRequestCmd())
	cmd.AddCommand(newReportShowCmd())
	return cmd
}

func newReportRequestCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "request <diagnosis-id>",
		Short: "Ask the service to build a report for a diagnosis",
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

			res, err := a.client.RequestReport(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("request report: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Report for diagnosis #%d: %s\n", id, firstNonEmpty(res.Status, "requested"))
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
			}
			if res.Note != "" {
				fmt.Fprintln(out, res.Note)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newReportShowCmd() *cobra.Command {
	var (
		flags    commonFlags
		htmlPath string
	)

	cmd := &cobra.Command{
		Use:   "show <diagnosis-id>",
		Short: "Print a generated report",
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

			rep, err := a.client.GetReport(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get report: %w", err)
			}

			out := cmd.OutOrStdout()
			if rep.Message != "" {
				fmt.Fprintln(out, rep.Message)
			}
			if len(rep.ReportData) > 0 && string(rep.ReportData) != "null" {
				var buf bytes.Buffer
				if err := json.Indent(&buf, rep.ReportData, "", "  "); err != nil {
					buf.Reset()
					buf.Write(rep.ReportData)
				}
				fmt.Fprintln(out, buf.String())
			}
			if htmlPath != "" {
				if rep.HTMLReport == "" {
					return fmt.Errorf("report #%d has no HTML version", id)
				}
				if err := os.WriteFile(htmlPath, []byte(rep.HTMLReport), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", htmlPath, err)
				}
				fmt.Fprintf(out, "HTML report written to %s\n", htmlPath)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&htmlPath, "html", "", "write the HTML report to this file")
	return cmd
}
