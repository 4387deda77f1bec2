package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/chat"
	"github.com/zulandar/huebot/internal/transcript"
)

// sourceLabel names where a diagnosis came from.
func sourceLabel(source string) string {
	switch source {
	case "chatbot":
		return "chat"
	case "", "survey":
		return "survey"
	default:
		return source
	}
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}

func formatConfidence(c float64) string {
	if c <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", c*100)
}

func printDiagnosisTable(w io.Writer, list []api.Diagnosis) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No diagnoses yet. Try `hue survey submit` or `hue chat`.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tSOURCE\tCONFIDENCE")
	for _, d := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			d.ID,
			api.FormatDate(d.CreatedAt.Time, true),
			d.DisplayName(),
			sourceLabel(d.SourceType),
			formatConfidence(d.Confidence),
		)
	}
	tw.Flush()
}

func printDiagnosis(w io.Writer, d api.Diagnosis) {
	fmt.Fprintf(w, "Diagnosis #%d: %s\n", d.ID, d.DisplayName())
	if date := api.FormatDate(d.CreatedAt.Time, true); date != "" {
		fmt.Fprintf(w, "Date:        %s\n", date)
	}
	fmt.Fprintf(w, "Tone:        %s\n", d.ResultTone)
	fmt.Fprintf(w, "Source:      %s\n", sourceLabel(d.SourceType))
	if d.Confidence > 0 {
		fmt.Fprintf(w, "Confidence:  %s\n", formatConfidence(d.Confidence))
	}
	if d.TotalScore > 0 {
		fmt.Fprintf(w, "Score:       %d\n", d.TotalScore)
	}
	if text := firstNonEmpty(d.DetailedAnalysis, d.Description); text != "" {
		fmt.Fprintf(w, "\n%s\n", text)
	}
	printList(w, "Palette", d.ColorPalette)
	printList(w, "Style", d.StyleKeywords)
	printList(w, "Makeup tips", d.MakeupTips)
	if len(d.TopTypes) > 0 {
		fmt.Fprintln(w, "\nTop types:")
		for i, t := range d.TopTypes {
			name := firstNonEmpty(t.Name, t.Type)
			fmt.Fprintf(w, "  %d. %s (%.1f)\n", i+1, name, t.Score)
		}
	}
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func printSessionTable(w io.Writer, rows []transcript.SessionRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No recorded chat sessions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HISTORY\tSTARTED\tSTATUS\tMESSAGES\tSUMMARIES\tFEEDBACK")
	for _, r := range rows {
		fb := r.Feedback
		if fb == "" {
			fb = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
			r.HistoryID, api.FormatDate(r.CreatedAt, true), r.Status, r.Messages, r.Summaries, fb)
	}
	tw.Flush()
}

// printMessage renders one transcript message for the terminal.
func printMessage(w io.Writer, m chat.Message) {
	switch {
	case m.IsUser():
		fmt.Fprintf(w, "you> %s\n", m.Content)
	case m.Kind == chat.KindError:
		fmt.Fprintf(w, "[%s] %s\n", m.Title, m.Content)
	case m.Kind == chat.KindSummary:
		fmt.Fprintf(w, "\n=== 진단 요약 ===\n%s\n================\n", m.Content)
	default:
		fmt.Fprintf(w, "hue> %s\n", m.Content)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func printUserTable(w io.Writer, users []api.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNICKNAME\tEMAIL\tGENDER\tJOINED\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			u.ID,
			firstNonEmpty(u.Nickname, u.Username),
			u.Email,
			firstNonEmpty(u.Gender, "-"),
			firstNonEmpty(api.FormatDate(u.CreateDate.Time, false), "-"),
			u.Role,
		)
	}
	tw.Flush()
}

func printAdminHistoryTable(w io.Writer, page api.AdminHistoryPage, pairs bool) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No chat histories.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HISTORY\tUSER\tSTARTED\tENDED\tQUESTIONS\tFEEDBACK")
	for _, h := range page.Items {
		fb := "-"
		if h.UserFeedback != nil && h.UserFeedback.Feedback != "" {
			fb = string(h.UserFeedback.Feedback)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%s\n",
			h.ID,
			h.UserID,
			api.FormatDate(h.CreatedAt.Time, true),
			firstNonEmpty(api.FormatDate(h.EndedAt.Time, true), "-"),
			len(h.QAPairs),
			fb,
		)
		if pairs {
			for _, p := range h.QAPairs {
				fmt.Fprintf(tw, "\t  Q%d\t%s\t%s\t%s\t\n",
					p.QuestionID, truncate(p.Question, 30), truncate(p.Answer.Summary(), 40), formatScore(p.AIFeedback))
			}
		}
	}
	tw.Flush()
	fmt.Fprintf(w, "Page %d of %d (%d total)\n", page.Page, page.Pages(), page.Total)
}

func printAIFeedbackTable(w io.Writer, rows []api.AdminAIFeedbackRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No AI feedback recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHISTORY\tQUESTION\tANSWER\tACC\tCONS\tREL\tPERS\tPRAC\tTOTAL")
	for _, r := range rows {
		fb := r.AIFeedback
		if fb == nil {
			fmt.Fprintf(tw, "-\t%d\t%s\t%s\t-\t-\t-\t-\t-\t-\n",
				r.HistoryID, truncate(r.Question, 30), truncate(r.Answer.Summary(), 40))
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%g\t%g\t%g\t%g\t%g\t%g\n",
			fb.ID, r.HistoryID, truncate(r.Question, 30), truncate(r.Answer.Summary(), 40),
			fb.Accuracy, fb.Consistency, fb.Reliability, fb.Personalization, fb.Practicality, fb.TotalScore)
	}
	tw.Flush()
}

func formatScore(fb *api.AIFeedback) string {
	if fb == nil {
		return "-"
	}
	return fmt.Sprintf("score %g", fb.TotalScore)
}
