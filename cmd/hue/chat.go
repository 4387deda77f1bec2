package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/chat"
	"github.com/zulandar/huebot/internal/dashboard"
	"github.com/zulandar/huebot/internal/transcript"
)

func newChatCmd() *cobra.Command {
	var (
		flags         commonFlags
		dashboardAddr string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the personal-color consultant",
		Long: `Opens (or resumes) a chat session. Every few exchanges a diagnosis is saved
and summarised. Ask for a report (e.g. "리포트") once you have chatted enough.

Commands: /status, /quit. End of input also leaves the chat.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags, dashboardAddr)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&dashboardAddr, "dashboard", "", "also serve the dashboard with a live view of this chat on addr")
	return cmd
}

// readLines feeds input lines to a channel so the REPL can also watch for
// cancellation. The channel closes at end of input.
func readLines(p *prompter) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := p.Line("")
			if err != nil {
				return
			}
			lines <- line
		}
	}()
	return lines
}

func runChat(cmd *cobra.Command, flags commonFlags, dashboardAddr string) error {
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

	svc := a.history()
	ctrl, err := chat.New(chat.Config{
		Backend:            a.client,
		History:            svc,
		Recorder:           transcript.NewStore(a.db, a.userID),
		Logger:             a.log.With("component", "chat"),
		ReportKeywords:     a.cfg.Chat.ReportKeywords,
		AutoDiagnosisTurns: a.cfg.Chat.AutoDiagnosisTurns,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	var outMu sync.Mutex
	unsubscribe := ctrl.Subscribe(func(ev chat.Event) {
		if ev.Type != chat.EventMessage || ev.Message == nil || ev.Message.IsUser() {
			return
		}
		outMu.Lock()
		defer outMu.Unlock()
		printMessage(out, *ev.Message)
	})
	defer unsubscribe()

	var dashDone chan error
	if dashboardAddr != "" {
		hub := dashboard.NewHub(ctrl)
		defer hub.Close()
		dashCtx, stopDash := context.WithCancel(ctx)
		defer stopDash()
		dashDone = make(chan error, 1)
		go func() {
			dashDone <- dashboard.Start(dashCtx, dashboard.StartOpts{
				DB:      a.db,
				History: svc,
				Hub:     hub,
				Addr:    dashboardAddr,
				Out:     errOut,
				Logger:  a.log.With("component", "dashboard"),
			})
		}()
	}

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(errOut, "Chat session %d open. Type /quit to leave.\n", ctrl.SessionID())

	lines := readLines(newPrompter(cmd))
	chatLoop(ctx, ctrl, a.cfg.Chat.AutoDiagnosisTurns, lines, out, errOut, &outMu)

	if ctrl.RequestLeave() {
		choice := askFeedback(ctx, lines, errOut)
		if err := ctrl.Leave(ctx, choice); err != nil && !errors.Is(err, chat.ErrNotActive) {
			return err
		}
		ctrl.Wait()
		fmt.Fprintln(errOut, "Session ended. Thanks for chatting!")
	} else {
		fmt.Fprintln(errOut, "Left the chat; the session stays open for next time.")
	}

	if dashDone != nil {
		cancel()
		if err := <-dashDone; err != nil {
			return err
		}
	}
	return nil
}

func chatLoop(ctx context.Context, ctrl *chat.Controller, threshold int, lines <-chan string, out, errOut io.Writer, outMu *sync.Mutex) {
	for {
		fmt.Fprint(errOut, "you> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(errOut)
			return
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(errOut)
				return
			}
			line = l
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "/quit", "/exit":
			return
		case "/status":
			s := ctrl.Snapshot()
			outMu.Lock()
			fmt.Fprintf(out, "session %d: %s, %d/%d turns, diagnosis %s\n", s.SessionID, s.Phase, s.Turns, threshold, s.Cycle)
			outMu.Unlock()
			continue
		}

		if err := ctrl.Send(ctx, line); err != nil {
			if errors.Is(err, chat.ErrNotActive) {
				fmt.Fprintln(errOut, "The session is no longer active.")
				return
			}
			fmt.Fprintf(errOut, "not sent: %v\n", err)
		}
	}
}

// askFeedback asks for the leave verdict. Cancellation and end of input skip.
func askFeedback(ctx context.Context, lines <-chan string, errOut io.Writer) chat.Choice {
	for {
		fmt.Fprint(errOut, "Was this chat helpful? [y]es / [n]o / [s]kip: ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(errOut)
			return chat.ChoiceSkip
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(errOut)
				return chat.ChoiceSkip
			}
			switch strings.ToLower(strings.TrimSpace(l)) {
			case "y", "yes", "좋다":
				return chat.ChoicePositive
			case "n", "no", "싫다":
				return chat.ChoiceNegative
			case "s", "skip", "":
				return chat.ChoiceSkip
			}
		}
	}
}
