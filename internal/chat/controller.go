// Package chat drives one personal-color chat session: it opens or resumes the
// server session, sends turns one at a time, saves a diagnosis every few
// exchanges, answers report requests and gates leaving behind a feedback
// prompt.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/config"
	"github.com/zulandar/huebot/internal/logging"
)

// Backend is the part of the API client the controller calls.
type Backend interface {
	StartSession(ctx context.Context) (api.SessionStart, error)
	Analyze(ctx context.Context, req api.AnalyzeRequest) (api.AnalyzeResponse, error)
	EndSession(ctx context.Context, historyID int) (api.SessionEnd, error)
	SaveDiagnosisFromChat(ctx context.Context, historyID int) (api.Diagnosis, error)
	RequestReport(ctx context.Context, diagnosisID int) (api.ReportRequestResult, error)
	SubmitFeedback(ctx context.Context, historyID int, fb api.Feedback) (api.FeedbackResult, error)
}

// HistorySource lists the user's stored diagnoses, newest first.
type HistorySource interface {
	Diagnoses(ctx context.Context) ([]api.Diagnosis, error)
}

// historyInvalidator is implemented by history sources that cache.
type historyInvalidator interface {
	InvalidateList()
}

// Recorder persists the transcript. Failures are logged and never affect the
// conversation.
type Recorder interface {
	SessionStarted(ctx context.Context, start api.SessionStart) error
	MessageAppended(ctx context.Context, historyID int, m Message) error
	SessionEnded(ctx context.Context, historyID int, fb api.Feedback) error
}

// Config wires a Controller.
type Config struct {
	Backend  Backend
	History  HistorySource
	Recorder Recorder
	Logger   *logging.Logger

	// ReportKeywords trigger the report branch. Defaults to
	// config.DefaultReportKeywords.
	ReportKeywords []string
	// AutoDiagnosisTurns is the exchange count that triggers a diagnosis
	// save. Default 3.
	AutoDiagnosisTurns int
	// LeaveTimeout bounds the background end/feedback calls. Default 15s.
	LeaveTimeout time.Duration

	NewID func() string
	Now   func() time.Time
}

// Controller is the session state machine. All methods are safe for
// concurrent use; sends are serialized.
type Controller struct {
	backend   Backend
	history   HistorySource
	recorder  Recorder
	log       *logging.Logger
	keywords  []string
	threshold int
	leaveWait time.Duration
	newID     func() string
	now       func() time.Time

	mu           sync.Mutex
	init         initState
	phase        Phase
	sessionID    int
	cycle        cycle
	busy         bool
	typing       bool
	blocked      bool
	leaving      bool
	userMessages int
	messages     []Message
	lastAnalysis *api.ChatAnalysis

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int

	wg sync.WaitGroup
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("chat: backend is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if len(cfg.ReportKeywords) == 0 {
		cfg.ReportKeywords = config.DefaultReportKeywords
	}
	if cfg.AutoDiagnosisTurns <= 0 {
		cfg.AutoDiagnosisTurns = 3
	}
	if cfg.LeaveTimeout <= 0 {
		cfg.LeaveTimeout = 15 * time.Second
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		backend:   cfg.Backend,
		history:   cfg.History,
		recorder:  cfg.Recorder,
		log:       cfg.Logger,
		keywords:  append([]string(nil), cfg.ReportKeywords...),
		threshold: cfg.AutoDiagnosisTurns,
		leaveWait: cfg.LeaveTimeout,
		newID:     cfg.NewID,
		now:       cfg.Now,
	}, nil
}

// Start opens the chat session, or adopts the one the server reports as still
// open. Only the first call does anything; a failed start re-arms so Start
// can be retried.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.init != initIdle {
		c.mu.Unlock()
		return nil
	}
	c.init = initPending
	c.phase = PhaseStarting
	c.mu.Unlock()
	c.emit(Event{Type: EventPhase, Phase: PhaseStarting.String()})

	start, err := c.backend.StartSession(ctx)
	if err != nil {
		c.mu.Lock()
		c.init = initIdle
		c.phase = PhaseUninitialized
		c.mu.Unlock()
		c.emit(Event{Type: EventPhase, Phase: PhaseUninitialized.String()})
		c.log.Warn("chat session start failed", "error", err)
		return fmt.Errorf("chat: start session: %w", err)
	}

	c.mu.Lock()
	c.init = initDone
	c.phase = PhaseActive
	c.sessionID = start.HistoryID
	c.cycle = idle(0)
	if start.Reused {
		c.cycle = idle(start.UserTurns)
	}
	c.mu.Unlock()
	c.emit(Event{Type: EventPhase, SessionID: start.HistoryID, Phase: PhaseActive.String()})
	c.log.Info("chat session started", "history_id", start.HistoryID, "reused", start.Reused, "user_turns", start.UserTurns)

	if c.recorder != nil {
		if err := c.recorder.SessionStarted(ctx, start); err != nil {
			c.log.Warn("transcript: record session start", "history_id", start.HistoryID, "error", err)
		}
	}

	if latest, ok := c.latestDiagnosis(ctx); ok {
		c.appendMessage(ctx, Message{Role: RoleAssistant, Kind: KindGreeting, Content: greetingText(latest), Diagnosis: &latest})
	}
	return nil
}

// Send submits one user message and handles the reply. Failures of the
// analyze call are reported in the transcript, not returned; the returned
// error only says the message was not accepted.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	if c.busy || c.typing {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	sessionID := c.sessionID
	turns := c.cycle.turns
	c.userMessages++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	c.appendMessage(ctx, Message{Role: RoleUser, Kind: KindText, Content: text})

	if matchesReportKeyword(text, c.keywords) {
		c.handleReportRequest(ctx, turns)
		return nil
	}

	if !c.exchange(ctx, sessionID, text) {
		return nil
	}
	c.autoDiagnose(ctx, sessionID)
	return nil
}

// exchange runs one analyze call. It reports whether the cycle reached the
// diagnosis threshold.
func (c *Controller) exchange(ctx context.Context, sessionID int, text string) bool {
	c.setTyping(true)
	defer c.setTyping(false)

	resp, err := c.backend.Analyze(ctx, api.AnalyzeRequest{Question: text, HistoryID: sessionID})
	if !c.stillActive() {
		c.log.Debug("chat reply dropped after leaving", "history_id", sessionID)
		return false
	}
	if err != nil {
		title, content := FailureMessage(err)
		c.log.Warn("chat analyze failed", "history_id", sessionID, "kind", api.Kind(err).String(), "error", err)
		c.appendMessage(ctx, Message{Role: RoleAssistant, Kind: KindError, Title: title, Content: content})
		return false
	}
	item, ok := resp.Latest()
	if !ok {
		c.log.Warn("chat analyze returned no items", "history_id", sessionID)
		c.appendMessage(ctx, Message{Role: RoleAssistant, Kind: KindError, Title: TitleSendFailed, Content: MsgGeneric})
		return false
	}
	if resp.HistoryID != 0 && resp.HistoryID != sessionID {
		c.log.Warn("chat analyze answered for another session", "history_id", sessionID, "response_history_id", resp.HistoryID)
	}

	analysis := item.ChatRes
	c.appendMessage(ctx, Message{
		Role:       RoleAssistant,
		Kind:       KindText,
		Content:    item.Answer,
		QuestionID: item.QuestionID,
		Analysis:   &analysis,
	})

	c.mu.Lock()
	c.lastAnalysis = &analysis
	next, reached := c.cycle.exchanged(c.threshold)
	c.cycle = next
	c.mu.Unlock()
	return reached
}

// autoDiagnose saves the session's analysis as a diagnosis and appends a
// summary. A failed save degrades to a summary built from the last reply.
// Either way the cycle restarts at zero.
func (c *Controller) autoDiagnose(ctx context.Context, sessionID int) {
	d, err := c.backend.SaveDiagnosisFromChat(ctx, sessionID)

	c.mu.Lock()
	last := c.lastAnalysis
	c.mu.Unlock()

	msg := Message{Role: RoleAssistant, Kind: KindSummary}
	if err != nil {
		c.log.Warn("chat auto-diagnosis failed", "history_id", sessionID, "error", err)
		msg.Content = fallbackSummaryText(last)
		msg.Analysis = last
	} else {
		c.log.Info("chat auto-diagnosis saved", "history_id", sessionID, "diagnosis_id", d.ID)
		msg.Content = summaryText(d)
		msg.Diagnosis = &d
		if inv, ok := c.history.(historyInvalidator); ok {
			inv.InvalidateList()
		}
	}

	c.mu.Lock()
	c.cycle = cycle{state: CycleGenerated, turns: c.cycle.turns}
	active := c.phase == PhaseActive
	c.mu.Unlock()

	if active {
		c.appendMessage(ctx, msg)
	}

	c.mu.Lock()
	c.cycle = idle(0)
	c.mu.Unlock()
}

// handleReportRequest answers a report request without an analyze call.
func (c *Controller) handleReportRequest(ctx context.Context, turns int) {
	latest, hasHistory := c.latestDiagnosis(ctx)
	enough := turns >= c.threshold

	switch {
	case !enough && hasHistory:
		c.appendMessage(ctx, Message{Role: RoleAssistant, Kind: KindReportOffer, Content: reportOfferText(latest), Diagnosis: &latest})
	case !enough:
		c.appendMessage(ctx, Message{Role: RoleAssistant, Kind: KindText, Content: MsgReportNeedMoreTurns})
	case hasHistory:
		c.appendMessage(ctx, Message{Role: RoleAssistant, Kind: KindReport, Content: MsgReportInProgress, Diagnosis: &latest})
		res, err := c.backend.RequestReport(ctx, latest.ID)
		if err != nil {
			title, content := FailureMessage(err)
			c.log.Warn("chat report request failed", "diagnosis_id", latest.ID, "error", err)
			c.appendMessage(ctx, Message{Role: RoleAssistant, Kind: KindError, Title: title, Content: content})
			return
		}
		c.log.Info("chat report requested", "diagnosis_id", latest.ID, "status", res.Status)
	default:
		c.appendMessage(ctx, Message{Role: RoleAssistant, Kind: KindText, Content: MsgReportUnavailable})
	}
}

// latestDiagnosis returns the newest stored diagnosis. Lookup failures count
// as no history.
func (c *Controller) latestDiagnosis(ctx context.Context) (api.Diagnosis, bool) {
	if c.history == nil {
		return api.Diagnosis{}, false
	}
	list, err := c.history.Diagnoses(ctx)
	if err != nil {
		c.log.Warn("chat history lookup failed", "error", err)
		return api.Diagnosis{}, false
	}
	if len(list) == 0 {
		return api.Diagnosis{}, false
	}
	return list[0], true
}

// RequestLeave is called when the user tries to leave. It reports whether
// leaving is blocked pending the feedback prompt; if not, the caller may
// leave right away and the session is left open for the server to reuse.
func (c *Controller) RequestLeave() bool {
	c.mu.Lock()
	block := c.phase == PhaseActive && c.userMessages > 0 && !c.leaving
	if block {
		c.blocked = true
	} else {
		c.leaving = true
	}
	c.mu.Unlock()
	if block {
		c.emit(Event{Type: EventBlocked, Blocked: true})
	}
	return block
}

// Leave answers the leave prompt. The session end and the feedback submit
// run in the background; their failures are logged. Leave returns at once;
// use Wait to join the background work.
func (c *Controller) Leave(ctx context.Context, choice Choice) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseEnding, PhaseEnded:
		c.mu.Unlock()
		return nil
	case PhaseActive:
	default:
		c.mu.Unlock()
		return ErrNotActive
	}
	c.phase = PhaseEnding
	c.blocked = false
	c.leaving = true
	sessionID := c.sessionID
	c.mu.Unlock()
	c.emit(Event{Type: EventPhase, SessionID: sessionID, Phase: PhaseEnding.String()})

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.leaveWait)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.finish(bg, sessionID, choice)
	}()
	return nil
}

func (c *Controller) finish(ctx context.Context, sessionID int, choice Choice) {
	log := c.log.With("history_id", sessionID, "choice", choice.String())

	if _, err := c.backend.EndSession(ctx, sessionID); err != nil {
		log.Warn("chat session end failed", "error", err)
	}
	fb, hasFeedback := choice.Feedback()
	if hasFeedback {
		if _, err := c.backend.SubmitFeedback(ctx, sessionID, fb); err != nil {
			log.Warn("chat feedback submit failed", "error", err)
		}
	}
	if c.recorder != nil {
		if err := c.recorder.SessionEnded(ctx, sessionID, fb); err != nil {
			log.Warn("transcript: record session end", "error", err)
		}
	}

	c.mu.Lock()
	c.phase = PhaseEnded
	c.sessionID = 0
	c.mu.Unlock()
	c.emit(Event{Type: EventPhase, SessionID: sessionID, Phase: PhaseEnded.String()})
	log.Info("chat session ended")
}

// Wait blocks until background leave work has finished.
func (c *Controller) Wait() { c.wg.Wait() }

func (c *Controller) appendMessage(ctx context.Context, m Message) Message {
	m.ID = c.newID()
	m.CreatedAt = c.now()

	c.mu.Lock()
	c.messages = append(c.messages, m)
	sessionID := c.sessionID
	c.mu.Unlock()

	ev := m
	c.emit(Event{Type: EventMessage, SessionID: sessionID, Message: &ev})
	if c.recorder != nil {
		if err := c.recorder.MessageAppended(ctx, sessionID, m); err != nil {
			c.log.Warn("transcript: record message", "history_id", sessionID, "error", err)
		}
	}
	return m
}

func (c *Controller) setTyping(on bool) {
	c.mu.Lock()
	c.typing = on
	sessionID := c.sessionID
	c.mu.Unlock()
	c.emit(Event{Type: EventTyping, SessionID: sessionID, Typing: on})
}

func (c *Controller) stillActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == PhaseActive
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	Phase     string `json:"phase"`
	SessionID int    `json:"session_id"`
	Turns     int    `json:"turns"`
	Cycle     string `json:"cycle"`
	Typing    bool   `json:"typing"`
	Busy      bool   `json:"busy"`
	Blocked   bool   `json:"blocked"`
	Messages  int    `json:"messages"`
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:     c.phase.String(),
		SessionID: c.sessionID,
		Turns:     c.cycle.turns,
		Cycle:     c.cycle.state.String(),
		Typing:    c.typing,
		Busy:      c.busy,
		Blocked:   c.blocked,
		Messages:  len(c.messages),
	}
}

// Phase returns the lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SessionID returns the open session id, or 0.
func (c *Controller) SessionID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Turns returns the exchange count of the current cycle.
func (c *Controller) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle.turns
}

// Typing reports whether a reply is being awaited.
func (c *Controller) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// Blocked reports whether leaving is waiting on the feedback prompt.
func (c *Controller) Blocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked
}

// Messages returns a copy of the transcript.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// MarshalJSON renders the snapshot plus transcript.
func (c *Controller) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Snapshot
		Transcript []Message `json:"transcript"`
	}{c.Snapshot(), c.Messages()})
}
