package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zulandar/huebot/internal/api"
)

// mockBackend records every call and answers from configurable hooks.
type mockBackend struct {
	mu sync.Mutex

	start    api.SessionStart
	startErr error

	analyzeErrs []error // per-call error, nil entries succeed
	analyzeFn   func(req api.AnalyzeRequest) (api.AnalyzeResponse, error)
	analyzeReqs []api.AnalyzeRequest

	saveErr   error
	saveCalls []int

	reportErr   error
	reportCalls []int

	endErr   error
	endCalls []int

	feedbackErr   error
	feedbackCalls []api.Feedback

	calls []string
}

func newMockBackend(historyID int) *mockBackend {
	return &mockBackend{start: api.SessionStart{HistoryID: historyID}}
}

func (m *mockBackend) record(name string) {
	m.calls = append(m.calls, name)
}

func (m *mockBackend) StartSession(ctx context.Context) (api.SessionStart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("start")
	if m.startErr != nil {
		return api.SessionStart{}, m.startErr
	}
	return m.start, nil
}

func (m *mockBackend) Analyze(ctx context.Context, req api.AnalyzeRequest) (api.AnalyzeResponse, error) {
	m.mu.Lock()
	m.record("analyze")
	m.analyzeReqs = append(m.analyzeReqs, req)
	n := len(m.analyzeReqs)
	var err error
	if n <= len(m.analyzeErrs) {
		err = m.analyzeErrs[n-1]
	}
	fn := m.analyzeFn
	m.mu.Unlock()

	if err != nil {
		return api.AnalyzeResponse{}, err
	}
	if fn != nil {
		return fn(req)
	}
	return api.AnalyzeResponse{
		HistoryID: req.HistoryID,
		Items: []api.ChatItem{{
			QuestionID: n,
			Question:   req.Question,
			Answer:     fmt.Sprintf("answer %d", n),
			ChatRes: api.ChatAnalysis{
				PrimaryTone:     "웜",
				SubTone:         "봄",
				Description:     fmt.Sprintf("analysis %d", n),
				Recommendations: []string{"코랄"},
			},
		}},
	}, nil
}

func (m *mockBackend) EndSession(ctx context.Context, historyID int) (api.SessionEnd, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("end")
	m.endCalls = append(m.endCalls, historyID)
	return api.SessionEnd{Message: "ok"}, m.endErr
}

func (m *mockBackend) SaveDiagnosisFromChat(ctx context.Context, historyID int) (api.Diagnosis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("save")
	m.saveCalls = append(m.saveCalls, historyID)
	if m.saveErr != nil {
		return api.Diagnosis{}, m.saveErr
	}
	return api.Diagnosis{
		ID:            100 + len(m.saveCalls),
		ResultTone:    "spring",
		ResultName:    "봄 웜 라이트",
		ColorPalette:  api.StringList{"#FFB6A3"},
		StyleKeywords: api.StringList{"화사한"},
		SourceType:    api.SourceChatbot,
	}, nil
}

func (m *mockBackend) RequestReport(ctx context.Context, diagnosisID int) (api.ReportRequestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("report")
	m.reportCalls = append(m.reportCalls, diagnosisID)
	if m.reportErr != nil {
		return api.ReportRequestResult{}, m.reportErr
	}
	return api.ReportRequestResult{Status: "success", SurveyResultID: diagnosisID}, nil
}

func (m *mockBackend) SubmitFeedback(ctx context.Context, historyID int, fb api.Feedback) (api.FeedbackResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("feedback")
	m.feedbackCalls = append(m.feedbackCalls, fb)
	if m.feedbackErr != nil {
		return api.FeedbackResult{}, m.feedbackErr
	}
	return api.FeedbackResult{UserFeedbackID: 1, HistoryID: historyID, Feedback: fb}, nil
}

func (m *mockBackend) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

// mockHistory is a fixed history list.
type mockHistory struct {
	mu          sync.Mutex
	list        []api.Diagnosis
	err         error
	invalidated int
}

func (h *mockHistory) Diagnoses(ctx context.Context) ([]api.Diagnosis, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.list, h.err
}

func (h *mockHistory) InvalidateList() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidated++
}

// mockRecorder collects recorder callbacks.
type mockRecorder struct {
	mu       sync.Mutex
	started  []int
	messages []Message
	ended    []api.Feedback
	err      error
}

func (r *mockRecorder) SessionStarted(ctx context.Context, start api.SessionStart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, start.HistoryID)
	return r.err
}

func (r *mockRecorder) MessageAppended(ctx context.Context, historyID int, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return r.err
}

func (r *mockRecorder) SessionEnded(ctx context.Context, historyID int, fb api.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, fb)
	return r.err
}

var errBoom = errors.New("boom")
