package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Admin page size bounds accepted by the service.
const (
	DefaultAdminPageSize = 20
	MaxAdminPageSize     = 200
)

// AIFeedback is the automatic quality evaluation of one assistant reply.
type AIFeedback struct {
	ID                    int       `json:"id"`
	MessageID             int       `json:"message_id"`
	Accuracy              float64   `json:"accuracy"`
	Consistency           float64   `json:"consistency"`
	Reliability           float64   `json:"reliability"`
	Personalization       float64   `json:"personalization"`
	Practicality          float64   `json:"practicality"`
	TotalScore            float64   `json:"total_score"`
	VectorDBQuality       float64   `json:"vector_db_quality"`
	DetailAccuracy        string    `json:"detail_accuracy,omitempty"`
	DetailConsistency     string    `json:"detail_consistency,omitempty"`
	DetailReliability     string    `json:"detail_reliability,omitempty"`
	DetailPersonalization string    `json:"detail_personalization,omitempty"`
	DetailPracticality    string    `json:"detail_practicality,omitempty"`
	CreatedAt             Timestamp `json:"created_at"`
}

// AdminAnswer is a stored assistant reply. The service keeps either the
// structured analysis or plain text, and older rows hold a bare string.
type AdminAnswer struct {
	ChatAnalysis
	Text string `json:"text,omitempty"`
}

func (a *AdminAnswer) UnmarshalJSON(data []byte) error {
	*a = AdminAnswer{}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &a.Text)
	}
	type plain AdminAnswer
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return fmt.Errorf("admin answer: %w", err)
	}
	*a = AdminAnswer(p)
	return nil
}

// Summary is the most readable one-line form of the answer.
func (a AdminAnswer) Summary() string {
	return firstNonEmpty(a.Description, a.Text, a.PrimaryTone)
}

// AdminQAPair is one question and the reply it received.
type AdminQAPair struct {
	QuestionID int         `json:"question_id"`
	Question   string      `json:"question"`
	Answer     AdminAnswer `json:"answer"`
	AnswerID   int         `json:"answer_id"`
	AIFeedback *AIFeedback `json:"ai_feedback"`
}

// AdminUserFeedback is the like/dislike verdict a user left on a session.
type AdminUserFeedback struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Feedback  Feedback  `json:"feedback"`
	CreatedAt Timestamp `json:"created_at"`
}

// AdminChatHistory is one chat session as the admin console sees it.
type AdminChatHistory struct {
	ID           int                `json:"chat_history_id"`
	UserID       int                `json:"user_id"`
	CreatedAt    Timestamp          `json:"created_at"`
	EndedAt      Timestamp          `json:"ended_at"`
	UserFeedback *AdminUserFeedback `json:"user_feedback"`
	QAPairs      []AdminQAPair      `json:"qa_pairs"`
}

// AdminHistoryQuery selects a page of chat sessions. A zero UserID lists
// every user.
type AdminHistoryQuery struct {
	Page              int
	PageSize          int
	UserID            int
	IncludeAIFeedback bool
}

func (q AdminHistoryQuery) values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("page_size", strconv.Itoa(q.PageSize))
	if q.UserID > 0 {
		v.Set("user_id", strconv.Itoa(q.UserID))
	}
	v.Set("include_ai_feedback", strconv.FormatBool(q.IncludeAIFeedback))
	return v
}

// AdminHistoryPage is one page of chat sessions.
type AdminHistoryPage struct {
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Total    int                `json:"total"`
	Items    []AdminChatHistory `json:"items"`
}

// Pages is the number of pages the total spans.
func (p AdminHistoryPage) Pages() int {
	if p.PageSize <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// AdminAIFeedbackRow is one evaluated reply in the feedback list.
type AdminAIFeedbackRow struct {
	HistoryID  int         `json:"history_id"`
	Question   string      `json:"question"`
	Answer     AdminAnswer `json:"answer"`
	AIFeedback *AIFeedback `json:"ai_feedback"`
}

// AdminUsers lists every account. Admin role required.
func (c *Client) AdminUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.getList(ctx, "/api/users/list", "users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminChatHistories returns a page of chat sessions, newest first, with
// their question/answer pairs. Admin role required.
func (c *Client) AdminChatHistories(ctx context.Context, q AdminHistoryQuery) (AdminHistoryPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultAdminPageSize
	}
	if q.PageSize > MaxAdminPageSize {
		return AdminHistoryPage{}, fmt.Errorf("api: admin chat histories: page size %d exceeds %d", q.PageSize, MaxAdminPageSize)
	}
	var out AdminHistoryPage
	if err := c.getJSON(ctx, "/api/admin/chat_histories?"+q.values().Encode(), &out); err != nil {
		return AdminHistoryPage{}, err
	}
	if out.Items == nil {
		out.Items = []AdminChatHistory{}
	}
	return out, nil
}

// AdminAIFeedback lists the automatic evaluations of assistant replies.
// Admin role required.
func (c *Client) AdminAIFeedback(ctx context.Context) ([]AdminAIFeedbackRow, error) {
	var out []AdminAIFeedbackRow
	if err := c.getList(ctx, "/api/feedback/list/ai_feedbacks", "ai_feedbacks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getList decodes a list that the service returns either bare or wrapped in
// an object under field. Any other shape is an empty list.
func (c *Client) getList(ctx context.Context, path, field string, out any) error {
	var raw json.RawMessage
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return fmt.Errorf("api: decode GET %s: %w", path, err)
		}
		raw = bytes.TrimSpace(wrapped[field])
	}
	if len(raw) == 0 || raw[0] != '[' {
		raw = json.RawMessage("[]")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode GET %s: %w", path, err)
	}
	return nil
}
