package chat

import (
	"time"

	"github.com/zulandar/huebot/internal/api"
)

// Role is the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind distinguishes assistant messages that are not plain replies.
type Kind string

const (
	KindText        Kind = "text"
	KindGreeting    Kind = "greeting"
	KindSummary     Kind = "summary"
	KindReportOffer Kind = "report_offer"
	KindReport      Kind = "report"
	KindError       Kind = "error"
)

// Message is one transcript entry. Messages are never changed once appended.
type Message struct {
	ID         string            `json:"id"`
	Role       Role              `json:"role"`
	Kind       Kind              `json:"kind"`
	Title      string            `json:"title,omitempty"`
	Content    string            `json:"content"`
	QuestionID int               `json:"question_id,omitempty"`
	Analysis   *api.ChatAnalysis `json:"analysis,omitempty"`
	Diagnosis  *api.Diagnosis    `json:"diagnosis,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// IsUser reports whether the user wrote m.
func (m Message) IsUser() bool { return m.Role == RoleUser }
