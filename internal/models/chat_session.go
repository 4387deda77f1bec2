package models

import "time"

// ChatSession is the local record of one server-side chat session. HistoryID
// is the id the service assigned; a resumed session keeps its row.
type ChatSession struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	HistoryID int    `gorm:"not null;uniqueIndex"`
	UserID    int    `gorm:"index"`
	Status    string `gorm:"size:16;default:active;index"` // active, ended
	Feedback  string `gorm:"size:16"`                      // 좋다, 싫다 or empty
	Reused    bool   `gorm:"default:false"`
	CreatedAt time.Time
	EndedAt   *time.Time

	Entries []TranscriptEntry `gorm:"foreignKey:SessionID"`
}

// TranscriptEntry stores a single message of a chat session's transcript.
type TranscriptEntry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	SessionID   uint   `gorm:"not null;index"`
	Sequence    int    `gorm:"not null"`
	MessageID   string `gorm:"size:36;not null;uniqueIndex"`
	Role        string `gorm:"size:16;not null"`     // user, assistant
	Kind        string `gorm:"size:16;default:text"` // text, summary, error, greeting
	Title       string `gorm:"size:64"`
	Content     string `gorm:"type:text;not null"`
	Analysis    string `gorm:"type:text"` // JSON ChatAnalysis, empty for user messages
	DiagnosisID *int
	CreatedAt   time.Time
}

// Delivery records one attempt to publish a diagnosis to an outside channel.
type Delivery struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	DiagnosisID int    `gorm:"not null;index"`
	Target      string `gorm:"size:16;not null"` // slack, discord
	Status      string `gorm:"size:16;not null"` // sent, failed
	Error       string `gorm:"type:text"`
	CreatedAt   time.Time
}
