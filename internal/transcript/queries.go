package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/chat"
	"github.com/zulandar/huebot/internal/models"
	"gorm.io/gorm"
)

// SessionRow summarises a recorded session for listings.
type SessionRow struct {
	HistoryID int        `json:"history_id"`
	Status    string     `json:"status"`
	Feedback  string     `json:"feedback,omitempty"`
	Reused    bool       `json:"reused"`
	Messages  int        `json:"messages"`
	Summaries int        `json:"summaries"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// ListSessions returns the user's sessions, newest first. A limit <= 0
// returns all of them.
func ListSessions(ctx context.Context, db *gorm.DB, userID, limit int) ([]SessionRow, error) {
	q := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sessions []models.ChatSession
	if err := q.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("transcript: list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return []SessionRow{}, nil
	}

	ids := make([]uint, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	type countRow struct {
		SessionID uint
		Kind      string
		Count     int
	}
	var counts []countRow
	if err := db.WithContext(ctx).Model(&models.TranscriptEntry{}).
		Select("session_id, kind, COUNT(*) as count").
		Where("session_id IN ?", ids).
		Group("session_id, kind").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("transcript: count entries: %w", err)
	}
	total := make(map[uint]int)
	summaries := make(map[uint]int)
	for _, c := range counts {
		total[c.SessionID] += c.Count
		if c.Kind == string(chat.KindSummary) {
			summaries[c.SessionID] += c.Count
		}
	}

	rows := make([]SessionRow, len(sessions))
	for i, s := range sessions {
		rows[i] = SessionRow{
			HistoryID: s.HistoryID,
			Status:    s.Status,
			Feedback:  s.Feedback,
			Reused:    s.Reused,
			Messages:  total[s.ID],
			Summaries: summaries[s.ID],
			CreatedAt: s.CreatedAt,
			EndedAt:   s.EndedAt,
		}
	}
	return rows, nil
}

// Transcript is a recorded session with its messages in order.
type Transcript struct {
	SessionRow
	Entries []chat.Message `json:"entries"`
}

// Load returns the recorded transcript of historyID. Sessions of other users
// are reported as missing.
func Load(ctx context.Context, db *gorm.DB, userID, historyID int) (*Transcript, error) {
	var sess models.ChatSession
	err := db.WithContext(ctx).
		Preload("Entries", func(tx *gorm.DB) *gorm.DB { return tx.Order("sequence ASC") }).
		Where("history_id = ? AND user_id = ?", historyID, userID).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNoSession, historyID)
	}
	if err != nil {
		return nil, fmt.Errorf("transcript: load %d: %w", historyID, err)
	}

	t := &Transcript{
		SessionRow: SessionRow{
			HistoryID: sess.HistoryID,
			Status:    sess.Status,
			Feedback:  sess.Feedback,
			Reused:    sess.Reused,
			Messages:  len(sess.Entries),
			CreatedAt: sess.CreatedAt,
			EndedAt:   sess.EndedAt,
		},
		Entries: make([]chat.Message, 0, len(sess.Entries)),
	}
	for _, e := range sess.Entries {
		m := entryMessage(e)
		if m.Kind == chat.KindSummary {
			t.Summaries++
		}
		t.Entries = append(t.Entries, m)
	}
	return t, nil
}

// Delete removes a recorded session and its entries.
func Delete(ctx context.Context, db *gorm.DB, userID, historyID int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess models.ChatSession
		err := tx.Where("history_id = ? AND user_id = ?", historyID, userID).First(&sess).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", ErrNoSession, historyID)
		}
		if err != nil {
			return fmt.Errorf("transcript: load %d: %w", historyID, err)
		}
		if err := tx.Where("session_id = ?", sess.ID).Delete(&models.TranscriptEntry{}).Error; err != nil {
			return fmt.Errorf("transcript: delete entries of %d: %w", historyID, err)
		}
		if err := tx.Delete(&sess).Error; err != nil {
			return fmt.Errorf("transcript: delete %d: %w", historyID, err)
		}
		return nil
	})
}

// entryMessage converts a stored row back to a chat message. A stored
// diagnosis keeps only its id.
func entryMessage(e models.TranscriptEntry) chat.Message {
	m := chat.Message{
		ID:        e.MessageID,
		Role:      chat.Role(e.Role),
		Kind:      chat.Kind(e.Kind),
		Title:     e.Title,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
	}
	if e.Analysis != "" {
		var a api.ChatAnalysis
		if err := json.Unmarshal([]byte(e.Analysis), &a); err == nil {
			m.Analysis = &a
		}
	}
	if e.DiagnosisID != nil {
		m.Diagnosis = &api.Diagnosis{ID: *e.DiagnosisID}
	}
	return m
}
