// Package transcript keeps a local copy of chat sessions and their messages
// so past conversations can be browsed without the service.
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

// Session statuses.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// ErrNoSession is returned when no session row exists for a history id.
var ErrNoSession = errors.New("transcript: session not found")

// Store records chat sessions in the local database. It implements
// chat.Recorder.
type Store struct {
	db     *gorm.DB
	userID int
	now    func() time.Time
}

var _ chat.Recorder = (*Store)(nil)

// NewStore returns a Store recording sessions for userID.
func NewStore(db *gorm.DB, userID int) *Store {
	return &Store{db: db, userID: userID, now: time.Now}
}

// SessionStarted creates the session row, or reopens it when the service
// resumed a session already on record.
func (s *Store) SessionStarted(ctx context.Context, start api.SessionStart) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess models.ChatSession
		err := tx.Where("history_id = ?", start.HistoryID).First(&sess).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sess = models.ChatSession{
				HistoryID: start.HistoryID,
				UserID:    s.userID,
				Status:    StatusActive,
				Reused:    start.Reused,
				CreatedAt: s.now(),
			}
			if err := tx.Create(&sess).Error; err != nil {
				return fmt.Errorf("transcript: create session %d: %w", start.HistoryID, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("transcript: load session %d: %w", start.HistoryID, err)
		}
		if err := tx.Model(&sess).Updates(map[string]interface{}{
			"status":   StatusActive,
			"reused":   true,
			"ended_at": nil,
		}).Error; err != nil {
			return fmt.Errorf("transcript: reopen session %d: %w", start.HistoryID, err)
		}
		return nil
	})
}

// MessageAppended stores m as the next entry of the session.
func (s *Store) MessageAppended(ctx context.Context, historyID int, m chat.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := findSession(tx, historyID)
		if err != nil {
			return err
		}

		var last int
		if err := tx.Model(&models.TranscriptEntry{}).
			Where("session_id = ?", sess.ID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&last).Error; err != nil {
			return fmt.Errorf("transcript: next sequence: %w", err)
		}

		entry := models.TranscriptEntry{
			SessionID: sess.ID,
			Sequence:  last + 1,
			MessageID: m.ID,
			Role:      string(m.Role),
			Kind:      string(m.Kind),
			Title:     m.Title,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
		if m.Analysis != nil {
			data, err := json.Marshal(m.Analysis)
			if err != nil {
				return fmt.Errorf("transcript: encode analysis: %w", err)
			}
			entry.Analysis = string(data)
		}
		if m.Diagnosis != nil {
			id := m.Diagnosis.ID
			entry.DiagnosisID = &id
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("transcript: append to session %d: %w", historyID, err)
		}
		return nil
	})
}

// SessionEnded marks the session ended with the user's feedback, if any.
func (s *Store) SessionEnded(ctx context.Context, historyID int, fb api.Feedback) error {
	now := s.now()
	result := s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("history_id = ? AND user_id = ?", historyID, s.userID).
		Updates(map[string]interface{}{
			"status":   StatusEnded,
			"feedback": string(fb),
			"ended_at": &now,
		})
	if result.Error != nil {
		return fmt.Errorf("transcript: end session %d: %w", historyID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNoSession, historyID)
	}
	return nil
}

func findSession(tx *gorm.DB, historyID int) (*models.ChatSession, error) {
	var sess models.ChatSession
	err := tx.Where("history_id = ?", historyID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNoSession, historyID)
	}
	if err != nil {
		return nil, fmt.Errorf("transcript: load session %d: %w", historyID, err)
	}
	return &sess, nil
}
