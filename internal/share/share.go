// Package share posts a diagnosis card to chat platforms and records each
// delivery in the local store.
package share

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/logging"
	"github.com/zulandar/huebot/internal/models"
	"gorm.io/gorm"
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Publisher delivers a card to one platform.
type Publisher interface {
	// Name is the target name recorded with each delivery, e.g. "slack".
	Name() string
	Publish(ctx context.Context, card Card) error
}

// Card is a platform-neutral rendering of a diagnosis.
type Card struct {
	Title  string
	Body   string
	Color  string // hex, e.g. "#f4a261"
	Fields []Field
	Footer string
}

// Field is a labelled value shown on a card.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// toneColors maps a result tone to a sidebar color.
var toneColors = map[string]string{
	"spring": "#f4a261",
	"summer": "#8ecae6",
	"autumn": "#bc6c25",
	"winter": "#3a0ca3",
}

const defaultColor = "#9d8189"

// CardFromDiagnosis renders d as a card.
func CardFromDiagnosis(d api.Diagnosis) Card {
	card := Card{
		Title: fmt.Sprintf("퍼스널컬러 진단 결과: %s", d.DisplayName()),
		Body:  firstNonEmpty(d.DetailedAnalysis, d.Description),
		Color: toneColors[strings.ToLower(d.ResultTone)],
	}
	if card.Color == "" {
		card.Color = defaultColor
	}
	if len(d.ColorPalette) > 0 {
		card.Fields = append(card.Fields, Field{Name: "추천 컬러", Value: strings.Join(d.ColorPalette, ", ")})
	}
	if len(d.StyleKeywords) > 0 {
		card.Fields = append(card.Fields, Field{Name: "스타일 키워드", Value: strings.Join(d.StyleKeywords, ", "), Inline: true})
	}
	if len(d.MakeupTips) > 0 {
		card.Fields = append(card.Fields, Field{Name: "메이크업 팁", Value: strings.Join(d.MakeupTips, "\n")})
	}
	if d.Confidence > 0 {
		card.Fields = append(card.Fields, Field{Name: "신뢰도", Value: fmt.Sprintf("%.0f%%", d.Confidence*100), Inline: true})
	}
	if date := api.FormatDate(d.CreatedAt.Time, false); date != "" {
		card.Footer = "진단일 " + date
	}
	return card
}

// Text is the plain-text fallback of the card.
func (c Card) Text() string {
	var b strings.Builder
	b.WriteString(c.Title)
	if c.Body != "" {
		b.WriteString("\n")
		b.WriteString(c.Body)
	}
	for _, f := range c.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Name, f.Value)
	}
	return b.String()
}

// Result is the outcome of one publisher.
type Result struct {
	Target string
	Err    error
}

// Sharer fans a diagnosis out to its publishers.
type Sharer struct {
	db         *gorm.DB
	publishers []Publisher
	log        *logging.Logger
	now        func() time.Time
}

// NewSharer returns a Sharer. db may be nil, in which case deliveries are not
// recorded.
func NewSharer(db *gorm.DB, log *logging.Logger, publishers ...Publisher) *Sharer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Sharer{db: db, publishers: publishers, log: log, now: time.Now}
}

// Targets lists the configured publisher names.
func (s *Sharer) Targets() []string {
	names := make([]string, len(s.publishers))
	for i, p := range s.publishers {
		names[i] = p.Name()
	}
	return names
}

// Share publishes d to every publisher. One failing target does not stop the
// others; each outcome is returned and recorded.
func (s *Sharer) Share(ctx context.Context, d api.Diagnosis) []Result {
	card := CardFromDiagnosis(d)
	results := make([]Result, 0, len(s.publishers))
	for _, p := range s.publishers {
		err := p.Publish(ctx, card)
		results = append(results, Result{Target: p.Name(), Err: err})
		if err != nil {
			s.log.Warn("share failed", "target", p.Name(), "diagnosis_id", d.ID, "error", err)
		} else {
			s.log.Info("diagnosis shared", "target", p.Name(), "diagnosis_id", d.ID)
		}
		s.record(ctx, d.ID, p.Name(), err)
	}
	return results
}

func (s *Sharer) record(ctx context.Context, diagnosisID int, target string, err error) {
	if s.db == nil {
		return
	}
	row := models.Delivery{
		DiagnosisID: diagnosisID,
		Target:      target,
		Status:      StatusSent,
		CreatedAt:   s.now(),
	}
	if err != nil {
		row.Status = StatusFailed
		row.Error = err.Error()
	}
	if dbErr := s.db.WithContext(ctx).Create(&row).Error; dbErr != nil {
		s.log.Warn("share: record delivery", "target", target, "error", dbErr)
	}
}

// Deliveries returns recorded deliveries of diagnosisID, newest first. A zero
// id returns all deliveries.
func Deliveries(ctx context.Context, db *gorm.DB, diagnosisID int) ([]models.Delivery, error) {
	q := db.WithContext(ctx).Order("created_at DESC, id DESC")
	if diagnosisID != 0 {
		q = q.Where("diagnosis_id = ?", diagnosisID)
	}
	var rows []models.Delivery
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("share: list deliveries: %w", err)
	}
	return rows, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
