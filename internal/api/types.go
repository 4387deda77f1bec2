package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamp accepts the server's datetime encodings, which may omit the
// timezone (naive UTC) or use a space separator.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// StringList decodes either a JSON array of strings or a string holding a
// JSON-encoded array. Unparseable strings decode to an empty list.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	inner, err := unwrapEncoded(data)
	if err != nil {
		return err
	}
	if inner == nil {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(inner, &out); err != nil {
		*l = StringList{}
		return nil
	}
	*l = out
	return nil
}

// TopType is one ranked candidate in a questionnaire result.
type TopType struct {
	Type        string  `json:"type"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

// TopTypeList has the same dual encoding as StringList.
type TopTypeList []TopType

func (l *TopTypeList) UnmarshalJSON(data []byte) error {
	inner, err := unwrapEncoded(data)
	if err != nil {
		return err
	}
	if inner == nil {
		*l = nil
		return nil
	}
	var out []TopType
	if err := json.Unmarshal(inner, &out); err != nil {
		*l = TopTypeList{}
		return nil
	}
	*l = out
	return nil
}

// unwrapEncoded returns the raw array bytes for data, unquoting it first when
// the server sent the array as a string. nil means "absent".
func unwrapEncoded(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] != '"' {
		return data, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return []byte("[]"), nil
	}
	return []byte(s), nil
}

// Diagnosis source types.
const (
	SourceSurvey  = "survey"
	SourceChatbot = "chatbot"
)

// Diagnosis is one AI-derived personal-color result. Questionnaire records,
// questionnaire submit responses and chat report/save responses all decode
// into this one shape.
type Diagnosis struct {
	ID               int             `json:"id"`
	UserID           int             `json:"user_id,omitempty"`
	CreatedAt        Timestamp       `json:"created_at"`
	ResultTone       string          `json:"result_tone"`
	ResultName       string          `json:"result_name,omitempty"`
	Description      string          `json:"result_description,omitempty"`
	Confidence       float64         `json:"confidence,omitempty"`
	TotalScore       int             `json:"total_score,omitempty"`
	SourceType       string          `json:"source_type,omitempty"`
	DetailedAnalysis string          `json:"detailed_analysis,omitempty"`
	ColorPalette     StringList      `json:"color_palette,omitempty"`
	StyleKeywords    StringList      `json:"style_keywords,omitempty"`
	MakeupTips       StringList      `json:"makeup_tips,omitempty"`
	TopTypes         TopTypeList     `json:"top_types,omitempty"`
	Answers          []SurveyAnswer  `json:"answers,omitempty"`
	ReportData       json.RawMessage `json:"report_data,omitempty"`
}

// diagnosisWire is the union of every response shape that carries a result.
type diagnosisWire struct {
	ID                int             `json:"id"`
	SurveyResultID    int             `json:"survey_result_id"`
	UserID            *int            `json:"user_id"`
	CreatedAt         Timestamp       `json:"created_at"`
	ResultTone        string          `json:"result_tone"`
	ResultName        string          `json:"result_name"`
	Name              string          `json:"name"`
	ResultDescription string          `json:"result_description"`
	Description       string          `json:"description"`
	Confidence        float64         `json:"confidence"`
	TotalScore        int             `json:"total_score"`
	SourceType        string          `json:"source_type"`
	DetailedAnalysis  string          `json:"detailed_analysis"`
	ColorPalette      StringList      `json:"color_palette"`
	StyleKeywords     StringList      `json:"style_keywords"`
	MakeupTips        StringList      `json:"makeup_tips"`
	TopTypes          TopTypeList     `json:"top_types"`
	Answers           []SurveyAnswer  `json:"answers"`
	ReportData        json.RawMessage `json:"report_data"`
}

func (d *Diagnosis) UnmarshalJSON(data []byte) error {
	var w diagnosisWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = Diagnosis{
		ID:               firstNonZero(w.ID, w.SurveyResultID),
		CreatedAt:        w.CreatedAt,
		ResultTone:       w.ResultTone,
		ResultName:       firstNonEmpty(w.ResultName, w.Name),
		Description:      firstNonEmpty(w.ResultDescription, w.Description),
		Confidence:       w.Confidence,
		TotalScore:       w.TotalScore,
		SourceType:       w.SourceType,
		DetailedAnalysis: w.DetailedAnalysis,
		ColorPalette:     w.ColorPalette,
		StyleKeywords:    w.StyleKeywords,
		MakeupTips:       w.MakeupTips,
		TopTypes:         w.TopTypes,
		Answers:          w.Answers,
	}
	if w.UserID != nil {
		d.UserID = *w.UserID
	}
	if len(w.ReportData) > 0 && !bytes.Equal(w.ReportData, []byte("null")) {
		d.ReportData = w.ReportData
	}
	return nil
}

// DisplayName is the result name, falling back to the upper-cased tone.
func (d Diagnosis) DisplayName() string {
	if d.ResultName != "" {
		return d.ResultName
	}
	return strings.ToUpper(d.ResultTone)
}

// FormatDate renders a time as YYYY.MM.DD, or YYYY.MM.DD HH:mm with time.
func FormatDate(t time.Time, withTime bool) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	if withTime {
		return t.Format("2006.01.02 15:04")
	}
	return t.Format("2006.01.02")
}

// User is the account record.
type User struct {
	ID         int       `json:"id"`
	Username   string    `json:"username"`
	Nickname   string    `json:"nickname"`
	Email      string    `json:"email"`
	Gender     string    `json:"gender,omitempty"`
	CreateDate Timestamp `json:"create_date"`
	IsActive   bool      `json:"is_active"`
	Role       string    `json:"role"`
}

// UserStats summarises an account's activity.
type UserStats struct {
	TotalSurveys int `json:"total_surveys"`
	SavedResults int `json:"saved_results"`
	ChatSessions int `json:"chat_sessions"`
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
	User        User
}

// SignupRequest creates an account.
type SignupRequest struct {
	Nickname        string `json:"nickname"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Email           string `json:"email"`
	Gender          string `json:"gender,omitempty"`
}

// SurveyAnswer is one questionnaire answer.
type SurveyAnswer struct {
	QuestionID  int            `json:"question_id" yaml:"question_id"`
	OptionID    string         `json:"option_id" yaml:"option_id"`
	OptionLabel string         `json:"option_label" yaml:"option_label"`
	ScoreMap    map[string]int `json:"score_map,omitempty" yaml:"-"`
}

// Message is the generic {message, detail} acknowledgement.
type Message struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ChatAnalysis is the structured part of an assistant reply.
type ChatAnalysis struct {
	PrimaryTone     string   `json:"primary_tone"`
	SubTone         string   `json:"sub_tone"`
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations"`
	Emotion         string   `json:"emotion,omitempty"`
}

// ChatItem is one question/answer pair of a session.
type ChatItem struct {
	QuestionID int          `json:"question_id"`
	Question   string       `json:"question"`
	Answer     string       `json:"answer"`
	ChatRes    ChatAnalysis `json:"chat_res"`
	Emotion    string       `json:"emotion,omitempty"`
}

// AnalyzeRequest sends one chat turn. A zero HistoryID asks the server to
// open a session.
type AnalyzeRequest struct {
	Question  string `json:"question"`
	HistoryID int    `json:"history_id,omitempty"`
}

// AnalyzeResponse carries the whole session so far.
type AnalyzeResponse struct {
	HistoryID int        `json:"history_id"`
	Items     []ChatItem `json:"items"`
}

// Latest returns the item answering the most recent question.
func (r AnalyzeResponse) Latest() (ChatItem, bool) {
	if len(r.Items) == 0 {
		return ChatItem{}, false
	}
	item := r.Items[len(r.Items)-1]
	if item.ChatRes.Emotion == "" {
		item.ChatRes.Emotion = item.Emotion
	}
	return item, true
}

// SessionStart is the result of opening (or reusing) a chat session.
type SessionStart struct {
	HistoryID int  `json:"history_id"`
	Reused    bool `json:"reused"`
	UserTurns int  `json:"user_turns"`
}

// SessionEnd is the result of closing a chat session.
type SessionEnd struct {
	Message           string    `json:"message"`
	EndedAt           Timestamp `json:"ended_at"`
	SurveyResultID    int       `json:"survey_result_id,omitempty"`
	PersonalColorType string    `json:"personal_color_type,omitempty"`
}

// ReportRequestResult acknowledges a report generation request.
type ReportRequestResult struct {
	Status         string          `json:"status"`
	Message        string          `json:"message"`
	SurveyResultID int             `json:"survey_result_id"`
	ReportData     json.RawMessage `json:"report_data,omitempty"`
	Note           string          `json:"note,omitempty"`
}

// Report is a generated report for a stored diagnosis.
type Report struct {
	Message           string          `json:"message"`
	ReportData        json.RawMessage `json:"report_data,omitempty"`
	HTMLReport        string          `json:"html_report,omitempty"`
	DownloadAvailable bool            `json:"download_available"`
}

// Feedback is the like/dislike verdict for a finished session.
type Feedback string

const (
	FeedbackPositive Feedback = "좋다"
	FeedbackNegative Feedback = "싫다"
)

// FeedbackResult is a stored feedback record.
type FeedbackResult struct {
	UserFeedbackID int      `json:"user_feedback_id"`
	HistoryID      int      `json:"history_id"`
	UserID         int      `json:"user_id"`
	Feedback       Feedback `json:"feedback"`
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
