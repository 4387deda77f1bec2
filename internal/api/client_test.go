package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestClient(t *testing.T, h http.Handler, token string) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL, Token: token, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error for empty base url")
	}
	if _, err := New(Options{BaseURL: "not a url"}); err == nil {
		t.Error("expected error for invalid base url")
	}
}

func TestLogin_PasswordGrant(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := signedToken(t, jwt.MapClaims{"sub": "alice", "exp": exp.Unix()})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
			t.Errorf("content-type = %q", ct)
		}
		r.ParseForm()
		if r.Form.Get("username") != "alice" || r.Form.Get("password") != "pw1234!!" {
			t.Errorf("form = %v", r.Form)
		}
		if r.Form.Get("grant_type") != "password" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": access,
			"token_type":   "bearer",
			"user":         map[string]any{"id": 7, "username": "alice", "nickname": "앨리스", "role": "user", "is_active": true},
		})
	})
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+access {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 7, "username": "alice", "create_date": "2024-03-01T09:30:00"})
	})

	c, _ := newTestClient(t, mux, "")
	tok, err := c.Login(context.Background(), "alice", "pw1234!!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.AccessToken != access {
		t.Errorf("AccessToken mismatch")
	}
	if tok.User.ID != 7 || tok.User.Nickname != "앨리스" {
		t.Errorf("User = %+v", tok.User)
	}
	if !tok.Expiry.Equal(exp) {
		t.Errorf("Expiry = %v, want %v", tok.Expiry, exp)
	}
	if c.Token() != access {
		t.Error("token not installed on client")
	}

	me, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.CreateDate.Year() != 2024 {
		t.Errorf("CreateDate = %v", me.CreateDate)
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "닉네임 또는 비밀번호가 올바르지 않습니다."})
	})
	c, _ := newTestClient(t, h, "")
	_, err := c.Login(context.Background(), "alice", "wrong")
	if err == nil {
		t.Fatal("expected error")
	}
	if Kind(err) != KindAuth {
		t.Errorf("Kind = %v, want auth", Kind(err))
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Detail, "비밀번호") {
		t.Errorf("err = %v", err)
	}
	if c.Token() != "" {
		t.Error("token must not be installed after failed login")
	}
}

func TestAuthenticatedCall_WithoutToken(t *testing.T) {
	var hits int
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ })
	c, _ := newTestClient(t, h, "")
	_, err := c.ListDiagnoses(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if Kind(err) != KindAuth || StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("Kind = %v status = %d", Kind(err), StatusCode(err))
	}
	if hits != 0 {
		t.Errorf("server hit %d times, want 0", hits)
	}
}

func TestAPIError_DetailShapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		detail string
		kind   ErrorKind
	}{
		{"string detail", 404, `{"detail":"해당 history_id 세션 없음"}`, "해당 history_id 세션 없음", KindNotFound},
		{"validation list", 422, `{"detail":[{"loc":["body","question"],"msg":"field required"},{"msg":"too short"}]}`, "field required; too short", KindValidation},
		{"plain text", 500, `Internal Server Error`, "Internal Server Error", KindServer},
		{"bad request", 400, `{"detail":"이미 종료된 세션입니다."}`, "이미 종료된 세션입니다.", KindValidation},
		{"conflict", 409, `{"detail":"이미 사용 중인 닉네임입니다."}`, "이미 사용 중인 닉네임입니다.", KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			c, _ := newTestClient(t, h, "tok")
			_, err := c.Analyze(context.Background(), AnalyzeRequest{Question: "hi", HistoryID: 3})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Detail != tt.detail {
				t.Errorf("got %d %q, want %d %q", apiErr.Status, apiErr.Detail, tt.status, tt.detail)
			}
			if Kind(err) != tt.kind {
				t.Errorf("Kind = %v, want %v", Kind(err), tt.kind)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: addr, Token: "tok", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.StartSession(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("err = %v, want network error", err)
	}
	if Kind(err) != KindNetwork || !IsRetryable(err) {
		t.Errorf("Kind = %v retryable = %v", Kind(err), IsRetryable(err))
	}
}

func TestCanceledContext_IsNotNetworkError(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	c, _ := newTestClient(t, h, "tok")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.StartSession(ctx)
	if err == nil || IsNetworkError(err) {
		t.Fatalf("err = %v, want plain cancellation", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestListDiagnoses_DecodesEncodedLists(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/survey/list" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `[
			{"id": 12, "user_id": 7, "created_at": "2024-05-02T10:00:00.123456", "result_tone": "spring",
			 "result_name": "봄 웜 라이트", "confidence": 0.92, "total_score": 80, "source_type": "survey",
			 "color_palette": "[\"#FFB6A3\", \"#F9E27D\"]", "style_keywords": ["화사한", "경쾌한"],
			 "makeup_tips": null, "top_types": "[{\"type\":\"spring\",\"score\":0.9}]", "answers": []},
			{"id": 9, "created_at": "2024-04-01T08:00:00Z", "result_tone": "winter", "color_palette": "not json"}
		]`)
	})
	c, _ := newTestClient(t, h, "tok")
	list, err := c.ListDiagnoses(context.Background())
	if err != nil {
		t.Fatalf("ListDiagnoses: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	d := list[0]
	if d.ID != 12 || d.UserID != 7 || d.DisplayName() != "봄 웜 라이트" {
		t.Errorf("first = %+v", d)
	}
	if len(d.ColorPalette) != 2 || d.ColorPalette[0] != "#FFB6A3" {
		t.Errorf("ColorPalette = %v", d.ColorPalette)
	}
	if len(d.StyleKeywords) != 2 || d.MakeupTips != nil {
		t.Errorf("StyleKeywords = %v MakeupTips = %v", d.StyleKeywords, d.MakeupTips)
	}
	if len(d.TopTypes) != 1 || d.TopTypes[0].Type != "spring" {
		t.Errorf("TopTypes = %v", d.TopTypes)
	}
	if list[1].DisplayName() != "WINTER" {
		t.Errorf("fallback name = %q", list[1].DisplayName())
	}
	if list[1].ColorPalette == nil || len(list[1].ColorPalette) != 0 {
		t.Errorf("unparseable palette = %#v, want empty list", list[1].ColorPalette)
	}
}

func TestSaveDiagnosisFromChat_NormalizesShape(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chatbot/report/save" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var in map[string]any
		json.NewDecoder(r.Body).Decode(&in)
		if in["history_id"] != float64(31) || in["force"] != true {
			t.Errorf("body = %v", in)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"survey_result_id":  55,
			"message":           "진단 기록 생성 완료",
			"created_at":        "2024-05-02T10:00:00+00:00",
			"result_tone":       "summer",
			"result_name":       "여름 쿨 뮤트",
			"detailed_analysis": "차분한 톤이 잘 어울립니다.",
			"color_palette":     []string{"#A7B8D1"},
			"style_keywords":    []string{"우아한"},
			"makeup_tips":       []string{"로즈 립"},
			"report_data":       map[string]any{"summary": "ok"},
		})
	})
	c, _ := newTestClient(t, h, "tok")
	d, err := c.SaveDiagnosisFromChat(context.Background(), 31)
	if err != nil {
		t.Fatalf("SaveDiagnosisFromChat: %v", err)
	}
	if d.ID != 55 || d.SourceType != SourceChatbot || d.ResultName != "여름 쿨 뮤트" {
		t.Errorf("d = %+v", d)
	}
	if len(d.ReportData) == 0 {
		t.Error("ReportData dropped")
	}
}

func TestSubmitSurvey_NormalizesShape(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Answers []SurveyAnswer `json:"answers"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		if len(in.Answers) != 2 || in.Answers[1].OptionLabel != "밝은 색" {
			t.Errorf("answers = %+v", in.Answers)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":          "설문 결과 저장 완료",
			"survey_result_id": 77,
			"result_tone":      "autumn",
			"name":             "가을 웜 딥",
			"description":      "깊고 따뜻한 색",
			"top_types":        []map[string]any{{"type": "autumn", "name": "가을 웜 딥", "score": 0.8}},
		})
	})
	c, _ := newTestClient(t, h, "tok")
	d, err := c.SubmitSurvey(context.Background(), []SurveyAnswer{
		{QuestionID: 1, OptionID: "a", OptionLabel: "노란 빛"},
		{QuestionID: 2, OptionID: "b", OptionLabel: "밝은 색"},
	})
	if err != nil {
		t.Fatalf("SubmitSurvey: %v", err)
	}
	if d.ID != 77 || d.ResultName != "가을 웜 딥" || d.Description != "깊고 따뜻한 색" || d.SourceType != SourceSurvey {
		t.Errorf("d = %+v", d)
	}

	if _, err := c.SubmitSurvey(context.Background(), nil); err == nil {
		t.Error("expected error for empty answers")
	}
}

func TestDiagnosis_RoundTrip(t *testing.T) {
	in := Diagnosis{ID: 4, ResultTone: "spring", ResultName: "봄", Description: "밝음", ColorPalette: StringList{"#fff"}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Diagnosis
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != 4 || out.Description != "밝음" || len(out.ColorPalette) != 1 {
		t.Errorf("out = %+v", out)
	}
}

func TestAnalyze_RequestAndLatest(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in AnalyzeRequest
		json.NewDecoder(r.Body).Decode(&in)
		if in.Question != "봄 웜에 어울리는 립은?" || in.HistoryID != 8 {
			t.Errorf("in = %+v", in)
		}
		io.WriteString(w, `{"history_id": 8, "items": [
			{"question_id": 1, "question": "안녕", "answer": "안녕하세요", "chat_res": {"primary_tone": "웜", "sub_tone": "봄", "description": "d1", "recommendations": []}},
			{"question_id": 2, "question": "봄 웜에 어울리는 립은?", "answer": "코랄", "emotion": "smile",
			 "chat_res": {"primary_tone": "웜", "sub_tone": "봄", "description": "코랄", "recommendations": ["코랄 립"]}}
		]}`)
	})
	c, _ := newTestClient(t, h, "tok")
	resp, err := c.Analyze(context.Background(), AnalyzeRequest{Question: "봄 웜에 어울리는 립은?", HistoryID: 8})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	item, ok := resp.Latest()
	if !ok {
		t.Fatal("Latest: no item")
	}
	if item.QuestionID != 2 || item.Answer != "코랄" {
		t.Errorf("item = %+v", item)
	}
	if item.ChatRes.Emotion != "smile" {
		t.Errorf("emotion = %q, want item-level fallback", item.ChatRes.Emotion)
	}

	if _, ok := (AnalyzeResponse{}).Latest(); ok {
		t.Error("empty response must have no latest item")
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	var paths []string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/chatbot/start":
			writeJSON(w, 200, map[string]any{"history_id": 5, "reused": true, "user_turns": 2})
		case "/api/chatbot/end/5":
			writeJSON(w, 200, map[string]any{"message": "대화 종료", "ended_at": "2024-05-02T10:00:00"})
		case "/api/chatbot/report/request":
			var in map[string]int
			json.NewDecoder(r.Body).Decode(&in)
			if in["history_id"] != 12 {
				t.Errorf("report request body = %v", in)
			}
			writeJSON(w, 200, map[string]any{"status": "success", "message": "리포트가 생성되었습니다", "survey_result_id": 12})
		case "/api/chatbot/report/12":
			writeJSON(w, 200, map[string]any{"message": "리포트 조회 성공", "html_report": "<html></html>", "download_available": true})
		case "/api/feedback/user":
			writeJSON(w, 200, map[string]any{"user_feedback_id": 3, "history_id": 5, "user_id": 7, "feedback": "좋다"})
		case "/api/feedback/user/5":
			writeJSON(w, 200, map[string]any{"user_feedback_id": 3, "history_id": 5, "user_id": 7, "feedback": "좋다"})
		default:
			w.WriteHeader(404)
		}
	})
	c, _ := newTestClient(t, h, "tok")
	ctx := context.Background()

	start, err := c.StartSession(ctx)
	if err != nil || start.HistoryID != 5 || !start.Reused || start.UserTurns != 2 {
		t.Fatalf("StartSession = %+v, %v", start, err)
	}
	end, err := c.EndSession(ctx, 5)
	if err != nil || end.EndedAt.IsZero() {
		t.Fatalf("EndSession = %+v, %v", end, err)
	}
	rr, err := c.RequestReport(ctx, 12)
	if err != nil || rr.SurveyResultID != 12 {
		t.Fatalf("RequestReport = %+v, %v", rr, err)
	}
	rep, err := c.GetReport(ctx, 12)
	if err != nil || !rep.DownloadAvailable {
		t.Fatalf("GetReport = %+v, %v", rep, err)
	}
	fb, err := c.SubmitFeedback(ctx, 5, FeedbackPositive)
	if err != nil || fb.UserFeedbackID != 3 {
		t.Fatalf("SubmitFeedback = %+v, %v", fb, err)
	}
	got, err := c.GetFeedback(ctx, 5)
	if err != nil || got.Feedback != FeedbackPositive {
		t.Fatalf("GetFeedback = %+v, %v", got, err)
	}
	if _, err := c.SubmitFeedback(ctx, 5, Feedback("meh")); err == nil {
		t.Error("expected error for unsupported feedback value")
	}

	want := []string{
		"POST /api/chatbot/start",
		"POST /api/chatbot/end/5",
		"POST /api/chatbot/report/request",
		"GET /api/chatbot/report/12",
		"POST /api/feedback/user",
		"GET /api/feedback/user/5",
	}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("paths = %v\nwant %v", paths, want)
	}
}

func TestDeleteMe_ClearsToken(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		if r.Method != http.MethodDelete || form.Get("password") != "pw" {
			t.Errorf("%s form=%v", r.Method, form)
		}
		writeJSON(w, 200, map[string]string{"message": "회원탈퇴 완료"})
	})
	c, _ := newTestClient(t, h, "tok")
	if _, err := c.DeleteMe(context.Background(), "pw"); err != nil {
		t.Fatalf("DeleteMe: %v", err)
	}
	if c.Token() != "" {
		t.Error("token should be cleared")
	}
}

func TestParseTokenInfo(t *testing.T) {
	exp := time.Now().Add(-time.Minute).Truncate(time.Second)
	raw := signedToken(t, jwt.MapClaims{"sub": "bob", "user_id": 42, "exp": exp.Unix()})
	info, err := ParseTokenInfo(raw)
	if err != nil {
		t.Fatalf("ParseTokenInfo: %v", err)
	}
	if info.Subject != "bob" || info.UserID != 42 {
		t.Errorf("info = %+v", info)
	}
	if !info.Expired(time.Now()) {
		t.Error("token should be expired")
	}
	if (TokenInfo{}).Expired(time.Now()) {
		t.Error("token without exp never expires")
	}
	if _, err := ParseTokenInfo("garbage"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 0, 0, time.Local)
	if got := FormatDate(ts, false); got != "2024.03.09" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatDate(ts, true); got != "2024.03.09 07:05" {
		t.Errorf("FormatDate(withTime) = %q", got)
	}
	if FormatDate(time.Time{}, true) != "" {
		t.Error("zero time should format empty")
	}
}
