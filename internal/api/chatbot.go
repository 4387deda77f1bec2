package api

import (
	"context"
	"fmt"
	"net/http"
)

// StartSession opens a chat session, or reuses the caller's open one.
func (c *Client) StartSession(ctx context.Context) (SessionStart, error) {
	var out SessionStart
	if err := c.sendJSON(ctx, http.MethodPost, "/api/chatbot/start", nil, &out); err != nil {
		return SessionStart{}, err
	}
	return out, nil
}

// Analyze sends one chat turn.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	var out AnalyzeResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/api/chatbot/analyze", req, &out); err != nil {
		return AnalyzeResponse{}, err
	}
	return out, nil
}

// EndSession closes a chat session. Ending an already-ended session succeeds.
func (c *Client) EndSession(ctx context.Context, historyID int) (SessionEnd, error) {
	var out SessionEnd
	if err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/api/chatbot/end/%d", historyID), nil, &out); err != nil {
		return SessionEnd{}, err
	}
	return out, nil
}

// SaveDiagnosisFromChat persists the session's analysis so far as a new
// diagnosis record.
func (c *Client) SaveDiagnosisFromChat(ctx context.Context, historyID int) (Diagnosis, error) {
	in := struct {
		HistoryID int  `json:"history_id"`
		Force     bool `json:"force"`
	}{HistoryID: historyID, Force: true}

	var d Diagnosis
	if err := c.sendJSON(ctx, http.MethodPost, "/api/chatbot/report/save", in, &d); err != nil {
		return Diagnosis{}, err
	}
	d.SourceType = SourceChatbot
	return d, nil
}

// RequestReport asks the service to build a detailed report for a stored
// diagnosis. The service reads the diagnosis id from the history_id field.
func (c *Client) RequestReport(ctx context.Context, diagnosisID int) (ReportRequestResult, error) {
	in := struct {
		HistoryID int `json:"history_id"`
	}{HistoryID: diagnosisID}

	var out ReportRequestResult
	if err := c.sendJSON(ctx, http.MethodPost, "/api/chatbot/report/request", in, &out); err != nil {
		return ReportRequestResult{}, err
	}
	return out, nil
}

// GetReport fetches the generated report for a stored diagnosis.
func (c *Client) GetReport(ctx context.Context, diagnosisID int) (Report, error) {
	var out Report
	if err := c.getJSON(ctx, fmt.Sprintf("/api/chatbot/report/%d", diagnosisID), &out); err != nil {
		return Report{}, err
	}
	return out, nil
}
