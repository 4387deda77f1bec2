package api

import (
	"context"
	"fmt"
	"net/http"
)

// SubmitSurvey sends a completed questionnaire and returns the resulting
// diagnosis.
func (c *Client) SubmitSurvey(ctx context.Context, answers []SurveyAnswer) (Diagnosis, error) {
	if len(answers) == 0 {
		return Diagnosis{}, fmt.Errorf("api: submit survey: at least one answer is required")
	}
	in := struct {
		Answers []SurveyAnswer `json:"answers"`
	}{Answers: answers}

	var d Diagnosis
	if err := c.sendJSON(ctx, http.MethodPost, "/api/survey/submit", in, &d); err != nil {
		return Diagnosis{}, err
	}
	if d.SourceType == "" {
		d.SourceType = SourceSurvey
	}
	return d, nil
}

// ListDiagnoses returns the signed-in user's diagnosis history, newest first.
func (c *Client) ListDiagnoses(ctx context.Context) ([]Diagnosis, error) {
	var out []Diagnosis
	if err := c.getJSON(ctx, "/api/survey/list", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDiagnosis returns one stored diagnosis.
func (c *Client) GetDiagnosis(ctx context.Context, id int) (Diagnosis, error) {
	var d Diagnosis
	if err := c.getJSON(ctx, fmt.Sprintf("/api/survey/%d", id), &d); err != nil {
		return Diagnosis{}, err
	}
	return d, nil
}

// DeleteDiagnosis soft-deletes a stored diagnosis.
func (c *Client) DeleteDiagnosis(ctx context.Context, id int) (Message, error) {
	var msg Message
	if err := c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/survey/%d", id), nil, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
