package api

import (
	"context"
	"fmt"
	"net/http"
)

// SubmitFeedback records the like/dislike verdict for an ended session.
func (c *Client) SubmitFeedback(ctx context.Context, historyID int, fb Feedback) (FeedbackResult, error) {
	if fb != FeedbackPositive && fb != FeedbackNegative {
		return FeedbackResult{}, fmt.Errorf("api: submit feedback: unsupported value %q", fb)
	}
	ctx, cancel := context.WithTimeout(ctx, c.feedbackTimeout)
	defer cancel()

	in := struct {
		HistoryID int      `json:"history_id"`
		Feedback  Feedback `json:"feedback"`
	}{HistoryID: historyID, Feedback: fb}

	var out FeedbackResult
	if err := c.sendJSON(ctx, http.MethodPost, "/api/feedback/user", in, &out); err != nil {
		return FeedbackResult{}, err
	}
	return out, nil
}

// GetFeedback returns the feedback stored for a session.
func (c *Client) GetFeedback(ctx context.Context, historyID int) (FeedbackResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.feedbackTimeout)
	defer cancel()

	var out FeedbackResult
	if err := c.getJSON(ctx, fmt.Sprintf("/api/feedback/user/%d", historyID), &out); err != nil {
		return FeedbackResult{}, err
	}
	return out, nil
}
