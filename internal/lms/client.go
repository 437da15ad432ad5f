// Package lms is the typed client for the e-learning platform's REST API.
// The platform owns quiz definitions, attempt records and grading; the agent
// only reads them and pushes answer/submit events.
package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/falanarh/lms-sub001/internal/model"
)

// Client talks to the platform API on behalf of one learner.
type Client struct {
	baseURL string
	token   string
	userID  string
	http    *http.Client
}

// New creates a platform client. token is the learner's bearer token.
func New(baseURL, token, userID string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		userID:  userID,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// StartResult is the platform's response to starting a new attempt.
type StartResult struct {
	AttemptID     string   `json:"attempt_id"`
	QuestionOrder []string `json:"question_order"`
}

// SaveAnswerRequest carries one answer/flag save. Update selects PUT over
// POST; the platform exposes separate create and update operations instead
// of an upsert.
type SaveAnswerRequest struct {
	AttemptID  string `json:"-"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
	Flag       bool   `json:"flag"`
	Update     bool   `json:"-"`
}

// QuizDetail fetches a quiz's static parameters.
func (c *Client) QuizDetail(ctx context.Context, contentID string) (model.QuizDefinition, error) {
	var out model.QuizDefinition
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/quiz/%s", contentID), nil, &out)
	return out, err
}

// AttemptHistory lists the learner's attempts for a quiz, newest first.
func (c *Client) AttemptHistory(ctx context.Context, contentID string) ([]model.AttemptSummary, error) {
	var out struct {
		Attempts []model.AttemptSummary `json:"attempts"`
	}
	path := fmt.Sprintf("/api/v1/users/%s/quiz/%s/attempts", c.userID, contentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Attempts, nil
}

// StartAttempt requests a new attempt. The platform fixes the question order
// (shuffled once when the quiz asks for it) and issues the attempt id.
func (c *Client) StartAttempt(ctx context.Context, contentID string) (StartResult, error) {
	var out StartResult
	path := fmt.Sprintf("/api/v1/users/%s/quiz/%s/attempts", c.userID, contentID)
	err := c.do(ctx, http.MethodPost, path, struct{}{}, &out)
	return out, err
}

// AttemptDetail fetches the platform's full record of an attempt.
func (c *Client) AttemptDetail(ctx context.Context, attemptID string) (model.AttemptDetail, error) {
	var out model.AttemptDetail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/attempts/%s", attemptID), nil, &out)
	return out, err
}

// SaveAnswer persists one answer/flag pair for a question.
func (c *Client) SaveAnswer(ctx context.Context, req SaveAnswerRequest) error {
	method := http.MethodPost
	if req.Update {
		method = http.MethodPut
	}
	path := fmt.Sprintf("/api/v1/attempts/%s/answers", req.AttemptID)
	return c.do(ctx, method, path, req, nil)
}

// SubmitAttempt closes the attempt and returns the graded result.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID string) (model.SubmitResult, error) {
	var out model.SubmitResult
	path := fmt.Sprintf("/api/v1/attempts/%s/submit", attemptID)
	err := c.do(ctx, http.MethodPost, path, struct{}{}, &out)
	return out, err
}

// ReviewAttempt fetches a submitted attempt's question/answer/key arrays.
func (c *Client) ReviewAttempt(ctx context.Context, contentID, attemptID string) (model.AttemptRecord, error) {
	var out model.AttemptRecord
	path := fmt.Sprintf("/api/v1/users/%s/quiz/%s/attempts/%s/review", c.userID, contentID, attemptID)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("platform request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wire struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wire); err == nil {
			apiErr.Code = wire.Code
			apiErr.Message = wire.Message
		}
		slog.Debug("platform request rejected",
			"method", method, "path", path, "request_id", reqID,
			"status", resp.StatusCode, "code", apiErr.Code)
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
