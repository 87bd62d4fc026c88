// Package platform is the REST client used to bootstrap a live session:
// creating the session, registering the host participant and loading quiz
// content. The live protocol itself runs over the session channel, not here.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quiz-session-host/internal/domain"
)

const apiPrefix = "/api/v1"

// Client talks to the platform API. The auth token is an explicit dependency
// passed at construction, never ambient state.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// CreateSession opens a new live session for a quiz and returns its id and
// join code.
func (c *Client) CreateSession(ctx context.Context, orgID, quizID string) (domain.SessionInfo, error) {
	var info domain.SessionInfo
	path := fmt.Sprintf("/organizations/%s/quizzes/%s/sessions", orgID, quizID)
	if err := c.do(ctx, http.MethodPost, path, nil, &info); err != nil {
		return domain.SessionInfo{}, fmt.Errorf("create session: %w", err)
	}
	return info, nil
}

type createParticipantRequest struct {
	SessionNickname string      `json:"session_nickname"`
	Role            domain.Role `json:"role"`
}

// CreateHost registers the host participant for a session.
func (c *Client) CreateHost(ctx context.Context, orgID, quizID, sessionID, nickname string) (domain.Participant, error) {
	var p domain.Participant
	path := fmt.Sprintf("/organizations/%s/quizzes/%s/sessions/%s/participants", orgID, quizID, sessionID)
	body := createParticipantRequest{SessionNickname: nickname, Role: domain.RoleHost}
	if err := c.do(ctx, http.MethodPost, path, body, &p); err != nil {
		return domain.Participant{}, fmt.Errorf("create host participant: %w", err)
	}
	return p, nil
}

// GetQuiz loads one quiz entry, including its question count.
func (c *Client) GetQuiz(ctx context.Context, orgID, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	path := fmt.Sprintf("/organizations/%s/quizzes/%s", orgID, quizID)
	if err := c.do(ctx, http.MethodGet, path, nil, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("get quiz: %w", err)
	}
	return quiz, nil
}

// GetQuestions loads the ordered question list of a quiz.
func (c *Client) GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	var questions []domain.Question
	path := fmt.Sprintf("/quizzes/%s/questions/", quizID)
	if err := c.do(ctx, http.MethodGet, path, nil, &questions); err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	return questions, nil
}

// GetSessionResults fetches the final scores the platform recorded for a
// finished session.
func (c *Client) GetSessionResults(ctx context.Context, orgID, quizID, sessionID string) ([]domain.ResultEntry, error) {
	var results []domain.ResultEntry
	path := fmt.Sprintf("/organizations/%s/quizzes/%s/sessions/%s/results", orgID, quizID, sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, fmt.Errorf("get session results: %w", err)
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrNotFound)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
