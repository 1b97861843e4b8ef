package userclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wastequiz/internal/quiz"
)

var ErrServiceUnavailable = errors.New("quiz service unavailable")

// APIError is a non-2xx answer from the quiz service. SessionID is set when
// the service refused to start a session because one is still open.
type APIError struct {
	StatusCode int
	Message    string
	SessionID  string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type startedSession struct {
	SessionID      string                `json:"session_id"`
	CreatedAt      time.Time             `json:"created_at"`
	FinishesAt     time.Time             `json:"finishes_at"`
	TotalQuestions int                   `json:"total_questions"`
	Questions      []quiz.PublicQuestion `json:"questions"`
}

type attemptItem struct {
	Position   int                 `json:"position"`
	Question   quiz.PublicQuestion `json:"question"`
	UserAnswer *string             `json:"user_answer"`
	IsMarked   bool                `json:"is_marked"`
}

const (
	statusInProgress = "in_progress"
	statusExpired    = "expired"
)

type sessionState struct {
	Status           string         `json:"status"`
	SessionID        string         `json:"session_id"`
	FinishesAt       time.Time      `json:"finishes_at"`
	RemainingSeconds *int64         `json:"remaining_seconds,omitempty"`
	Attempts         []attemptItem  `json:"attempts,omitempty"`
	Result           *sessionResult `json:"result,omitempty"`
}

type sessionResult struct {
	SessionID      string    `json:"session_id"`
	Score          int       `json:"score"`
	TotalScore     float64   `json:"total_score"`
	PassMark       float64   `json:"pass_mark"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	IsPass         bool      `json:"is_pass"`
	CertificateRef *string   `json:"certificate_ref"`
	CompletedAt    time.Time `json:"completed_at"`
	Kind           string    `json:"completion_kind"`
}

type statsSummary struct {
	Attempts     int     `json:"attempts"`
	Completed    int     `json:"completed"`
	Passed       int     `json:"passed"`
	InProgress   int     `json:"in_progress"`
	AverageScore float64 `json:"average_score"`
}

type historyItem struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	HasCompleted bool      `json:"has_completed"`
	Score        *int      `json:"score"`
	IsPass       bool      `json:"is_pass"`
	Kind         string    `json:"completion_kind,omitempty"`
}

type historyPage struct {
	Items []historyItem `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
}

type reviewItem struct {
	Position      int                 `json:"position"`
	Question      quiz.PublicQuestion `json:"question"`
	CorrectAnswer string              `json:"correct_answer"`
	UserAnswer    *string             `json:"user_answer"`
	IsCorrect     bool                `json:"is_correct"`
	IsMarked      bool                `json:"is_marked"`
}

type sessionReview struct {
	Result sessionResult `json:"result"`
	Items  []reviewItem  `json:"items"`
}

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type markRequest struct {
	QuestionID string `json:"question_id"`
	IsMarked   bool   `json:"is_marked"`
}

type errorResponse struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id,omitempty"`
}

func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

func (c *HTTPClient) StartSession(ctx context.Context) (startedSession, error) {
	var payload startedSession
	err := c.doJSON(ctx, http.MethodPost, "/quiz/sessions", nil, &payload)
	return payload, err
}

func (c *HTTPClient) ResumeSession(ctx context.Context, sessionID string) (sessionState, error) {
	var payload sessionState
	err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID, ""), nil, &payload)
	return payload, err
}

func (c *HTTPClient) RecordAnswer(ctx context.Context, sessionID, questionID, answer string) error {
	return c.doJSON(ctx, http.MethodPut, sessionPath(sessionID, "answers"), answerRequest{
		QuestionID: questionID,
		Answer:     answer,
	}, nil)
}

func (c *HTTPClient) SetMark(ctx context.Context, sessionID, questionID string, isMarked bool) error {
	return c.doJSON(ctx, http.MethodPut, sessionPath(sessionID, "marks"), markRequest{
		QuestionID: questionID,
		IsMarked:   isMarked,
	}, nil)
}

func (c *HTTPClient) Submit(ctx context.Context, sessionID string) (sessionResult, error) {
	var payload sessionResult
	err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "submit"), nil, &payload)
	return payload, err
}

func (c *HTTPClient) Stats(ctx context.Context) (statsSummary, error) {
	var payload statsSummary
	err := c.doJSON(ctx, http.MethodGet, "/quiz/stats", nil, &payload)
	return payload, err
}

func (c *HTTPClient) History(ctx context.Context, page, limit int) (historyPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var payload historyPage
	err := c.doJSON(ctx, http.MethodGet, "/quiz/history?"+query.Encode(), nil, &payload)
	return payload, err
}

func (c *HTTPClient) Review(ctx context.Context, sessionID string) (sessionReview, error) {
	var payload sessionReview
	err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID, "review"), nil, &payload)
	return payload, err
}

// Certificate downloads the PDF certificate of a passed session.
func (c *HTTPClient) Certificate(ctx context.Context, sessionID string) ([]byte, error) {
	response, err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "certificate"), nil)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	return io.ReadAll(response.Body)
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func sessionPath(sessionID, action string) string {
	path := "/quiz/sessions/" + url.PathEscape(strings.TrimSpace(sessionID))
	if action != "" {
		path += "/" + action
	}
	return path
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	response, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if responseBody == nil || response.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}

// do sends the request and turns any non-2xx answer into an *APIError. The
// caller closes the body of a successful response.
func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		defer response.Body.Close()
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil {
			apiErr.Message = strings.TrimSpace(payload.Error)
			apiErr.SessionID = payload.SessionID
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return nil, &apiErr
	}
	return response, nil
}
