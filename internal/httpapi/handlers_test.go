package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"wastequiz/internal/auth"
	"wastequiz/internal/certificate"
	"wastequiz/internal/quiz"
	"wastequiz/internal/quiz/sqlite"
)

const testSecret = "test-secret"

var testOwner = quiz.Owner{ID: "user-1", Name: "Ada Citizen"}

type testServer struct {
	handler http.Handler
	store   *sqlite.SQLiteStore
	token   string

	mu  sync.Mutex
	now time.Time
}

func (s *testServer) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *testServer) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.NewSQLiteStore(filepath.Join(t.TempDir(), "quiz.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	questions := make([]quiz.Question, 0, 3)
	for i := 0; i < 3; i++ {
		questions = append(questions, quiz.Question{
			PublicQuestion: quiz.PublicQuestion{
				QuestionID: fmt.Sprintf("q%d", i),
				Question:   fmt.Sprintf("Which bin takes item %d?", i),
				Options: []quiz.Option{
					{Letter: "A", Text: "Blue bin"},
					{Letter: "B", Text: "Black bin"},
				},
			},
			CorrectAnswer: "A",
			Source:        "test",
		})
	}
	if _, err := store.ImportQuestions(context.Background(), questions); err != nil {
		t.Fatalf("ImportQuestions failed: %v", err)
	}

	renderer, err := certificate.NewRenderer("Waste Management Authority")
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	logger, _ := logtest.NewNullLogger()
	server := &testServer{store: store, now: time.Now().UTC()}
	service, err := quiz.NewService(
		quiz.Config{TotalTime: 30 * time.Minute, TotalScore: 100, PassMark: 50, TotalQuestions: 2},
		store,
		store,
		renderer,
		quiz.WithLogger(logger),
		quiz.WithClock(server.clock),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	verifier, err := auth.NewVerifier(testSecret, nil)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	server.token = mintToken(t, testOwner)
	server.handler = NewRouter(RouterConfig{
		Service:  service,
		Verifier: verifier,
		Health:   store,
		Logger:   logger,
	})
	return server
}

func mintToken(t *testing.T, owner quiz.Owner) string {
	t.Helper()
	token, err := auth.Mint(testSecret, owner, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var payload T
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response failed: %v (body %q)", err, rec.Body.String())
	}
	return payload
}

func (s *testServer) start(t *testing.T) startResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/quiz/sessions", s.token, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "correct") {
		t.Fatalf("start response leaked the answer key: %s", rec.Body.String())
	}
	return decodeBody[startResponse](t, rec)
}

func TestQuizSessionFlow(t *testing.T) {
	server := newTestServer(t)
	started := server.start(t)

	if len(started.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(started.Questions))
	}
	if !started.FinishesAt.Equal(started.CreatedAt.Add(30 * time.Minute)) {
		t.Fatalf("finishes_at = %v, want created_at + 30m", started.FinishesAt)
	}

	base := "/quiz/sessions/" + started.SessionID
	for _, question := range started.Questions {
		body := fmt.Sprintf(`{"question_id":%q,"answer":"a"}`, question.QuestionID)
		if rec := server.do(t, http.MethodPut, base+"/answers", server.token, body); rec.Code != http.StatusNoContent {
			t.Fatalf("answer status = %d, want %d (body %s)", rec.Code, http.StatusNoContent, rec.Body.String())
		}
	}
	markBody := fmt.Sprintf(`{"question_id":%q,"is_marked":true}`, started.Questions[0].QuestionID)
	if rec := server.do(t, http.MethodPut, base+"/marks", server.token, markBody); rec.Code != http.StatusNoContent {
		t.Fatalf("mark status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec := server.do(t, http.MethodGet, base, server.token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d, want %d", rec.Code, http.StatusOK)
	}
	resumed := decodeBody[resumeResponse](t, rec)
	if resumed.Status != statusInProgress {
		t.Fatalf("resume status = %q, want %q", resumed.Status, statusInProgress)
	}
	if len(resumed.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(resumed.Attempts))
	}
	if got := resumed.Attempts[0].UserAnswer; got == nil || *got != "A" {
		t.Fatalf("first answer = %v, want A", got)
	}
	if !resumed.Attempts[0].IsMarked {
		t.Fatalf("expected first attempt to be marked")
	}
	if resumed.RemainingSeconds == nil || *resumed.RemainingSeconds != int64((30*time.Minute)/time.Second) {
		t.Fatalf("remaining_seconds = %v, want 1800", resumed.RemainingSeconds)
	}

	rec = server.do(t, http.MethodPost, base+"/submit", server.token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	result := decodeBody[resultResponse](t, rec)
	if result.Score != 100 || !result.IsPass || result.Kind != string(quiz.CompletionSubmitted) {
		t.Fatalf("result = %+v, want score 100 pass submitted", result)
	}
	if result.CertificateRef == nil {
		t.Fatalf("expected certificate reference for a passed session")
	}

	if rec := server.do(t, http.MethodPost, base+"/submit", server.token, ""); rec.Code != http.StatusConflict {
		t.Fatalf("second submit status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = server.do(t, http.MethodGet, base+"/certificate", server.token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("certificate status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("certificate content type = %q, want application/pdf", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("certificate body is not a PDF")
	}

	rec = server.do(t, http.MethodGet, base+"/review", server.token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("review status = %d, want %d", rec.Code, http.StatusOK)
	}
	review := decodeBody[reviewResponse](t, rec)
	if len(review.Items) != 2 || !review.Items[0].IsCorrect || review.Items[0].CorrectAnswer != "A" {
		t.Fatalf("review items = %+v, want two correct items", review.Items)
	}

	rec = server.do(t, http.MethodGet, "/quiz/stats", server.token, "")
	stats := decodeBody[statsResponse](t, rec)
	if stats.Attempts != 1 || stats.Passed != 1 || stats.AverageScore != 100 {
		t.Fatalf("stats = %+v, want one passed attempt averaging 100", stats)
	}
}

func TestStartConflictReturnsOpenSessionID(t *testing.T) {
	server := newTestServer(t)
	first := server.start(t)

	rec := server.do(t, http.MethodPost, "/quiz/sessions", server.token, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second start status = %d, want %d", rec.Code, http.StatusConflict)
	}
	payload := decodeBody[errorResponse](t, rec)
	if payload.SessionID != first.SessionID {
		t.Fatalf("conflict session_id = %q, want %q", payload.SessionID, first.SessionID)
	}
}

func TestResumeAfterDeadlineReportsExpiredResult(t *testing.T) {
	server := newTestServer(t)
	started := server.start(t)
	base := "/quiz/sessions/" + started.SessionID

	body := fmt.Sprintf(`{"question_id":%q,"answer":"A"}`, started.Questions[0].QuestionID)
	if rec := server.do(t, http.MethodPut, base+"/answers", server.token, body); rec.Code != http.StatusNoContent {
		t.Fatalf("answer status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	server.advance(31 * time.Minute)

	rec := server.do(t, http.MethodGet, base, server.token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d, want %d", rec.Code, http.StatusOK)
	}
	resumed := decodeBody[resumeResponse](t, rec)
	if resumed.Status != statusExpired || resumed.Result == nil {
		t.Fatalf("resume = %+v, want expired with result", resumed)
	}
	if resumed.Result.Score != 50 || !resumed.Result.IsPass || resumed.Result.Kind != string(quiz.CompletionExpired) {
		t.Fatalf("expired result = %+v, want score 50 pass expired", *resumed.Result)
	}

	if rec := server.do(t, http.MethodGet, base, server.token, ""); rec.Code != http.StatusConflict {
		t.Fatalf("resume after completion status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestQuizRoutesRequireBearerToken(t *testing.T) {
	server := newTestServer(t)

	if rec := server.do(t, http.MethodPost, "/quiz/sessions", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec := server.do(t, http.MethodGet, "/quiz/stats", "not-a-jwt", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("malformed token status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	server := newTestServer(t)

	if rec := server.do(t, http.MethodPost, "/auth/logout", server.token, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec := server.do(t, http.MethodGet, "/quiz/stats", server.token, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if payload := decodeBody[errorResponse](t, rec); payload.Error != "token revoked" {
		t.Fatalf("revoked error = %q, want token revoked", payload.Error)
	}
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	server := newTestServer(t)
	started := server.start(t)

	other := mintToken(t, quiz.Owner{ID: "user-2", Name: "Grace"})
	rec := server.do(t, http.MethodGet, "/quiz/sessions/"+started.SessionID, other, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign resume status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRequestValidation(t *testing.T) {
	server := newTestServer(t)
	started := server.start(t)
	base := "/quiz/sessions/" + started.SessionID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "session id not a uuid", method: http.MethodGet, path: "/quiz/sessions/not-a-uuid", want: http.StatusBadRequest},
		{name: "malformed json", method: http.MethodPut, path: base + "/answers", body: `{"question_id":`, want: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPut, path: base + "/answers", body: `{"question_id":"q0","answer":"A","owner_id":"x"}`, want: http.StatusBadRequest},
		{name: "missing question id", method: http.MethodPut, path: base + "/answers", body: `{"answer":"A"}`, want: http.StatusBadRequest},
		{name: "answer not a letter", method: http.MethodPut, path: base + "/answers", body: `{"question_id":"q0","answer":"12"}`, want: http.StatusBadRequest},
		{name: "question outside session", method: http.MethodPut, path: base + "/answers", body: `{"question_id":"missing","answer":"A"}`, want: http.StatusNotFound},
		{name: "mark without flag", method: http.MethodPut, path: base + "/marks", body: `{"question_id":"q0"}`, want: http.StatusBadRequest},
		{name: "review before completion", method: http.MethodGet, path: base + "/review", want: http.StatusConflict},
		{name: "certificate before completion", method: http.MethodGet, path: base + "/certificate", want: http.StatusConflict},
		{name: "wrong method", method: http.MethodDelete, path: base, want: http.StatusMethodNotAllowed},
		{name: "history limit too large", method: http.MethodGet, path: "/quiz/history?limit=500", want: http.StatusBadRequest},
		{name: "history page not a number", method: http.MethodGet, path: "/quiz/history?page=abc", want: http.StatusBadRequest},
		{name: "history page overflows offset", method: http.MethodGet, path: "/quiz/history?page=184467440737095516&limit=100", want: http.StatusBadRequest},
		{name: "answer outside options", method: http.MethodPut, path: base + "/answers", body: `{"question_id":"q0","answer":"Z"}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := server.do(t, tt.method, tt.path, server.token, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("%s %s status = %d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHistoryDefaultsAndPaging(t *testing.T) {
	server := newTestServer(t)
	started := server.start(t)
	if rec := server.do(t, http.MethodPost, "/quiz/sessions/"+started.SessionID+"/submit", server.token, ""); rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, want %d", rec.Code, http.StatusOK)
	}
	server.advance(time.Minute)
	server.start(t)

	rec := server.do(t, http.MethodGet, "/quiz/history", server.token, "")
	history := decodeBody[historyResponse](t, rec)
	if history.Page != 1 || history.Limit != quiz.DefaultHistoryLimit || history.Total != 2 {
		t.Fatalf("history = %+v, want page 1 limit %d total 2", history, quiz.DefaultHistoryLimit)
	}
	if len(history.Items) != 2 || history.Items[0].HasCompleted {
		t.Fatalf("history items = %+v, want open session first", history.Items)
	}

	rec = server.do(t, http.MethodGet, "/quiz/history?page=2&limit=1", server.token, "")
	history = decodeBody[historyResponse](t, rec)
	if len(history.Items) != 1 || history.Items[0].SessionID != started.SessionID {
		t.Fatalf("second page = %+v, want the submitted session", history.Items)
	}
	if history.Items[0].Score == nil || *history.Items[0].Score != 0 {
		t.Fatalf("submitted score = %v, want 0", history.Items[0].Score)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthReportsStoreFailure(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	handler := NewRouter(RouterConfig{Health: failingPinger{}, Logger: logger})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestWriteServiceErrorMapsDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: quiz.ErrNotFound, want: http.StatusNotFound},
		{err: quiz.ErrQuestionNotInSession, want: http.StatusNotFound},
		{err: quiz.ErrAlreadyCompleted, want: http.StatusConflict},
		{err: &quiz.ConflictError{SessionID: "s-1"}, want: http.StatusConflict},
		{err: fmt.Errorf("start: %w", quiz.ErrValidation), want: http.StatusBadRequest},
		{err: quiz.ErrNotCompleted, want: http.StatusConflict},
		{err: quiz.ErrNotPassed, want: http.StatusForbidden},
		{err: quiz.ErrCertificateUnavailable, want: http.StatusNotFound},
		{err: auth.ErrUnauthenticated, want: http.StatusUnauthorized},
		{err: errors.New("disk I/O error"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		if got := writeServiceError(rec, tt.err); got != tt.want || rec.Code != tt.want {
			t.Fatalf("writeServiceError(%v) = %d (recorded %d), want %d", tt.err, got, rec.Code, tt.want)
		}
	}

	rec := httptest.NewRecorder()
	writeServiceError(rec, &quiz.ConflictError{SessionID: "s-1"})
	if payload := decodeBody[errorResponse](t, rec); payload.SessionID != "s-1" {
		t.Fatalf("conflict session_id = %q, want s-1", payload.SessionID)
	}
}

func TestParseIntParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/quiz/history", nil)
	if got, err := parseIntParam(req, "limit", 10); err != nil || got != 10 {
		t.Fatalf("default parseIntParam = (%d, %v), want (10, nil)", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/quiz/history?limit=25", nil)
	if got, err := parseIntParam(req, "limit", 10); err != nil || got != 25 {
		t.Fatalf("valid parseIntParam = (%d, %v), want (25, nil)", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/quiz/history?limit=0", nil)
	if _, err := parseIntParam(req, "limit", 10); err == nil {
		t.Fatalf("expected error for non-positive limit")
	}
}

func TestWriteMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	writeMethodNotAllowed(rec, http.MethodPost)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if got := rec.Header().Get("Allow"); got != http.MethodPost {
		t.Fatalf("Allow = %q, want %q", got, http.MethodPost)
	}
}
