package questionfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestClient(rt http.RoundTripper) *Client {
	return NewClient("https://feed.example.test/api.php", &http.Client{Transport: rt})
}

func jsonResponse(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestFetchQuestionsUsesDefaultAmountWhenNonPositive(t *testing.T) {
	var seenAmount, seenCategory string

	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		seenAmount = r.URL.Query().Get("amount")
		seenCategory = r.URL.Query().Get("category")
		return jsonResponse(http.StatusOK, []byte(`{"response_code":0,"results":[]}`)), nil
	}))

	questions, err := client.FetchQuestions(context.Background(), 0, "")
	if err != nil {
		t.Fatalf("FetchQuestions returned error: %v", err)
	}
	if len(questions) != 0 {
		t.Fatalf("expected no questions, got %d", len(questions))
	}
	if seenAmount != "10" {
		t.Fatalf("expected default amount 10, got %q", seenAmount)
	}
	if seenCategory != "" {
		t.Fatalf("expected no category filter, got %q", seenCategory)
	}
}

func TestFetchQuestionsPassesCategory(t *testing.T) {
	var seenCategory string
	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		seenCategory = r.URL.Query().Get("category")
		return jsonResponse(http.StatusOK, []byte(`{"response_code":0,"results":[{"question":"Q","correct_answer":"A","incorrect_answers":["B"]}]}`)), nil
	}))

	questions, err := client.FetchQuestions(context.Background(), 1, " 17 ")
	if err != nil {
		t.Fatalf("FetchQuestions returned error: %v", err)
	}
	if len(questions) != 1 || questions[0].CorrectAnswer != "A" {
		t.Fatalf("unexpected questions: %+v", questions)
	}
	if seenCategory != "17" {
		t.Fatalf("category = %q, want 17", seenCategory)
	}
}

func TestFetchQuestionsPropagatesNonOKStatus(t *testing.T) {
	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, nil), nil
	}))

	if _, err := client.FetchQuestions(context.Background(), 5, ""); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestFetchQuestionsJSONDecodeError(t *testing.T) {
	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, []byte("not-json")), nil
	}))

	if _, err := client.FetchQuestions(context.Background(), 3, ""); err == nil {
		t.Fatalf("expected JSON decode error")
	}
}

func TestFetchQuestionsNonZeroResponseCode(t *testing.T) {
	client := newTestClient(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		payload := apiResponse{
			ResponseCode: 1,
			Results: []RawQuestion{
				{Question: "ignored"},
			},
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		return jsonResponse(http.StatusOK, encoded), nil
	}))

	if _, err := client.FetchQuestions(context.Background(), 3, ""); err == nil {
		t.Fatalf("expected error for non-zero response_code")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	body := `{"response_code":0,"results":[{"category":"Recycling","question":"Which bin takes glass?","correct_answer":"Green","incorrect_answers":["Blue","Black"]}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	questions, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(questions) != 1 || questions[0].Category != "Recycling" || len(questions[0].IncorrectAnswers) != 2 {
		t.Fatalf("unexpected questions: %+v", questions)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
