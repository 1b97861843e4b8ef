package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"wastequiz/internal/auth"
	"wastequiz/internal/quiz"
)

const maxBodyBytes = 64 << 10

// writeServiceError maps domain and auth errors onto status codes and returns
// the status it wrote.
func writeServiceError(w http.ResponseWriter, err error) int {
	var (
		conflict   *quiz.ConflictError
		validation *quiz.ValidationError
		status     int
		response   errorResponse
	)
	switch {
	case errors.As(err, &conflict):
		status, response = http.StatusConflict, errorResponse{Error: "an unfinished quiz session already exists", SessionID: conflict.SessionID}
	case errors.As(err, &validation):
		status, response = http.StatusBadRequest, errorResponse{Error: validation.Error()}
	case errors.Is(err, auth.ErrRevoked):
		status, response = http.StatusUnauthorized, errorResponse{Error: "token revoked"}
	case errors.Is(err, auth.ErrUnauthenticated):
		status, response = http.StatusUnauthorized, errorResponse{Error: "authentication required"}
	case errors.Is(err, quiz.ErrQuestionNotInSession):
		status, response = http.StatusNotFound, errorResponse{Error: "question not part of session"}
	case errors.Is(err, quiz.ErrNotFound):
		status, response = http.StatusNotFound, errorResponse{Error: "quiz session not found"}
	case errors.Is(err, quiz.ErrAlreadyCompleted):
		status, response = http.StatusConflict, errorResponse{Error: "quiz session already completed"}
	case errors.Is(err, quiz.ErrConflict):
		status, response = http.StatusConflict, errorResponse{Error: "an unfinished quiz session already exists"}
	case errors.Is(err, quiz.ErrValidation):
		status, response = http.StatusBadRequest, errorResponse{Error: "invalid input"}
	case errors.Is(err, quiz.ErrNotCompleted):
		status, response = http.StatusConflict, errorResponse{Error: "quiz session not completed"}
	case errors.Is(err, quiz.ErrNotPassed):
		status, response = http.StatusForbidden, errorResponse{Error: "quiz session was not passed"}
	case errors.Is(err, quiz.ErrCertificateUnavailable):
		status, response = http.StatusNotFound, errorResponse{Error: "certificate unavailable"}
	default:
		status, response = http.StatusInternalServerError, errorResponse{Error: "request failed"}
	}
	writeJSON(w, status, response)
	return status
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid %s: failed %s check", first.Field(), first.Tag())})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func toResultResponse(result quiz.Result) resultResponse {
	return resultResponse{
		SessionID:      result.SessionID,
		Score:          result.Score,
		TotalScore:     result.TotalScore,
		PassMark:       result.PassMark,
		TotalQuestions: result.TotalQuestions,
		CorrectCount:   result.CorrectCount,
		IsPass:         result.IsPass,
		CertificateRef: result.CertificateRef,
		CompletedAt:    result.CompletedAt,
		Kind:           string(result.Kind),
	}
}

func toAttemptResponses(views []quiz.AttemptView) []attemptResponse {
	response := make([]attemptResponse, 0, len(views))
	for _, view := range views {
		response = append(response, attemptResponse{
			Position:   view.Position,
			Question:   view.Question,
			UserAnswer: view.UserAnswer,
			IsMarked:   view.IsMarked,
		})
	}
	return response
}

func toHistoryItem(session quiz.Session) historyItemResponse {
	return historyItemResponse{
		SessionID:      session.ID,
		CreatedAt:      session.CreatedAt,
		FinishesAt:     session.FinishesAt,
		HasCompleted:   session.HasCompleted,
		Score:          session.Score,
		IsPass:         session.IsPass,
		CertificateRef: session.CertificateRef,
		CompletedAt:    session.CompletedAt,
		Kind:           string(session.CompletionKind),
	}
}

func parseIntParam(r *http.Request, key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return parsed, nil
}

func writeMethodNotAllowed(w http.ResponseWriter, allowedMethod string) {
	w.Header().Set("Allow", allowedMethod)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
