package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wastequiz/internal/auth"
	"wastequiz/internal/quiz"
)

const healthTimeout = 2 * time.Second

func (a *API) HandleStart(w http.ResponseWriter, r *http.Request, owner quiz.Owner) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	started, err := a.service.Start(r.Context(), owner)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, startResponse{
		SessionID:      started.Session.ID,
		CreatedAt:      started.Session.CreatedAt,
		FinishesAt:     started.Session.FinishesAt,
		TotalQuestions: started.Session.TotalQuestions,
		Questions:      started.Questions,
	})
}

// HandleResume answers with the live state, or with the result when the
// deadline passed and the session was finalized by this call.
func (a *API) HandleResume(w http.ResponseWriter, r *http.Request, owner quiz.Owner) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	sessionID, ok := a.sessionIDParam(w, r)
	if !ok {
		return
	}

	state, err := a.service.Resume(r.Context(), sessionID, owner)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	response := resumeResponse{
		SessionID:  state.Session.ID,
		FinishesAt: state.Session.FinishesAt,
	}
	if state.Expired {
		response.Status = statusExpired
		if state.Result != nil {
			result := toResultResponse(*state.Result)
			response.Result = &result
		}
	} else {
		remaining := int64(state.RemainingTime / time.Second)
		response.Status = statusInProgress
		response.RemainingSeconds = &remaining
		response.Attempts = toAttemptResponses(state.Attempts)
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *API) HandleAnswer(w http.ResponseWriter, r *http.Request, owner quiz.Owner) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w, http.MethodPut)
		return
	}
	sessionID, ok := a.sessionIDParam(w, r)
	if !ok {
		return
	}

	var request answerRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if err := a.validate.Struct(request); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := a.service.RecordAnswer(r.Context(), sessionID, owner, request.QuestionID, request.Answer); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) HandleMark(w http.ResponseWriter, r *http.Request, owner quiz.Owner) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w, http.MethodPut)
		return
	}
	sessionID, ok := a.sessionIDParam(w, r)
	if !ok {
		return
	}

	var request markRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if err := a.validate.Struct(request); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := a.service.SetMark(r.Context(), sessionID, owner, request.QuestionID, *request.IsMarked); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) HandleSubmit(w http.ResponseWriter, r *http.Request, owner quiz.Owner) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	sessionID, ok := a.sessionIDParam(w, r)
	if !ok {
		return
	}

	result, err := a.service.Submit(r.Context(), sessionID, owner)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultResponse(result))
}

func (a *API) HandleStats(w http.ResponseWriter, r *http.Request, owner quiz.Owner) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	stats, err := a.service.Stats(r.Context(), owner)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Attempts:     stats.Attempts,
		Completed:    stats.Completed,
		Passed:       stats.Passed,
		InProgress:   stats.InProgress,
		AverageScore: stats.AverageScore,
	})
}

func (a *API) HandleHistory(w http.ResponseWriter, r *http.Request, owner quiz.Owner) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	page, err := parseIntParam(r, "page", 1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	limit, err := parseIntParam(r, "limit", quiz.DefaultHistoryLimit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	history, err := a.service.History(r.Context(), owner, page, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	items := make([]historyItemResponse, 0, len(history.Items))
	for _, session := range history.Items {
		items = append(items, toHistoryItem(session))
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Items: items,
		Page:  history.Page,
		Limit: history.Limit,
		Total: history.Total,
	})
}

func (a *API) HandleReview(w http.ResponseWriter, r *http.Request, owner quiz.Owner) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	sessionID, ok := a.sessionIDParam(w, r)
	if !ok {
		return
	}

	review, err := a.service.Review(r.Context(), sessionID, owner)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	items := make([]reviewItemResponse, 0, len(review.Items))
	for _, item := range review.Items {
		items = append(items, reviewItemResponse{
			Position:      item.Position,
			Question:      item.Question,
			CorrectAnswer: item.CorrectAnswer,
			UserAnswer:    item.UserAnswer,
			IsCorrect:     item.IsCorrect,
			IsMarked:      item.IsMarked,
		})
	}
	writeJSON(w, http.StatusOK, reviewResponse{
		Result: toResultResponse(review.Result),
		Items:  items,
	})
}

func (a *API) HandleCertificate(w http.ResponseWriter, r *http.Request, owner quiz.Owner) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	sessionID, ok := a.sessionIDParam(w, r)
	if !ok {
		return
	}

	certificate, err := a.service.Certificate(r.Context(), sessionID, owner)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(certificate.Document)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", certificate.Reference+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(certificate.Document)
}

// HandleLogout revokes the presented token until it expires.
func (a *API) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	a.requireOwner(func(w http.ResponseWriter, r *http.Request, owner quiz.Owner) {
		claims, _ := auth.ClaimsFrom(r.Context())
		if err := a.verifier.Revoke(r.Context(), claims); err != nil {
			a.writeError(w, r, err)
			return
		}
		a.log.WithField("owner_id", owner.ID).Info("token revoked")
		w.WriteHeader(http.StatusNoContent)
	})(w, r)
}

func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := a.health.Ping(ctx); err != nil {
			a.log.WithError(err).Warn("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (a *API) sessionIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	ref := sessionRef{SessionID: r.PathValue("session_id")}
	if err := a.validate.Struct(ref); err != nil {
		writeValidationError(w, err)
		return "", false
	}
	return ref.SessionID, true
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if status := writeServiceError(w, err); status >= http.StatusInternalServerError {
		a.log.WithError(err).WithField("path", r.URL.Path).Error("quiz request failed")
	}
}
