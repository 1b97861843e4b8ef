package httpapi

import (
	"time"

	"wastequiz/internal/quiz"
)

const (
	statusInProgress = "in_progress"
	statusExpired    = "expired"
)

type errorResponse struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id,omitempty"`
}

type answerRequest struct {
	QuestionID string `json:"question_id" validate:"required,max=128"`
	Answer     string `json:"answer" validate:"required,max=8"`
}

type markRequest struct {
	QuestionID string `json:"question_id" validate:"required,max=128"`
	IsMarked   *bool  `json:"is_marked" validate:"required"`
}

type sessionRef struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

type startResponse struct {
	SessionID      string                `json:"session_id"`
	CreatedAt      time.Time             `json:"created_at"`
	FinishesAt     time.Time             `json:"finishes_at"`
	TotalQuestions int                   `json:"total_questions"`
	Questions      []quiz.PublicQuestion `json:"questions"`
}

type attemptResponse struct {
	Position   int                 `json:"position"`
	Question   quiz.PublicQuestion `json:"question"`
	UserAnswer *string             `json:"user_answer"`
	IsMarked   bool                `json:"is_marked"`
}

type resumeResponse struct {
	Status           string            `json:"status"`
	SessionID        string            `json:"session_id"`
	FinishesAt       time.Time         `json:"finishes_at"`
	RemainingSeconds *int64            `json:"remaining_seconds,omitempty"`
	Attempts         []attemptResponse `json:"attempts,omitempty"`
	Result           *resultResponse   `json:"result,omitempty"`
}

type resultResponse struct {
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

type statsResponse struct {
	Attempts     int     `json:"attempts"`
	Completed    int     `json:"completed"`
	Passed       int     `json:"passed"`
	InProgress   int     `json:"in_progress"`
	AverageScore float64 `json:"average_score"`
}

type historyItemResponse struct {
	SessionID      string     `json:"session_id"`
	CreatedAt      time.Time  `json:"created_at"`
	FinishesAt     time.Time  `json:"finishes_at"`
	HasCompleted   bool       `json:"has_completed"`
	Score          *int       `json:"score"`
	IsPass         bool       `json:"is_pass"`
	CertificateRef *string    `json:"certificate_ref"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Kind           string     `json:"completion_kind,omitempty"`
}

type historyResponse struct {
	Items []historyItemResponse `json:"items"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
	Total int                   `json:"total"`
}

type reviewItemResponse struct {
	Position      int                 `json:"position"`
	Question      quiz.PublicQuestion `json:"question"`
	CorrectAnswer string              `json:"correct_answer"`
	UserAnswer    *string             `json:"user_answer"`
	IsCorrect     bool                `json:"is_correct"`
	IsMarked      bool                `json:"is_marked"`
}

type reviewResponse struct {
	Result resultResponse       `json:"result"`
	Items  []reviewItemResponse `json:"items"`
}

type healthResponse struct {
	Status string `json:"status"`
}
