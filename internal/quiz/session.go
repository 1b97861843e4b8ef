package quiz

import (
	"fmt"
	"time"
)

// Config is the assessment definition every new session is started against.
type Config struct {
	TotalTime      time.Duration
	TotalScore     float64
	PassMark       float64
	TotalQuestions int
}

func (c Config) Validate() error {
	switch {
	case c.TotalTime <= 0:
		return fmt.Errorf("%w: total time must be positive", ErrInvalidConfig)
	case c.TotalScore <= 0:
		return fmt.Errorf("%w: total score must be positive", ErrInvalidConfig)
	case c.PassMark < 0 || c.PassMark > c.TotalScore:
		return fmt.Errorf("%w: pass mark must be between 0 and total score", ErrInvalidConfig)
	case c.TotalQuestions <= 0:
		return fmt.Errorf("%w: total questions must be positive", ErrInvalidConfig)
	}
	return nil
}

// Owner is the authenticated caller a session belongs to.
type Owner struct {
	ID   string
	Name string
}

func (o Owner) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.ID
}

type CompletionKind string

const (
	CompletionSubmitted CompletionKind = "submitted"
	CompletionExpired   CompletionKind = "expired"
)

// Session is one timed attempt at the assessment. The config values are
// snapshotted at start so later config changes never regrade old sessions.
type Session struct {
	ID             string
	OwnerID        string
	OwnerName      string
	CreatedAt      time.Time
	FinishesAt     time.Time
	TotalScore     float64
	PassMark       float64
	TotalQuestions int

	HasCompleted   bool
	Score          *int
	CorrectCount   int
	IsPass         bool
	CertificateRef *string
	CompletedAt    *time.Time
	CompletionKind CompletionKind
}

func (s Session) Owner() Owner {
	return Owner{ID: s.OwnerID, Name: s.OwnerName}
}

// PastDeadline reports whether now is strictly after the fixed deadline.
func (s Session) PastDeadline(now time.Time) bool {
	return now.After(s.FinishesAt)
}

func (s Session) RemainingTime(now time.Time) time.Duration {
	remaining := s.FinishesAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s Session) config() Config {
	return Config{
		TotalTime:      s.FinishesAt.Sub(s.CreatedAt),
		TotalScore:     s.TotalScore,
		PassMark:       s.PassMark,
		TotalQuestions: s.TotalQuestions,
	}
}

// Result returns the graded outcome of a completed session.
func (s Session) Result() Result {
	result := Result{
		SessionID:      s.ID,
		TotalScore:     s.TotalScore,
		PassMark:       s.PassMark,
		TotalQuestions: s.TotalQuestions,
		CorrectCount:   s.CorrectCount,
		IsPass:         s.IsPass,
		CertificateRef: s.CertificateRef,
		Kind:           s.CompletionKind,
	}
	if s.Score != nil {
		result.Score = *s.Score
	}
	if s.CompletedAt != nil {
		result.CompletedAt = *s.CompletedAt
	}
	return result
}

// Attempt is one sampled question inside a session. CorrectAnswer is frozen
// when the session starts and is never re-read from the question bank.
type Attempt struct {
	SessionID     string
	QuestionID    string
	Position      int
	CorrectAnswer string
	UserAnswer    *string
	IsMarked      bool
	AnsweredAt    *time.Time
}

func (a Attempt) IsCorrect() bool {
	return a.UserAnswer != nil && *a.UserAnswer == a.CorrectAnswer
}

// AttemptUpdate mutates a single attempt; nil fields are left untouched.
type AttemptUpdate struct {
	Answer *string
	Marked *bool
	At     time.Time
}

type Result struct {
	SessionID      string
	Score          int
	TotalScore     float64
	PassMark       float64
	TotalQuestions int
	CorrectCount   int
	IsPass         bool
	CertificateRef *string
	CompletedAt    time.Time
	Kind           CompletionKind
}

type StartedSession struct {
	Session   Session
	Questions []PublicQuestion
}

// AttemptView is what an owner sees of an in-progress attempt.
type AttemptView struct {
	Position   int
	Question   PublicQuestion
	UserAnswer *string
	IsMarked   bool
}

// ResumeState is either the live state of an in-progress session or, when
// Expired is set, the result of the auto-submit the resume triggered.
type ResumeState struct {
	Session       Session
	Expired       bool
	Result        *Result
	RemainingTime time.Duration
	Attempts      []AttemptView
}

type Certificate struct {
	Reference string
	SessionID string
	OwnerID   string
	Document  []byte
	CreatedAt time.Time
}

type Stats struct {
	Attempts     int
	Completed    int
	Passed       int
	InProgress   int
	AverageScore float64
}

type HistoryPage struct {
	Items []Session
	Page  int
	Limit int
	Total int
}

type ReviewItem struct {
	Position      int
	Question      PublicQuestion
	CorrectAnswer string
	UserAnswer    *string
	IsCorrect     bool
	IsMarked      bool
}

type Review struct {
	Result Result
	Items  []ReviewItem
}
