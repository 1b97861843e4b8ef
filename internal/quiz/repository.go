package quiz

import (
	"context"
	"time"
)

// GradeFunc maps the attempts of a session to its grade. Stores call it inside
// the completion transaction.
type GradeFunc func(attempts []Attempt) Grade

type SessionStore interface {
	// FindIncomplete returns ErrNotFound when the owner has no unfinished session.
	FindIncomplete(ctx context.Context, ownerID string) (Session, error)
	// CreateSession inserts the session and its attempts atomically, or returns
	// a *ConflictError when the owner already has an unfinished session.
	CreateSession(ctx context.Context, session Session, attempts []Attempt) error
	GetSession(ctx context.Context, sessionID, ownerID string) (Session, error)
	ListAttempts(ctx context.Context, sessionID, ownerID string) ([]Attempt, error)
	// UpdateAttempt applies the update only while the session is unfinished.
	UpdateAttempt(ctx context.Context, sessionID, ownerID, questionID string, update AttemptUpdate) error
	// CompleteSession checks the unfinished guard, grades, and writes the result
	// in one transaction. A session already completed yields ErrAlreadyCompleted.
	CompleteSession(ctx context.Context, sessionID, ownerID string, kind CompletionKind, at time.Time, grade GradeFunc) (Session, error)
	AttachCertificate(ctx context.Context, certificate Certificate) error
	GetCertificate(ctx context.Context, sessionID, ownerID string) (Certificate, error)
	Stats(ctx context.Context, ownerID string) (Stats, error)
	History(ctx context.Context, ownerID string, offset, limit int) ([]Session, int, error)
}

type QuestionBank interface {
	// Sample returns n distinct question ids chosen uniformly at random.
	Sample(ctx context.Context, n int) ([]string, error)
	CorrectAnswer(ctx context.Context, questionID string) (string, error)
	Questions(ctx context.Context, questionIDs []string) ([]PublicQuestion, error)
}

// CertificateIssuer renders the pass certificate and converts it to a
// portable document.
type CertificateIssuer interface {
	Render(displayName string, score int, totalScore float64, at time.Time) ([]byte, error)
	ToPortableDocument(image []byte) ([]byte, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Recorder interface {
	SessionStarted()
	StartConflict()
	SessionCompleted(kind CompletionKind, passed bool)
	CertificateFailed()
}

type noopRecorder struct{}

func (noopRecorder) SessionStarted()                       {}
func (noopRecorder) StartConflict()                        {}
func (noopRecorder) SessionCompleted(CompletionKind, bool) {}
func (noopRecorder) CertificateFailed()                    {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }
