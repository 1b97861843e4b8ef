package quiz

import (
	"context"
	"math"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

func (s *Service) Stats(ctx context.Context, owner Owner) (Stats, error) {
	if err := validateOwner(owner); err != nil {
		return Stats{}, err
	}
	return s.sessions.Stats(ctx, owner.ID)
}

// History lists the owner's sessions newest first. page is 1-based.
func (s *Service) History(ctx context.Context, owner Owner, page, limit int) (HistoryPage, error) {
	if err := validateOwner(owner); err != nil {
		return HistoryPage{}, err
	}
	if page < 1 {
		return HistoryPage{}, invalid("page", "must be at least 1")
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return HistoryPage{}, invalid("limit", "must be between 1 and 100")
	}
	if page > math.MaxInt/limit {
		return HistoryPage{}, invalid("page", "is out of range")
	}

	items, total, err := s.sessions.History(ctx, owner.ID, (page-1)*limit, limit)
	if err != nil {
		return HistoryPage{}, err
	}
	if items == nil {
		items = []Session{}
	}
	return HistoryPage{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// Review returns the graded per-question detail of a completed session.
func (s *Service) Review(ctx context.Context, sessionID string, owner Owner) (Review, error) {
	session, err := s.completedSession(ctx, sessionID, owner)
	if err != nil {
		return Review{}, err
	}

	attempts, err := s.sessions.ListAttempts(ctx, session.ID, owner.ID)
	if err != nil {
		return Review{}, err
	}
	questions, err := s.questionLookup(ctx, attempts)
	if err != nil {
		return Review{}, err
	}

	items := make([]ReviewItem, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, ReviewItem{
			Position:      attempt.Position,
			Question:      questions[attempt.QuestionID],
			CorrectAnswer: attempt.CorrectAnswer,
			UserAnswer:    attempt.UserAnswer,
			IsCorrect:     attempt.IsCorrect(),
			IsMarked:      attempt.IsMarked,
		})
	}
	return Review{Result: session.Result(), Items: items}, nil
}

// Certificate returns the stored document of a passed session. A passed
// session whose issuance failed reports ErrCertificateUnavailable.
func (s *Service) Certificate(ctx context.Context, sessionID string, owner Owner) (Certificate, error) {
	session, err := s.completedSession(ctx, sessionID, owner)
	if err != nil {
		return Certificate{}, err
	}
	if !session.IsPass {
		return Certificate{}, ErrNotPassed
	}
	if session.CertificateRef == nil {
		return Certificate{}, ErrCertificateUnavailable
	}
	return s.sessions.GetCertificate(ctx, session.ID, owner.ID)
}

func (s *Service) completedSession(ctx context.Context, sessionID string, owner Owner) (Session, error) {
	if err := validateSessionRef(sessionID, owner); err != nil {
		return Session{}, err
	}
	session, err := s.sessions.GetSession(ctx, sessionID, owner.ID)
	if err != nil {
		return Session{}, err
	}
	if !session.HasCompleted {
		return Session{}, ErrNotCompleted
	}
	return session, nil
}
