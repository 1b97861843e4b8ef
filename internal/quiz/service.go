package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	EventSessionStarted   = "quiz.session.started"
	EventSessionCompleted = "quiz.session.completed"

	maxQuestionIDLength = 128
)

type ServiceOption func(*Service)

func WithLogger(log logrus.FieldLogger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithEvents(events EventPublisher) ServiceOption {
	return func(s *Service) {
		if events != nil {
			s.events = events
		}
	}
}

func WithRecorder(recorder Recorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// Service owns the session lifecycle: start, answer capture, lazy deadline
// enforcement, grading and certificate issuance. No timer watches deadlines;
// they are evaluated when a session is resumed or submitted.
type Service struct {
	cfg      Config
	sessions SessionStore
	bank     QuestionBank
	issuer   CertificateIssuer
	events   EventPublisher
	metrics  Recorder
	log      logrus.FieldLogger
	now      func() time.Time
	newID    func() string
}

func NewService(cfg Config, sessions SessionStore, bank QuestionBank, issuer CertificateIssuer, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sessions == nil || bank == nil {
		return nil, errors.New("session store and question bank are required")
	}

	s := &Service{
		cfg:      cfg,
		sessions: sessions,
		bank:     bank,
		issuer:   issuer,
		events:   noopPublisher{},
		metrics:  noopRecorder{},
		log:      logrus.StandardLogger(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) Start(ctx context.Context, owner Owner) (StartedSession, error) {
	if err := validateOwner(owner); err != nil {
		return StartedSession{}, err
	}

	existing, err := s.sessions.FindIncomplete(ctx, owner.ID)
	if err == nil {
		s.metrics.StartConflict()
		return StartedSession{}, &ConflictError{SessionID: existing.ID}
	}
	if !errors.Is(err, ErrNotFound) {
		return StartedSession{}, err
	}

	ids, err := s.bank.Sample(ctx, s.cfg.TotalQuestions)
	if err != nil {
		return StartedSession{}, err
	}
	if err := checkSample(ids, s.cfg.TotalQuestions); err != nil {
		return StartedSession{}, err
	}

	now := s.now().UTC()
	session := Session{
		ID:             s.newID(),
		OwnerID:        owner.ID,
		OwnerName:      owner.Name,
		CreatedAt:      now,
		FinishesAt:     now.Add(s.cfg.TotalTime),
		TotalScore:     s.cfg.TotalScore,
		PassMark:       s.cfg.PassMark,
		TotalQuestions: s.cfg.TotalQuestions,
	}

	attempts := make([]Attempt, 0, len(ids))
	for idx, questionID := range ids {
		answer, err := s.bank.CorrectAnswer(ctx, questionID)
		if err != nil {
			return StartedSession{}, fmt.Errorf("freeze answer for %s: %w", questionID, err)
		}
		attempts = append(attempts, Attempt{
			SessionID:     session.ID,
			QuestionID:    questionID,
			Position:      idx,
			CorrectAnswer: answer,
		})
	}

	questions, err := s.publicQuestions(ctx, ids)
	if err != nil {
		return StartedSession{}, err
	}

	if err := s.sessions.CreateSession(ctx, session, attempts); err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.StartConflict()
		}
		return StartedSession{}, err
	}

	s.metrics.SessionStarted()
	s.log.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"owner_id":    owner.ID,
		"finishes_at": session.FinishesAt,
	}).Info("quiz session started")
	s.publish(ctx, EventSessionStarted, sessionEvent{
		SessionID:  session.ID,
		OwnerID:    owner.ID,
		FinishesAt: session.FinishesAt,
	})

	return StartedSession{Session: session, Questions: questions}, nil
}

// Resume returns the live state of an unfinished session. Past the deadline it
// finalizes the session exactly like Submit and reports the result as expired.
func (s *Service) Resume(ctx context.Context, sessionID string, owner Owner) (ResumeState, error) {
	session, err := s.openSession(ctx, sessionID, owner)
	if err != nil {
		return ResumeState{}, err
	}

	now := s.now().UTC()
	if session.PastDeadline(now) {
		completed, err := s.finalize(ctx, session, CompletionExpired, now)
		if err != nil {
			return ResumeState{}, err
		}
		result := completed.Result()
		return ResumeState{Session: completed, Expired: true, Result: &result}, nil
	}

	attempts, err := s.sessions.ListAttempts(ctx, session.ID, owner.ID)
	if err != nil {
		return ResumeState{}, err
	}
	questions, err := s.questionLookup(ctx, attempts)
	if err != nil {
		return ResumeState{}, err
	}

	views := make([]AttemptView, 0, len(attempts))
	for _, attempt := range attempts {
		views = append(views, AttemptView{
			Position:   attempt.Position,
			Question:   questions[attempt.QuestionID],
			UserAnswer: attempt.UserAnswer,
			IsMarked:   attempt.IsMarked,
		})
	}

	return ResumeState{
		Session:       session,
		RemainingTime: session.RemainingTime(now),
		Attempts:      views,
	}, nil
}

// RecordAnswer stores the owner's answer; grading waits for submission.
func (s *Service) RecordAnswer(ctx context.Context, sessionID string, owner Owner, questionID, answer string) error {
	questionID, err := validateAttemptRef(sessionID, owner, questionID)
	if err != nil {
		return err
	}
	letter := NormalizeLetter(answer)
	if letter == "" {
		return invalid("answer", "must be a single option letter")
	}
	if err := s.checkOptionLetter(ctx, questionID, letter); err != nil {
		return err
	}

	return s.sessions.UpdateAttempt(ctx, sessionID, owner.ID, questionID, AttemptUpdate{
		Answer: &letter,
		At:     s.now().UTC(),
	})
}

func (s *Service) SetMark(ctx context.Context, sessionID string, owner Owner, questionID string, isMarked bool) error {
	questionID, err := validateAttemptRef(sessionID, owner, questionID)
	if err != nil {
		return err
	}

	return s.sessions.UpdateAttempt(ctx, sessionID, owner.ID, questionID, AttemptUpdate{
		Marked: &isMarked,
		At:     s.now().UTC(),
	})
}

// Submit grades and freezes the session. A second call returns
// ErrAlreadyCompleted and leaves the stored grade untouched.
func (s *Service) Submit(ctx context.Context, sessionID string, owner Owner) (Result, error) {
	session, err := s.openSession(ctx, sessionID, owner)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	kind := CompletionSubmitted
	if session.PastDeadline(now) {
		kind = CompletionExpired
	}

	completed, err := s.finalize(ctx, session, kind, now)
	if err != nil {
		return Result{}, err
	}
	return completed.Result(), nil
}

func (s *Service) openSession(ctx context.Context, sessionID string, owner Owner) (Session, error) {
	if err := validateSessionRef(sessionID, owner); err != nil {
		return Session{}, err
	}

	session, err := s.sessions.GetSession(ctx, sessionID, owner.ID)
	if err != nil {
		return Session{}, err
	}
	if session.HasCompleted {
		return Session{}, ErrAlreadyCompleted
	}
	return session, nil
}

// finalize is the single completion path for Submit and expired Resume.
func (s *Service) finalize(ctx context.Context, session Session, kind CompletionKind, at time.Time) (Session, error) {
	cfg := session.config()
	completed, err := s.sessions.CompleteSession(ctx, session.ID, session.OwnerID, kind, at, func(attempts []Attempt) Grade {
		return Score(attempts, cfg)
	})
	if err != nil {
		return Session{}, err
	}

	s.metrics.SessionCompleted(kind, completed.IsPass)
	entry := s.log.WithFields(logrus.Fields{
		"session_id": completed.ID,
		"owner_id":   completed.OwnerID,
		"kind":       kind,
		"is_pass":    completed.IsPass,
	})

	if completed.IsPass {
		reference, err := s.issueCertificate(ctx, completed)
		if err != nil {
			s.metrics.CertificateFailed()
			entry.WithError(err).Warn("certificate issuance failed, session completed without certificate")
		} else {
			completed.CertificateRef = &reference
		}
	}

	entry.Info("quiz session completed")
	result := completed.Result()
	s.publish(ctx, EventSessionCompleted, sessionEvent{
		SessionID:  completed.ID,
		OwnerID:    completed.OwnerID,
		FinishesAt: completed.FinishesAt,
		Kind:       kind,
		Score:      &result.Score,
		IsPass:     &result.IsPass,
	})

	return completed, nil
}

func (s *Service) issueCertificate(ctx context.Context, session Session) (string, error) {
	if s.issuer == nil {
		return "", fmt.Errorf("%w: no issuer configured", ErrCertificateIssuance)
	}
	if session.Score == nil || session.CompletedAt == nil {
		return "", fmt.Errorf("%w: session has no grade", ErrCertificateIssuance)
	}

	image, err := s.issuer.Render(session.Owner().DisplayName(), *session.Score, session.TotalScore, *session.CompletedAt)
	if err != nil {
		return "", fmt.Errorf("%w: render: %w", ErrCertificateIssuance, err)
	}
	document, err := s.issuer.ToPortableDocument(image)
	if err != nil {
		return "", fmt.Errorf("%w: convert: %w", ErrCertificateIssuance, err)
	}

	certificate := Certificate{
		Reference: "cert_" + s.newID(),
		SessionID: session.ID,
		OwnerID:   session.OwnerID,
		Document:  document,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.AttachCertificate(ctx, certificate); err != nil {
		return "", fmt.Errorf("%w: store: %w", ErrCertificateIssuance, err)
	}
	return certificate.Reference, nil
}

type sessionEvent struct {
	SessionID  string         `json:"session_id"`
	OwnerID    string         `json:"owner_id"`
	FinishesAt time.Time      `json:"finishes_at"`
	Kind       CompletionKind `json:"kind,omitempty"`
	Score      *int           `json:"score,omitempty"`
	IsPass     *bool          `json:"is_pass,omitempty"`
}

func (s *Service) publish(ctx context.Context, routingKey string, payload any) {
	if err := s.events.Publish(ctx, routingKey, payload); err != nil {
		s.log.WithError(err).WithField("event", routingKey).Warn("publish quiz event failed")
	}
}

func (s *Service) publicQuestions(ctx context.Context, ids []string) ([]PublicQuestion, error) {
	found, err := s.bank.Questions(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]PublicQuestion, len(found))
	for _, question := range found {
		byID[question.QuestionID] = question
	}

	ordered := make([]PublicQuestion, 0, len(ids))
	for _, id := range ids {
		question, ok := byID[id]
		if !ok {
			question = PublicQuestion{QuestionID: id}
		}
		ordered = append(ordered, question)
	}
	return ordered, nil
}

func (s *Service) questionLookup(ctx context.Context, attempts []Attempt) (map[string]PublicQuestion, error) {
	ids := make([]string, 0, len(attempts))
	for _, attempt := range attempts {
		ids = append(ids, attempt.QuestionID)
	}

	questions, err := s.publicQuestions(ctx, ids)
	if err != nil {
		return nil, err
	}

	lookup := make(map[string]PublicQuestion, len(questions))
	for _, question := range questions {
		lookup[question.QuestionID] = question
	}
	return lookup, nil
}

func checkSample(ids []string, want int) error {
	if len(ids) != want {
		return fmt.Errorf("%w: sampled %d of %d", ErrInsufficientQuestions, len(ids), want)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("question bank sampled %s twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func validateOwner(owner Owner) error {
	if strings.TrimSpace(owner.ID) == "" {
		return invalid("owner", "is required")
	}
	return nil
}

func validateSessionRef(sessionID string, owner Owner) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return invalid("session_id", "must be a UUID")
	}
	return nil
}

// validateAttemptRef returns the trimmed question id.
func validateAttemptRef(sessionID string, owner Owner, questionID string) (string, error) {
	if err := validateSessionRef(sessionID, owner); err != nil {
		return "", err
	}
	questionID = strings.TrimSpace(questionID)
	if questionID == "" || len(questionID) > maxQuestionIDLength {
		return "", invalid("question_id", "is required")
	}
	return questionID, nil
}

// checkOptionLetter rejects letters beyond the question's options. Question
// ids are derived from the option texts, so the option set cannot change
// under a stored attempt.
func (s *Service) checkOptionLetter(ctx context.Context, questionID, letter string) error {
	questions, err := s.bank.Questions(ctx, []string{questionID})
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return ErrQuestionNotInSession
	}
	for _, option := range questions[0].Options {
		if option.Letter == letter {
			return nil
		}
	}
	return invalid("answer", fmt.Sprintf("%s is not an option of this question", letter))
}
