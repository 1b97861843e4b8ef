package quiz

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("quiz session not found")
	ErrAlreadyCompleted       = errors.New("quiz session already completed")
	ErrConflict               = errors.New("an unfinished quiz session already exists")
	ErrValidation             = errors.New("invalid input")
	ErrNotCompleted           = errors.New("quiz session not completed")
	ErrNotPassed              = errors.New("quiz session was not passed")
	ErrCertificateUnavailable = errors.New("certificate unavailable")
	ErrInsufficientQuestions  = errors.New("question bank has too few questions")
	ErrCertificateIssuance    = errors.New("certificate issuance failed")
	ErrInvalidConfig          = errors.New("invalid quiz config")

	// ErrQuestionNotInSession is a not-found flavour: the session exists but
	// never sampled the question.
	ErrQuestionNotInSession = fmt.Errorf("question not part of session: %w", ErrNotFound)
)

// ConflictError carries the id of the unfinished session the caller should
// resume instead of starting a new one.
type ConflictError struct {
	SessionID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConflict.Error(), e.SessionID)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
