package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wastequiz/internal/quiz"
)

var (
	_ quiz.SessionStore = (*SQLiteStore)(nil)
	_ quiz.QuestionBank = (*SQLiteStore)(nil)
)

const sessionColumns = `session_id, owner_id, owner_name, created_at_unix, finishes_at_unix,
	total_score, pass_mark, total_questions, has_completed, score, correct_count,
	is_pass, certificate_ref, completed_at_unix, completion_kind`

func scanSession(row rowScanner) (quiz.Session, error) {
	var (
		session        quiz.Session
		createdAt      int64
		finishesAt     int64
		hasCompleted   int
		isPass         int
		score          sql.NullInt64
		certificateRef sql.NullString
		completedAt    sql.NullInt64
		kind           string
	)
	if err := row.Scan(
		&session.ID,
		&session.OwnerID,
		&session.OwnerName,
		&createdAt,
		&finishesAt,
		&session.TotalScore,
		&session.PassMark,
		&session.TotalQuestions,
		&hasCompleted,
		&score,
		&session.CorrectCount,
		&isPass,
		&certificateRef,
		&completedAt,
		&kind,
	); err != nil {
		return quiz.Session{}, err
	}

	session.CreatedAt = time.Unix(0, createdAt).UTC()
	session.FinishesAt = time.Unix(0, finishesAt).UTC()
	session.HasCompleted = hasCompleted == 1
	session.IsPass = isPass == 1
	session.CompletionKind = quiz.CompletionKind(kind)
	if score.Valid {
		value := int(score.Int64)
		session.Score = &value
	}
	if certificateRef.Valid {
		value := certificateRef.String
		session.CertificateRef = &value
	}
	if completedAt.Valid {
		value := time.Unix(0, completedAt.Int64).UTC()
		session.CompletedAt = &value
	}
	return session, nil
}

func getSession(ctx context.Context, q queryer, sessionID, ownerID string) (quiz.Session, error) {
	session, err := scanSession(q.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE session_id = ? AND owner_id = ?`,
		sessionID,
		ownerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Session{}, quiz.ErrNotFound
		}
		return quiz.Session{}, err
	}
	return session, nil
}

func (s *SQLiteStore) FindIncomplete(ctx context.Context, ownerID string) (quiz.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE owner_id = ? AND has_completed = 0 LIMIT 1`,
		ownerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Session{}, quiz.ErrNotFound
		}
		return quiz.Session{}, err
	}
	return session, nil
}

// CreateSession inserts the session row and its attempts in one transaction.
//
// The partial unique index on quiz_sessions(owner_id) WHERE has_completed = 0
// makes the insert itself the one-open-session check: INSERT OR IGNORE affects
// zero rows when another open session exists, even if it was created by a
// concurrent request after the caller's pre-check.
func (s *SQLiteStore) CreateSession(ctx context.Context, session quiz.Session, attempts []quiz.Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO quiz_sessions
			(session_id, owner_id, owner_name, created_at_unix, finishes_at_unix, total_score, pass_mark, total_questions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.OwnerID,
		session.OwnerName,
		session.CreatedAt.UnixNano(),
		session.FinishesAt.UnixNano(),
		session.TotalScore,
		session.PassMark,
		session.TotalQuestions,
	)
	if err != nil {
		return err
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		var existingID string
		err := tx.QueryRowContext(
			ctx,
			`SELECT session_id FROM quiz_sessions WHERE owner_id = ? AND has_completed = 0 LIMIT 1`,
			session.OwnerID,
		).Scan(&existingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: session %s not inserted", quiz.ErrConflict, session.ID)
			}
			return err
		}
		return &quiz.ConflictError{SessionID: existingID}
	}

	for _, attempt := range attempts {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO session_attempts (session_id, question_id, position, correct_answer)
			 VALUES (?, ?, ?, ?)`,
			session.ID,
			attempt.QuestionID,
			attempt.Position,
			attempt.CorrectAnswer,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID, ownerID string) (quiz.Session, error) {
	return getSession(ctx, s.db, sessionID, ownerID)
}

func listAttempts(ctx context.Context, q queryer, sessionID string) ([]quiz.Attempt, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT question_id, position, correct_answer, user_answer, is_marked, answered_at_unix
		 FROM session_attempts
		 WHERE session_id = ?
		 ORDER BY position ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]quiz.Attempt, 0)
	for rows.Next() {
		var (
			attempt    quiz.Attempt
			userAnswer sql.NullString
			isMarked   int
			answeredAt sql.NullInt64
		)
		if err := rows.Scan(&attempt.QuestionID, &attempt.Position, &attempt.CorrectAnswer, &userAnswer, &isMarked, &answeredAt); err != nil {
			return nil, err
		}
		attempt.SessionID = sessionID
		attempt.IsMarked = isMarked == 1
		if userAnswer.Valid {
			value := userAnswer.String
			attempt.UserAnswer = &value
		}
		if answeredAt.Valid {
			value := time.Unix(0, answeredAt.Int64).UTC()
			attempt.AnsweredAt = &value
		}
		attempts = append(attempts, attempt)
	}

	return attempts, rows.Err()
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, sessionID, ownerID string) ([]quiz.Attempt, error) {
	if _, err := getSession(ctx, s.db, sessionID, ownerID); err != nil {
		return nil, err
	}
	return listAttempts(ctx, s.db, sessionID)
}

// UpdateAttempt re-checks the unfinished guard inside its own transaction so
// an update can never land after the completion write.
func (s *SQLiteStore) UpdateAttempt(ctx context.Context, sessionID, ownerID, questionID string, update quiz.AttemptUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	session, err := getSession(ctx, tx, sessionID, ownerID)
	if err != nil {
		return err
	}
	if session.HasCompleted {
		return quiz.ErrAlreadyCompleted
	}

	var answer, answeredAt, marked any
	if update.Answer != nil {
		answer = *update.Answer
		answeredAt = update.At.UnixNano()
	}
	if update.Marked != nil {
		marked = boolToInt(*update.Marked)
	}

	result, err := tx.ExecContext(
		ctx,
		`UPDATE session_attempts SET
			user_answer = COALESCE(?, user_answer),
			answered_at_unix = COALESCE(?, answered_at_unix),
			is_marked = COALESCE(?, is_marked)
		 WHERE session_id = ? AND question_id = ?`,
		answer,
		answeredAt,
		marked,
		sessionID,
		questionID,
	)
	if err != nil {
		return err
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 0 {
		return quiz.ErrQuestionNotInSession
	}

	return tx.Commit()
}

// CompleteSession grades and freezes a session in one transaction.
//
// Invariants:
//   - The guard read, the grading input and the completion write all happen
//     inside the same transaction.
//   - The UPDATE is conditional on has_completed = 0, so a racing finalize
//     that slipped past the guard still affects zero rows and reports
//     ErrAlreadyCompleted instead of overwriting the first grade.
func (s *SQLiteStore) CompleteSession(ctx context.Context, sessionID, ownerID string, kind quiz.CompletionKind, at time.Time, grade quiz.GradeFunc) (quiz.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return quiz.Session{}, err
	}
	defer tx.Rollback()

	session, err := getSession(ctx, tx, sessionID, ownerID)
	if err != nil {
		return quiz.Session{}, err
	}
	if session.HasCompleted {
		return quiz.Session{}, quiz.ErrAlreadyCompleted
	}

	attempts, err := listAttempts(ctx, tx, sessionID)
	if err != nil {
		return quiz.Session{}, err
	}
	result := grade(attempts)

	update, err := tx.ExecContext(
		ctx,
		`UPDATE quiz_sessions SET
			has_completed = 1,
			score = ?,
			correct_count = ?,
			is_pass = ?,
			completed_at_unix = ?,
			completion_kind = ?
		 WHERE session_id = ? AND owner_id = ? AND has_completed = 0`,
		result.Score,
		result.CorrectCount,
		boolToInt(result.IsPass),
		at.UnixNano(),
		string(kind),
		sessionID,
		ownerID,
	)
	if err != nil {
		return quiz.Session{}, err
	}

	updated, err := update.RowsAffected()
	if err != nil {
		return quiz.Session{}, err
	}
	if updated == 0 {
		return quiz.Session{}, quiz.ErrAlreadyCompleted
	}

	if err := tx.Commit(); err != nil {
		return quiz.Session{}, err
	}

	score := result.Score
	completedAt := time.Unix(0, at.UnixNano()).UTC()
	session.HasCompleted = true
	session.Score = &score
	session.CorrectCount = result.CorrectCount
	session.IsPass = result.IsPass
	session.CompletedAt = &completedAt
	session.CompletionKind = kind
	return session, nil
}

// AttachCertificate stores the document and sets the session's reference.
// The reference is write-once and only accepted for passed, completed sessions.
func (s *SQLiteStore) AttachCertificate(ctx context.Context, certificate quiz.Certificate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(
		ctx,
		`UPDATE quiz_sessions SET certificate_ref = ?
		 WHERE session_id = ? AND owner_id = ? AND has_completed = 1 AND is_pass = 1 AND certificate_ref IS NULL`,
		certificate.Reference,
		certificate.SessionID,
		certificate.OwnerID,
	)
	if err != nil {
		return err
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 0 {
		return quiz.ErrCertificateUnavailable
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO certificates (reference, session_id, owner_id, document, created_at_unix)
		 VALUES (?, ?, ?, ?, ?)`,
		certificate.Reference,
		certificate.SessionID,
		certificate.OwnerID,
		certificate.Document,
		certificate.CreatedAt.UnixNano(),
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetCertificate(ctx context.Context, sessionID, ownerID string) (quiz.Certificate, error) {
	var (
		certificate quiz.Certificate
		createdAt   int64
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT reference, session_id, owner_id, document, created_at_unix
		 FROM certificates
		 WHERE session_id = ? AND owner_id = ?`,
		sessionID,
		ownerID,
	).Scan(&certificate.Reference, &certificate.SessionID, &certificate.OwnerID, &certificate.Document, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Certificate{}, quiz.ErrCertificateUnavailable
		}
		return quiz.Certificate{}, err
	}

	certificate.CreatedAt = time.Unix(0, createdAt).UTC()
	return certificate, nil
}

func (s *SQLiteStore) Stats(ctx context.Context, ownerID string) (quiz.Stats, error) {
	var (
		stats   quiz.Stats
		average sql.NullFloat64
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN has_completed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN has_completed = 1 AND is_pass = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN has_completed = 0 THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN has_completed = 1 THEN score END)
		 FROM quiz_sessions
		 WHERE owner_id = ?`,
		ownerID,
	).Scan(&stats.Attempts, &stats.Completed, &stats.Passed, &stats.InProgress, &average)
	if err != nil {
		return quiz.Stats{}, err
	}

	if average.Valid {
		stats.AverageScore = average.Float64
	}
	return stats, nil
}

// History returns one page of the owner's sessions, newest first, plus the
// total number of sessions the owner has.
func (s *SQLiteStore) History(ctx context.Context, ownerID string, offset, limit int) ([]quiz.Session, int, error) {
	var total int
	if err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM quiz_sessions WHERE owner_id = ?`,
		ownerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+sessionColumns+`
		 FROM quiz_sessions
		 WHERE owner_id = ?
		 ORDER BY created_at_unix DESC, session_id ASC
		 LIMIT ? OFFSET ?`,
		ownerID,
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions := make([]quiz.Session, 0, limit)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, session)
	}

	return sessions, total, rows.Err()
}
