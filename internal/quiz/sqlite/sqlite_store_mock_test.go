package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastequiz/internal/quiz"
)

var sessionRowColumns = []string{
	"session_id", "owner_id", "owner_name", "created_at_unix", "finishes_at_unix",
	"total_score", "pass_mark", "total_questions", "has_completed", "score", "correct_count",
	"is_pass", "certificate_ref", "completed_at_unix", "completion_kind",
}

func openSessionRow(sessionID, ownerID string) *sqlmock.Rows {
	created := time.Unix(1700000000, 0).UnixNano()
	return sqlmock.NewRows(sessionRowColumns).
		AddRow(sessionID, ownerID, "Ada", created, created+int64(time.Minute), 100.0, 50.0, 2, 0, nil, 0, 0, nil, nil, "")
}

func TestCompleteSessionRollsBackWhenUpdateFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT session_id, owner_id").
		WithArgs("sess-1", "user-1").
		WillReturnRows(openSessionRow("sess-1", "user-1"))
	mock.ExpectQuery("SELECT question_id, position, correct_answer").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"question_id", "position", "correct_answer", "user_answer", "is_marked", "answered_at_unix"}).
			AddRow("q0", 0, "A", "A", 0, int64(1)).
			AddRow("q1", 1, "B", nil, 1, nil))
	mock.ExpectExec("UPDATE quiz_sessions SET").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	graded := 0
	_, err = store.CompleteSession(ctx, "sess-1", "user-1", quiz.CompletionSubmitted, time.Now(), func(attempts []quiz.Attempt) quiz.Grade {
		graded++
		assert.Len(t, attempts, 2)
		assert.True(t, attempts[0].IsCorrect())
		assert.False(t, attempts[1].IsCorrect())
		assert.True(t, attempts[1].IsMarked)
		return quiz.Grade{Score: 50, CorrectCount: 1, IsPass: true}
	})
	require.Error(t, err)
	assert.Equal(t, 1, graded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteSessionLostRaceReportsAlreadyCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT session_id, owner_id").
		WithArgs("sess-1", "user-1").
		WillReturnRows(openSessionRow("sess-1", "user-1"))
	mock.ExpectQuery("SELECT question_id, position, correct_answer").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"question_id", "position", "correct_answer", "user_answer", "is_marked", "answered_at_unix"}))
	mock.ExpectExec("UPDATE quiz_sessions SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = store.CompleteSession(context.Background(), "sess-1", "user-1", quiz.CompletionExpired, time.Now(), func([]quiz.Attempt) quiz.Grade {
		return quiz.Grade{}
	})
	assert.ErrorIs(t, err, quiz.ErrAlreadyCompleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSessionIgnoredInsertReturnsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	session := quiz.Session{
		ID:             "sess-2",
		OwnerID:        "user-1",
		CreatedAt:      time.Unix(1700000000, 0),
		FinishesAt:     time.Unix(1700001800, 0),
		TotalScore:     100,
		PassMark:       50,
		TotalQuestions: 1,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT OR IGNORE INTO quiz_sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT session_id FROM quiz_sessions").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}).AddRow("sess-1"))
	mock.ExpectRollback()

	err = store.CreateSession(context.Background(), session, []quiz.Attempt{{QuestionID: "q0", CorrectAnswer: "A"}})

	var conflict *quiz.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "sess-1", conflict.SessionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAttemptOnCompletedSessionWritesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	created := time.Unix(1700000000, 0).UnixNano()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT session_id, owner_id").
		WithArgs("sess-1", "user-1").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("sess-1", "user-1", "Ada", created, created, 100.0, 50.0, 2, 1, 50, 1, 1, nil, created, "submitted"))
	mock.ExpectRollback()

	answer := "B"
	err = store.UpdateAttempt(context.Background(), "sess-1", "user-1", "q0", quiz.AttemptUpdate{Answer: &answer, At: time.Now()})
	assert.ErrorIs(t, err, quiz.ErrAlreadyCompleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
