package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wastequiz/internal/quiz"
)

// ImportQuestions upserts bank entries. Existing sessions are unaffected since
// their correct answers were frozen when they started.
func (s *SQLiteStore) ImportQuestions(ctx context.Context, questions []quiz.Question) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().UnixNano()
	imported := 0
	for _, question := range questions {
		if question.QuestionID == "" {
			question.QuestionID = quiz.MakeQuestionID(question)
		}
		if question.CorrectAnswer == "" || len(question.Options) == 0 {
			return 0, fmt.Errorf("question %s has no answer key", question.QuestionID)
		}

		optionsJSON, err := json.Marshal(question.Options)
		if err != nil {
			return 0, err
		}

		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO questions (question_id, prompt, category, options_json, correct_answer, source, created_at_unix)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(question_id) DO UPDATE SET
				prompt = excluded.prompt,
				category = excluded.category,
				options_json = excluded.options_json,
				correct_answer = excluded.correct_answer,
				source = excluded.source`,
			question.QuestionID,
			question.Question,
			question.Category,
			string(optionsJSON),
			question.CorrectAnswer,
			question.Source,
			now,
		)
		if err != nil {
			return 0, err
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return imported, nil
}

func (s *SQLiteStore) CountQuestions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// Sample draws n distinct question ids uniformly at random.
func (s *SQLiteStore) Sample(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT question_id FROM questions ORDER BY RANDOM() LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, n)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) < n {
		return nil, fmt.Errorf("%w: have %d, need %d", quiz.ErrInsufficientQuestions, len(ids), n)
	}
	return ids, nil
}

func (s *SQLiteStore) CorrectAnswer(ctx context.Context, questionID string) (string, error) {
	var answer string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT correct_answer FROM questions WHERE question_id = ?`,
		questionID,
	).Scan(&answer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("question %s: %w", questionID, quiz.ErrNotFound)
		}
		return "", err
	}
	return answer, nil
}

// Questions returns the public view of the requested questions in no
// particular order. Unknown ids are skipped.
func (s *SQLiteStore) Questions(ctx context.Context, questionIDs []string) ([]quiz.PublicQuestion, error) {
	if len(questionIDs) == 0 {
		return []quiz.PublicQuestion{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(questionIDs)), ",")
	args := make([]any, 0, len(questionIDs))
	for _, id := range questionIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT question_id, prompt, category, options_json
		 FROM questions
		 WHERE question_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]quiz.PublicQuestion, 0, len(questionIDs))
	for rows.Next() {
		var (
			question    quiz.PublicQuestion
			optionsJSON string
		)
		if err := rows.Scan(&question.QuestionID, &question.Question, &question.Category, &optionsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(optionsJSON), &question.Options); err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}

	return questions, rows.Err()
}
