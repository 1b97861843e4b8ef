package sqlite

import (
	"context"
)

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS questions (
			question_id TEXT PRIMARY KEY,
			prompt TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			options_json TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS quiz_sessions (
			session_id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			owner_name TEXT NOT NULL DEFAULT '',
			created_at_unix INTEGER NOT NULL,
			finishes_at_unix INTEGER NOT NULL,
			total_score REAL NOT NULL,
			pass_mark REAL NOT NULL,
			total_questions INTEGER NOT NULL,
			has_completed INTEGER NOT NULL DEFAULT 0,
			score INTEGER,
			correct_count INTEGER NOT NULL DEFAULT 0,
			is_pass INTEGER NOT NULL DEFAULT 0,
			certificate_ref TEXT,
			completed_at_unix INTEGER,
			completion_kind TEXT NOT NULL DEFAULT ''
		);`,
		// At most one unfinished session per owner.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_quiz_sessions_open_owner
			ON quiz_sessions(owner_id) WHERE has_completed = 0;`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_sessions_owner_created
			ON quiz_sessions(owner_id, created_at_unix DESC);`,
		`CREATE TABLE IF NOT EXISTS session_attempts (
			session_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			correct_answer TEXT NOT NULL,
			user_answer TEXT,
			is_marked INTEGER NOT NULL DEFAULT 0,
			answered_at_unix INTEGER,
			PRIMARY KEY (session_id, question_id),
			UNIQUE (session_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS certificates (
			reference TEXT PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			owner_id TEXT NOT NULL,
			document BLOB NOT NULL,
			created_at_unix INTEGER NOT NULL
		);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
