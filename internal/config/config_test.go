package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastequiz/internal/quiz"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "quiz.db", cfg.DBPath)
	assert.Equal(t, "quiz.events", cfg.AMQPExchange)

	quizCfg, err := cfg.Quiz()
	require.NoError(t, err)
	assert.Equal(t, quiz.Config{TotalTime: 30 * time.Minute, TotalScore: 100, PassMark: 50, TotalQuestions: 10}, quizCfg)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("QUIZ_TOTAL_TIME", "45m")
	t.Setenv("QUIZ_TOTAL_SCORE", "20")
	t.Setenv("QUIZ_PASS_MARK", "14")
	t.Setenv("QUIZ_TOTAL_QUESTIONS", "3")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.NoError(t, cfg.RequireJWTSecret())

	quizCfg, err := cfg.Quiz()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, quizCfg.TotalTime)
	assert.Equal(t, 20.0, quizCfg.TotalScore)
	assert.Equal(t, 14.0, quizCfg.PassMark)
	assert.Equal(t, 3, quizCfg.TotalQuestions)
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_PATH=from-file.db\nADDR=:9999\n"), 0o600))
	t.Setenv("ADDR", ":7000")
	t.Cleanup(func() { _ = os.Unsetenv("DB_PATH") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.DBPath)
	assert.Equal(t, ":7000", cfg.Addr)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("QUIZ_TOTAL_TIME", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestQuizRejectsInvalidDefinition(t *testing.T) {
	cfg := Config{TotalTime: time.Minute, TotalScore: 100, PassMark: 50, TotalQuestions: 0}

	_, err := cfg.Quiz()
	assert.True(t, errors.Is(err, quiz.ErrInvalidConfig))
}

func TestRequireJWTSecret(t *testing.T) {
	assert.Error(t, Config{JWTSecret: "  "}.RequireJWTSecret())
	assert.NoError(t, Config{JWTSecret: "s3cret"}.RequireJWTSecret())
}
