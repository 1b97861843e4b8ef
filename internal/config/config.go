// Package config loads service settings from the environment, optionally
// seeded from a local .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"wastequiz/internal/quiz"
)

type Config struct {
	Addr     string `env:"ADDR"      envDefault:":8080"`
	DBPath   string `env:"DB_PATH"   envDefault:"quiz.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	TotalTime      time.Duration `env:"QUIZ_TOTAL_TIME"      envDefault:"30m"`
	TotalScore     float64       `env:"QUIZ_TOTAL_SCORE"     envDefault:"100"`
	PassMark       float64       `env:"QUIZ_PASS_MARK"       envDefault:"50"`
	TotalQuestions int           `env:"QUIZ_TOTAL_QUESTIONS" envDefault:"10"`

	JWTSecret string `env:"JWT_SECRET"`
	RedisURL  string `env:"REDIS_URL"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"quiz.events"`

	CertificateIssuer string `env:"CERTIFICATE_ISSUER" envDefault:"Waste Management Authority"`
	QuestionFeedURL   string `env:"QUESTION_FEED_URL"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Quiz returns the assessment definition new sessions are started against.
func (c Config) Quiz() (quiz.Config, error) {
	cfg := quiz.Config{
		TotalTime:      c.TotalTime,
		TotalScore:     c.TotalScore,
		PassMark:       c.PassMark,
		TotalQuestions: c.TotalQuestions,
	}
	if err := cfg.Validate(); err != nil {
		return quiz.Config{}, err
	}
	return cfg, nil
}

func (c Config) RequireJWTSecret() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}
