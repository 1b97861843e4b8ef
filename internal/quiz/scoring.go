package quiz

import "github.com/shopspring/decimal"

type Grade struct {
	CorrectCount int
	RawScore     decimal.Decimal
	Score        int
	IsPass       bool
}

// ScorePerQuestion is the unrounded weight of one correct answer.
func ScorePerQuestion(cfg Config) decimal.Decimal {
	if cfg.TotalQuestions <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(cfg.TotalScore).Div(decimal.NewFromInt(int64(cfg.TotalQuestions)))
}

// Score grades a session. Every correct attempt is worth TotalScore /
// TotalQuestions; the sum is rounded once, half away from zero.
// Unanswered attempts count as wrong.
func Score(attempts []Attempt, cfg Config) Grade {
	correct := 0
	for _, attempt := range attempts {
		if attempt.IsCorrect() {
			correct++
		}
	}

	raw := decimal.Zero
	if cfg.TotalQuestions > 0 {
		// correct * (total / n), dividing last so the sum carries no per-question
		// rounding error.
		raw = decimal.NewFromFloat(cfg.TotalScore).
			Mul(decimal.NewFromInt(int64(correct))).
			Div(decimal.NewFromInt(int64(cfg.TotalQuestions)))
	}

	score := int(raw.Round(0).IntPart())
	return Grade{
		CorrectCount: correct,
		RawScore:     raw,
		Score:        score,
		IsPass:       float64(score) >= cfg.PassMark,
	}
}
