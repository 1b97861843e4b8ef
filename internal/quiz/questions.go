package quiz

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"html"
	"math/rand"
	"sort"
	"strings"

	"wastequiz/internal/questionfeed"
)

type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Question is a bank entry. CorrectAnswer is an option letter.
type Question struct {
	PublicQuestion
	CorrectAnswer string
	Source        string
}

type PublicQuestion struct {
	QuestionID string   `json:"question_id"`
	Question   string   `json:"question"`
	Category   string   `json:"category,omitempty"`
	Options    []Option `json:"options"`
}

// BuildQuestions converts feed entries into bank questions. Options are
// shuffled with a seed taken from the question id, so importing the same
// entry twice yields the same letters.
func BuildQuestions(raw []questionfeed.RawQuestion, source string) []Question {
	questions := make([]Question, 0, len(raw))
	for _, item := range raw {
		question := buildQuestion(item)
		question.Source = source
		questions = append(questions, question)
	}
	return questions
}

func ToPublicQuestions(questions []Question) []PublicQuestion {
	public := make([]PublicQuestion, 0, len(questions))
	for _, question := range questions {
		public = append(public, question.PublicQuestion)
	}
	return public
}

// MakeQuestionID derives a stable id from the prompt and the set of option
// texts. Option order does not affect the id.
func MakeQuestionID(question Question) string {
	texts := make([]string, 0, len(question.Options))
	for _, option := range question.Options {
		texts = append(texts, option.Text)
	}
	sort.Strings(texts)

	var keyBuilder strings.Builder
	keyBuilder.WriteString(question.Question)
	for _, text := range texts {
		keyBuilder.WriteString("|")
		keyBuilder.WriteString(text)
	}

	hash := sha1.Sum([]byte(keyBuilder.String()))
	return "q_" + hex.EncodeToString(hash[:])
}

// NormalizeLetter upper-cases a single option letter, returning "" for
// anything that is not one.
func NormalizeLetter(answer string) string {
	letter := strings.ToUpper(strings.TrimSpace(answer))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return ""
	}
	return letter
}

func buildQuestion(raw questionfeed.RawQuestion) Question {
	correctText := html.UnescapeString(raw.CorrectAnswer)
	texts := make([]string, 0, len(raw.IncorrectAnswers)+1)
	for _, incorrect := range raw.IncorrectAnswers {
		texts = append(texts, html.UnescapeString(incorrect))
	}
	texts = append(texts, correctText)

	question := Question{
		PublicQuestion: PublicQuestion{
			Question: html.UnescapeString(raw.Question),
			Category: html.UnescapeString(raw.Category),
		},
	}
	for _, text := range texts {
		question.Options = append(question.Options, Option{Text: text})
	}
	question.QuestionID = MakeQuestionID(question)

	shuffle := rand.New(rand.NewSource(seedFromID(question.QuestionID)))
	shuffle.Shuffle(len(texts), func(i, j int) {
		texts[i], texts[j] = texts[j], texts[i]
	})

	for idx, text := range texts {
		letter := string(rune('A' + idx))
		question.Options[idx] = Option{Letter: letter, Text: text}
		if text == correctText && question.CorrectAnswer == "" {
			question.CorrectAnswer = letter
		}
	}
	return question
}

func seedFromID(questionID string) int64 {
	sum := sha1.Sum([]byte(questionID))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
