package userclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultServer            = "http://127.0.0.1:8080"
	defaultHistoryLimit      = 10
	defaultHTTPTimeout       = 5 * time.Second
	defaultMaxInvalidAnswers = 3
)

type Config struct {
	Token             string
	ServerURL         string
	HistoryLimit      int
	MaxInvalidAnswers int
	HTTPTimeout       time.Duration
}

func Run(ctx context.Context, in io.Reader, out io.Writer, cfg Config) error {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return errors.New("token is required")
	}

	serverURL := strings.TrimSpace(cfg.ServerURL)
	if serverURL == "" {
		serverURL = defaultServer
	}

	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	maxInvalidAnswers := cfg.MaxInvalidAnswers
	if maxInvalidAnswers <= 0 {
		maxInvalidAnswers = defaultMaxInvalidAnswers
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := NewHTTPClient(serverURL, token, &http.Client{Timeout: timeout})
	reader := bufio.NewReader(in)

	fmt.Fprintf(out, "quiz-cli\nserver=%s\n\n", serverURL)
	printHelp(out)

	for {
		fmt.Fprint(out, "\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		command := strings.ToLower(args[0])

		var cmdErr error
		switch command {
		case "help":
			printHelp(out)
		case "exit":
			return nil
		case "start":
			cmdErr = runStart(ctx, reader, out, client, maxInvalidAnswers)
		case "play":
			if len(args) != 2 {
				fmt.Fprintln(out, "usage: play <session_id>")
				continue
			}
			cmdErr = runPlay(ctx, reader, out, client, args[1], maxInvalidAnswers)
		case "mark", "unmark":
			if len(args) != 3 {
				fmt.Fprintf(out, "usage: %s <session_id> <question_id>\n", command)
				continue
			}
			cmdErr = client.SetMark(ctx, args[1], args[2], command == "mark")
			if cmdErr == nil {
				fmt.Fprintf(out, "%s %sed.\n", args[2], command)
			}
		case "submit":
			if len(args) != 2 {
				fmt.Fprintln(out, "usage: submit <session_id>")
				continue
			}
			cmdErr = runSubmit(ctx, out, client, args[1])
		case "stats":
			cmdErr = runStats(ctx, out, client)
		case "history":
			page, parseErr := parsePositiveLimit(args, 1, 1)
			if parseErr != nil {
				fmt.Fprintf(out, "invalid history page: %v\n", parseErr)
				continue
			}
			limit, parseErr := parsePositiveLimit(args, 2, historyLimit)
			if parseErr != nil {
				fmt.Fprintf(out, "invalid history limit: %v\n", parseErr)
				continue
			}
			cmdErr = runHistory(ctx, out, client, page, limit)
		case "review":
			if len(args) != 2 {
				fmt.Fprintln(out, "usage: review <session_id>")
				continue
			}
			cmdErr = runReview(ctx, out, client, args[1])
		case "certificate":
			if len(args) != 3 {
				fmt.Fprintln(out, "usage: certificate <session_id> <file.pdf>")
				continue
			}
			cmdErr = runCertificate(ctx, out, client, args[1], args[2])
		case "logout":
			cmdErr = client.Logout(ctx)
			if cmdErr == nil {
				fmt.Fprintln(out, "Logged out.")
				return nil
			}
		default:
			fmt.Fprintln(out, "unknown command. type 'help' for usage.")
		}
		if cmdErr != nil {
			fmt.Fprintf(out, "error: %v\n", describeClientError(cmdErr, serverURL))
		}
	}
}

// runStart opens a session, offering to continue the open one when the
// service refuses a second.
func runStart(ctx context.Context, reader *bufio.Reader, out io.Writer, client *HTTPClient, maxInvalidAnswers int) error {
	started, err := client.StartSession(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict && apiErr.SessionID != "" {
			resume, promptErr := promptYesNo(reader, out, fmt.Sprintf("unfinished session %s exists. resume it? (yes/no): ", apiErr.SessionID))
			if promptErr != nil {
				return promptErr
			}
			if !resume {
				return nil
			}
			return runPlay(ctx, reader, out, client, apiErr.SessionID, maxInvalidAnswers)
		}
		return err
	}

	fmt.Fprintf(out, "session_id=%s\n%d questions, finish before %s\n",
		started.SessionID,
		started.TotalQuestions,
		started.FinishesAt.Local().Format(time.Kitchen),
	)
	return runPlay(ctx, reader, out, client, started.SessionID, maxInvalidAnswers)
}

func runPlay(ctx context.Context, reader *bufio.Reader, out io.Writer, client *HTTPClient, sessionID string, maxInvalidAnswers int) error {
	state, err := client.ResumeSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if state.Status == statusExpired {
		fmt.Fprintln(out, "Time is up. The session was submitted automatically.")
		if state.Result != nil {
			printResult(out, *state.Result)
		}
		return nil
	}
	if state.RemainingSeconds != nil {
		fmt.Fprintf(out, "Time remaining: %s\n", formatRemaining(*state.RemainingSeconds))
	}

	pending := unansweredAttempts(state.Attempts)
	if len(pending) == 0 {
		fmt.Fprintln(out, "All questions answered.")
	}

	for _, attempt := range pending {
		question := attempt.Question
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%d. %s\n\n", attempt.Position+1, question.Question)
		for _, option := range question.Options {
			fmt.Fprintf(out, "%s. %s\n", option.Letter, option.Text)
		}
		fmt.Fprintln(out)

		invalidCount := 0
		for {
			answer, ok := promptAnswer(reader, out, len(question.Options))
			if !ok {
				invalidCount++
				if invalidCount >= maxInvalidAnswers {
					fmt.Fprintln(out, "Skipping question after multiple invalid responses.")
					break
				}
				fmt.Fprintf(out, "Invalid input. Attempts remaining: %d\n", maxInvalidAnswers-invalidCount)
				continue
			}

			if err := client.RecordAnswer(ctx, sessionID, question.QuestionID, answer); err != nil {
				return err
			}
			break
		}
	}

	submit, err := promptYesNo(reader, out, "submit now? (yes/no): ")
	if err != nil {
		return err
	}
	if !submit {
		fmt.Fprintf(out, "Session %s saved. Use 'play %s' to continue.\n", sessionID, sessionID)
		return nil
	}
	return runSubmit(ctx, out, client, sessionID)
}

func runSubmit(ctx context.Context, out io.Writer, client *HTTPClient, sessionID string) error {
	result, err := client.Submit(ctx, sessionID)
	if err != nil {
		return err
	}
	printResult(out, result)
	return nil
}

func runStats(ctx context.Context, out io.Writer, client *HTTPClient) error {
	stats, err := client.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "attempts=%d completed=%d passed=%d in_progress=%d average=%s\n",
		stats.Attempts,
		stats.Completed,
		stats.Passed,
		stats.InProgress,
		formatScore(stats.AverageScore),
	)
	return nil
}

func runHistory(ctx context.Context, out io.Writer, client *HTTPClient, page, limit int) error {
	history, err := client.History(ctx, page, limit)
	if err != nil {
		return err
	}
	if len(history.Items) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return nil
	}

	fmt.Fprintf(out, "Sessions (page %d, %d total):\n", history.Page, history.Total)
	for idx, item := range history.Items {
		status := "in progress"
		if item.HasCompleted {
			status = "failed"
			if item.IsPass {
				status = "passed"
			}
			if item.Score != nil {
				status = fmt.Sprintf("%s score=%d", status, *item.Score)
			}
		}
		fmt.Fprintf(out, "%d. %s %s (started %s)\n",
			(history.Page-1)*history.Limit+idx+1,
			item.SessionID,
			status,
			item.CreatedAt.Format(time.RFC3339),
		)
	}
	return nil
}

func runReview(ctx context.Context, out io.Writer, client *HTTPClient, sessionID string) error {
	review, err := client.Review(ctx, sessionID)
	if err != nil {
		return err
	}

	for _, item := range review.Items {
		mark := "wrong"
		if item.IsCorrect {
			mark = "correct"
		}
		answer := "-"
		if item.UserAnswer != nil {
			answer = *item.UserAnswer
		}
		fmt.Fprintf(out, "%d. %s\n   yours=%s correct=%s (%s)\n",
			item.Position+1,
			item.Question.Question,
			answer,
			correctAnswerDisplay(item),
			mark,
		)
	}
	printResult(out, review.Result)
	return nil
}

func runCertificate(ctx context.Context, out io.Writer, client *HTTPClient, sessionID, path string) error {
	document, err := client.Certificate(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, document, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Certificate saved to %s (%d bytes).\n", path, len(document))
	return nil
}

func unansweredAttempts(attempts []attemptItem) []attemptItem {
	pending := make([]attemptItem, 0, len(attempts))
	for _, attempt := range attempts {
		if attempt.UserAnswer == nil {
			pending = append(pending, attempt)
		}
	}
	return pending
}

func printResult(out io.Writer, result sessionResult) {
	outcome := "Not passed."
	if result.IsPass {
		outcome = "Passed!"
	}
	fmt.Fprintf(out, "Score: %d/%s (%d of %d correct). %s\n",
		result.Score,
		formatScore(result.TotalScore),
		result.CorrectCount,
		result.TotalQuestions,
		outcome,
	)
	if result.CertificateRef != nil {
		fmt.Fprintf(out, "Certificate: %s\n", *result.CertificateRef)
	}
}
