// Command quiz-admin seeds the question bank and mints development tokens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"wastequiz/internal/auth"
	"wastequiz/internal/config"
	"wastequiz/internal/questionfeed"
	"wastequiz/internal/quiz"
	"wastequiz/internal/quiz/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, cfg config.Config) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("missing command")
	}

	switch args[0] {
	case "seed":
		return runSeed(ctx, args[1:], out, cfg)
	case "token":
		return runToken(args[1:], out, cfg)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runSeed(ctx context.Context, args []string, out io.Writer, cfg config.Config) error {
	flags := flag.NewFlagSet("seed", flag.ContinueOnError)
	flags.SetOutput(out)
	dbPath := flags.String("db", cfg.DBPath, "SQLite database path")
	file := flags.String("file", "", "load questions from a local JSON file instead of the feed")
	feedURL := flags.String("feed", cfg.QuestionFeedURL, "question feed URL")
	amount := flags.Int("amount", 50, "number of questions to fetch from the feed")
	category := flags.String("category", "", "feed category id")
	timeout := flags.Duration("timeout", 15*time.Second, "feed HTTP timeout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var (
		raw    []questionfeed.RawQuestion
		source string
		err    error
	)
	if *file != "" {
		raw, err = questionfeed.LoadFile(*file)
		source = "file:" + *file
	} else {
		client := questionfeed.NewClient(*feedURL, &http.Client{Timeout: *timeout})
		raw, err = client.FetchQuestions(ctx, *amount, *category)
		source = "feed"
	}
	if err != nil {
		return err
	}

	store, err := sqlite.NewSQLiteStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	imported, err := store.ImportQuestions(ctx, quiz.BuildQuestions(raw, source))
	if err != nil {
		return err
	}
	total, err := store.CountQuestions(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "imported %d questions (%d in bank)\n", imported, total)
	return nil
}

func runToken(args []string, out io.Writer, cfg config.Config) error {
	flags := flag.NewFlagSet("token", flag.ContinueOnError)
	flags.SetOutput(out)
	subject := flags.String("sub", "", "owner id (required)")
	name := flags.String("name", "", "owner display name")
	ttl := flags.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}

	token, err := auth.Mint(cfg.JWTSecret, quiz.Owner{ID: *subject, Name: *name}, *ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage: quiz-admin <command> [flags]")
	fmt.Fprintln(out, "  seed   [-db path] [-file questions.json | -feed url -amount n -category id]")
	fmt.Fprintln(out, "  token  -sub owner_id [-name display_name] [-ttl 12h]")
}
