package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"wastequiz/internal/userclient"
)

func main() {
	token := flag.String("token", os.Getenv("QUIZ_TOKEN"), "bearer token for the quiz service (or QUIZ_TOKEN)")
	server := flag.String("server", "http://127.0.0.1:8080", "quiz service base URL")
	timeout := flag.Duration("timeout", 5*time.Second, "HTTP timeout")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "error: --token is required (see quiz-admin token)")
		os.Exit(1)
	}

	err := userclient.Run(context.Background(), os.Stdin, os.Stdout, userclient.Config{
		Token:       *token,
		ServerURL:   *server,
		HTTPTimeout: *timeout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
