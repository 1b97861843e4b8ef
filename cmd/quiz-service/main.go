package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"wastequiz/internal/auth"
	"wastequiz/internal/certificate"
	"wastequiz/internal/config"
	"wastequiz/internal/event"
	"wastequiz/internal/httpapi"
	"wastequiz/internal/logging"
	"wastequiz/internal/metrics"
	"wastequiz/internal/quiz"
	"wastequiz/internal/quiz/sqlite"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("quiz-service", "info").WithError(err).Fatal("load config")
	}

	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	log := logging.New("quiz-service", cfg.LogLevel)

	quizConfig, err := cfg.Quiz()
	if err != nil {
		log.WithError(err).Fatal("invalid quiz config")
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		log.WithError(err).Fatal("invalid auth config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.NewSQLiteStore(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer store.Close()

	if count, err := store.CountQuestions(ctx); err != nil {
		log.WithError(err).Fatal("count questions")
	} else if count < quizConfig.TotalQuestions {
		log.WithFields(logrus.Fields{
			"questions": count,
			"required":  quizConfig.TotalQuestions,
		}).Warn("question bank is too small to start sessions; run quiz-admin seed")
	}

	renderer, err := certificate.NewRenderer(cfg.CertificateIssuer)
	if err != nil {
		log.WithError(err).Fatal("load certificate renderer")
	}

	var denylist auth.Denylist
	if cfg.RedisURL != "" {
		redisDenylist, err := auth.NewRedisDenylist(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("connect redis")
		}
		defer redisDenylist.Close()
		denylist = redisDenylist
	} else {
		log.Warn("REDIS_URL is empty, revoked tokens are kept in memory")
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret, denylist)
	if err != nil {
		log.WithError(err).Fatal("create token verifier")
	}

	publisher, err := event.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	if err != nil {
		log.WithError(err).Fatal("connect event broker")
	}
	defer publisher.Close()

	recorder := metrics.New("quiz")

	service, err := quiz.NewService(quizConfig, store, store, renderer,
		quiz.WithLogger(log),
		quiz.WithEvents(publisher),
		quiz.WithRecorder(recorder),
	)
	if err != nil {
		log.WithError(err).Fatal("create quiz service")
	}

	server := &http.Server{
		Addr: *addr,
		Handler: httpapi.NewRouter(httpapi.RouterConfig{
			Service:  service,
			Verifier: verifier,
			Health:   store,
			Metrics:  recorder.Handler(),
			Observer: recorder,
			Logger:   log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}()

	log.WithField("addr", *addr).Info("quiz-service listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server failed")
	}
	log.Info("quiz-service stopped")
}
