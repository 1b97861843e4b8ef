package httpapi

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Service  QuizService
	Verifier TokenVerifier
	Health   HealthChecker
	Metrics  http.Handler
	Observer RequestObserver
	Logger   logrus.FieldLogger
}

func NewRouter(cfg RouterConfig) http.Handler {
	api := NewAPI(cfg.Service, cfg.Verifier, cfg.Health, cfg.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", api.HandleHealth)
	mux.HandleFunc("/auth/logout", api.HandleLogout)
	mux.HandleFunc("/quiz/sessions", api.requireOwner(api.HandleStart))
	mux.HandleFunc("/quiz/sessions/{session_id}", api.requireOwner(api.HandleResume))
	mux.HandleFunc("/quiz/sessions/{session_id}/answers", api.requireOwner(api.HandleAnswer))
	mux.HandleFunc("/quiz/sessions/{session_id}/marks", api.requireOwner(api.HandleMark))
	mux.HandleFunc("/quiz/sessions/{session_id}/submit", api.requireOwner(api.HandleSubmit))
	mux.HandleFunc("/quiz/sessions/{session_id}/review", api.requireOwner(api.HandleReview))
	mux.HandleFunc("/quiz/sessions/{session_id}/certificate", api.requireOwner(api.HandleCertificate))
	mux.HandleFunc("/quiz/stats", api.requireOwner(api.HandleStats))
	mux.HandleFunc("/quiz/history", api.requireOwner(api.HandleHistory))
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	return withRequestLogging(mux, api.log, cfg.Observer)
}
