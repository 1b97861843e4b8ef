package httpapi

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"wastequiz/internal/auth"
	"wastequiz/internal/quiz"
)

// QuizService is the session engine as seen by the transport.
type QuizService interface {
	Start(ctx context.Context, owner quiz.Owner) (quiz.StartedSession, error)
	Resume(ctx context.Context, sessionID string, owner quiz.Owner) (quiz.ResumeState, error)
	RecordAnswer(ctx context.Context, sessionID string, owner quiz.Owner, questionID, answer string) error
	SetMark(ctx context.Context, sessionID string, owner quiz.Owner, questionID string, isMarked bool) error
	Submit(ctx context.Context, sessionID string, owner quiz.Owner) (quiz.Result, error)
	Stats(ctx context.Context, owner quiz.Owner) (quiz.Stats, error)
	History(ctx context.Context, owner quiz.Owner, page, limit int) (quiz.HistoryPage, error)
	Review(ctx context.Context, sessionID string, owner quiz.Owner) (quiz.Review, error)
	Certificate(ctx context.Context, sessionID string, owner quiz.Owner) (quiz.Certificate, error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
	Revoke(ctx context.Context, claims *auth.Claims) error
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RequestObserver is notified around every request the router serves.
type RequestObserver interface {
	RequestStarted()
	RequestFinished(method string, status int, elapsed time.Duration)
}

type API struct {
	service  QuizService
	verifier TokenVerifier
	health   HealthChecker
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewAPI(service QuizService, verifier TokenVerifier, health HealthChecker, log logrus.FieldLogger) *API {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &API{
		service:  service,
		verifier: verifier,
		health:   health,
		validate: newValidator(),
		log:      log,
	}
}

// newValidator reports json field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, owner quiz.Owner)

// requireOwner resolves the caller from the bearer token. The owner is never
// read from the request body.
func (a *API) requireOwner(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.verifier == nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "authentication unavailable"})
			return
		}

		token, err := auth.BearerToken(r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		claims, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		next(w, r.WithContext(auth.WithClaims(r.Context(), claims)), claims.Owner())
	}
}
