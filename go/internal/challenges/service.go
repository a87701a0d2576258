// Package challenges records practice challenge submissions. Every submission
// is re-evaluated here; the verdict a client computed for live feedback is
// never trusted.
package challenges

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/academy/go/internal/challenges/evaluation"
	"github.com/mcdev12/academy/go/internal/httputil"
	"github.com/mcdev12/academy/go/internal/models"
)

var validate = validator.New()

// ChallengeApp defines what the service layer needs from the challenges application
type ChallengeApp interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*models.ChallengeDefinition, error)
	ListSubmissions(ctx context.Context, key SubmissionKey) ([]models.ChallengeSubmission, error)
	SubmitSummary(ctx context.Context, req models.SubmitSummaryRequest) (*SubmissionResult, error)
}

type Service struct {
	app ChallengeApp
}

func NewService(app ChallengeApp) *Service {
	return &Service{app: app}
}

func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/challenges/submit/summary", s.SubmitSummary).Methods(http.MethodPost)
	r.HandleFunc("/challenges/{id}", s.GetDefinition).Methods(http.MethodGet)
	r.HandleFunc("/challenges/{id}/submissions", s.ListSubmissions).Methods(http.MethodGet)
}

func (s *Service) SubmitSummary(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitSummaryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		httputil.ErrorResponse(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.app.SubmitSummary(r.Context(), req)
	if err != nil {
		writeError(w, "submit challenge summary", req.ChallengeID, err)
		return
	}

	httputil.JSONResponse(w, result, http.StatusCreated)
}

func (s *Service) GetDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		httputil.ErrorResponse(w, "invalid challenge id", http.StatusBadRequest)
		return
	}

	def, err := s.app.GetDefinition(r.Context(), id)
	if err != nil {
		writeError(w, "get challenge", id, err)
		return
	}

	httputil.JSONResponse(w, def, http.StatusOK)
}

func (s *Service) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		httputil.ErrorResponse(w, "invalid challenge id", http.StatusBadRequest)
		return
	}
	key := SubmissionKey{ChallengeID: id}

	q := r.URL.Query()
	if key.UserID, err = uuid.Parse(q.Get("user_id")); err != nil {
		httputil.ErrorResponse(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if raw := q.Get("training_plan_id"); raw != "" {
		planID, err := uuid.Parse(raw)
		if err != nil {
			httputil.ErrorResponse(w, "invalid training_plan_id", http.StatusBadRequest)
			return
		}
		key.TrainingPlanID = uuid.NullUUID{UUID: planID, Valid: true}
	}

	submissions, err := s.app.ListSubmissions(r.Context(), key)
	if err != nil {
		writeError(w, "list submissions", id, err)
		return
	}

	httputil.JSONResponse(w, submissions, http.StatusOK)
}

func writeError(w http.ResponseWriter, op string, challengeID uuid.UUID, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.ErrorResponse(w, ErrNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadyApproved), errors.Is(err, ErrRetryNotAllowed):
		httputil.ErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, evaluation.ErrIncompleteAttempt):
		httputil.ErrorResponse(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrInvalidSubmission):
		httputil.ErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().
			Err(err).
			Str("op", op).
			Str("challenge_id", challengeID.String()).
			Msg("challenge request failed")
		httputil.ErrorResponse(w, "internal error", http.StatusInternalServerError)
	}
}
