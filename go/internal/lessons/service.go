// Package lessons is the server side lesson timer: the progress record per
// trainee, the transition rules and the HTTP endpoints clients sync against.
package lessons

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/academy/go/internal/httputil"
	"github.com/mcdev12/academy/go/internal/models"
)

// LessonApp defines what the service layer needs from the lessons application
type LessonApp interface {
	GetTimerState(ctx context.Context, key models.LessonKey) (*models.TimerState, error)
	Start(ctx context.Context, key models.LessonKey) (*models.TimerState, error)
	Pause(ctx context.Context, key models.LessonKey) (*models.TimerState, error)
	Resume(ctx context.Context, key models.LessonKey) (*models.TimerState, error)
	Finish(ctx context.Context, key models.LessonKey, isApproved bool) (*models.TimerState, error)
}

// Service serves the lesson timer endpoints
type Service struct {
	app LessonApp
}

func NewService(app LessonApp) *Service {
	return &Service{app: app}
}

func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/lessons/{id}/timer-state", s.GetTimerState).Methods(http.MethodGet)
	r.HandleFunc("/lessons/{id}/start", s.Start).Methods(http.MethodPost)
	r.HandleFunc("/lessons/{id}/pause", s.Pause).Methods(http.MethodPost)
	r.HandleFunc("/lessons/{id}/resume", s.Resume).Methods(http.MethodPost)
	r.HandleFunc("/lessons/{id}/finish", s.Finish).Methods(http.MethodPost)
}

func (s *Service) GetTimerState(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "get timer state", s.app.GetTimerState)
}

func (s *Service) Start(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "start lesson", s.app.Start)
}

func (s *Service) Pause(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "pause lesson", s.app.Pause)
}

func (s *Service) Resume(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "resume lesson", s.app.Resume)
}

func (s *Service) Finish(w http.ResponseWriter, r *http.Request) {
	var req models.FinishLessonRequest
	if err := httputil.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.handle(w, r, "finish lesson", func(ctx context.Context, key models.LessonKey) (*models.TimerState, error) {
		return s.app.Finish(ctx, key, req.IsApproved)
	})
}

func (s *Service) handle(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, models.LessonKey) (*models.TimerState, error)) {
	key, err := keyFromRequest(r)
	if err != nil {
		httputil.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := fn(r.Context(), key)
	if err != nil {
		writeError(w, op, key, err)
		return
	}

	httputil.JSONResponse(w, state, http.StatusOK)
}

func keyFromRequest(r *http.Request) (models.LessonKey, error) {
	var key models.LessonKey

	lessonID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return key, fmt.Errorf("invalid lesson id: %w", err)
	}
	key.LessonID = lessonID

	q := r.URL.Query()
	userID, err := uuid.Parse(q.Get("user_id"))
	if err != nil {
		return key, fmt.Errorf("user_id is required")
	}
	key.UserID = userID

	if raw := q.Get("training_plan_id"); raw != "" {
		planID, err := uuid.Parse(raw)
		if err != nil {
			return key, fmt.Errorf("invalid training_plan_id: %w", err)
		}
		key.TrainingPlanID = uuid.NullUUID{UUID: planID, Valid: true}
	}
	return key, nil
}

func writeError(w http.ResponseWriter, op string, key models.LessonKey, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.ErrorResponse(w, ErrNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		httputil.ErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidKey):
		httputil.ErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().
			Err(err).
			Str("op", op).
			Str("lesson_id", key.LessonID.String()).
			Str("user_id", key.UserID.String()).
			Msg("lesson request failed")
		httputil.ErrorResponse(w, "internal error", http.StatusInternalServerError)
	}
}
