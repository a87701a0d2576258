package lessons

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/academy/go/internal/events"
	"github.com/mcdev12/academy/go/internal/models"
)

// LessonRepository defines what the lessons app layer needs from storage
type LessonRepository interface {
	GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	// GetProgress returns nil, nil when the trainee has never started the lesson.
	GetProgress(ctx context.Context, key models.LessonKey) (*models.LessonProgress, error)
	SaveProgress(ctx context.Context, change ProgressChange) error
}

// App handles the authoritative lesson timer
type App struct {
	repo  LessonRepository
	clock clockwork.Clock
}

func NewApp(repo LessonRepository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:  repo,
		clock: clock,
	}
}

// GetTimerState returns the timer for key as of now
func (a *App) GetTimerState(ctx context.Context, key models.LessonKey) (*models.TimerState, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	lesson, progress, err := a.load(ctx, key)
	if err != nil {
		return nil, err
	}

	state := TimerState(*lesson, *progress, a.clock.Now())
	return &state, nil
}

func (a *App) Start(ctx context.Context, key models.LessonKey) (*models.TimerState, error) {
	return a.transition(ctx, key, ActionStart, false)
}

func (a *App) Pause(ctx context.Context, key models.LessonKey) (*models.TimerState, error) {
	return a.transition(ctx, key, ActionPause, false)
}

func (a *App) Resume(ctx context.Context, key models.LessonKey) (*models.TimerState, error) {
	return a.transition(ctx, key, ActionResume, false)
}

func (a *App) Finish(ctx context.Context, key models.LessonKey, isApproved bool) (*models.TimerState, error) {
	return a.transition(ctx, key, ActionFinish, isApproved)
}

func (a *App) load(ctx context.Context, key models.LessonKey) (*models.Lesson, *models.LessonProgress, error) {
	lesson, err := a.repo.GetLesson(ctx, key.LessonID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	progress, err := a.repo.GetProgress(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}
	if progress == nil {
		progress = &models.LessonProgress{
			Key:    key,
			Status: models.LessonStatusNotStarted,
		}
	}
	return lesson, progress, nil
}

func (a *App) transition(ctx context.Context, key models.LessonKey, action Action, isApproved bool) (*models.TimerState, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	lesson, progress, err := a.load(ctx, key)
	if err != nil {
		return nil, err
	}

	current := progress.Status
	next := targetStatus(action)
	if err := validateTransition(action, current); err != nil {
		return nil, fmt.Errorf("%w: cannot %s a lesson that is %s", ErrInvalidTransition, action, current)
	}

	now := a.clock.Now().UTC()
	updated := *progress
	insert := updated.ID == uuid.Nil
	if insert {
		updated.ID = uuid.New()
		updated.CreatedAt = now
	}
	updated.UpdatedAt = now
	updated.Status = next

	var payload interface{}
	var eventType events.EventType

	switch action {
	case ActionStart:
		updated.StartedAt = &now
		eventType = events.EventTypeLessonStarted
		payload = events.LessonStartedPayload{StartedAt: now, EstimatedSeconds: lesson.EstimatedSeconds}

	case ActionPause:
		updated.PausedAt = &now
		eventType = events.EventTypeLessonPaused
		payload = events.LessonPausedPayload{PausedAt: now, ElapsedSeconds: ElapsedSeconds(updated, now)}

	case ActionResume:
		updated.PausedMillis += pausedFor(updated.PausedAt, now)
		updated.PausedAt = nil
		eventType = events.EventTypeLessonResumed
		payload = events.LessonResumedPayload{ResumedAt: now, PausedSeconds: int(updated.PausedMillis / 1000)}

	case ActionFinish:
		// an open pause does not count as lesson time
		updated.PausedMillis += pausedFor(updated.PausedAt, now)
		updated.PausedAt = nil
		updated.CompletedAt = &now
		approved := isApproved
		updated.IsApproved = &approved

		elapsed := ElapsedSeconds(updated, now)
		eventType = events.EventTypeLessonCompleted
		payload = events.LessonCompletedPayload{
			CompletedAt:    now,
			ElapsedSeconds: elapsed,
			IsDelayed:      elapsed > lesson.EstimatedSeconds,
			IsApproved:     isApproved,
		}
	}

	event, err := events.NewEvent(eventType, key, payload, now)
	if err != nil {
		return nil, err
	}

	if err := a.repo.SaveProgress(ctx, ProgressChange{
		Progress: updated,
		Previous: current,
		Insert:   insert,
		Event:    event,
	}); err != nil {
		return nil, fmt.Errorf("failed to save lesson progress: %w", err)
	}

	log.Info().
		Str("lesson_id", key.LessonID.String()).
		Str("user_id", key.UserID.String()).
		Str("from", string(current)).
		Str("to", string(next)).
		Msg("lesson transition")

	state := TimerState(*lesson, updated, now)
	return &state, nil
}

func validateKey(key models.LessonKey) error {
	if key.LessonID == uuid.Nil {
		return fmt.Errorf("%w: lesson_id is required", ErrInvalidKey)
	}
	if key.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", ErrInvalidKey)
	}
	if key.TrainingPlanID.Valid && key.TrainingPlanID.UUID == uuid.Nil {
		return fmt.Errorf("%w: training_plan_id is malformed", ErrInvalidKey)
	}
	return nil
}

func targetStatus(action Action) models.LessonStatus {
	switch action {
	case ActionStart, ActionResume:
		return models.LessonStatusInProgress
	case ActionPause:
		return models.LessonStatusPaused
	case ActionFinish:
		return models.LessonStatusCompleted
	}
	return ""
}

// validateTransition checks action against the status it is applied to.
// COMPLETED accepts nothing.
func validateTransition(action Action, currentStatus models.LessonStatus) error {
	allowedFrom := map[Action][]models.LessonStatus{
		ActionStart:  {models.LessonStatusNotStarted},
		ActionPause:  {models.LessonStatusInProgress},
		ActionResume: {models.LessonStatusPaused},
		ActionFinish: {models.LessonStatusInProgress, models.LessonStatusPaused},
	}

	allowed, exists := allowedFrom[action]
	if !exists {
		return fmt.Errorf("unknown action: %s", action)
	}

	for _, status := range allowed {
		if currentStatus == status {
			return nil
		}
	}

	return fmt.Errorf("transition from %s to %s is not allowed", currentStatus, targetStatus(action))
}
