package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonStatus defines the server-side status of a trainee's lesson.
type LessonStatus string

const (
	LessonStatusNotStarted LessonStatus = "NOT_STARTED"
	LessonStatusInProgress LessonStatus = "IN_PROGRESS"
	LessonStatusPaused     LessonStatus = "PAUSED"
	LessonStatusCompleted  LessonStatus = "COMPLETED"
)

// Valid reports whether s is one of the known statuses.
func (s LessonStatus) Valid() bool {
	switch s {
	case LessonStatusNotStarted, LessonStatusInProgress, LessonStatusPaused, LessonStatusCompleted:
		return true
	}
	return false
}

// Lesson is the timed unit of a training plan.
type Lesson struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	EstimatedSeconds int       `json:"estimated_seconds"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// LessonKey identifies one timer instance. TrainingPlanID is optional.
type LessonKey struct {
	LessonID       uuid.UUID     `json:"lesson_id"`
	UserID         uuid.UUID     `json:"user_id"`
	TrainingPlanID uuid.NullUUID `json:"training_plan_id"`
}

// String renders the key for logs.
func (k LessonKey) String() string {
	s := k.LessonID.String() + "/" + k.UserID.String()
	if k.TrainingPlanID.Valid {
		s += "/" + k.TrainingPlanID.UUID.String()
	}
	return s
}

// LessonProgress is the persisted, server-authoritative record behind a timer.
type LessonProgress struct {
	ID           uuid.UUID    `json:"id"`
	Key          LessonKey    `json:"key"`
	Status       LessonStatus `json:"status"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	PausedAt     *time.Time   `json:"paused_at,omitempty"`
	PausedMillis int64        `json:"paused_ms"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	IsApproved   *bool        `json:"is_approved,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TimerState is the wire shape of GET /lessons/{id}/timer-state.
type TimerState struct {
	Status           LessonStatus `json:"status"`
	EstimatedSeconds int          `json:"estimated_seconds"`
	RemainingSeconds int          `json:"remaining_seconds"`
	ElapsedSeconds   int          `json:"elapsed_seconds"`
	IsPaused         bool         `json:"is_paused"`
	IsDelayed        bool         `json:"is_delayed"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
}

// FinishLessonRequest is the body of POST /lessons/{id}/finish.
type FinishLessonRequest struct {
	IsApproved bool `json:"is_approved"`
}
