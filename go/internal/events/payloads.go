package events

import (
	"time"
)

// Event payload types shared between the training API, the gateway and clients

// LessonStartedPayload is the payload for a LessonStarted event
type LessonStartedPayload struct {
	StartedAt        time.Time `json:"started_at"`
	EstimatedSeconds int       `json:"estimated_seconds"`
}

// LessonPausedPayload is the payload for a LessonPaused event
type LessonPausedPayload struct {
	PausedAt       time.Time `json:"paused_at"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
}

// LessonResumedPayload is the payload for a LessonResumed event
type LessonResumedPayload struct {
	ResumedAt     time.Time `json:"resumed_at"`
	PausedSeconds int       `json:"paused_seconds"`
}

// LessonCompletedPayload is the payload for a LessonCompleted event
type LessonCompletedPayload struct {
	CompletedAt    time.Time `json:"completed_at"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	IsDelayed      bool      `json:"is_delayed"`
	IsApproved     bool      `json:"is_approved"`
}

// ChallengeSubmittedPayload is the payload for a ChallengeSubmitted event
type ChallengeSubmittedPayload struct {
	SubmissionID  string  `json:"submission_id"`
	ChallengeID   string  `json:"challenge_id"`
	Verdict       string  `json:"verdict"`
	CalculatedMpu float64 `json:"calculated_mpu"`
	IsApproved    *bool   `json:"is_approved"`
}
