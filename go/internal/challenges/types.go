package challenges

import (
	"errors"

	"github.com/google/uuid"

	"github.com/mcdev12/academy/go/internal/challenges/evaluation"
	"github.com/mcdev12/academy/go/internal/events"
	"github.com/mcdev12/academy/go/internal/models"
)

var (
	// ErrNotFound means the challenge definition does not exist.
	ErrNotFound = errors.New("challenge not found")

	// ErrAlreadyApproved means the trainee already passed this challenge.
	ErrAlreadyApproved = errors.New("challenge already approved")

	// ErrRetryNotAllowed means the challenge was attempted before and does
	// not allow another attempt.
	ErrRetryNotAllowed = errors.New("challenge does not allow retries")

	// ErrInvalidSubmission means the submitted counters are unusable.
	ErrInvalidSubmission = errors.New("invalid challenge submission")
)

// SubmissionKey identifies one trainee's attempts at a challenge.
type SubmissionKey struct {
	ChallengeID    uuid.UUID
	UserID         uuid.UUID
	TrainingPlanID uuid.NullUUID
}

// SubmissionResult is the persisted submission with the evaluation behind it.
type SubmissionResult struct {
	models.ChallengeSubmission
	Verdict    evaluation.Verdict `json:"verdict"`
	Evaluation evaluation.Result  `json:"evaluation"`
	Warning    string             `json:"warning,omitempty"`
}

// NewSubmission is a submission and the event announcing it, written together.
type NewSubmission struct {
	Submission models.ChallengeSubmission
	Event      events.Event
}
