package challenges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/academy/go/internal/challenges/evaluation"
	"github.com/mcdev12/academy/go/internal/events"
	"github.com/mcdev12/academy/go/internal/models"
)

// ChallengeRepository defines what the challenges app layer needs from storage
type ChallengeRepository interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*models.ChallengeDefinition, error)
	// LatestSubmission returns nil, nil when the trainee has no submission yet.
	LatestSubmission(ctx context.Context, key SubmissionKey) (*models.ChallengeSubmission, error)
	ListSubmissions(ctx context.Context, key SubmissionKey) ([]models.ChallengeSubmission, error)
	CreateSubmission(ctx context.Context, s NewSubmission) error
}

// App evaluates and records challenge submissions
type App struct {
	repo  ChallengeRepository
	clock clockwork.Clock
}

func NewApp(repo ChallengeRepository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:  repo,
		clock: clock,
	}
}

func (a *App) GetDefinition(ctx context.Context, id uuid.UUID) (*models.ChallengeDefinition, error) {
	def, err := a.repo.GetDefinition(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge definition: %w", err)
	}
	return def, nil
}

func (a *App) ListSubmissions(ctx context.Context, key SubmissionKey) ([]models.ChallengeSubmission, error) {
	submissions, err := a.repo.ListSubmissions(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenge submissions: %w", err)
	}
	return submissions, nil
}

// SubmitSummary evaluates req canonically and persists it.
//
// Incomplete attempts are refused with evaluation.ErrIncompleteAttempt. A
// misconfigured AUTO challenge is stored as awaiting review, never approved.
func (a *App) SubmitSummary(ctx context.Context, req models.SubmitSummaryRequest) (*SubmissionResult, error) {
	attempt := req.Attempt()
	if err := evaluation.ValidateAttempt(attempt); err != nil {
		if errors.Is(err, evaluation.ErrIncompleteAttempt) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	def, err := a.repo.GetDefinition(ctx, req.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge definition: %w", err)
	}

	key := SubmissionKey{ChallengeID: req.ChallengeID, UserID: req.UserID, TrainingPlanID: req.PlanID()}
	previous, err := a.repo.LatestSubmission(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest submission: %w", err)
	}
	if err := checkRetry(*def, previous); err != nil {
		return nil, err
	}

	result := &SubmissionResult{}
	res, err := evaluation.Evaluate(*def, attempt)
	switch {
	case errors.Is(err, evaluation.ErrNoKpiEnabled):
		log.Warn().
			Str("challenge_id", def.ID.String()).
			Msg("challenge has no KPI enabled, submission left for review")
		result.Warning = err.Error()
	case err != nil:
		return nil, err
	}
	result.Verdict = res.Verdict
	result.Evaluation = res

	now := a.clock.Now().UTC()
	submission := models.ChallengeSubmission{
		ID:                 uuid.New(),
		ChallengeID:        def.ID,
		UserID:             req.UserID,
		TrainingPlanID:     req.PlanID(),
		TotalOperations:    req.TotalOperations,
		TotalTimeMinutes:   req.TotalTimeMinutes,
		ErrorsCount:        req.ErrorsCount,
		ErrorTally:         submittedTally(req),
		ErrorDetails:       req.ErrorDetails,
		OperationReference: req.OperationReference,
		CalculatedMpu:      res.CalculatedMpu,
		SubmittedAt:        now,
	}
	if submission.ErrorDetails == nil {
		submission.ErrorDetails = []models.ErrorDetail{}
	}
	if res.HasVerdict() {
		approved := res.IsApproved
		submission.IsApproved = &approved
	}

	event, err := submittedEvent(*def, submission, res.Verdict, now)
	if err != nil {
		return nil, err
	}

	if err := a.repo.CreateSubmission(ctx, NewSubmission{Submission: submission, Event: event}); err != nil {
		return nil, fmt.Errorf("failed to create challenge submission: %w", err)
	}

	log.Info().
		Str("challenge_id", def.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("verdict", string(res.Verdict)).
		Float64("calculated_mpu", res.CalculatedMpu).
		Msg("challenge submitted")

	result.ChallengeSubmission = submission
	return result, nil
}

// checkRetry applies the retry policy against the trainee's latest
// submission. A submission awaiting review counts as an attempt.
func checkRetry(def models.ChallengeDefinition, previous *models.ChallengeSubmission) error {
	if previous == nil {
		return nil
	}
	if previous.IsApproved != nil && *previous.IsApproved {
		return ErrAlreadyApproved
	}
	if !def.AllowRetry {
		return ErrRetryNotAllowed
	}
	return nil
}

// submittedTally prefers counting the error records themselves; the
// submitted counters are kept when no records were sent.
func submittedTally(req models.SubmitSummaryRequest) models.ErrorTally {
	if len(req.ErrorDetails) > 0 {
		return evaluation.TallyErrors(req.ErrorDetails)
	}
	return models.ErrorTally{
		Methodology: req.ErrorMethodology,
		Knowledge:   req.ErrorKnowledge,
		Detail:      req.ErrorDetail,
		Procedure:   req.ErrorProcedure,
	}
}

func submittedEvent(def models.ChallengeDefinition, s models.ChallengeSubmission, verdict evaluation.Verdict, now time.Time) (events.Event, error) {
	key := models.LessonKey{
		LessonID:       def.LessonID,
		UserID:         s.UserID,
		TrainingPlanID: s.TrainingPlanID,
	}
	return events.NewEvent(events.EventTypeChallengeSubmitted, key, events.ChallengeSubmittedPayload{
		SubmissionID:  s.ID.String(),
		ChallengeID:   s.ChallengeID.String(),
		Verdict:       string(verdict),
		CalculatedMpu: s.CalculatedMpu,
		IsApproved:    s.IsApproved,
	}, now)
}
