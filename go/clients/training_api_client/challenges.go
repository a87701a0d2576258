package training_api_client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/academy/go/internal/models"
)

// NewSubmitSummaryRequest fills a submission from an attempt and its
// per-cause tally.
func NewSubmitSummaryRequest(challengeID, userID uuid.UUID, planID uuid.NullUUID, attempt models.ChallengeAttempt, tally models.ErrorTally) models.SubmitSummaryRequest {
	req := models.SubmitSummaryRequest{
		ChallengeID:      challengeID,
		UserID:           userID,
		TotalOperations:  attempt.TotalOperations,
		TotalTimeMinutes: attempt.TotalTimeMinutes,
		ErrorsCount:      attempt.OperationsWithErrors,
		ErrorMethodology: tally.Methodology,
		ErrorKnowledge:   tally.Knowledge,
		ErrorDetail:      tally.Detail,
		ErrorProcedure:   tally.Procedure,
		ErrorDetails:     attempt.ErrorDetails,
	}
	if req.ErrorDetails == nil {
		req.ErrorDetails = []models.ErrorDetail{}
	}
	if planID.Valid {
		id := planID.UUID
		req.TrainingPlanID = &id
	}
	return req
}

func (c *TrainingApiClient) SubmitChallengeSummary(ctx context.Context, req models.SubmitSummaryRequest) (*models.ChallengeSubmission, error) {
	var submission models.ChallengeSubmission
	if err := c.DoJSON(ctx, http.MethodPost, ChallengeSubmitSummaryEndpoint, nil, req, &submission); err != nil {
		return nil, fmt.Errorf("failed to submit challenge summary: %w", err)
	}
	return &submission, nil
}

func (c *TrainingApiClient) GetChallenge(ctx context.Context, id uuid.UUID) (*models.ChallengeDefinition, error) {
	var def models.ChallengeDefinition
	if err := c.DoJSON(ctx, http.MethodGet, fmt.Sprintf(ChallengeEndpoint, id), nil, nil, &def); err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return &def, nil
}
