package training_api_client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mcdev12/academy/go/internal/models"
)

func (c *TrainingApiClient) GetTimerState(ctx context.Context, key models.LessonKey) (*models.TimerState, error) {
	endpoint := fmt.Sprintf(LessonTimerStateEndpoint, key.LessonID)

	var state models.TimerState
	if err := c.DoJSON(ctx, http.MethodGet, endpoint, keyQuery(key), nil, &state); err != nil {
		return nil, fmt.Errorf("failed to get timer state: %w", err)
	}
	if !state.Status.Valid() {
		return nil, fmt.Errorf("failed to get timer state: unknown status %q", state.Status)
	}
	return &state, nil
}

func (c *TrainingApiClient) StartLesson(ctx context.Context, key models.LessonKey) error {
	return c.transition(ctx, LessonStartEndpoint, key, nil, "start")
}

func (c *TrainingApiClient) PauseLesson(ctx context.Context, key models.LessonKey) error {
	return c.transition(ctx, LessonPauseEndpoint, key, nil, "pause")
}

func (c *TrainingApiClient) ResumeLesson(ctx context.Context, key models.LessonKey) error {
	return c.transition(ctx, LessonResumeEndpoint, key, nil, "resume")
}

func (c *TrainingApiClient) FinishLesson(ctx context.Context, key models.LessonKey, isApproved bool) error {
	return c.transition(ctx, LessonFinishEndpoint, key, models.FinishLessonRequest{IsApproved: isApproved}, "finish")
}

func (c *TrainingApiClient) transition(ctx context.Context, format string, key models.LessonKey, body interface{}, action string) error {
	endpoint := fmt.Sprintf(format, key.LessonID)
	if err := c.DoJSON(ctx, http.MethodPost, endpoint, keyQuery(key), body, nil); err != nil {
		return fmt.Errorf("failed to %s lesson: %w", action, err)
	}
	return nil
}
