// Package training_api_client is the typed REST client for the training
// backend: lesson timer state and transitions, and challenge submission.
package training_api_client

import (
	"net/url"

	"github.com/mcdev12/academy/go/clients"
	"github.com/mcdev12/academy/go/internal/models"
)

type TrainingApiClient struct {
	*clients.BaseClient
}

// NewTrainingApiClient builds a client for baseURL. An empty token sends no
// Authorization header.
func NewTrainingApiClient(baseURL, token string) *TrainingApiClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &TrainingApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	if token != "" {
		client.SetHeader(AuthorizationHeader, "Bearer "+token)
	}

	return client
}

func keyQuery(key models.LessonKey) url.Values {
	q := url.Values{}
	q.Set(UserIDParam, key.UserID.String())
	if key.TrainingPlanID.Valid {
		q.Set(TrainingPlanIDParam, key.TrainingPlanID.UUID.String())
	}
	return q
}
