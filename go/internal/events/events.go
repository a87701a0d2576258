// Package events carries lesson and challenge domain events from the training
// API to the message bus, and defines the envelope the gateway forwards to
// websocket clients.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/academy/go/internal/models"
)

// EventType represents the type of a training event
type EventType string

const (
	EventTypeLessonStarted      EventType = "LessonStarted"
	EventTypeLessonPaused       EventType = "LessonPaused"
	EventTypeLessonResumed      EventType = "LessonResumed"
	EventTypeLessonCompleted    EventType = "LessonCompleted"
	EventTypeChallengeSubmitted EventType = "ChallengeSubmitted"
)

// Known reports whether t is one of the event types above.
func (t EventType) Known() bool {
	switch t {
	case EventTypeLessonStarted, EventTypeLessonPaused, EventTypeLessonResumed,
		EventTypeLessonCompleted, EventTypeChallengeSubmitted:
		return true
	}
	return false
}

// Event is a domain event ready to publish.
type Event struct {
	ID        uuid.UUID
	Type      EventType
	Key       models.LessonKey
	Payload   json.RawMessage
	CreatedAt time.Time
}

// NewEvent marshals payload and stamps a fresh id.
func NewEvent(eventType EventType, key models.LessonKey, payload interface{}, at time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Key:       key,
		Payload:   data,
		CreatedAt: at,
	}, nil
}

// Envelope is the wire form of an event on the bus and on the websocket.
type Envelope struct {
	EventID        string          `json:"eventId"`
	EventType      EventType       `json:"eventType"`
	LessonID       string          `json:"lessonId"`
	UserID         string          `json:"userId"`
	TrainingPlanID string          `json:"trainingPlanId,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Payload        json.RawMessage `json:"payload"`
}

// Envelope converts the event for transport.
func (e Event) Envelope() Envelope {
	env := Envelope{
		EventID:   e.ID.String(),
		EventType: e.Type,
		LessonID:  e.Key.LessonID.String(),
		UserID:    e.Key.UserID.String(),
		Timestamp: e.CreatedAt.UTC(),
		Payload:   e.Payload,
	}
	if e.Key.TrainingPlanID.Valid {
		env.TrainingPlanID = e.Key.TrainingPlanID.UUID.String()
	}
	return env
}

// Key parses the lesson key back out of an envelope.
func (e Envelope) Key() (models.LessonKey, error) {
	lessonID, err := uuid.Parse(e.LessonID)
	if err != nil {
		return models.LessonKey{}, fmt.Errorf("parse lesson ID: %w", err)
	}
	userID, err := uuid.Parse(e.UserID)
	if err != nil {
		return models.LessonKey{}, fmt.Errorf("parse user ID: %w", err)
	}
	key := models.LessonKey{LessonID: lessonID, UserID: userID}
	if e.TrainingPlanID != "" {
		planID, err := uuid.Parse(e.TrainingPlanID)
		if err != nil {
			return models.LessonKey{}, fmt.Errorf("parse training plan ID: %w", err)
		}
		key.TrainingPlanID = uuid.NullUUID{UUID: planID, Valid: true}
	}
	return key, nil
}

// Publisher is an interface that defines our publisher.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
