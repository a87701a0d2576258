// Package gateway fans lesson events out from JetStream to websocket
// clients, so that a trainee's open views resync when another device acts.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Rooms     RoomsConfig
	JetStream JetStreamConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		Rooms:     DefaultRoomsConfig(),
		JetStream: DefaultJetStreamConsumerConfig(),
	}
}

// Service serves /ws/lesson and feeds it from the JetStream consumer.
type Service struct {
	rooms    *Rooms
	consumer *EventConsumer
}

func NewService(config Config) (*Service, error) {
	rooms := NewRooms(config.Rooms)

	consumer, err := NewEventConsumer(rooms, config.JetStream)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}
	return &Service{rooms: rooms, consumer: consumer}, nil
}

// Start consumes events until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting lesson gateway service")
	err := s.consumer.Start(ctx)
	if stopErr := s.consumer.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	registerRoutes(mux, s.rooms)
}

func (s *Service) Stats() RoomStats {
	return s.rooms.Stats()
}

func registerRoutes(mux *http.ServeMux, rooms *Rooms) {
	mux.HandleFunc("/ws/lesson", lessonSocketHandler(rooms))
	mux.HandleFunc("/ws/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rooms.Stats()); err != nil {
			log.Error().Err(err).Msg("failed to encode room stats")
		}
	})
}

// lessonSocketHandler upgrades /ws/lesson?lesson_id=&user_id= into rooms.
func lessonSocketHandler(rooms *Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessonID, err := uuid.Parse(r.URL.Query().Get("lesson_id"))
		if err != nil {
			http.Error(w, "valid lesson_id is required", http.StatusBadRequest)
			return
		}
		userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
		if err != nil {
			http.Error(w, "valid user_id is required", http.StatusBadRequest)
			return
		}

		// the upgrader has already replied when Join fails
		if err := rooms.Join(w, r, Room{LessonID: lessonID, UserID: userID}); err != nil {
			log.Error().Err(err).Str("lesson_id", lessonID.String()).Msg("failed to join lesson room")
		}
	}
}
