package main

import (
	"database/sql"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/academy/go/internal/challenges"
	"github.com/mcdev12/academy/go/internal/lessons"
)

type Services struct {
	Lessons    *lessons.Service
	Challenges *challenges.Service
}

func setupServices(database *sql.DB, clock clockwork.Clock) *Services {
	// Database layer → Repository layer → App layer → Service layer

	// Lessons
	lessonRepo := lessons.NewRepository(database)
	lessonApp := lessons.NewApp(lessonRepo, clock)
	lessonService := lessons.NewService(lessonApp)

	// Challenges
	challengeRepo := challenges.NewRepository(database)
	challengeApp := challenges.NewApp(challengeRepo, clock)
	challengeService := challenges.NewService(challengeApp)

	return &Services{
		Lessons:    lessonService,
		Challenges: challengeService,
	}
}
