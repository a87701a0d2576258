package lessons

import (
	"errors"

	"github.com/mcdev12/academy/go/internal/events"
	"github.com/mcdev12/academy/go/internal/models"
)

var (
	// ErrNotFound means the lesson does not exist.
	ErrNotFound = errors.New("lesson not found")

	// ErrInvalidTransition means the requested action is not allowed from
	// the current status, or the row changed underneath the request.
	ErrInvalidTransition = errors.New("invalid lesson transition")

	// ErrInvalidKey means a required identifier is missing or malformed.
	ErrInvalidKey = errors.New("invalid lesson key")
)

// Action is a requested lesson transition.
type Action string

const (
	ActionStart  Action = "start"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionFinish Action = "finish"
)

// ProgressChange is one committed transition: the new row and the event
// announcing it, written together.
type ProgressChange struct {
	Progress models.LessonProgress
	Previous models.LessonStatus
	Insert   bool
	Event    events.Event
}
