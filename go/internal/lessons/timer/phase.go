package timer

import (
	"fmt"

	"github.com/mcdev12/academy/go/internal/models"
)

// Phase is the single source of truth for where a timer is in its lifecycle.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseRunning
	PhasePaused
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseCompleted:
		return "completed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// PhaseOf folds the server's status and is_paused flag into a Phase.
// COMPLETED wins over a stale is_paused; PAUSED and IN_PROGRESS with
// is_paused both mean paused.
func PhaseOf(status models.LessonStatus, isPaused bool) (Phase, error) {
	switch status {
	case models.LessonStatusCompleted:
		return PhaseCompleted, nil
	case models.LessonStatusPaused:
		return PhasePaused, nil
	case models.LessonStatusInProgress:
		if isPaused {
			return PhasePaused, nil
		}
		return PhaseRunning, nil
	case models.LessonStatusNotStarted:
		return PhaseNotStarted, nil
	}
	return PhaseNotStarted, fmt.Errorf("unknown lesson status %q", status)
}

// Status maps the phase back to the server vocabulary.
func (p Phase) Status() models.LessonStatus {
	switch p {
	case PhaseRunning:
		return models.LessonStatusInProgress
	case PhasePaused:
		return models.LessonStatusPaused
	case PhaseCompleted:
		return models.LessonStatusCompleted
	}
	return models.LessonStatusNotStarted
}
