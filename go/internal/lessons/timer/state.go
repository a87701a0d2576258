package timer

import (
	"time"

	"github.com/mcdev12/academy/go/internal/models"
)

// State is a local copy of the authoritative timer state.
type State struct {
	Phase            Phase
	EstimatedSeconds int
	RemainingSeconds int
	ElapsedSeconds   int
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// StateFromWire converts a timer-state response. When the response carries
// no estimate it is derived from elapsed + remaining.
func StateFromWire(ts models.TimerState) (State, error) {
	phase, err := PhaseOf(ts.Status, ts.IsPaused)
	if err != nil {
		return State{}, err
	}

	elapsed := ts.ElapsedSeconds
	if elapsed < 0 {
		elapsed = 0
	}
	estimated := ts.EstimatedSeconds
	if estimated == 0 {
		estimated = elapsed + ts.RemainingSeconds
	}

	return State{
		Phase:            phase,
		EstimatedSeconds: estimated,
		RemainingSeconds: estimated - elapsed,
		ElapsedSeconds:   elapsed,
		StartedAt:        ts.StartedAt,
		CompletedAt:      ts.CompletedAt,
	}, nil
}

func (s State) IsRunning() bool { return s.Phase == PhaseRunning }

func (s State) IsPaused() bool { return s.Phase == PhasePaused }

func (s State) IsCompleted() bool { return s.Phase == PhaseCompleted }

// IsDelayed is true once the lesson has run past its estimate.
func (s State) IsDelayed() bool { return s.RemainingSeconds < 0 }

// Tick advances a running timer by one second. Any other phase is returned
// unchanged.
func (s State) Tick() State {
	if s.Phase != PhaseRunning {
		return s
	}
	s.RemainingSeconds--
	s.ElapsedSeconds++
	return s
}

// Wire renders the state in the server's shape.
func (s State) Wire() models.TimerState {
	return models.TimerState{
		Status:           s.Phase.Status(),
		EstimatedSeconds: s.EstimatedSeconds,
		RemainingSeconds: s.RemainingSeconds,
		ElapsedSeconds:   s.ElapsedSeconds,
		IsPaused:         s.IsPaused(),
		IsDelayed:        s.IsDelayed(),
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
	}
}
