package lessons

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/academy/go/internal/models"
)

func TestElapsedSeconds(t *testing.T) {
	now := t0.Add(time.Hour)

	tests := []struct {
		name string
		p    models.LessonProgress
		want int
	}{
		{"not started", models.LessonProgress{}, 0},
		{"running", models.LessonProgress{StartedAt: at(0)}, 3600},
		{"running with pauses", models.LessonProgress{StartedAt: at(0), PausedMillis: 600_000}, 3000},
		{"paused", models.LessonProgress{StartedAt: at(0), PausedAt: at(10 * time.Minute), PausedMillis: 60_000}, 540},
		{"completed", models.LessonProgress{StartedAt: at(0), CompletedAt: at(20 * time.Minute)}, 1200},
		{"clock skew", models.LessonProgress{StartedAt: at(2 * time.Hour)}, 0},
		{"sub-second", models.LessonProgress{StartedAt: at(0), CompletedAt: at(1500 * time.Millisecond)}, 1},
		{"sub-second pause", models.LessonProgress{StartedAt: at(0), CompletedAt: at(3 * time.Second), PausedMillis: 1500}, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ElapsedSeconds(tt.p, now), tt.name)
	}
}

func TestTimerState_ElapsedPlusRemainingIsEstimate(t *testing.T) {
	lesson := models.Lesson{EstimatedSeconds: 300}
	p := models.LessonProgress{Status: models.LessonStatusInProgress, StartedAt: at(0), PausedMillis: 10_000}

	for _, d := range []time.Duration{0, 30 * time.Second, 5 * time.Minute, 20 * time.Minute} {
		s := TimerState(lesson, p, t0.Add(d))
		assert.Equal(t, 300, s.ElapsedSeconds+s.RemainingSeconds, "at %s", d)
		assert.Equal(t, s.RemainingSeconds < 0, s.IsDelayed)
	}
}
