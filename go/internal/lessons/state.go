package lessons

import (
	"time"

	"github.com/mcdev12/academy/go/internal/models"
)

// ElapsedSeconds is the active time on a lesson at now. Time spent paused is
// excluded; a completed or paused lesson stops accruing.
func ElapsedSeconds(p models.LessonProgress, now time.Time) int {
	if p.StartedAt == nil {
		return 0
	}

	end := now
	switch {
	case p.CompletedAt != nil:
		end = *p.CompletedAt
	case p.PausedAt != nil:
		end = *p.PausedAt
	}

	active := end.Sub(*p.StartedAt) - time.Duration(p.PausedMillis)*time.Millisecond
	if active < 0 {
		return 0
	}
	return int(active / time.Second)
}

// TimerState renders the authoritative timer for a lesson and its progress.
func TimerState(lesson models.Lesson, p models.LessonProgress, now time.Time) models.TimerState {
	elapsed := ElapsedSeconds(p, now)
	remaining := lesson.EstimatedSeconds - elapsed

	return models.TimerState{
		Status:           p.Status,
		EstimatedSeconds: lesson.EstimatedSeconds,
		RemainingSeconds: remaining,
		ElapsedSeconds:   elapsed,
		IsPaused:         p.Status == models.LessonStatusPaused,
		IsDelayed:        remaining < 0,
		StartedAt:        p.StartedAt,
		CompletedAt:      p.CompletedAt,
	}
}

// pausedFor returns the milliseconds between pausedAt and now, never negative.
func pausedFor(pausedAt *time.Time, now time.Time) int64 {
	if pausedAt == nil {
		return 0
	}
	d := now.Sub(*pausedAt).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}
