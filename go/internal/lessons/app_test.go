package lessons

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/academy/go/internal/events"
	"github.com/mcdev12/academy/go/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lesson), args.Error(1)
}

func (m *MockRepository) GetProgress(ctx context.Context, key models.LessonKey) (*models.LessonProgress, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LessonProgress), args.Error(1)
}

func (m *MockRepository) SaveProgress(ctx context.Context, change ProgressChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*App, *MockRepository, *clockwork.FakeClock, models.LessonKey) {
	t.Helper()
	repo := new(MockRepository)
	clock := clockwork.NewFakeClockAt(t0)
	key := models.LessonKey{LessonID: uuid.New(), UserID: uuid.New()}
	repo.On("GetLesson", mock.Anything, key.LessonID).Return(&models.Lesson{
		ID:               key.LessonID,
		Title:            "Reconciling statements",
		EstimatedSeconds: 600,
	}, nil)
	return NewApp(repo, clock), repo, clock, key
}

func at(d time.Duration) *time.Time {
	v := t0.Add(d)
	return &v
}

func TestGetTimerState_NotStarted(t *testing.T) {
	app, repo, _, key := setup(t)
	repo.On("GetProgress", mock.Anything, key).Return(nil, nil)

	state, err := app.GetTimerState(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.LessonStatusNotStarted, state.Status)
	assert.Equal(t, 600, state.RemainingSeconds)
	assert.Equal(t, 0, state.ElapsedSeconds)
	assert.False(t, state.IsPaused)
}

func TestGetTimerState_Running(t *testing.T) {
	app, repo, clock, key := setup(t)
	repo.On("GetProgress", mock.Anything, key).Return(&models.LessonProgress{
		ID:        uuid.New(),
		Key:       key,
		Status:    models.LessonStatusInProgress,
		StartedAt: at(0),
	}, nil)

	clock.Advance(650 * time.Second)
	state, err := app.GetTimerState(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 650, state.ElapsedSeconds)
	assert.Equal(t, -50, state.RemainingSeconds)
	assert.True(t, state.IsDelayed)
	assert.Equal(t, state.EstimatedSeconds, state.ElapsedSeconds+state.RemainingSeconds)
}

func TestGetTimerState_LessonNotFound(t *testing.T) {
	repo := new(MockRepository)
	key := models.LessonKey{LessonID: uuid.New(), UserID: uuid.New()}
	repo.On("GetLesson", mock.Anything, key.LessonID).Return(nil, ErrNotFound)

	_, err := NewApp(repo, clockwork.NewFakeClock()).GetTimerState(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetTimerState_InvalidKey(t *testing.T) {
	app := NewApp(new(MockRepository), clockwork.NewFakeClock())
	_, err := app.GetTimerState(context.Background(), models.LessonKey{LessonID: uuid.New()})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestStart_InsertsProgressAndEvent(t *testing.T) {
	app, repo, _, key := setup(t)
	repo.On("GetProgress", mock.Anything, key).Return(nil, nil)

	var saved ProgressChange
	repo.On("SaveProgress", mock.Anything, mock.AnythingOfType("lessons.ProgressChange")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(ProgressChange) }).
		Return(nil)

	state, err := app.Start(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.LessonStatusInProgress, state.Status)
	assert.Equal(t, 600, state.RemainingSeconds)
	assert.Equal(t, 0, state.ElapsedSeconds)

	assert.True(t, saved.Insert)
	assert.Equal(t, models.LessonStatusNotStarted, saved.Previous)
	assert.NotEqual(t, uuid.Nil, saved.Progress.ID)
	require.NotNil(t, saved.Progress.StartedAt)
	assert.True(t, t0.Equal(*saved.Progress.StartedAt))

	assert.Equal(t, events.EventTypeLessonStarted, saved.Event.Type)
	assert.Equal(t, key, saved.Event.Key)
	var payload events.LessonStartedPayload
	require.NoError(t, json.Unmarshal(saved.Event.Payload, &payload))
	assert.Equal(t, 600, payload.EstimatedSeconds)
}

func TestPauseResume_AccumulatesPausedTime(t *testing.T) {
	app, repo, clock, key := setup(t)
	progress := &models.LessonProgress{
		ID:        uuid.New(),
		Key:       key,
		Status:    models.LessonStatusInProgress,
		StartedAt: at(0),
	}
	repo.On("GetProgress", mock.Anything, key).Return(progress, nil)

	var saved ProgressChange
	repo.On("SaveProgress", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(1).(ProgressChange)
			*progress = saved.Progress
		}).
		Return(nil)

	clock.Advance(100 * time.Second)
	state, err := app.Pause(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, state.IsPaused)
	assert.Equal(t, 100, state.ElapsedSeconds)
	assert.False(t, saved.Insert)
	assert.Equal(t, models.LessonStatusInProgress, saved.Previous)

	// paused time does not accrue
	clock.Advance(300 * time.Second)
	state, err = app.GetTimerState(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 100, state.ElapsedSeconds)
	assert.Equal(t, 500, state.RemainingSeconds)

	state, err = app.Resume(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.LessonStatusInProgress, state.Status)
	assert.Equal(t, int64(300_000), progress.PausedMillis)
	assert.Nil(t, progress.PausedAt)
	assert.Equal(t, events.EventTypeLessonResumed, saved.Event.Type)

	clock.Advance(50 * time.Second)
	state, err = app.GetTimerState(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 150, state.ElapsedSeconds)
}

func TestPauseResume_SubSecondPausesDoNotDrift(t *testing.T) {
	app, repo, clock, key := setup(t)
	progress := &models.LessonProgress{
		ID:        uuid.New(),
		Key:       key,
		Status:    models.LessonStatusInProgress,
		StartedAt: at(0),
	}
	repo.On("GetProgress", mock.Anything, key).Return(progress, nil)
	repo.On("SaveProgress", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { *progress = args.Get(1).(ProgressChange).Progress }).
		Return(nil)

	// ten cycles of 1.5s running and 1.5s paused
	for i := 0; i < 10; i++ {
		clock.Advance(1500 * time.Millisecond)
		_, err := app.Pause(context.Background(), key)
		require.NoError(t, err)
		clock.Advance(1500 * time.Millisecond)
		_, err = app.Resume(context.Background(), key)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(15_000), progress.PausedMillis)

	state, err := app.GetTimerState(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 15, state.ElapsedSeconds)
	assert.Equal(t, 585, state.RemainingSeconds)
}

func TestFinish_WhilePausedFoldsPause(t *testing.T) {
	app, repo, clock, key := setup(t)
	progress := &models.LessonProgress{
		ID:            uuid.New(),
		Key:           key,
		Status:        models.LessonStatusPaused,
		StartedAt:     at(0),
		PausedAt:      at(200 * time.Second),
		PausedMillis:  20_000,
	}
	repo.On("GetProgress", mock.Anything, key).Return(progress, nil)

	var saved ProgressChange
	repo.On("SaveProgress", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).(ProgressChange) }).
		Return(nil)

	clock.Advance(500 * time.Second)
	state, err := app.Finish(context.Background(), key, true)
	require.NoError(t, err)

	assert.Equal(t, models.LessonStatusCompleted, state.Status)
	assert.Equal(t, 180, state.ElapsedSeconds)
	assert.False(t, state.IsPaused)
	require.NotNil(t, saved.Progress.IsApproved)
	assert.True(t, *saved.Progress.IsApproved)
	assert.Nil(t, saved.Progress.PausedAt)
	assert.Equal(t, int64(320_000), saved.Progress.PausedMillis)

	var payload events.LessonCompletedPayload
	require.NoError(t, json.Unmarshal(saved.Event.Payload, &payload))
	assert.Equal(t, 180, payload.ElapsedSeconds)
	assert.False(t, payload.IsDelayed)
	assert.True(t, payload.IsApproved)
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name   string
		status models.LessonStatus
		act    func(*App, context.Context, models.LessonKey) (*models.TimerState, error)
	}{
		{"pause before start", models.LessonStatusNotStarted, (*App).Pause},
		{"resume before start", models.LessonStatusNotStarted, (*App).Resume},
		{"finish before start", models.LessonStatusNotStarted, func(a *App, ctx context.Context, k models.LessonKey) (*models.TimerState, error) {
			return a.Finish(ctx, k, true)
		}},
		{"start twice", models.LessonStatusInProgress, (*App).Start},
		{"resume while running", models.LessonStatusInProgress, (*App).Resume},
		{"pause twice", models.LessonStatusPaused, (*App).Pause},
		{"start while paused", models.LessonStatusPaused, (*App).Start},
		{"start after completion", models.LessonStatusCompleted, (*App).Start},
		{"pause after completion", models.LessonStatusCompleted, (*App).Pause},
		{"finish twice", models.LessonStatusCompleted, func(a *App, ctx context.Context, k models.LessonKey) (*models.TimerState, error) {
			return a.Finish(ctx, k, false)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, repo, _, key := setup(t)
			if tt.status == models.LessonStatusNotStarted {
				repo.On("GetProgress", mock.Anything, key).Return(nil, nil)
			} else {
				repo.On("GetProgress", mock.Anything, key).Return(&models.LessonProgress{
					ID: uuid.New(), Key: key, Status: tt.status, StartedAt: at(0),
				}, nil)
			}

			_, err := tt.act(app, context.Background(), key)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			repo.AssertNotCalled(t, "SaveProgress", mock.Anything, mock.Anything)
		})
	}
}

func TestSaveConflictSurfacesAsInvalidTransition(t *testing.T) {
	app, repo, _, key := setup(t)
	repo.On("GetProgress", mock.Anything, key).Return(nil, nil)
	repo.On("SaveProgress", mock.Anything, mock.Anything).
		Return(errors.Join(ErrInvalidTransition, errors.New("lesson was started concurrently")))

	_, err := app.Start(context.Background(), key)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
