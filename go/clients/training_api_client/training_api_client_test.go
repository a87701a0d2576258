package training_api_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/academy/go/clients"
	"github.com/mcdev12/academy/go/internal/events"
	"github.com/mcdev12/academy/go/internal/models"
)

func testKey() models.LessonKey {
	return models.LessonKey{
		LessonID:       uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		UserID:         uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		TrainingPlanID: uuid.NullUUID{UUID: uuid.MustParse("33333333-3333-3333-3333-333333333333"), Valid: true},
	}
}

func TestGetTimerState(t *testing.T) {
	key := testKey()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/lessons/"+key.LessonID.String()+"/timer-state", r.URL.Path)
		assert.Equal(t, key.UserID.String(), r.URL.Query().Get(UserIDParam))
		assert.Equal(t, key.TrainingPlanID.UUID.String(), r.URL.Query().Get(TrainingPlanIDParam))
		assert.Equal(t, "Bearer secret", r.Header.Get(AuthorizationHeader))
		w.Write([]byte(`{"status":"IN_PROGRESS","estimated_seconds":600,"remaining_seconds":480,"elapsed_seconds":120,"is_paused":false,"is_delayed":false}`))
	}))
	defer srv.Close()

	c := NewTrainingApiClient(srv.URL, "secret")
	state, err := c.GetTimerState(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.LessonStatusInProgress, state.Status)
	assert.Equal(t, 480, state.RemainingSeconds)
	assert.Equal(t, 120, state.ElapsedSeconds)
}

func TestGetTimerState_UnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ARCHIVED"}`))
	}))
	defer srv.Close()

	_, err := NewTrainingApiClient(srv.URL, "").GetTimerState(context.Background(), testKey())
	assert.ErrorContains(t, err, "ARCHIVED")
}

func TestTransitions(t *testing.T) {
	key := testKey()
	var paths []string
	var finishBody models.FinishLessonRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, strings.TrimPrefix(r.URL.Path, "/lessons/"+key.LessonID.String()))
		if strings.HasSuffix(r.URL.Path, "/finish") {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&finishBody))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewTrainingApiClient(srv.URL, "")
	ctx := context.Background()
	require.NoError(t, c.StartLesson(ctx, key))
	require.NoError(t, c.PauseLesson(ctx, key))
	require.NoError(t, c.ResumeLesson(ctx, key))
	require.NoError(t, c.FinishLesson(ctx, key, true))

	assert.Equal(t, []string{"/start", "/pause", "/resume", "/finish"}, paths)
	assert.True(t, finishBody.IsApproved)
}

func TestTransition_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"detail":"lesson is already completed"}`))
	}))
	defer srv.Close()

	err := NewTrainingApiClient(srv.URL, "").StartLesson(context.Background(), testKey())
	require.Error(t, err)
	assert.Equal(t, "lesson is already completed", clients.DetailOf(err))
}

func TestSubmitChallengeSummary(t *testing.T) {
	challengeID := uuid.New()
	userID := uuid.New()
	attempt := models.ChallengeAttempt{
		TotalOperations:      12,
		TotalTimeMinutes:     30,
		OperationsWithErrors: 1,
		ErrorDetails: []models.ErrorDetail{
			{ErrorType: models.ErrorTypeDetail, Description: "wrong amount", OperationReference: "OP-7"},
		},
	}
	req := NewSubmitSummaryRequest(challengeID, userID, uuid.NullUUID{}, attempt, models.ErrorTally{Detail: 1})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ChallengeSubmitSummaryEndpoint, r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, challengeID.String(), body["challenge_id"])
		assert.EqualValues(t, 12, body["total_operations"])
		assert.EqualValues(t, 1, body["errors_count"])
		assert.EqualValues(t, 1, body["error_detail"])
		assert.Nil(t, body["training_plan_id"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"` + uuid.NewString() + `","challenge_id":"` + challengeID.String() + `","calculated_mpu":2.5,"is_approved":true}`))
	}))
	defer srv.Close()

	sub, err := NewTrainingApiClient(srv.URL, "").SubmitChallengeSummary(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2.5, sub.CalculatedMpu)
	require.NotNil(t, sub.IsApproved)
	assert.True(t, *sub.IsApproved)
}

func TestGetChallenge(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/challenges/"+id.String(), r.URL.Path)
		w.Write([]byte(`{"id":"` + id.String() + `","operations_required":8,"time_limit_minutes":12,"target_mpu":1.5,"kpi_mode":"AUTO","use_mpu_kpi":true}`))
	}))
	defer srv.Close()

	def, err := NewTrainingApiClient(srv.URL, "").GetChallenge(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 8, def.OperationsRequired)
	assert.Equal(t, models.KpiModeAuto, def.KpiMode)
	assert.True(t, def.UseMpuKpi)
}

func TestLessonEventsURL(t *testing.T) {
	key := testKey()
	target, err := lessonEventsURL("http://localhost:8081/", key)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(target, "ws://localhost:8081/ws/lesson?"))
	assert.Contains(t, target, "lesson_id="+key.LessonID.String())
	assert.Contains(t, target, "user_id="+key.UserID.String())
}

func TestSubscribeLessonEvents(t *testing.T) {
	key := testKey()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, key.LessonID.String(), r.URL.Query().Get(LessonIDParam))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		env := events.Envelope{
			EventID:   uuid.NewString(),
			EventType: events.EventTypeLessonPaused,
			LessonID:  key.LessonID.String(),
			UserID:    key.UserID.String(),
			Timestamp: time.Now().UTC(),
		}
		data, _ := json.Marshal(env)
		conn.WriteMessage(websocket.TextMessage, data)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := SubscribeLessonEvents(ctx, srv.URL, "", key)
	require.NoError(t, err)

	var got []events.Envelope
	for env := range ch {
		got = append(got, env)
	}
	require.Len(t, got, 1)
	assert.Equal(t, events.EventTypeLessonPaused, got[0].EventType)
}
