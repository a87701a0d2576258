package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/academy/go/internal/events"
	"github.com/mcdev12/academy/go/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) FetchUnsent(ctx context.Context, limit int) ([]events.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]events.Event), args.Error(1)
}

func (m *MockStore) FetchByID(ctx context.Context, id uuid.UUID) (events.Event, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(events.Event), args.Error(1)
}

func (m *MockStore) MarkSent(ctx context.Context, ids ...uuid.UUID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

type flakyPublisher struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	published []uuid.UUID
}

func (p *flakyPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failFirst {
		return errors.New("nats unavailable")
	}
	p.published = append(p.published, event.ID)
	return nil
}

func testEvent(t *testing.T) events.Event {
	t.Helper()
	key := models.LessonKey{LessonID: uuid.New(), UserID: uuid.New()}
	ev, err := events.NewEvent(events.EventTypeLessonStarted, key, events.LessonStartedPayload{StartedAt: time.Now()}, time.Now())
	require.NoError(t, err)
	return ev
}

func testConfig() ListenerConfig {
	cfg := DefaultListenerConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetries = 2
	return cfg
}

func TestHandleNotification(t *testing.T) {
	ev := testEvent(t)
	store := new(MockStore)
	store.On("FetchByID", mock.Anything, ev.ID).Return(ev, nil)
	store.On("MarkSent", mock.Anything, []uuid.UUID{ev.ID}).Return(nil)

	pub := &flakyPublisher{}
	l := newRelay(store, pub, testConfig(), nil)

	require.NoError(t, l.handleNotification(context.Background(), ev.ID.String()))
	assert.Equal(t, []uuid.UUID{ev.ID}, pub.published)

	processed, last, _ := l.Stats()
	assert.Equal(t, uint64(1), processed)
	assert.False(t, last.IsZero())
	store.AssertExpectations(t)
}

func TestHandleNotification_BadPayload(t *testing.T) {
	store := new(MockStore)
	l := newRelay(store, &flakyPublisher{}, testConfig(), nil)

	assert.Error(t, l.handleNotification(context.Background(), "not-a-uuid"))
	store.AssertNotCalled(t, "FetchByID", mock.Anything, mock.Anything)
}

func TestHandleNotification_AlreadySent(t *testing.T) {
	id := uuid.New()
	store := new(MockStore)
	store.On("FetchByID", mock.Anything, id).Return(events.Event{}, ErrNotFound)

	pub := &flakyPublisher{}
	l := newRelay(store, pub, testConfig(), nil)

	err := l.handleNotification(context.Background(), id.String())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, pub.calls)
}

func TestPublishWithRetry(t *testing.T) {
	ev := testEvent(t)
	store := new(MockStore)
	store.On("MarkSent", mock.Anything, []uuid.UUID{ev.ID}).Return(nil)

	pub := &flakyPublisher{failFirst: 2}
	l := newRelay(store, pub, testConfig(), nil)

	require.NoError(t, l.publishWithRetry(context.Background(), ev))
	assert.Equal(t, 3, pub.calls)
	store.AssertExpectations(t)
}

func TestPublishWithRetry_GivesUp(t *testing.T) {
	ev := testEvent(t)
	store := new(MockStore)

	pub := &flakyPublisher{failFirst: 10}
	l := newRelay(store, pub, testConfig(), nil)

	err := l.publishWithRetry(context.Background(), ev)
	assert.ErrorContains(t, err, "after 3 attempts")
	store.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything)
}

func TestProcessUnsent_ContinuesPastFailures(t *testing.T) {
	first, second := testEvent(t), testEvent(t)
	store := new(MockStore)
	store.On("FetchUnsent", mock.Anything, 100).Return([]events.Event{first, second}, nil)
	store.On("MarkSent", mock.Anything, []uuid.UUID{second.ID}).Return(nil)

	// first event exhausts all three attempts, second succeeds
	pub := &flakyPublisher{failFirst: 3}
	l := newRelay(store, pub, testConfig(), nil)

	require.NoError(t, l.processUnsent(context.Background()))
	assert.Equal(t, []uuid.UUID{second.ID}, pub.published)
	store.AssertExpectations(t)
}
