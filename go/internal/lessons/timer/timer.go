// Package timer is the client side lesson timer. It mirrors the server's
// authoritative state, ticks locally between syncs and serialises user
// actions so that at most one request is in flight.
package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/academy/go/clients"
	"github.com/mcdev12/academy/go/internal/events"
	"github.com/mcdev12/academy/go/internal/models"
)

var (
	// ErrBusy is returned when an action is requested while another is in flight.
	ErrBusy = errors.New("a lesson action is already in progress")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("lesson timer is closed")
)

// DefaultFallbackMessage is shown when a failed action carries no server detail.
const DefaultFallbackMessage = "Something went wrong. Please try again."

// LessonClient is the subset of the training API the timer drives.
type LessonClient interface {
	GetTimerState(ctx context.Context, key models.LessonKey) (*models.TimerState, error)
	StartLesson(ctx context.Context, key models.LessonKey) error
	PauseLesson(ctx context.Context, key models.LessonKey) error
	ResumeLesson(ctx context.Context, key models.LessonKey) error
	FinishLesson(ctx context.Context, key models.LessonKey, isApproved bool) error
}

// Snapshot is what a view renders.
type Snapshot struct {
	State   State
	Loaded  bool
	Loading bool
	Message string
}

type Option func(*Timer)

// WithClock replaces the real clock, mostly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(t *Timer) { t.clock = clock }
}

// WithOnChange registers a callback invoked after every state change. It is
// called without the timer's lock held and may run on any goroutine.
func WithOnChange(fn func(Snapshot)) Option {
	return func(t *Timer) { t.onChange = fn }
}

func WithFallbackMessage(msg string) Option {
	return func(t *Timer) { t.fallback = msg }
}

type Timer struct {
	client   LessonClient
	key      models.LessonKey
	clock    clockwork.Clock
	onChange func(Snapshot)
	fallback string

	mu       sync.Mutex
	state    State
	loaded   bool
	loading  bool
	message  string
	closed   bool
	ticker   clockwork.Ticker
	tickStop chan struct{}
	tickGen  int
}

func New(client LessonClient, key models.LessonKey, opts ...Option) *Timer {
	t := &Timer{
		client:   client,
		key:      key,
		clock:    clockwork.NewRealClock(),
		fallback: DefaultFallbackMessage,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Timer) Key() models.LessonKey {
	return t.key
}

func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Timer) snapshotLocked() Snapshot {
	return Snapshot{
		State:   t.state,
		Loaded:  t.loaded,
		Loading: t.loading,
		Message: t.message,
	}
}

// Fetch replaces the local state with the server's. On failure the previous
// state is kept and the error is logged and returned.
func (t *Timer) Fetch(ctx context.Context) error {
	ts, err := t.client.GetTimerState(ctx, t.key)
	if err == nil {
		var next State
		next, err = StateFromWire(*ts)
		if err == nil {
			t.apply(next)
			return nil
		}
	}

	log.Warn().
		Err(err).
		Str("lesson_id", t.key.LessonID.String()).
		Str("user_id", t.key.UserID.String()).
		Msg("failed to fetch lesson timer state")
	return err
}

func (t *Timer) Start(ctx context.Context) error {
	return t.mutate(ctx, "start", func(ctx context.Context) error {
		return t.client.StartLesson(ctx, t.key)
	})
}

func (t *Timer) Pause(ctx context.Context) error {
	return t.mutate(ctx, "pause", func(ctx context.Context) error {
		return t.client.PauseLesson(ctx, t.key)
	})
}

func (t *Timer) Resume(ctx context.Context) error {
	return t.mutate(ctx, "resume", func(ctx context.Context) error {
		return t.client.ResumeLesson(ctx, t.key)
	})
}

func (t *Timer) Finish(ctx context.Context, isApproved bool) error {
	return t.mutate(ctx, "finish", func(ctx context.Context) error {
		return t.client.FinishLesson(ctx, t.key, isApproved)
	})
}

// mutate sends one transition and then resyncs. State only changes through
// the follow-up fetch.
func (t *Timer) mutate(ctx context.Context, action string, fn func(context.Context) error) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.loading {
		t.mu.Unlock()
		return ErrBusy
	}
	t.loading = true
	t.message = ""
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)

	defer func() {
		t.mu.Lock()
		t.loading = false
		snap := t.snapshotLocked()
		t.mu.Unlock()
		t.notify(snap)
	}()

	if err := fn(ctx); err != nil {
		msg := clients.DetailOf(err)
		if msg == "" {
			msg = t.fallback
		}
		t.mu.Lock()
		t.message = msg
		t.mu.Unlock()

		log.Error().
			Err(err).
			Str("action", action).
			Str("lesson_id", t.key.LessonID.String()).
			Msg("lesson action failed")
		return err
	}

	// the transition succeeded; a failed resync is logged by Fetch
	_ = t.Fetch(ctx)
	return nil
}

func (t *Timer) apply(next State) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	prev := t.state.Phase
	t.state = next
	t.loaded = true
	if prev != next.Phase || (next.Phase == PhaseRunning && t.ticker == nil) {
		t.stopTickerLocked()
		if next.Phase == PhaseRunning {
			t.startTickerLocked()
		}
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

func (t *Timer) startTickerLocked() {
	t.tickGen++
	t.ticker = t.clock.NewTicker(time.Second)
	t.tickStop = make(chan struct{})
	go t.runTicker(t.ticker, t.tickStop, t.tickGen)
}

func (t *Timer) stopTickerLocked() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	close(t.tickStop)
	t.ticker = nil
	t.tickStop = nil
}

func (t *Timer) runTicker(ticker clockwork.Ticker, stop <-chan struct{}, gen int) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			t.tick(gen)
		}
	}
}

func (t *Timer) tick(gen int) {
	t.mu.Lock()
	if gen != t.tickGen || t.ticker == nil || !t.state.IsRunning() {
		t.mu.Unlock()
		return
	}
	t.state = t.state.Tick()
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

func (t *Timer) notify(snap Snapshot) {
	if t.onChange != nil {
		t.onChange(snap)
	}
}

// Follow resyncs on every pushed event for this timer's lesson and user.
// It returns when ctx is done or the channel is closed.
func (t *Timer) Follow(ctx context.Context, in <-chan events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-in:
			if !ok {
				return
			}
			key, err := env.Key()
			if err != nil {
				log.Warn().Err(err).Str("event_id", env.EventID).Msg("ignoring lesson event")
				continue
			}
			if key.LessonID != t.key.LessonID || key.UserID != t.key.UserID {
				continue
			}
			_ = t.Fetch(ctx)
		}
	}
}

// Close stops local ticking. Further actions return ErrClosed.
func (t *Timer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.stopTickerLocked()
}
