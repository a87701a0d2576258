package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mcdev12/academy/go/internal/events"
	"github.com/mcdev12/academy/go/internal/sqlutil"
)

// ErrNotFound is returned when an outbox row is missing or already sent.
var ErrNotFound = errors.New("outbox event not found or already sent")

const insertEvent = `
INSERT INTO training_outbox (id, event_type, lesson_id, user_id, training_plan_id, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const fetchUnsent = `
SELECT id, event_type, lesson_id, user_id, training_plan_id, payload, created_at
FROM training_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED`

const fetchByID = `
SELECT id, event_type, lesson_id, user_id, training_plan_id, payload, created_at
FROM training_outbox
WHERE id = $1 AND sent_at IS NULL`

const markSent = `UPDATE training_outbox SET sent_at = now() WHERE id = ANY($1)`

const countPending = `SELECT COUNT(*) FROM training_outbox WHERE sent_at IS NULL`

// Insert writes event with q, normally the transaction that committed the
// change the event describes.
func Insert(ctx context.Context, q sqlutil.DBTX, event events.Event) error {
	_, err := q.ExecContext(ctx, insertEvent,
		event.ID,
		string(event.Type),
		event.Key.LessonID,
		event.Key.UserID,
		event.Key.TrainingPlanID,
		[]byte(event.Payload),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", event.Type, err)
	}
	return nil
}

type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FetchUnsent(ctx context.Context, limit int) ([]events.Event, error) {
	rows, err := r.db.QueryContext(ctx, fetchUnsent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}
	return out, nil
}

func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (events.Event, error) {
	ev, err := scanEvent(r.db.QueryRowContext(ctx, fetchByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return events.Event{}, ErrNotFound
	}
	return ev, err
}

func (r *Repository) MarkSent(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	if _, err := r.db.ExecContext(ctx, markSent, pq.Array(strs)); err != nil {
		return fmt.Errorf("failed to mark outbox events as sent: %w", err)
	}
	return nil
}

func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, countPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending outbox events: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row scanner) (events.Event, error) {
	var (
		ev        events.Event
		eventType string
		payload   []byte
	)
	err := row.Scan(
		&ev.ID,
		&eventType,
		&ev.Key.LessonID,
		&ev.Key.UserID,
		&ev.Key.TrainingPlanID,
		&payload,
		&ev.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return events.Event{}, err
		}
		return events.Event{}, fmt.Errorf("failed to scan outbox event: %w", err)
	}
	ev.Type = events.EventType(eventType)
	ev.Payload = payload
	return ev, nil
}
