package lessons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mcdev12/academy/go/internal/models"
	"github.com/mcdev12/academy/go/internal/outbox"
	"github.com/mcdev12/academy/go/internal/sqlutil"
)

const getLesson = `
SELECT id, title, estimated_seconds, created_at, updated_at
FROM lessons
WHERE id = $1`

const getProgress = `
SELECT id, lesson_id, user_id, training_plan_id, status, started_at, paused_at,
       paused_ms, completed_at, is_approved, created_at, updated_at
FROM lesson_progress
WHERE lesson_id = $1 AND user_id = $2 AND training_plan_id IS NOT DISTINCT FROM $3`

const insertProgress = `
INSERT INTO lesson_progress (id, lesson_id, user_id, training_plan_id, status, started_at, paused_at,
                             paused_ms, completed_at, is_approved, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// updateProgress only applies when the row is still in the status the
// transition was validated against.
const updateProgress = `
UPDATE lesson_progress
SET status = $2, started_at = $3, paused_at = $4, paused_ms = $5,
    completed_at = $6, is_approved = $7, updated_at = $8
WHERE id = $1 AND status = $9`

// uniqueViolation is the Postgres error code for a unique constraint failure.
const uniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	var l models.Lesson
	err := r.db.QueryRowContext(ctx, getLesson, id).Scan(
		&l.ID, &l.Title, &l.EstimatedSeconds, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return &l, nil
}

func (r *Repository) GetProgress(ctx context.Context, key models.LessonKey) (*models.LessonProgress, error) {
	var (
		p                                models.LessonProgress
		status                           string
		startedAt, pausedAt, completedAt sql.NullTime
		isApproved                       sql.NullBool
	)
	err := r.db.QueryRowContext(ctx, getProgress, key.LessonID, key.UserID, key.TrainingPlanID).Scan(
		&p.ID,
		&p.Key.LessonID,
		&p.Key.UserID,
		&p.Key.TrainingPlanID,
		&status,
		&startedAt,
		&pausedAt,
		&p.PausedMillis,
		&completedAt,
		&isApproved,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}

	p.Status = models.LessonStatus(status)
	p.StartedAt = sqlutil.FromSqlTime(startedAt)
	p.PausedAt = sqlutil.FromSqlTime(pausedAt)
	p.CompletedAt = sqlutil.FromSqlTime(completedAt)
	p.IsApproved = sqlutil.FromSqlBool(isApproved)
	return &p, nil
}

// SaveProgress writes the new progress row and its outbox event in one
// transaction. A concurrent change to the same row yields ErrInvalidTransition.
func (r *Repository) SaveProgress(ctx context.Context, change ProgressChange) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if change.Insert {
			if err := insertRow(ctx, tx, change.Progress); err != nil {
				return err
			}
		} else {
			if err := updateRow(ctx, tx, change.Progress, change.Previous); err != nil {
				return err
			}
		}
		return outbox.Insert(ctx, tx, change.Event)
	})
}

func insertRow(ctx context.Context, tx *sql.Tx, p models.LessonProgress) error {
	_, err := tx.ExecContext(ctx, insertProgress,
		p.ID,
		p.Key.LessonID,
		p.Key.UserID,
		p.Key.TrainingPlanID,
		string(p.Status),
		sqlutil.ToSqlTime(p.StartedAt),
		sqlutil.ToSqlTime(p.PausedAt),
		p.PausedMillis,
		sqlutil.ToSqlTime(p.CompletedAt),
		sqlutil.ToSqlBool(p.IsApproved),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: lesson was started concurrently", ErrInvalidTransition)
		}
		return fmt.Errorf("failed to insert lesson progress: %w", err)
	}
	return nil
}

func updateRow(ctx context.Context, tx *sql.Tx, p models.LessonProgress, previous models.LessonStatus) error {
	res, err := tx.ExecContext(ctx, updateProgress,
		p.ID,
		string(p.Status),
		sqlutil.ToSqlTime(p.StartedAt),
		sqlutil.ToSqlTime(p.PausedAt),
		p.PausedMillis,
		sqlutil.ToSqlTime(p.CompletedAt),
		sqlutil.ToSqlBool(p.IsApproved),
		p.UpdatedAt,
		string(previous),
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson progress: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: lesson changed concurrently", ErrInvalidTransition)
	}
	return nil
}
