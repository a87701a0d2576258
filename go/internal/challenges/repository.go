package challenges

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/academy/go/internal/models"
	"github.com/mcdev12/academy/go/internal/outbox"
	"github.com/mcdev12/academy/go/internal/sqlutil"
)

const getDefinition = `
SELECT id, lesson_id, title, operations_required, time_limit_minutes, target_mpu, max_errors,
       use_volume_kpi, use_mpu_kpi, use_errors_kpi, kpi_mode, allow_retry, created_at, updated_at
FROM challenge_definitions
WHERE id = $1`

const submissionColumns = `
id, challenge_id, user_id, training_plan_id, total_operations, total_time_minutes, errors_count,
error_methodology, error_knowledge, error_detail, error_procedure, error_details,
operation_reference, calculated_mpu, is_approved, submitted_at
`

const byKey = `
WHERE challenge_id = $1 AND user_id = $2 AND training_plan_id IS NOT DISTINCT FROM $3
ORDER BY submitted_at DESC`

const latestSubmission = `SELECT` + submissionColumns + `FROM challenge_submissions` + byKey + `
LIMIT 1`

const listSubmissions = `SELECT` + submissionColumns + `FROM challenge_submissions` + byKey

const insertSubmission = `
INSERT INTO challenge_submissions (` + submissionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetDefinition(ctx context.Context, id uuid.UUID) (*models.ChallengeDefinition, error) {
	var (
		d    models.ChallengeDefinition
		mode string
	)
	err := r.db.QueryRowContext(ctx, getDefinition, id).Scan(
		&d.ID,
		&d.LessonID,
		&d.Title,
		&d.OperationsRequired,
		&d.TimeLimitMinutes,
		&d.TargetMpu,
		&d.MaxErrors,
		&d.UseVolumeKpi,
		&d.UseMpuKpi,
		&d.UseErrorsKpi,
		&mode,
		&d.AllowRetry,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge definition: %w", err)
	}
	d.KpiMode = models.KpiMode(mode)
	return &d, nil
}

func (r *Repository) LatestSubmission(ctx context.Context, key SubmissionKey) (*models.ChallengeSubmission, error) {
	row := r.db.QueryRowContext(ctx, latestSubmission, key.ChallengeID, key.UserID, key.TrainingPlanID)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest submission: %w", err)
	}
	return s, nil
}

func (r *Repository) ListSubmissions(ctx context.Context, key SubmissionKey) ([]models.ChallengeSubmission, error) {
	rows, err := r.db.QueryContext(ctx, listSubmissions, key.ChallengeID, key.UserID, key.TrainingPlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	submissions := []models.ChallengeSubmission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return submissions, nil
}

// CreateSubmission writes the submission and its outbox event in one transaction.
func (r *Repository) CreateSubmission(ctx context.Context, ns NewSubmission) error {
	s := ns.Submission
	details, err := json.Marshal(s.ErrorDetails)
	if err != nil {
		return fmt.Errorf("failed to marshal error details: %w", err)
	}

	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertSubmission,
			s.ID,
			s.ChallengeID,
			s.UserID,
			s.TrainingPlanID,
			s.TotalOperations,
			s.TotalTimeMinutes,
			s.ErrorsCount,
			s.Methodology,
			s.Knowledge,
			s.Detail,
			s.Procedure,
			pqtype.NullRawMessage{RawMessage: details, Valid: len(s.ErrorDetails) > 0},
			sqlutil.ToSqlString(s.OperationReference),
			s.CalculatedMpu,
			sqlutil.ToSqlBool(s.IsApproved),
			s.SubmittedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert submission: %w", err)
		}
		return outbox.Insert(ctx, tx, ns.Event)
	})
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row scanner) (*models.ChallengeSubmission, error) {
	var (
		s          models.ChallengeSubmission
		details    pqtype.NullRawMessage
		reference  sql.NullString
		isApproved sql.NullBool
	)
	err := row.Scan(
		&s.ID,
		&s.ChallengeID,
		&s.UserID,
		&s.TrainingPlanID,
		&s.TotalOperations,
		&s.TotalTimeMinutes,
		&s.ErrorsCount,
		&s.Methodology,
		&s.Knowledge,
		&s.Detail,
		&s.Procedure,
		&details,
		&reference,
		&s.CalculatedMpu,
		&isApproved,
		&s.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ErrorDetails = []models.ErrorDetail{}
	if details.Valid {
		if err := json.Unmarshal(details.RawMessage, &s.ErrorDetails); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error details: %w", err)
		}
	}
	s.OperationReference = sqlutil.FromSqlString(reference, "")
	s.IsApproved = sqlutil.FromSqlBool(isApproved)
	return &s, nil
}
