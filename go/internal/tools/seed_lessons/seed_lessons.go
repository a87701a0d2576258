package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/academy/go/internal/challenges/evaluation"
	"github.com/mcdev12/academy/go/internal/dbconfig"
	"github.com/mcdev12/academy/go/internal/models"
)

// Snapshot mirrors the JSON seed file
type Snapshot struct {
	Lessons    []models.Lesson              `json:"lessons"`
	Challenges []models.ChallengeDefinition `json:"challenges"`
}

func main() {
	path := "go/internal/assets/lessons.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON snapshot
	snapshot, err := loadSnapshot(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert lessons first, challenges reference them
	var upserted, errs int
	ctx := context.Background()

	for _, l := range snapshot.Lessons {
		_, err := pool.Exec(ctx, `
            INSERT INTO lessons (id, title, estimated_seconds)
            VALUES ($1, $2, $3)
            ON CONFLICT (id) DO UPDATE
            SET title = EXCLUDED.title,
                estimated_seconds = EXCLUDED.estimated_seconds,
                updated_at = now()
        `, l.ID, l.Title, l.EstimatedSeconds)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error upserting lesson %s: %v\n", l.ID, err)
			errs++
			continue
		}
		upserted++
	}

	for _, c := range snapshot.Challenges {
		_, err := pool.Exec(ctx, `
            INSERT INTO challenge_definitions (
              id, lesson_id, title, operations_required, time_limit_minutes, target_mpu,
              max_errors, use_volume_kpi, use_mpu_kpi, use_errors_kpi, kpi_mode, allow_retry
            ) VALUES (
              $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
            )
            ON CONFLICT (id) DO UPDATE
            SET title = EXCLUDED.title,
                operations_required = EXCLUDED.operations_required,
                time_limit_minutes = EXCLUDED.time_limit_minutes,
                target_mpu = EXCLUDED.target_mpu,
                max_errors = EXCLUDED.max_errors,
                use_volume_kpi = EXCLUDED.use_volume_kpi,
                use_mpu_kpi = EXCLUDED.use_mpu_kpi,
                use_errors_kpi = EXCLUDED.use_errors_kpi,
                kpi_mode = EXCLUDED.kpi_mode,
                allow_retry = EXCLUDED.allow_retry,
                updated_at = now()
        `,
			c.ID, c.LessonID, c.Title, c.OperationsRequired, c.TimeLimitMinutes, c.TargetMpu,
			c.MaxErrors, c.UseVolumeKpi, c.UseMpuKpi, c.UseErrorsKpi, string(c.KpiMode), c.AllowRetry,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error upserting challenge %s: %v\n", c.ID, err)
			errs++
			continue
		}
		upserted++
	}

	// 4) Print summary
	fmt.Printf(
		"Lessons seed complete: %d lessons, %d challenges, %d upserted, %d errors\n",
		len(snapshot.Lessons), len(snapshot.Challenges), upserted, errs,
	)
}

// loadSnapshot reads path and derives each challenge's target MPU from its
// time limit and required operations. Invalid challenges are reported.
func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JSON: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}

	for i := range snapshot.Challenges {
		c := &snapshot.Challenges[i]
		if c.KpiMode == "" {
			c.KpiMode = models.KpiModeAuto
		}
		evaluation.RecomputeTargetMpu(c)
		if err := evaluation.ValidateDefinition(*c); err != nil {
			return nil, fmt.Errorf("challenge %s: %w", c.ID, err)
		}
	}
	return &snapshot, nil
}
