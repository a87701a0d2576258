package models

import (
	"time"

	"github.com/google/uuid"
)

// KpiMode selects whether a challenge verdict is computed or left to a reviewer.
type KpiMode string

const (
	KpiModeAuto   KpiMode = "AUTO"
	KpiModeManual KpiMode = "MANUAL"
)

// ErrorType classifies the cause of an error logged during an attempt.
type ErrorType string

const (
	ErrorTypeMethodology ErrorType = "METHODOLOGY"
	ErrorTypeKnowledge   ErrorType = "KNOWLEDGE"
	ErrorTypeDetail      ErrorType = "DETAIL"
	ErrorTypeProcedure   ErrorType = "PROCEDURE"
)

// Valid reports whether t is one of the four known causes.
func (t ErrorType) Valid() bool {
	switch t {
	case ErrorTypeMethodology, ErrorTypeKnowledge, ErrorTypeDetail, ErrorTypeProcedure:
		return true
	}
	return false
}

// ChallengeDefinition is the author-owned configuration of a practice challenge.
type ChallengeDefinition struct {
	ID                 uuid.UUID `json:"id"`
	LessonID           uuid.UUID `json:"lesson_id"`
	Title              string    `json:"title"`
	OperationsRequired int       `json:"operations_required"`
	TimeLimitMinutes   float64   `json:"time_limit_minutes"`
	TargetMpu          float64   `json:"target_mpu"`
	MaxErrors          int       `json:"max_errors"`
	UseVolumeKpi       bool      `json:"use_volume_kpi"`
	UseMpuKpi          bool      `json:"use_mpu_kpi"`
	UseErrorsKpi       bool      `json:"use_errors_kpi"`
	KpiMode            KpiMode   `json:"kpi_mode"`
	AllowRetry         bool      `json:"allow_retry"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ErrorDetail is one error record attributed to an operation.
type ErrorDetail struct {
	ErrorType          ErrorType `json:"error_type" validate:"required,oneof=METHODOLOGY KNOWLEDGE DETAIL PROCEDURE"`
	Description        string    `json:"description" validate:"max=2000"`
	OperationReference string    `json:"operation_reference,omitempty" validate:"max=255"`
}

// ChallengeAttempt holds the raw counters of one submission.
type ChallengeAttempt struct {
	TotalOperations      int           `json:"total_operations"`
	TotalTimeMinutes     float64       `json:"total_time_minutes"`
	OperationsWithErrors int           `json:"operations_with_errors"`
	ErrorDetails         []ErrorDetail `json:"error_details"`
}

// ErrorTally counts error records per cause.
type ErrorTally struct {
	Methodology int `json:"error_methodology"`
	Knowledge   int `json:"error_knowledge"`
	Detail      int `json:"error_detail"`
	Procedure   int `json:"error_procedure"`
}

// Total is the number of individual error records tallied.
func (t ErrorTally) Total() int {
	return t.Methodology + t.Knowledge + t.Detail + t.Procedure
}

// ChallengeSubmission is the persisted, canonically evaluated attempt.
type ChallengeSubmission struct {
	ID                   uuid.UUID     `json:"id"`
	ChallengeID          uuid.UUID     `json:"challenge_id"`
	UserID               uuid.UUID     `json:"user_id"`
	TrainingPlanID       uuid.NullUUID `json:"training_plan_id"`
	TotalOperations      int           `json:"total_operations"`
	TotalTimeMinutes     float64       `json:"total_time_minutes"`
	ErrorsCount          int           `json:"errors_count"`
	ErrorTally
	ErrorDetails       []ErrorDetail `json:"error_details"`
	OperationReference string        `json:"operation_reference,omitempty"`
	CalculatedMpu      float64       `json:"calculated_mpu"`
	IsApproved         *bool         `json:"is_approved"`
	SubmittedAt        time.Time     `json:"submitted_at"`
}

// SubmitSummaryRequest is the body of POST /challenges/submit/summary.
type SubmitSummaryRequest struct {
	ChallengeID        uuid.UUID     `json:"challenge_id" validate:"required"`
	UserID             uuid.UUID     `json:"user_id" validate:"required"`
	TrainingPlanID     *uuid.UUID    `json:"training_plan_id,omitempty"`
	TotalOperations    int           `json:"total_operations" validate:"gte=0"`
	TotalTimeMinutes   float64       `json:"total_time_minutes" validate:"gte=0"`
	ErrorsCount        int           `json:"errors_count" validate:"gte=0"`
	ErrorMethodology   int           `json:"error_methodology" validate:"gte=0"`
	ErrorKnowledge     int           `json:"error_knowledge" validate:"gte=0"`
	ErrorDetail        int           `json:"error_detail" validate:"gte=0"`
	ErrorProcedure     int           `json:"error_procedure" validate:"gte=0"`
	ErrorDetails       []ErrorDetail `json:"error_details" validate:"dive"`
	OperationReference string        `json:"operation_reference,omitempty" validate:"max=255"`
}

// Attempt converts the request into evaluation input.
func (r SubmitSummaryRequest) Attempt() ChallengeAttempt {
	return ChallengeAttempt{
		TotalOperations:      r.TotalOperations,
		TotalTimeMinutes:     r.TotalTimeMinutes,
		OperationsWithErrors: r.ErrorsCount,
		ErrorDetails:         r.ErrorDetails,
	}
}

// PlanID returns the optional training plan as a NullUUID.
func (r SubmitSummaryRequest) PlanID() uuid.NullUUID {
	if r.TrainingPlanID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *r.TrainingPlanID, Valid: true}
}
