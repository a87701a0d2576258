package evaluation

import (
	"fmt"

	"github.com/mcdev12/academy/go/internal/models"
)

// ValidateDefinition checks the author-supplied challenge configuration.
func ValidateDefinition(def models.ChallengeDefinition) error {
	if def.OperationsRequired <= 0 {
		return fmt.Errorf("operations_required must be greater than 0")
	}
	if def.TimeLimitMinutes <= 0 {
		return fmt.Errorf("time_limit_minutes must be greater than 0")
	}
	if def.MaxErrors < 0 {
		return fmt.Errorf("max_errors cannot be negative")
	}
	switch def.KpiMode {
	case models.KpiModeAuto:
		if !def.UseVolumeKpi && !def.UseMpuKpi && !def.UseErrorsKpi {
			return ErrNoKpiEnabled
		}
	case models.KpiModeManual:
	default:
		return fmt.Errorf("invalid kpi_mode: %s", def.KpiMode)
	}
	return nil
}

// ValidateAttempt checks counters before submission. It does not reconcile
// OperationsWithErrors against ErrorDetails; those are trusted as given.
func ValidateAttempt(attempt models.ChallengeAttempt) error {
	if attempt.TotalOperations < 0 {
		return fmt.Errorf("total_operations cannot be negative")
	}
	if attempt.TotalTimeMinutes < 0 {
		return fmt.Errorf("total_time_minutes cannot be negative")
	}
	if attempt.OperationsWithErrors < 0 {
		return fmt.Errorf("errors_count cannot be negative")
	}
	if attempt.TotalOperations == 0 || attempt.TotalTimeMinutes == 0 {
		return ErrIncompleteAttempt
	}
	for i, d := range attempt.ErrorDetails {
		if !d.ErrorType.Valid() {
			return fmt.Errorf("error_details[%d]: invalid error_type: %s", i, d.ErrorType)
		}
	}
	return nil
}
