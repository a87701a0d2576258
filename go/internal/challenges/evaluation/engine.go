// Package evaluation decides pass/fail for a challenge attempt from the KPI
// criteria configured on its definition. Everything here is pure and safe to
// call on every keystroke; the server runs the same code for the canonical
// record on submission.
package evaluation

import (
	"errors"
	"math"

	"github.com/mcdev12/academy/go/internal/models"
)

var (
	// ErrIncompleteAttempt means zero operations or zero time were reported.
	// Submission must be blocked; no MPU or verdict is produced.
	ErrIncompleteAttempt = errors.New("attempt has no operations or no time recorded")

	// ErrNoKpiEnabled means the definition is AUTO but every KPI toggle is off.
	ErrNoKpiEnabled = errors.New("challenge is in AUTO mode but no KPI is enabled")
)

// Verdict is the outcome of an evaluation.
type Verdict string

const (
	VerdictApproved      Verdict = "APPROVED"
	VerdictRejected      Verdict = "REJECTED"
	VerdictIncomplete    Verdict = "INCOMPLETE"
	VerdictPendingReview Verdict = "PENDING_REVIEW"
	VerdictMisconfigured Verdict = "MISCONFIGURED"
)

// Check is the outcome of a single KPI criterion.
type Check struct {
	Enabled bool    `json:"enabled"`
	Passed  bool    `json:"passed"`
	Actual  float64 `json:"actual"`
	Target  float64 `json:"target"`
}

// Result explains an evaluation.
type Result struct {
	Verdict               Verdict           `json:"verdict"`
	CalculatedMpu         float64           `json:"calculated_mpu"`
	IsApproved            bool              `json:"is_approved"`
	Volume                Check             `json:"volume"`
	Mpu                   Check             `json:"mpu"`
	ErrorBudget           Check             `json:"error_budget"`
	PercentageOfMpuTarget float64           `json:"percentage_of_mpu_target"`
	Errors                models.ErrorTally `json:"errors"`
}

// MeetsVolume reports the volume check; false when the KPI is disabled.
func (r Result) MeetsVolume() bool { return r.Volume.Enabled && r.Volume.Passed }

// MeetsMpu reports the speed check; false when the KPI is disabled.
func (r Result) MeetsMpu() bool { return r.Mpu.Enabled && r.Mpu.Passed }

// MeetsErrorBudget reports the error budget check; false when the KPI is disabled.
func (r Result) MeetsErrorBudget() bool { return r.ErrorBudget.Enabled && r.ErrorBudget.Passed }

// HasVerdict is true when an automatic approve/reject decision was made.
func (r Result) HasVerdict() bool {
	return r.Verdict == VerdictApproved || r.Verdict == VerdictRejected
}

// DisplayPercentageOfMpuTarget clamps the percentage to [0, 100] for progress bars.
func (r Result) DisplayPercentageOfMpuTarget() float64 {
	return math.Min(math.Max(r.PercentageOfMpuTarget, 0), 100)
}

// Evaluate computes the verdict for attempt against def.
//
// The returned Result is always populated as far as the inputs allow. The
// error is ErrIncompleteAttempt or ErrNoKpiEnabled when no trustworthy verdict
// exists; in both cases IsApproved is false.
func Evaluate(def models.ChallengeDefinition, attempt models.ChallengeAttempt) (Result, error) {
	res := Result{Errors: TallyErrors(attempt.ErrorDetails)}

	if attempt.TotalOperations <= 0 || attempt.TotalTimeMinutes <= 0 {
		res.Verdict = VerdictIncomplete
		return res, ErrIncompleteAttempt
	}

	res.CalculatedMpu = CalculateMpu(attempt.TotalTimeMinutes, attempt.TotalOperations)

	target := EffectiveTargetMpu(def)
	if target > 0 {
		res.PercentageOfMpuTarget = res.CalculatedMpu / target * 100
	}

	if def.KpiMode == models.KpiModeManual {
		res.Verdict = VerdictPendingReview
		return res, nil
	}

	if def.UseVolumeKpi {
		res.Volume = Check{
			Enabled: true,
			Passed:  attempt.TotalOperations >= def.OperationsRequired,
			Actual:  float64(attempt.TotalOperations),
			Target:  float64(def.OperationsRequired),
		}
	}
	if def.UseMpuKpi {
		// lower minutes per unit is better
		res.Mpu = Check{
			Enabled: true,
			Passed:  res.CalculatedMpu <= target,
			Actual:  res.CalculatedMpu,
			Target:  target,
		}
	}
	if def.UseErrorsKpi {
		res.ErrorBudget = Check{
			Enabled: true,
			Passed:  attempt.OperationsWithErrors <= def.MaxErrors,
			Actual:  float64(attempt.OperationsWithErrors),
			Target:  float64(def.MaxErrors),
		}
	}

	checks := []Check{res.Volume, res.Mpu, res.ErrorBudget}
	enabled := 0
	approved := true
	for _, c := range checks {
		if !c.Enabled {
			continue
		}
		enabled++
		approved = approved && c.Passed
	}

	if enabled == 0 {
		res.Verdict = VerdictMisconfigured
		return res, ErrNoKpiEnabled
	}

	res.IsApproved = approved
	if approved {
		res.Verdict = VerdictApproved
	} else {
		res.Verdict = VerdictRejected
	}
	return res, nil
}

// CalculateMpu returns minutes per unit, or 0 when operations is not positive.
func CalculateMpu(totalTimeMinutes float64, operations int) float64 {
	if operations <= 0 {
		return 0
	}
	return totalTimeMinutes / float64(operations)
}

// TargetMpu derives the allowed minutes per unit. Unrounded; use
// RoundForDisplay when presenting it.
func TargetMpu(timeLimitMinutes float64, operationsRequired int) float64 {
	if operationsRequired <= 0 {
		return 0
	}
	return timeLimitMinutes / float64(operationsRequired)
}

// EffectiveTargetMpu is the unrounded derived target. The stored TargetMpu is
// only used when the definition lacks a time limit or operation count.
func EffectiveTargetMpu(def models.ChallengeDefinition) float64 {
	if def.TimeLimitMinutes > 0 && def.OperationsRequired > 0 {
		return TargetMpu(def.TimeLimitMinutes, def.OperationsRequired)
	}
	return def.TargetMpu
}

// RecomputeTargetMpu refreshes def.TargetMpu after its inputs changed.
func RecomputeTargetMpu(def *models.ChallengeDefinition) {
	def.TargetMpu = TargetMpu(def.TimeLimitMinutes, def.OperationsRequired)
}

// RoundForDisplay rounds v to two decimal places.
func RoundForDisplay(v float64) float64 {
	return math.Round(v*100) / 100
}

// TallyErrors counts error records per cause. Unknown causes are ignored.
func TallyErrors(details []models.ErrorDetail) models.ErrorTally {
	var t models.ErrorTally
	for _, d := range details {
		switch d.ErrorType {
		case models.ErrorTypeMethodology:
			t.Methodology++
		case models.ErrorTypeKnowledge:
			t.Knowledge++
		case models.ErrorTypeDetail:
			t.Detail++
		case models.ErrorTypeProcedure:
			t.Procedure++
		}
	}
	return t
}
