package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/academy/go/internal/models"
)

func autoDefinition() models.ChallengeDefinition {
	return models.ChallengeDefinition{
		OperationsRequired: 10,
		TimeLimitMinutes:   60,
		TargetMpu:          6.0,
		MaxErrors:          2,
		UseVolumeKpi:       true,
		UseMpuKpi:          true,
		UseErrorsKpi:       true,
		KpiMode:            models.KpiModeAuto,
	}
}

func TestTargetMpu(t *testing.T) {
	assert.Equal(t, 6.0, TargetMpu(60, 10))
	assert.Equal(t, 6.00, RoundForDisplay(TargetMpu(60, 10)))
	assert.Equal(t, 0.0, TargetMpu(60, 0))

	// display rounding never leaks into the comparison value
	assert.InDelta(t, 3.3333333, TargetMpu(10, 3), 1e-6)
	assert.Equal(t, 3.33, RoundForDisplay(TargetMpu(10, 3)))
}

func TestRecomputeTargetMpu(t *testing.T) {
	def := autoDefinition()
	def.OperationsRequired = 20
	RecomputeTargetMpu(&def)
	assert.Equal(t, 3.0, def.TargetMpu)

	def.TimeLimitMinutes = 90
	RecomputeTargetMpu(&def)
	assert.Equal(t, 4.5, def.TargetMpu)
}

func TestEvaluate_MpuWithinTarget(t *testing.T) {
	def := autoDefinition()
	def.UseVolumeKpi = false
	def.UseErrorsKpi = false

	res, err := Evaluate(def, models.ChallengeAttempt{TotalOperations: 12, TotalTimeMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.CalculatedMpu)
	assert.True(t, res.MeetsMpu())
	assert.True(t, res.IsApproved)
	assert.Equal(t, VerdictApproved, res.Verdict)
}

func TestEvaluate_MpuOverTarget(t *testing.T) {
	def := autoDefinition()

	res, err := Evaluate(def, models.ChallengeAttempt{TotalOperations: 10, TotalTimeMinutes: 70})
	require.NoError(t, err)
	assert.Equal(t, 7.0, res.CalculatedMpu)
	assert.False(t, res.MeetsMpu())
	assert.True(t, res.MeetsVolume())
	assert.False(t, res.IsApproved)
	assert.Equal(t, VerdictRejected, res.Verdict)
}

func TestEvaluate_ErrorBudgetUsesAffectedOperations(t *testing.T) {
	def := autoDefinition()
	details := make([]models.ErrorDetail, 0, 7)
	for i := 0; i < 7; i++ {
		details = append(details, models.ErrorDetail{ErrorType: models.ErrorTypeDetail, Description: "wrong amount"})
	}

	res, err := Evaluate(def, models.ChallengeAttempt{
		TotalOperations:      10,
		TotalTimeMinutes:     50,
		OperationsWithErrors: 3,
		ErrorDetails:         details,
	})
	require.NoError(t, err)
	assert.False(t, res.MeetsErrorBudget())
	assert.Equal(t, 3.0, res.ErrorBudget.Actual)
	assert.Equal(t, 7, res.Errors.Detail)

	// many records on few operations stays inside the budget
	res, err = Evaluate(def, models.ChallengeAttempt{
		TotalOperations:      10,
		TotalTimeMinutes:     50,
		OperationsWithErrors: 2,
		ErrorDetails:         details,
	})
	require.NoError(t, err)
	assert.True(t, res.MeetsErrorBudget())
	assert.True(t, res.IsApproved)
}

func TestEvaluate_DisabledKpisNeverBlock(t *testing.T) {
	def := autoDefinition()
	def.UseVolumeKpi = false
	def.UseErrorsKpi = false

	res, err := Evaluate(def, models.ChallengeAttempt{
		TotalOperations:      3,
		TotalTimeMinutes:     12,
		OperationsWithErrors: 3,
	})
	require.NoError(t, err)
	assert.False(t, res.Volume.Enabled)
	assert.False(t, res.ErrorBudget.Enabled)
	assert.True(t, res.MeetsMpu())
	assert.True(t, res.IsApproved)
}

func TestEvaluate_Incomplete(t *testing.T) {
	tests := []struct {
		name    string
		attempt models.ChallengeAttempt
	}{
		{"zero operations", models.ChallengeAttempt{TotalOperations: 0, TotalTimeMinutes: 30}},
		{"zero time", models.ChallengeAttempt{TotalOperations: 5, TotalTimeMinutes: 0}},
		{"both zero", models.ChallengeAttempt{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Evaluate(autoDefinition(), tt.attempt)
			assert.ErrorIs(t, err, ErrIncompleteAttempt)
			assert.Equal(t, VerdictIncomplete, res.Verdict)
			assert.False(t, res.IsApproved)
			assert.False(t, math.IsInf(res.CalculatedMpu, 0))
			assert.False(t, math.IsNaN(res.CalculatedMpu))
			assert.Equal(t, 0.0, res.CalculatedMpu)
			assert.False(t, res.HasVerdict())
		})
	}
}

func TestEvaluate_NoKpiEnabledIsMisconfigured(t *testing.T) {
	def := autoDefinition()
	def.UseVolumeKpi = false
	def.UseMpuKpi = false
	def.UseErrorsKpi = false

	res, err := Evaluate(def, models.ChallengeAttempt{TotalOperations: 10, TotalTimeMinutes: 10})
	assert.ErrorIs(t, err, ErrNoKpiEnabled)
	assert.Equal(t, VerdictMisconfigured, res.Verdict)
	assert.False(t, res.IsApproved)
	assert.Equal(t, 1.0, res.CalculatedMpu)
}

func TestEvaluate_ManualMode(t *testing.T) {
	def := autoDefinition()
	def.KpiMode = models.KpiModeManual

	res, err := Evaluate(def, models.ChallengeAttempt{TotalOperations: 1, TotalTimeMinutes: 600})
	require.NoError(t, err)
	assert.Equal(t, VerdictPendingReview, res.Verdict)
	assert.False(t, res.IsApproved)
	assert.False(t, res.HasVerdict())
	assert.Equal(t, 600.0, res.CalculatedMpu)
}

func TestEvaluate_DerivesTargetWhenUnset(t *testing.T) {
	def := autoDefinition()
	def.TargetMpu = 0

	res, err := Evaluate(def, models.ChallengeAttempt{TotalOperations: 10, TotalTimeMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, 6.0, res.Mpu.Target)
	assert.True(t, res.MeetsMpu())
}

func TestEvaluate_IgnoresRoundedStoredTarget(t *testing.T) {
	def := autoDefinition()
	def.OperationsRequired = 3
	def.TimeLimitMinutes = 20
	def.TargetMpu = 6.67

	// 6.6683 is under the stored 6.67 but over the real 6.6667
	res, err := Evaluate(def, models.ChallengeAttempt{TotalOperations: 3, TotalTimeMinutes: 20.0049})
	require.NoError(t, err)
	assert.InDelta(t, 20.0/3, res.Mpu.Target, 1e-9)
	assert.False(t, res.MeetsMpu())
	assert.Equal(t, VerdictRejected, res.Verdict)
}

func TestEffectiveTargetMpu_FallsBackToStored(t *testing.T) {
	def := models.ChallengeDefinition{TargetMpu: 4.5}
	assert.Equal(t, 4.5, EffectiveTargetMpu(def))

	def.OperationsRequired = 4
	def.TimeLimitMinutes = 10
	assert.Equal(t, 2.5, EffectiveTargetMpu(def))
}

func TestPercentageOfMpuTarget(t *testing.T) {
	res, err := Evaluate(autoDefinition(), models.ChallengeAttempt{TotalOperations: 5, TotalTimeMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, 200.0, res.PercentageOfMpuTarget)
	assert.Equal(t, 100.0, res.DisplayPercentageOfMpuTarget())

	res, err = Evaluate(autoDefinition(), models.ChallengeAttempt{TotalOperations: 20, TotalTimeMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.PercentageOfMpuTarget)
	assert.Equal(t, 50.0, res.DisplayPercentageOfMpuTarget())
}

func TestTallyErrors(t *testing.T) {
	tally := TallyErrors([]models.ErrorDetail{
		{ErrorType: models.ErrorTypeMethodology},
		{ErrorType: models.ErrorTypeKnowledge},
		{ErrorType: models.ErrorTypeKnowledge},
		{ErrorType: models.ErrorTypeDetail},
		{ErrorType: models.ErrorTypeProcedure},
		{ErrorType: models.ErrorTypeProcedure},
		{ErrorType: models.ErrorTypeProcedure},
		{ErrorType: "TYPO"},
	})
	assert.Equal(t, models.ErrorTally{Methodology: 1, Knowledge: 2, Detail: 1, Procedure: 3}, tally)
	assert.Equal(t, 7, tally.Total())
}
