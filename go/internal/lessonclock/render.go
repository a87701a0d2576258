// Package lessonclock renders the lesson timer and live challenge feedback
// for the terminal client.
package lessonclock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/academy/go/internal/challenges/evaluation"
	"github.com/mcdev12/academy/go/internal/lessons/timer"
)

// FallbackMessage replaces the timer's default message for failures without
// a server detail.
const FallbackMessage = "request failed, rerun with -v for details"

// ActionError is the error reported for a failed timer action: the message
// the timer surfaced, or err itself when there is none (busy, closed).
func ActionError(err error, snap timer.Snapshot) error {
	if snap.Message == "" {
		return err
	}
	return errors.New(snap.Message)
}

// StatusLine is the one line summary of a timer snapshot.
func StatusLine(snap timer.Snapshot) string {
	if !snap.Loaded {
		if snap.Message != "" {
			return "loading... " + snap.Message
		}
		return "loading..."
	}

	s := snap.State
	var b strings.Builder
	fmt.Fprintf(&b, "%-11s %s", phaseLabel(s.Phase), timer.FormatTime(s.RemainingSeconds))
	if s.IsDelayed() {
		b.WriteString(" overtime")
	}
	fmt.Fprintf(&b, "  elapsed %s / %s", timer.FormatTime(s.ElapsedSeconds), timer.FormatTime(s.EstimatedSeconds))

	if snap.Loading {
		b.WriteString("  ...")
	}
	if snap.Message != "" {
		b.WriteString("  ! ")
		b.WriteString(snap.Message)
	}
	return b.String()
}

func phaseLabel(p timer.Phase) string {
	switch p {
	case timer.PhaseRunning:
		return "running"
	case timer.PhasePaused:
		return "paused"
	case timer.PhaseCompleted:
		return "completed"
	}
	return "not started"
}

// EvaluationReport is the multi-line live feedback for an evaluation.
func EvaluationReport(res evaluation.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "verdict: %s\n", res.Verdict)
	fmt.Fprintf(&b, "mpu:     %.2f (%.0f%% of target)\n",
		evaluation.RoundForDisplay(res.CalculatedMpu), res.DisplayPercentageOfMpuTarget())

	writeCheck(&b, "volume", res.Volume, "%.0f", "%.0f")
	writeCheck(&b, "speed", res.Mpu, "%.2f", "%.2f")
	writeCheck(&b, "errors", res.ErrorBudget, "%.0f", "%.0f")

	e := res.Errors
	fmt.Fprintf(&b, "error causes: methodology %d, knowledge %d, detail %d, procedure %d\n",
		e.Methodology, e.Knowledge, e.Detail, e.Procedure)
	return b.String()
}

func writeCheck(b *strings.Builder, name string, c evaluation.Check, actualFmt, targetFmt string) {
	if !c.Enabled {
		return
	}
	mark := "FAIL"
	if c.Passed {
		mark = "ok"
	}
	fmt.Fprintf(b, "  %-7s %-4s "+actualFmt+" / "+targetFmt+"\n", name, mark, c.Actual, evaluation.RoundForDisplay(c.Target))
}
