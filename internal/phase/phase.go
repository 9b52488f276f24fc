// Package phase implements the task workflow machine. It is pure: no I/O, no
// clock, just tables over (task_type, phase). The store consults it before
// every phase write.
package phase

import (
	"fmt"
	"strings"

	"engram/internal/types"
)

var featureOrder = []types.Phase{
	types.PhaseSpec,
	types.PhaseDesign,
	types.PhaseImplement,
	types.PhaseCodeReview,
	types.PhaseTest,
	types.PhaseIntegrate,
	types.PhaseVerify,
	types.PhaseDone,
}

var bugOrder = []types.Phase{
	types.PhaseReported,
	types.PhaseInvestigated,
	types.PhaseFixed,
	types.PhaseReviewed,
	types.PhaseTested,
	types.PhaseMerged,
	types.PhaseDone,
}

func order(tt types.TaskType) []types.Phase {
	if tt == types.TaskTypeBug {
		return bugOrder
	}
	return featureOrder
}

// InitialPhase returns the phase a freshly created task starts in.
func InitialPhase(tt types.TaskType) types.Phase {
	return order(tt)[0]
}

// Phases returns the full ordered workflow for a task type.
func Phases(tt types.TaskType) []types.Phase {
	src := order(tt)
	out := make([]types.Phase, len(src))
	copy(out, src)
	return out
}

// IsValidPhase reports whether p belongs to the workflow of tt at all.
func IsValidPhase(tt types.TaskType, p types.Phase) bool {
	return indexOf(tt, p) >= 0
}

// NextPhases returns the legal successors of a phase. The workflows are
// strictly linear, so the result has at most one element; DONE has none.
func NextPhases(tt types.TaskType, from types.Phase) []types.Phase {
	i := indexOf(tt, from)
	if i < 0 {
		return nil
	}
	seq := order(tt)
	if i == len(seq)-1 {
		return []types.Phase{}
	}
	return []types.Phase{seq[i+1]}
}

// IsValidTransition reports whether from -> to is a legal forward edge.
func IsValidTransition(tt types.TaskType, from, to types.Phase) bool {
	for _, n := range NextPhases(tt, from) {
		if n == to {
			return true
		}
	}
	return false
}

// ValidateTransition rejects illegal edges with a message naming the legal
// successor so a caller can self-correct.
func ValidateTransition(tt types.TaskType, from, to types.Phase) error {
	if !IsValidPhase(tt, from) {
		return fmt.Errorf("invalid phase %q for task_type %q (valid: %s)", from, tt, phaseList(tt))
	}
	if !IsValidPhase(tt, to) {
		return fmt.Errorf("invalid phase %q for task_type %q (valid: %s)", to, tt, phaseList(tt))
	}
	if IsValidTransition(tt, from, to) {
		return nil
	}
	next := NextPhases(tt, from)
	if len(next) == 0 {
		return fmt.Errorf("invalid transition %s -> %s: %s is terminal", from, to, from)
	}
	return fmt.Errorf("invalid transition %s -> %s (legal: %s -> %s)", from, to, from, next[0])
}

func indexOf(tt types.TaskType, p types.Phase) int {
	for i, c := range order(tt) {
		if c == p {
			return i
		}
	}
	return -1
}

func phaseList(tt types.TaskType) string {
	seq := order(tt)
	parts := make([]string, len(seq))
	for i, p := range seq {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}
