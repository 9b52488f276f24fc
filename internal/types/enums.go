package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// CLOSED ENUMS
// =============================================================================
//
// Every enum below is closed: validators reject anything outside the set, and
// the dispatcher derives its JSON-schema enum lists from these same slices so
// the advertised and validated sets can never drift apart.

// Domain classifies what kind of work a GHAP entry describes.
type Domain string

const (
	DomainDebugging     Domain = "debugging"
	DomainRefactoring   Domain = "refactoring"
	DomainFeature       Domain = "feature"
	DomainTesting       Domain = "testing"
	DomainConfiguration Domain = "configuration"
	DomainDocumentation Domain = "documentation"
	DomainPerformance   Domain = "performance"
	DomainSecurity      Domain = "security"
	DomainIntegration   Domain = "integration"
)

// Domains lists every valid domain in declaration order.
func Domains() []Domain {
	return []Domain{
		DomainDebugging, DomainRefactoring, DomainFeature, DomainTesting,
		DomainConfiguration, DomainDocumentation, DomainPerformance,
		DomainSecurity, DomainIntegration,
	}
}

// ParseDomain validates a raw string against the closed domain set.
func ParseDomain(v string) (Domain, error) {
	for _, d := range Domains() {
		if v == string(d) {
			return d, nil
		}
	}
	return "", enumError("domain", v, domainStrings())
}

func domainStrings() []string {
	ds := Domains()
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}

// Strategy names the problem-solving approach taken for a GHAP entry.
type Strategy string

const (
	StrategySystematicElimination Strategy = "systematic-elimination"
	StrategyTrialAndError         Strategy = "trial-and-error"
	StrategyResearchFirst         Strategy = "research-first"
	StrategyDivideAndConquer      Strategy = "divide-and-conquer"
	StrategyRootCauseAnalysis     Strategy = "root-cause-analysis"
	StrategyCopyFromSimilar       Strategy = "copy-from-similar"
	StrategyCheckAssumptions      Strategy = "check-assumptions"
	StrategyReadTheError          Strategy = "read-the-error"
	StrategyAskUser               Strategy = "ask-user"
)

// Strategies lists every valid strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{
		StrategySystematicElimination, StrategyTrialAndError,
		StrategyResearchFirst, StrategyDivideAndConquer,
		StrategyRootCauseAnalysis, StrategyCopyFromSimilar,
		StrategyCheckAssumptions, StrategyReadTheError, StrategyAskUser,
	}
}

// ParseStrategy validates a raw string against the closed strategy set.
func ParseStrategy(v string) (Strategy, error) {
	for _, s := range Strategies() {
		if v == string(s) {
			return s, nil
		}
	}
	return "", enumError("strategy", v, strategyStrings())
}

func strategyStrings() []string {
	ss := Strategies()
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// RootCauseCategory classifies why a hypothesis turned out wrong.
type RootCauseCategory string

const (
	RootCauseWrongAssumption   RootCauseCategory = "wrong-assumption"
	RootCauseMissingKnowledge  RootCauseCategory = "missing-knowledge"
	RootCauseOversight         RootCauseCategory = "oversight"
	RootCauseEnvironmentIssue  RootCauseCategory = "environment-issue"
	RootCauseMisleadingSymptom RootCauseCategory = "misleading-symptom"
	RootCauseIncompleteFix     RootCauseCategory = "incomplete-fix"
	RootCauseWrongScope        RootCauseCategory = "wrong-scope"
	RootCauseTestIsolation     RootCauseCategory = "test-isolation"
	RootCauseTimingIssue       RootCauseCategory = "timing-issue"
)

// RootCauseCategories lists every valid category in declaration order.
func RootCauseCategories() []RootCauseCategory {
	return []RootCauseCategory{
		RootCauseWrongAssumption, RootCauseMissingKnowledge, RootCauseOversight,
		RootCauseEnvironmentIssue, RootCauseMisleadingSymptom,
		RootCauseIncompleteFix, RootCauseWrongScope, RootCauseTestIsolation,
		RootCauseTimingIssue,
	}
}

// ParseRootCauseCategory validates a raw string against the closed category set.
func ParseRootCauseCategory(v string) (RootCauseCategory, error) {
	for _, c := range RootCauseCategories() {
		if v == string(c) {
			return c, nil
		}
	}
	return "", enumError("root_cause.category", v, rootCauseCategoryStrings())
}

func rootCauseCategoryStrings() []string {
	cs := RootCauseCategories()
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// Axis names one of the four parallel vector collections a resolved entry is
// embedded into.
type Axis string

const (
	AxisFull      Axis = "full"
	AxisStrategy  Axis = "strategy"
	AxisSurprise  Axis = "surprise"
	AxisRootCause Axis = "root_cause"
)

// Axes lists every axis in declaration order.
func Axes() []Axis {
	return []Axis{AxisFull, AxisStrategy, AxisSurprise, AxisRootCause}
}

// ParseAxis validates a raw string against the closed axis set.
func ParseAxis(v string) (Axis, error) {
	for _, a := range Axes() {
		if v == string(a) {
			return a, nil
		}
	}
	return "", enumError("axis", v, axisStrings())
}

func axisStrings() []string {
	as := Axes()
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = string(a)
	}
	return out
}

// OutcomeStatus is the terminal status a GHAP entry resolves to.
type OutcomeStatus string

const (
	OutcomeConfirmed OutcomeStatus = "confirmed"
	OutcomeFalsified OutcomeStatus = "falsified"
	OutcomeAbandoned OutcomeStatus = "abandoned"
)

// OutcomeStatuses lists every terminal status in declaration order.
func OutcomeStatuses() []OutcomeStatus {
	return []OutcomeStatus{OutcomeConfirmed, OutcomeFalsified, OutcomeAbandoned}
}

// ParseOutcomeStatus validates a raw string against the closed status set.
func ParseOutcomeStatus(v string) (OutcomeStatus, error) {
	for _, s := range OutcomeStatuses() {
		if v == string(s) {
			return s, nil
		}
	}
	return "", enumError("status", v, outcomeStatusStrings())
}

func outcomeStatusStrings() []string {
	ss := OutcomeStatuses()
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// StatusActive marks the single in-flight entry. It shares the status column
// with the terminal outcome values.
const StatusActive = "active"

// ConfidenceTier grades how much a resolved entry should influence clustering.
type ConfidenceTier string

const (
	TierGold      ConfidenceTier = "gold"
	TierSilver    ConfidenceTier = "silver"
	TierBronze    ConfidenceTier = "bronze"
	TierAbandoned ConfidenceTier = "abandoned"
)

// ConfidenceTiers lists every tier in declaration order.
func ConfidenceTiers() []ConfidenceTier {
	return []ConfidenceTier{TierGold, TierSilver, TierBronze, TierAbandoned}
}

// Weight returns the clustering weight for a tier. Unknown tiers weigh 0.5.
func (t ConfidenceTier) Weight() float64 {
	switch t {
	case TierGold:
		return 1.0
	case TierSilver:
		return 0.8
	case TierBronze:
		return 0.5
	case TierAbandoned:
		return 0.2
	default:
		return 0.5
	}
}

// DeriveTier maps a resolution outcome onto a confidence tier. Confirmed
// predictions are gold. Falsified entries that captured a takeaway are silver;
// falsified without one are bronze. Abandoned entries keep their own tier.
func DeriveTier(status OutcomeStatus, lesson *Lesson) ConfidenceTier {
	switch status {
	case OutcomeConfirmed:
		return TierGold
	case OutcomeFalsified:
		if lesson != nil && strings.TrimSpace(lesson.Takeaway) != "" {
			return TierSilver
		}
		return TierBronze
	default:
		return TierAbandoned
	}
}

// TaskType distinguishes the two orchestration workflows.
type TaskType string

const (
	TaskTypeFeature TaskType = "feature"
	TaskTypeBug     TaskType = "bug"
)

// TaskTypes lists both task types.
func TaskTypes() []TaskType {
	return []TaskType{TaskTypeFeature, TaskTypeBug}
}

// ParseTaskType validates a raw string against the closed task-type set.
func ParseTaskType(v string) (TaskType, error) {
	for _, t := range TaskTypes() {
		if v == string(t) {
			return t, nil
		}
	}
	return "", enumError("task_type", v, []string{string(TaskTypeFeature), string(TaskTypeBug)})
}

// Phase is one step of a task workflow. The valid set depends on the task
// type; the phase machine owns the transition tables.
type Phase string

const (
	// Feature phases.
	PhaseSpec       Phase = "SPEC"
	PhaseDesign     Phase = "DESIGN"
	PhaseImplement  Phase = "IMPLEMENT"
	PhaseCodeReview Phase = "CODE_REVIEW"
	PhaseTest       Phase = "TEST"
	PhaseIntegrate  Phase = "INTEGRATE"
	PhaseVerify     Phase = "VERIFY"
	PhaseDone       Phase = "DONE"

	// Bug phases. DONE is shared.
	PhaseReported     Phase = "REPORTED"
	PhaseInvestigated Phase = "INVESTIGATED"
	PhaseFixed        Phase = "FIXED"
	PhaseReviewed     Phase = "REVIEWED"
	PhaseTested       Phase = "TESTED"
	PhaseMerged       Phase = "MERGED"
)

// ReviewType names what a review approves.
type ReviewType string

const (
	ReviewTypeSpec     ReviewType = "spec"
	ReviewTypeProposal ReviewType = "proposal"
	ReviewTypeCode     ReviewType = "code"
	ReviewTypeBugfix   ReviewType = "bugfix"
)

// ReviewTypes lists every review type in declaration order.
func ReviewTypes() []ReviewType {
	return []ReviewType{ReviewTypeSpec, ReviewTypeProposal, ReviewTypeCode, ReviewTypeBugfix}
}

// ParseReviewType validates a raw string against the closed review-type set.
func ParseReviewType(v string) (ReviewType, error) {
	for _, t := range ReviewTypes() {
		if v == string(t) {
			return t, nil
		}
	}
	return "", enumError("review_type", v, reviewTypeStrings())
}

func reviewTypeStrings() []string {
	ts := ReviewTypes()
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

// ReviewResult is the verdict of a single review.
type ReviewResult string

const (
	ReviewApproved         ReviewResult = "approved"
	ReviewChangesRequested ReviewResult = "changes_requested"
)

// ReviewResults lists both verdicts.
func ReviewResults() []ReviewResult {
	return []ReviewResult{ReviewApproved, ReviewChangesRequested}
}

// ParseReviewResult validates a raw string against the closed verdict set.
func ParseReviewResult(v string) (ReviewResult, error) {
	for _, r := range ReviewResults() {
		if v == string(r) {
			return r, nil
		}
	}
	return "", enumError("result", v, []string{string(ReviewApproved), string(ReviewChangesRequested)})
}

// WorkerStatus tracks a spawned worker's lifecycle.
type WorkerStatus string

const (
	WorkerActive       WorkerStatus = "active"
	WorkerCompleted    WorkerStatus = "completed"
	WorkerFailed       WorkerStatus = "failed"
	WorkerSessionEnded WorkerStatus = "session_ended"
)

// WorkerStatuses lists every worker status in declaration order.
func WorkerStatuses() []WorkerStatus {
	return []WorkerStatus{WorkerActive, WorkerCompleted, WorkerFailed, WorkerSessionEnded}
}

// ParseWorkerStatus validates a raw string against the closed status set.
func ParseWorkerStatus(v string) (WorkerStatus, error) {
	for _, s := range WorkerStatuses() {
		if v == string(s) {
			return s, nil
		}
	}
	return "", enumError("status", v, workerStatusStrings())
}

func workerStatusStrings() []string {
	ss := WorkerStatuses()
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// MemoryCategory classifies a long-lived memory note.
type MemoryCategory string

const (
	MemoryFact       MemoryCategory = "fact"
	MemoryPreference MemoryCategory = "preference"
	MemoryError      MemoryCategory = "error"
	MemoryDecision   MemoryCategory = "decision"
	MemoryWorkflow   MemoryCategory = "workflow"
)

// MemoryCategories lists every memory category in declaration order.
func MemoryCategories() []MemoryCategory {
	return []MemoryCategory{MemoryFact, MemoryPreference, MemoryError, MemoryDecision, MemoryWorkflow}
}

// ParseMemoryCategory validates a raw string against the closed category set.
func ParseMemoryCategory(v string) (MemoryCategory, error) {
	for _, c := range MemoryCategories() {
		if v == string(c) {
			return c, nil
		}
	}
	return "", enumError("category", v, memoryCategoryStrings())
}

func memoryCategoryStrings() []string {
	cs := MemoryCategories()
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// enumError builds the uniform rejection message. It always names the field
// and spells out every valid value so callers can self-correct.
func enumError(field, got string, valid []string) error {
	return fmt.Errorf("invalid %s %q (valid: %s)", field, got, strings.Join(valid, ", "))
}
