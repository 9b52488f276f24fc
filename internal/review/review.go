// Package review records reviewer verdicts and evaluates phase-transition
// gates. A gate is an ordered requirement list for one transition: review
// quorums resolved from the metadata store plus automated checks run as
// subprocesses in the task's working tree.
package review

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"engram/internal/config"
	"engram/internal/logging"
	"engram/internal/phase"
	"engram/internal/store"
	"engram/internal/types"
)

// Evaluator owns review recording and gate evaluation.
type Evaluator struct {
	store *store.Store
	cfg   *config.Config
}

// New wires an evaluator over the metadata store and config.
func New(st *store.Store, cfg *config.Config) *Evaluator {
	return &Evaluator{store: st, cfg: cfg}
}

// ============================================================================
// REVIEWS
// ============================================================================

// RecordRequest carries one reviewer's verdict.
type RecordRequest struct {
	TaskID   string
	Type     string
	Result   string
	WorkerID string
	Notes    string
}

// Record validates and stores a verdict. A changes_requested verdict clears
// prior reviews of the same type inside the store transaction, so the quorum
// restarts from zero.
func (e *Evaluator) Record(req RecordRequest) (*types.Review, error) {
	if strings.TrimSpace(req.TaskID) == "" {
		return nil, fmt.Errorf("task_id is required")
	}
	rtype, err := types.ParseReviewType(req.Type)
	if err != nil {
		return nil, err
	}
	result, err := types.ParseReviewResult(req.Result)
	if err != nil {
		return nil, err
	}

	r := &types.Review{
		ID:         types.NewID(types.PrefixReview),
		TaskID:     req.TaskID,
		ReviewType: rtype,
		Result:     result,
		WorkerID:   strings.TrimSpace(req.WorkerID),
		Notes:      req.Notes,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.RecordReview(r); err != nil {
		return nil, err
	}
	logging.Review("Recorded %s/%s review for %s (worker=%q)", rtype, result, req.TaskID, r.WorkerID)
	return r, nil
}

// List returns a task's reviews oldest first, optionally scoped to one type.
func (e *Evaluator) List(taskID, reviewType string) ([]*types.Review, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("task_id is required")
	}
	var rtype types.ReviewType
	if reviewType != "" {
		parsed, err := types.ParseReviewType(reviewType)
		if err != nil {
			return nil, err
		}
		rtype = parsed
	}
	return e.store.ListReviews(taskID, rtype)
}

// CheckQuorum reports whether (task, type) has the required distinct
// approvals, and how many exist.
func (e *Evaluator) CheckQuorum(taskID, reviewType string) (bool, int, error) {
	if strings.TrimSpace(taskID) == "" {
		return false, 0, fmt.Errorf("task_id is required")
	}
	rtype, err := types.ParseReviewType(reviewType)
	if err != nil {
		return false, 0, err
	}
	return e.store.CheckReviews(taskID, rtype)
}

// ============================================================================
// GATE TABLE
// ============================================================================

type checkKind int

const (
	checkTests checkKind = iota
	checkTypes
	checkReview
)

type requirement struct {
	name   string
	kind   checkKind
	review types.ReviewType // set when kind == checkReview
}

// Gates are keyed by the phase being entered. Transitions absent from the
// table are unguarded and pass with an empty check list.
var featureGates = map[types.Phase][]requirement{
	types.PhaseDesign: {
		{name: "two spec reviews approved", kind: checkReview, review: types.ReviewTypeSpec},
	},
	types.PhaseImplement: {
		{name: "two proposal reviews approved", kind: checkReview, review: types.ReviewTypeProposal},
	},
	types.PhaseCodeReview: {
		{name: "tests pass", kind: checkTests},
		{name: "types check", kind: checkTypes},
	},
	types.PhaseTest: {
		{name: "two code reviews approved", kind: checkReview, review: types.ReviewTypeCode},
	},
	types.PhaseIntegrate: {
		{name: "tests pass", kind: checkTests},
	},
}

var bugGates = map[types.Phase][]requirement{
	types.PhaseFixed: {
		{name: "tests pass", kind: checkTests},
		{name: "types check", kind: checkTypes},
	},
	types.PhaseReviewed: {
		{name: "two bugfix reviews approved", kind: checkReview, review: types.ReviewTypeBugfix},
	},
	types.PhaseTested: {
		{name: "tests pass", kind: checkTests},
	},
}

func gateFor(tt types.TaskType, to types.Phase) []requirement {
	if tt == types.TaskTypeBug {
		return bugGates[to]
	}
	return featureGates[to]
}

// GateRequirement describes one entry of a gate for callers that list gates
// without running them.
type GateRequirement struct {
	Description string `json:"description"`
	Automated   bool   `json:"automated"`
}

// GateRequirements returns the requirement list guarding entry into a phase.
func GateRequirements(tt types.TaskType, to types.Phase) []GateRequirement {
	reqs := gateFor(tt, to)
	out := make([]GateRequirement, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, GateRequirement{
			Description: r.name,
			Automated:   r.kind != checkReview,
		})
	}
	return out
}

// ============================================================================
// GATE EVALUATION
// ============================================================================

// CheckResult is one requirement's outcome.
type CheckResult struct {
	Name            string  `json:"name"`
	Automated       bool    `json:"automated"`
	Passed          bool    `json:"passed"`
	Message         string  `json:"message,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// GateResult is the full evaluation of one transition's gate.
type GateResult struct {
	TaskID     string        `json:"task_id"`
	Transition string        `json:"transition"`
	Commit     string        `json:"commit,omitempty"`
	Checks     []CheckResult `json:"checks"`
	Passed     bool          `json:"passed"`
}

// CheckGate runs the ordered requirement list guarding the task's move into
// the target phase. The transition itself must be the legal next edge for the
// task's current phase. Checks run in order and all of them run even after a
// failure, so the caller sees the whole picture at once.
func (e *Evaluator) CheckGate(ctx context.Context, taskID, transition string) (*GateResult, error) {
	timer := logging.StartTimer(logging.CategoryReview, "CheckGate")
	defer timer.Stop()

	task, err := e.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	target := types.Phase(strings.ToUpper(strings.TrimSpace(transition)))
	if target == "" {
		return nil, fmt.Errorf("transition is required")
	}
	if err := phase.ValidateTransition(task.TaskType, task.Phase, target); err != nil {
		return nil, err
	}

	dir := task.WorktreePath
	if dir == "" {
		dir = task.ProjectPath
	}

	res := &GateResult{
		TaskID:     task.ID,
		Transition: fmt.Sprintf("%s -> %s", task.Phase, target),
		Commit:     e.commitIdentity(ctx, dir),
		Checks:     []CheckResult{},
		Passed:     true,
	}
	for _, req := range gateFor(task.TaskType, target) {
		var check CheckResult
		if req.kind == checkReview {
			check = e.reviewCheck(task.ID, req)
		} else {
			check = e.commandCheck(ctx, req, dir)
		}
		res.Checks = append(res.Checks, check)
		if !check.Passed {
			res.Passed = false
		}
	}

	logging.Review("Gate %s for %s: passed=%v over %d checks", res.Transition, task.ID, res.Passed, len(res.Checks))
	return res, nil
}

func (e *Evaluator) reviewCheck(taskID string, req requirement) CheckResult {
	res := CheckResult{Name: req.name}
	passed, count, err := e.store.CheckReviews(taskID, req.review)
	if err != nil {
		res.Message = err.Error()
		return res
	}
	res.Passed = passed
	res.Message = fmt.Sprintf("%d of %d approvals", count, store.Quorum)
	return res
}

func (e *Evaluator) commandCheck(ctx context.Context, req requirement, dir string) CheckResult {
	res := CheckResult{Name: req.name, Automated: true}
	argv := e.commandFor(req.kind)
	if len(argv) == 0 {
		res.Message = "no command configured"
		return res
	}
	if dir == "" {
		res.Message = "task has no worktree or project path"
		return res
	}

	timeout := e.cfg.GetGateCheckTimeout()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	expanded := expandArgv(argv, dir)
	cmd := exec.CommandContext(cctx, expanded[0], expanded[1:]...)
	cmd.Dir = dir

	start := time.Now()
	out, err := cmd.CombinedOutput()
	res.DurationSeconds = time.Since(start).Seconds()

	if cctx.Err() == context.DeadlineExceeded {
		res.Message = fmt.Sprintf("timed out after %s", timeout)
		return res
	}
	if err != nil {
		res.Message = failureMessage(string(out), err)
		return res
	}
	res.Passed = true
	return res
}

func (e *Evaluator) commandFor(kind checkKind) []string {
	switch kind {
	case checkTests:
		return e.cfg.Gates.TestCommand
	case checkTypes:
		return e.cfg.Gates.TypecheckCommand
	}
	return nil
}

// commitIdentity resolves HEAD in the task's tree, best effort.
func (e *Evaluator) commitIdentity(ctx context.Context, dir string) string {
	if dir == "" {
		return ""
	}
	cctx, cancel := context.WithTimeout(ctx, e.cfg.GetGitTimeout())
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func expandArgv(argv []string, dir string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, "{project}", dir)
	}
	return out
}

// failureMessage keeps the last non-empty output line, which is where test
// runners put their verdict, and caps it so envelopes stay small.
func failureMessage(out string, err error) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			if len(line) > 200 {
				line = line[:200]
			}
			return line
		}
	}
	return err.Error()
}
