// Package worktree manages git linked worktrees for tasks. Each task gets a
// worktree at {main_repo}/{dir}/{task_id} checked out on branch {task_id},
// so parallel workers never mutate each other's checkout. Git subprocesses
// for one repository run under a concurrency budget of one keyed by the main
// repository path.
package worktree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"engram/internal/config"
	"engram/internal/logging"
	"engram/internal/store"
	"engram/internal/types"
)

// Manager coordinates worktree lifecycle against the metadata store.
type Manager struct {
	store *store.Store
	cfg   *config.Config
	git   gitExec

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// New builds a Manager bound to the metadata store and config.
func New(st *store.Store, cfg *config.Config) *Manager {
	return &Manager{
		store: st,
		cfg:   cfg,
		git:   gitExec{timeout: cfg.GetGitTimeout()},
		locks: make(map[string]*semaphore.Weighted),
	}
}

// repoLock returns the mutation budget for one main repository path.
func (m *Manager) repoLock(repo string) *semaphore.Weighted {
	m.mu.Lock()
	defer m.mu.Unlock()
	sem, ok := m.locks[repo]
	if !ok {
		sem = semaphore.NewWeighted(1)
		m.locks[repo] = sem
	}
	return sem
}

// withRepoLock runs fn while holding the repository's mutation budget, so
// concurrent tool calls never mutate one git index at the same time.
func (m *Manager) withRepoLock(ctx context.Context, repo string, fn func() error) error {
	sem := m.repoLock(repo)
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer sem.Release(1)
	return fn()
}

// resolveRepo picks the first non-empty candidate directory and resolves the
// main repository root from it.
func (m *Manager) resolveRepo(ctx context.Context, candidates ...string) (string, error) {
	dir := "."
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			dir = c
			break
		}
	}
	return m.git.mainRepo(ctx, dir)
}

// ============================================================================
// CREATE
// ============================================================================

// CreateRequest names the task and tunes the pre-creation overlap check.
type CreateRequest struct {
	TaskID string

	// RepoDir is any directory inside the target repository. Defaults to the
	// task's project path, then the process working directory.
	RepoDir string

	// Force skips the overlap check entirely.
	Force bool

	// CheckOverlaps fails creation when overlapping work is found instead of
	// proceeding with warnings.
	CheckOverlaps bool
}

// CreateResult reports where the worktree lives.
type CreateResult struct {
	TaskID   string   `json:"task_id"`
	Path     string   `json:"path"`
	Branch   string   `json:"branch"`
	Created  bool     `json:"created"`
	Warnings []string `json:"warnings,omitempty"`
}

// Create sets up the task's worktree and branch and records the path on the
// task. Creation is idempotent: an already-registered worktree is returned
// with Created=false.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	timer := logging.StartTimer(logging.CategoryWorktree, "Create")
	defer timer.Stop()

	if strings.TrimSpace(req.TaskID) == "" {
		return nil, fmt.Errorf("task_id is required")
	}
	task, err := m.store.GetTask(req.TaskID)
	if err != nil {
		return nil, err
	}

	repo, err := m.resolveRepo(ctx, req.RepoDir, task.ProjectPath)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(repo, m.cfg.Worktree.Dir, task.ID)
	branch := task.ID
	res := &CreateResult{TaskID: task.ID, Path: path, Branch: branch}

	entries, err := m.git.worktrees(ctx, repo)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Path == path {
			if task.WorktreePath != path {
				if err := m.store.SetTaskWorktree(task.ID, path); err != nil {
					return nil, err
				}
			}
			logging.WorktreeDebug("Worktree for %s already exists at %s", task.ID, path)
			return res, nil
		}
	}

	if !req.Force {
		res.Warnings = m.overlapWarnings(ctx, repo, task, entries)
		if len(res.Warnings) > 0 && req.CheckOverlaps {
			return nil, fmt.Errorf("overlapping work detected, rerun with force to proceed: %s",
				strings.Join(res.Warnings, "; "))
		}
	}

	err = m.withRepoLock(ctx, repo, func() error {
		// Stale administrative entries block re-adding the same path.
		_, _ = m.git.run(ctx, repo, "worktree", "prune")
		if m.git.branchExists(ctx, repo, branch) {
			_, err := m.git.run(ctx, repo, "worktree", "add", path, branch)
			return err
		}
		_, err := m.git.run(ctx, repo, "worktree", "add", "-b", branch, path)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := m.store.SetTaskWorktree(task.ID, path); err != nil {
		return nil, err
	}
	res.Created = true
	logging.Worktree("Created worktree %s on branch %s", path, branch)
	return res, nil
}

// pathToken matches things that look like repository paths: tokens with a
// directory separator or a file extension.
var pathToken = regexp.MustCompile(`[A-Za-z0-9_.\-]+(?:/[A-Za-z0-9_.\-]+)+|[A-Za-z0-9_\-]+\.[A-Za-z0-9]+`)

func mentionedPaths(text string) map[string]struct{} {
	paths := make(map[string]struct{})
	for _, tok := range pathToken.FindAllString(text, -1) {
		tok = strings.TrimPrefix(tok, "./")
		tok = strings.TrimRight(tok, ".")
		if len(tok) < 3 {
			continue
		}
		paths[tok] = struct{}{}
	}
	return paths
}

// overlapWarnings compares the paths this task's notes mention against each
// sibling worktree's uncommitted edits and the sibling task's own mentions.
// An empty result means no overlap is detectable.
func (m *Manager) overlapWarnings(ctx context.Context, repo string, task *types.Task, entries []treeEntry) []string {
	mine := mentionedPaths(task.Notes)
	if len(mine) == 0 {
		return nil
	}
	container := filepath.Join(repo, m.cfg.Worktree.Dir)

	var warnings []string
	for _, e := range entries {
		if e.Path == repo || filepath.Dir(e.Path) != container {
			continue
		}
		siblingID := filepath.Base(e.Path)
		if siblingID == task.ID {
			continue
		}

		touched := make(map[string]struct{})
		if lines, err := m.git.status(ctx, e.Path); err == nil {
			for _, l := range lines {
				touched[l.Path] = struct{}{}
			}
		}
		if sibling, err := m.store.GetTask(siblingID); err == nil {
			for p := range mentionedPaths(sibling.Notes) {
				touched[p] = struct{}{}
			}
		}

		var overlap []string
		for p := range mine {
			if _, ok := touched[p]; ok {
				overlap = append(overlap, p)
			}
		}
		if len(overlap) == 0 {
			continue
		}
		sort.Strings(overlap)
		if len(overlap) > 5 {
			overlap = append(overlap[:5], "…")
		}
		warnings = append(warnings, fmt.Sprintf("worktree %s touches %s", siblingID, strings.Join(overlap, ", ")))
	}
	sort.Strings(warnings)
	return warnings
}

// ============================================================================
// MERGE
// ============================================================================

// MergeRequest merges a task's branch back into the main branch.
type MergeRequest struct {
	TaskID string

	// SkipSync disables the post-merge dependency sync.
	SkipSync bool

	// Force merges even while the merge_lock counter is held.
	Force bool
}

// MergeResult reports the merge commit and what ran afterwards.
type MergeResult struct {
	TaskID      string   `json:"task_id"`
	Commit      string   `json:"commit"`
	FastForward bool     `json:"fast_forward"`
	Synced      bool     `json:"synced"`
	SyncCommand string   `json:"sync_command,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Merge fast-forwards or merges the task branch into the main checkout,
// then syncs dependencies with the first available configured command and
// bumps the batch-trigger counters.
func (m *Manager) Merge(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	timer := logging.StartTimer(logging.CategoryWorktree, "Merge")
	defer timer.Stop()

	task, err := m.store.GetTask(req.TaskID)
	if err != nil {
		return nil, err
	}
	if task.WorktreePath == "" {
		return nil, fmt.Errorf("task %s has no worktree", task.ID)
	}

	if !req.Force {
		held, err := m.store.GetCounter(store.CounterMergeLock)
		if err != nil {
			return nil, err
		}
		if held > 0 {
			return nil, fmt.Errorf("merge_lock is held (%d), release it or pass force", held)
		}
	}

	repo, err := m.git.mainRepo(ctx, task.WorktreePath)
	if err != nil {
		return nil, err
	}
	branch := task.ID
	res := &MergeResult{TaskID: task.ID}

	if lines, err := m.git.status(ctx, task.WorktreePath); err == nil && len(lines) > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("worktree has %d uncommitted change(s) that will not be merged", len(lines)))
	}

	err = m.withRepoLock(ctx, repo, func() error {
		if _, err := m.git.run(ctx, repo, "merge", "--ff-only", branch); err == nil {
			res.FastForward = true
		} else if _, err := m.git.run(ctx, repo, "merge", "--no-ff", "-m", "Merge "+branch, branch); err != nil {
			conflicts, _ := m.git.conflictedPaths(ctx, repo)
			_, _ = m.git.run(ctx, repo, "merge", "--abort")
			if len(conflicts) > 0 {
				return fmt.Errorf("merge of %s conflicts in: %s", branch, strings.Join(conflicts, ", "))
			}
			return err
		}
		commit, err := m.git.head(ctx, repo)
		if err != nil {
			return err
		}
		res.Commit = commit
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !req.SkipSync {
		cmd, err := m.syncDependencies(ctx, repo)
		switch {
		case err != nil:
			res.Warnings = append(res.Warnings, fmt.Sprintf("dependency sync failed: %v", err))
		case cmd == "":
			res.Warnings = append(res.Warnings, "no configured sync command is available")
		default:
			res.Synced = true
			res.SyncCommand = cmd
		}
	}

	for _, counter := range []string{store.CounterMergesSinceE2E, store.CounterMergesSinceDocs} {
		if _, err := m.store.IncrementCounter(counter); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("counter %s not bumped: %v", counter, err))
		}
	}

	logging.Worktree("Merged %s as %s (ff=%v)", branch, res.Commit, res.FastForward)
	return res, nil
}

// syncDependencies runs the first configured sync command whose binary is on
// PATH, with {project} expanded to the repository root. Returns the rendered
// command line, or "" when none is available.
func (m *Manager) syncDependencies(ctx context.Context, repo string) (string, error) {
	for _, argv := range m.cfg.Worktree.SyncCommands {
		if len(argv) == 0 {
			continue
		}
		if _, err := exec.LookPath(argv[0]); err != nil {
			continue
		}
		expanded := make([]string, len(argv))
		for i, a := range argv {
			expanded[i] = strings.ReplaceAll(a, "{project}", repo)
		}
		rendered := strings.Join(expanded, " ")
		logging.WorktreeDebug("Post-merge dependency sync: %s", rendered)

		cmd := exec.CommandContext(ctx, expanded[0], expanded[1:]...)
		cmd.Dir = repo
		if out, err := cmd.CombinedOutput(); err != nil {
			return rendered, fmt.Errorf("%s: %w\nOutput: %s", rendered, err, bytes.TrimSpace(out))
		}
		return rendered, nil
	}
	return "", nil
}

// ============================================================================
// REMOVE / CONFLICTS / LIST
// ============================================================================

// RemoveResult reports the removed worktree.
type RemoveResult struct {
	TaskID   string   `json:"task_id"`
	Path     string   `json:"path"`
	Removed  bool     `json:"removed"`
	Warnings []string `json:"warnings,omitempty"`
}

// Remove deletes the task's worktree without merging. The branch is kept;
// unmerged commits stay reachable.
func (m *Manager) Remove(ctx context.Context, taskID string) (*RemoveResult, error) {
	task, err := m.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task.WorktreePath == "" {
		return nil, fmt.Errorf("task %s has no worktree", task.ID)
	}
	path := task.WorktreePath
	res := &RemoveResult{TaskID: task.ID, Path: path}

	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(path, cwd); err == nil && rel != ".." && !strings.HasPrefix(rel, "../") {
			res.Warnings = append(res.Warnings,
				"current working directory is inside the removed worktree, cd out before running further commands")
		}
	}

	repo, err := m.git.mainRepo(ctx, path)
	if err != nil {
		// Tree contents may already be gone; fall back to the project path.
		repo, err = m.resolveRepo(ctx, task.ProjectPath)
		if err != nil {
			return nil, err
		}
	}

	err = m.withRepoLock(ctx, repo, func() error {
		return m.removeTree(ctx, repo, path)
	})
	if err != nil {
		return nil, err
	}

	if err := m.store.SetTaskWorktree(task.ID, ""); err != nil {
		return nil, err
	}
	res.Removed = true
	logging.Worktree("Removed worktree %s", path)
	return res, nil
}

// removeTree deletes one worktree, falling back to manual removal plus prune
// when git refuses. Caller holds the repo lock.
func (m *Manager) removeTree(ctx context.Context, repo, path string) error {
	if _, err := m.git.run(ctx, repo, "worktree", "remove", path, "--force"); err != nil {
		logging.WorktreeWarn("git worktree remove failed, removing manually: %v", err)
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("failed to remove worktree %s: %w", path, rmErr)
		}
		_, _ = m.git.run(ctx, repo, "worktree", "prune")
	}
	return nil
}

// ConflictReport lists the paths a merge of the task branch would conflict
// on. Clean means the merge would apply without conflicts.
type ConflictReport struct {
	TaskID    string   `json:"task_id"`
	Branch    string   `json:"branch"`
	Clean     bool     `json:"clean"`
	Conflicts []string `json:"conflicts"`
}

// CheckConflicts dry-runs a merge of the task branch into the main checkout
// and aborts it, leaving no state behind.
func (m *Manager) CheckConflicts(ctx context.Context, taskID string) (*ConflictReport, error) {
	task, err := m.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task.WorktreePath == "" {
		return nil, fmt.Errorf("task %s has no worktree", task.ID)
	}
	repo, err := m.git.mainRepo(ctx, task.WorktreePath)
	if err != nil {
		return nil, err
	}

	report := &ConflictReport{TaskID: task.ID, Branch: task.ID, Conflicts: []string{}}
	err = m.withRepoLock(ctx, repo, func() error {
		_, mergeErr := m.git.run(ctx, repo, "merge", "--no-commit", "--no-ff", task.ID)
		conflicts, _ := m.git.conflictedPaths(ctx, repo)
		_, _ = m.git.run(ctx, repo, "merge", "--abort")
		if mergeErr != nil && len(conflicts) == 0 {
			return mergeErr
		}
		if len(conflicts) > 0 {
			report.Conflicts = conflicts
		}
		report.Clean = len(conflicts) == 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.WorktreeDebug("Conflict check for %s: clean=%v (%d paths)",
		task.ID, report.Clean, len(report.Conflicts))
	return report, nil
}

// Info describes one managed worktree.
type Info struct {
	TaskID   string `json:"task_id"`
	Path     string `json:"path"`
	Branch   string `json:"branch"`
	Phase    string `json:"phase,omitempty"`
	TaskType string `json:"task_type,omitempty"`
}

// List enumerates worktrees under the configured container, enriched with
// task phase and type when the task row still exists.
func (m *Manager) List(ctx context.Context, repoDir string) ([]Info, error) {
	repo, err := m.resolveRepo(ctx, repoDir)
	if err != nil {
		return nil, err
	}
	entries, err := m.git.worktrees(ctx, repo)
	if err != nil {
		return nil, err
	}

	container := filepath.Join(repo, m.cfg.Worktree.Dir)
	infos := make([]Info, 0)
	for _, e := range entries {
		if e.Path == repo || filepath.Dir(e.Path) != container {
			continue
		}
		info := Info{TaskID: filepath.Base(e.Path), Path: e.Path, Branch: e.Branch}
		if task, err := m.store.GetTask(info.TaskID); err == nil {
			info.Phase = string(task.Phase)
			info.TaskType = string(task.TaskType)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ============================================================================
// HEALTH
// ============================================================================

// Health levels.
const (
	HealthOK      = "OK"
	HealthWarning = "WARNING"
	HealthError   = "ERROR"
)

// HealthFinding is one audited condition on one worktree.
type HealthFinding struct {
	TaskID string `json:"task_id"`
	Path   string `json:"path"`
	Level  string `json:"level"`
	Issue  string `json:"issue"`
	Action string `json:"action,omitempty"`
}

// HealthReport aggregates the audit.
type HealthReport struct {
	Checked  int             `json:"checked"`
	Healthy  int             `json:"healthy"`
	Fixed    int             `json:"fixed"`
	Findings []HealthFinding `json:"findings"`
	Summary  string          `json:"summary"`
}

// Health audits every managed worktree: orphaned trees (no task row), DONE
// tasks whose tree is still present, uncommitted changes, and staleness.
// With fix set, orphaned and DONE trees are removed when clean; dryRun
// reports what fix would do without touching anything.
func (m *Manager) Health(ctx context.Context, repoDir string, fix, dryRun bool) (*HealthReport, error) {
	timer := logging.StartTimer(logging.CategoryWorktree, "Health")
	defer timer.Stop()

	repo, err := m.resolveRepo(ctx, repoDir)
	if err != nil {
		return nil, err
	}
	entries, err := m.git.worktrees(ctx, repo)
	if err != nil {
		return nil, err
	}

	report := &HealthReport{Findings: []HealthFinding{}}
	container := filepath.Join(repo, m.cfg.Worktree.Dir)
	staleCutoff := time.Now().UTC().Add(-time.Duration(m.cfg.Worktree.StaleDays) * 24 * time.Hour)
	var warnings, errorsFound int

	for _, e := range entries {
		if e.Path == repo || filepath.Dir(e.Path) != container {
			continue
		}
		report.Checked++
		taskID := filepath.Base(e.Path)

		var dirty int
		if lines, statusErr := m.git.status(ctx, e.Path); statusErr == nil {
			dirty = len(lines)
		}

		var findings []HealthFinding
		task, taskErr := m.store.GetTask(taskID)
		switch {
		case errors.Is(taskErr, store.ErrNotFound):
			findings = append(findings, HealthFinding{
				TaskID: taskID, Path: e.Path, Level: HealthError,
				Issue: "orphaned: no task record",
			})
		case taskErr != nil:
			findings = append(findings, HealthFinding{
				TaskID: taskID, Path: e.Path, Level: HealthError,
				Issue: fmt.Sprintf("task lookup failed: %v", taskErr),
			})
		case task.Phase == types.PhaseDone:
			findings = append(findings, HealthFinding{
				TaskID: taskID, Path: e.Path, Level: HealthWarning,
				Issue: "task is DONE but worktree remains",
			})
		}

		if dirty > 0 {
			findings = append(findings, HealthFinding{
				TaskID: taskID, Path: e.Path, Level: HealthWarning,
				Issue: fmt.Sprintf("uncommitted changes (%d file(s))", dirty),
			})
		}
		if last, timeErr := m.git.lastCommitTime(ctx, e.Path); timeErr == nil && last.Before(staleCutoff) {
			findings = append(findings, HealthFinding{
				TaskID: taskID, Path: e.Path, Level: HealthWarning,
				Issue: fmt.Sprintf("stale: no commits since %s", last.Format("2006-01-02")),
			})
		}

		if len(findings) == 0 {
			report.Healthy++
			report.Findings = append(report.Findings, HealthFinding{
				TaskID: taskID, Path: e.Path, Level: HealthOK, Issue: "healthy",
			})
			continue
		}

		for i, f := range findings {
			removable := f.Issue == "orphaned: no task record" || strings.HasPrefix(f.Issue, "task is DONE")
			if removable && (fix || dryRun) {
				switch {
				case dirty > 0:
					findings[i].Action = "removal skipped: uncommitted changes"
				case dryRun:
					findings[i].Action = "would remove worktree"
				default:
					rmErr := m.withRepoLock(ctx, repo, func() error {
						return m.removeTree(ctx, repo, e.Path)
					})
					if rmErr != nil {
						findings[i].Action = fmt.Sprintf("removal failed: %v", rmErr)
					} else {
						findings[i].Action = "removed worktree"
						report.Fixed++
						if task != nil && task.WorktreePath == e.Path {
							_ = m.store.SetTaskWorktree(task.ID, "")
						}
					}
				}
			}
			switch f.Level {
			case HealthWarning:
				warnings++
			case HealthError:
				errorsFound++
			}
		}
		report.Findings = append(report.Findings, findings...)
	}

	report.Summary = fmt.Sprintf("%d worktree(s): %d healthy, %d warning(s), %d error(s)",
		report.Checked, report.Healthy, warnings, errorsFound)
	if report.Fixed > 0 {
		report.Summary += fmt.Sprintf(", %d fixed", report.Fixed)
	}
	logging.Worktree("Health audit: %s", report.Summary)
	return report, nil
}

// ============================================================================
// SESSION HANDOFF AUTO-COMMIT
// ============================================================================

// AutoCommitResult reports which worktrees were committed at session end and
// which still carry unstaged changes.
type AutoCommitResult struct {
	Committed []string `json:"committed"`
	Unstaged  []string `json:"unstaged"`
	Summary   string   `json:"summary,omitempty"`
}

// AutoCommitOnHandoff walks every task with a worktree; staged changes are
// committed with the configured message, worktrees with unstaged changes are
// listed separately. The Summary is markdown meant for the handoff content.
func (m *Manager) AutoCommitOnHandoff(ctx context.Context) (*AutoCommitResult, error) {
	timer := logging.StartTimer(logging.CategoryWorktree, "AutoCommitOnHandoff")
	defer timer.Stop()

	tasks, err := m.store.ListTasks("")
	if err != nil {
		return nil, err
	}

	res := &AutoCommitResult{Committed: []string{}, Unstaged: []string{}}
	for _, task := range tasks {
		if task.WorktreePath == "" {
			continue
		}
		if _, statErr := os.Stat(task.WorktreePath); statErr != nil {
			continue
		}
		lines, err := m.git.status(ctx, task.WorktreePath)
		if err != nil {
			logging.WorktreeWarn("Skipping %s during handoff auto-commit: %v", task.WorktreePath, err)
			continue
		}

		var staged, unstaged bool
		for _, l := range lines {
			staged = staged || l.Staged
			unstaged = unstaged || l.Unstaged
		}

		if staged {
			repo, err := m.git.mainRepo(ctx, task.WorktreePath)
			if err != nil {
				logging.WorktreeWarn("Cannot resolve repo for %s: %v", task.WorktreePath, err)
				continue
			}
			err = m.withRepoLock(ctx, repo, func() error {
				_, commitErr := m.git.run(ctx, task.WorktreePath, "commit", "-m", m.cfg.Worktree.AutoCommitMessage)
				return commitErr
			})
			if err != nil {
				logging.WorktreeWarn("Auto-commit failed for %s: %v", task.ID, err)
				continue
			}
			res.Committed = append(res.Committed, task.ID)
			logging.Worktree("Auto-committed staged changes in %s", task.WorktreePath)
		}
		if unstaged {
			res.Unstaged = append(res.Unstaged, task.ID)
		}
	}

	sort.Strings(res.Committed)
	sort.Strings(res.Unstaged)
	res.Summary = handoffSummary(res)
	return res, nil
}

func handoffSummary(res *AutoCommitResult) string {
	if len(res.Committed) == 0 && len(res.Unstaged) == 0 {
		return ""
	}
	var b strings.Builder
	if len(res.Committed) > 0 {
		b.WriteString("## Auto-committed worktrees\n")
		for _, id := range res.Committed {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	}
	if len(res.Unstaged) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Worktrees with unstaged changes\n")
		for _, id := range res.Unstaged {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
