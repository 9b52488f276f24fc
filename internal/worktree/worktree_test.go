package worktree

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"engram/internal/config"
	"engram/internal/store"
	"engram/internal/types"
)

// ============================================================================
// FIXTURES
// ============================================================================

type fixture struct {
	mgr   *Manager
	store *store.Store
	cfg   *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	requireGit(t)

	st, err := store.Open(filepath.Join(t.TempDir(), "engram.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig(t.TempDir())
	return &fixture{mgr: New(st, cfg), store: st, cfg: cfg}
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// initRepo creates a repository with one commit on branch main.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitCmd(t, dir, "init", "-b", "main")
	gitCmd(t, dir, "config", "user.email", "dev@example.com")
	gitCmd(t, dir, "config", "user.name", "Dev")
	writeFile(t, dir, "README.md", "hello\n")
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", "initial commit")
	return dir
}

func (f *fixture) createTask(t *testing.T, id string, phase types.Phase, project string) *types.Task {
	t.Helper()
	now := time.Now().UTC()
	task := &types.Task{
		ID:          id,
		Title:       "Task " + id,
		TaskType:    types.TaskTypeFeature,
		Phase:       phase,
		ProjectPath: project,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.store.CreateTask(task); err != nil {
		t.Fatalf("create task %s: %v", id, err)
	}
	return task
}

// commitFile writes, stages and commits one file inside dir.
func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()
	writeFile(t, dir, name, content)
	gitCmd(t, dir, "add", name)
	gitCmd(t, dir, "commit", "-m", message)
}

// ============================================================================
// CREATE
// ============================================================================

func TestCreateWorktree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)
	f.createTask(t, "task-alpha", types.PhaseImplement, repo)

	res, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !res.Created {
		t.Error("expected Created=true on first create")
	}
	if res.Branch != "task-alpha" {
		t.Errorf("branch = %q, want task-alpha", res.Branch)
	}
	wantSuffix := filepath.Join(".worktrees", "task-alpha")
	if !strings.HasSuffix(res.Path, wantSuffix) {
		t.Errorf("path = %q, want suffix %q", res.Path, wantSuffix)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Errorf("worktree directory missing: %v", err)
	}
	if out := gitCmd(t, repo, "branch", "--list", "task-alpha"); out == "" {
		t.Error("branch task-alpha was not created")
	}

	task, err := f.store.GetTask("task-alpha")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.WorktreePath != res.Path {
		t.Errorf("task worktree_path = %q, want %q", task.WorktreePath, res.Path)
	}

	// Second create is idempotent.
	again, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if again.Created {
		t.Error("expected Created=false on repeated create")
	}
	if again.Path != res.Path {
		t.Errorf("repeated create path = %q, want %q", again.Path, res.Path)
	}
}

func TestCreateMissingTask(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Create(context.Background(), CreateRequest{TaskID: "task-ghost", RepoDir: initRepo(t)})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateOverlapWarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)
	notes := "touches internal/auth/login.go and internal/auth/session.go"

	bravo := f.createTask(t, "task-bravo", types.PhaseImplement, repo)
	bravo.Notes = notes
	if err := f.store.SetTaskNotes("task-bravo", notes); err != nil {
		t.Fatalf("SetTaskNotes: %v", err)
	}
	if _, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-bravo"}); err != nil {
		t.Fatalf("Create bravo: %v", err)
	}

	f.createTask(t, "task-alpha", types.PhaseImplement, repo)
	if err := f.store.SetTaskNotes("task-alpha", notes); err != nil {
		t.Fatalf("SetTaskNotes: %v", err)
	}

	// check_overlaps demands explicit confirmation.
	_, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha", CheckOverlaps: true})
	if err == nil || !strings.Contains(err.Error(), "overlapping work") {
		t.Fatalf("err = %v, want overlap rejection", err)
	}

	// Default: proceed with a warning summary.
	res, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Create alpha: %v", err)
	}
	if !res.Created {
		t.Error("expected worktree to be created despite overlap")
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", res.Warnings)
	}
	if !strings.Contains(res.Warnings[0], "task-bravo") ||
		!strings.Contains(res.Warnings[0], "internal/auth/login.go") {
		t.Errorf("warning %q should name the sibling and the path", res.Warnings[0])
	}

	// Force bypasses the check entirely.
	f.createTask(t, "task-charlie", types.PhaseImplement, repo)
	if err := f.store.SetTaskNotes("task-charlie", notes); err != nil {
		t.Fatalf("SetTaskNotes: %v", err)
	}
	forced, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-charlie", Force: true})
	if err != nil {
		t.Fatalf("forced Create: %v", err)
	}
	if len(forced.Warnings) != 0 {
		t.Errorf("forced create warnings = %v, want none", forced.Warnings)
	}
}

func TestCreateDetectsMainRepoFromWorktree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)

	f.createTask(t, "task-alpha", types.PhaseImplement, repo)
	alpha, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Create alpha: %v", err)
	}

	// Creating from inside a linked worktree still lands under the main repo.
	f.createTask(t, "task-bravo", types.PhaseImplement, alpha.Path)
	bravo, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-bravo"})
	if err != nil {
		t.Fatalf("Create bravo: %v", err)
	}
	if filepath.Dir(bravo.Path) != filepath.Dir(alpha.Path) {
		t.Errorf("bravo path %q not alongside alpha path %q", bravo.Path, alpha.Path)
	}
}

// ============================================================================
// MERGE
// ============================================================================

func TestMergeFastForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)
	f.createTask(t, "task-alpha", types.PhaseIntegrate, repo)

	res, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	commitFile(t, res.Path, "feature.go", "package feature\n", "add feature")

	f.cfg.Worktree.SyncCommands = [][]string{{"touch", "{project}/synced.txt"}}
	merged, err := f.mgr.Merge(ctx, MergeRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Commit == "" {
		t.Error("merge commit identity missing")
	}
	if !merged.FastForward {
		t.Error("expected a fast-forward merge")
	}
	if _, err := os.Stat(filepath.Join(repo, "feature.go")); err != nil {
		t.Errorf("merged file missing from main checkout: %v", err)
	}
	if !merged.Synced {
		t.Errorf("expected dependency sync to run, warnings: %v", merged.Warnings)
	}
	if _, err := os.Stat(filepath.Join(repo, "synced.txt")); err != nil {
		t.Errorf("sync command did not run with {project} expanded: %v", err)
	}

	for _, counter := range []string{store.CounterMergesSinceE2E, store.CounterMergesSinceDocs} {
		n, err := f.store.GetCounter(counter)
		if err != nil {
			t.Fatalf("GetCounter(%s): %v", counter, err)
		}
		if n != 1 {
			t.Errorf("counter %s = %d, want 1", counter, n)
		}
	}
}

func TestMergeDivergedCreatesMergeCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)
	f.createTask(t, "task-alpha", types.PhaseIntegrate, repo)

	res, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	commitFile(t, repo, "main.go", "package main\n", "mainline work")
	commitFile(t, res.Path, "feature.go", "package feature\n", "add feature")

	merged, err := f.mgr.Merge(ctx, MergeRequest{TaskID: "task-alpha", SkipSync: true})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.FastForward {
		t.Error("diverged histories should not fast-forward")
	}
	parents := strings.Fields(gitCmd(t, repo, "rev-list", "--parents", "-n", "1", "HEAD"))
	if len(parents) != 3 {
		t.Errorf("HEAD has %d parent field(s), want merge commit with 2 parents", len(parents))
	}
}

func TestMergeRespectsMergeLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)
	f.createTask(t, "task-alpha", types.PhaseIntegrate, repo)

	res, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	commitFile(t, res.Path, "feature.go", "package feature\n", "add feature")

	if err := f.store.SetCounter(store.CounterMergeLock, 1); err != nil {
		t.Fatalf("SetCounter: %v", err)
	}

	_, err = f.mgr.Merge(ctx, MergeRequest{TaskID: "task-alpha", SkipSync: true})
	if err == nil || !strings.Contains(err.Error(), "merge_lock is held") {
		t.Fatalf("err = %v, want merge_lock rejection", err)
	}

	if _, err := f.mgr.Merge(ctx, MergeRequest{TaskID: "task-alpha", SkipSync: true, Force: true}); err != nil {
		t.Fatalf("forced Merge: %v", err)
	}

	// The lock is advisory; force does not clear it.
	if n, _ := f.store.GetCounter(store.CounterMergeLock); n != 1 {
		t.Errorf("merge_lock = %d after forced merge, want 1", n)
	}
}

func TestMergeConflictAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)
	f.createTask(t, "task-alpha", types.PhaseIntegrate, repo)

	res, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	commitFile(t, repo, "README.md", "mainline\n", "mainline edit")
	commitFile(t, res.Path, "README.md", "feature\n", "feature edit")

	_, err = f.mgr.Merge(ctx, MergeRequest{TaskID: "task-alpha", SkipSync: true})
	if err == nil || !strings.Contains(err.Error(), "README.md") {
		t.Fatalf("err = %v, want conflict naming README.md", err)
	}

	// The failed merge must leave the main checkout clean.
	if out := gitCmd(t, repo, "status", "--porcelain"); out != "" {
		t.Errorf("main checkout dirty after aborted merge:\n%s", out)
	}
}

func TestMergeRequiresWorktree(t *testing.T) {
	f := newFixture(t)
	f.createTask(t, "task-alpha", types.PhaseIntegrate, initRepo(t))

	_, err := f.mgr.Merge(context.Background(), MergeRequest{TaskID: "task-alpha"})
	if err == nil || !strings.Contains(err.Error(), "no worktree") {
		t.Fatalf("err = %v, want missing-worktree rejection", err)
	}
}

// ============================================================================
// CONFLICT CHECK / REMOVE / LIST
// ============================================================================

func TestCheckConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)
	f.createTask(t, "task-alpha", types.PhaseImplement, repo)

	res, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	commitFile(t, repo, "README.md", "mainline\n", "mainline edit")
	commitFile(t, res.Path, "README.md", "feature\n", "feature edit")

	before := gitCmd(t, repo, "rev-parse", "HEAD")
	report, err := f.mgr.CheckConflicts(ctx, "task-alpha")
	if err != nil {
		t.Fatalf("CheckConflicts: %v", err)
	}
	if report.Clean {
		t.Error("expected conflicts to be reported")
	}
	found := false
	for _, p := range report.Conflicts {
		if p == "README.md" {
			found = true
		}
	}
	if !found {
		t.Errorf("conflicts = %v, want README.md", report.Conflicts)
	}

	// Dry run: no merge performed, checkout untouched.
	if after := gitCmd(t, repo, "rev-parse", "HEAD"); after != before {
		t.Errorf("HEAD moved from %s to %s during dry run", before, after)
	}
	if out := gitCmd(t, repo, "status", "--porcelain"); out != "" {
		t.Errorf("main checkout dirty after dry run:\n%s", out)
	}
}

func TestCheckConflictsClean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)
	f.createTask(t, "task-alpha", types.PhaseImplement, repo)

	res, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	commitFile(t, res.Path, "feature.go", "package feature\n", "add feature")

	before := gitCmd(t, repo, "rev-parse", "HEAD")
	report, err := f.mgr.CheckConflicts(ctx, "task-alpha")
	if err != nil {
		t.Fatalf("CheckConflicts: %v", err)
	}
	if !report.Clean {
		t.Errorf("clean merge reported conflicts: %v", report.Conflicts)
	}
	if len(report.Conflicts) != 0 {
		t.Errorf("conflicts = %v, want empty", report.Conflicts)
	}
	if after := gitCmd(t, repo, "rev-parse", "HEAD"); after != before {
		t.Error("dry run must not advance HEAD")
	}
}

func TestRemoveWorktree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)
	f.createTask(t, "task-alpha", types.PhaseImplement, repo)

	res, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	removed, err := f.mgr.Remove(ctx, "task-alpha")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed.Removed {
		t.Error("expected Removed=true")
	}
	if _, err := os.Stat(res.Path); !os.IsNotExist(err) {
		t.Errorf("worktree directory still present: %v", err)
	}

	task, err := f.store.GetTask("task-alpha")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.WorktreePath != "" {
		t.Errorf("worktree_path = %q, want cleared", task.WorktreePath)
	}

	// Removal does not merge; the branch keeps its commits.
	if out := gitCmd(t, repo, "branch", "--list", "task-alpha"); out == "" {
		t.Error("branch task-alpha should survive removal")
	}
}

func TestListWorktrees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)

	for _, id := range []string{"task-alpha", "task-bravo"} {
		f.createTask(t, id, types.PhaseImplement, repo)
		if _, err := f.mgr.Create(ctx, CreateRequest{TaskID: id}); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	infos, err := f.mgr.List(ctx, repo)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(infos))
	}
	seen := map[string]Info{}
	for _, info := range infos {
		seen[info.TaskID] = info
	}
	for _, id := range []string{"task-alpha", "task-bravo"} {
		info, ok := seen[id]
		if !ok {
			t.Fatalf("List missing %s: %+v", id, infos)
		}
		if info.Branch != id {
			t.Errorf("%s branch = %q, want %q", id, info.Branch, id)
		}
		if info.Phase != string(types.PhaseImplement) {
			t.Errorf("%s phase = %q, want IMPLEMENT", id, info.Phase)
		}
		if info.TaskType != string(types.TaskTypeFeature) {
			t.Errorf("%s task_type = %q, want feature", id, info.TaskType)
		}
	}
}

// ============================================================================
// HEALTH
// ============================================================================

func TestHealthAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)

	// Healthy, orphaned, and finished worktrees side by side.
	f.createTask(t, "task-alpha", types.PhaseImplement, repo)
	if _, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"}); err != nil {
		t.Fatalf("Create alpha: %v", err)
	}
	f.createTask(t, "task-orphan", types.PhaseImplement, repo)
	orphan, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-orphan"})
	if err != nil {
		t.Fatalf("Create orphan: %v", err)
	}
	if err := f.store.DeleteTask("task-orphan"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	f.createTask(t, "task-done", types.PhaseDone, repo)
	done, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-done"})
	if err != nil {
		t.Fatalf("Create done: %v", err)
	}

	report, err := f.mgr.Health(ctx, repo, false, false)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if report.Checked != 3 {
		t.Errorf("Checked = %d, want 3", report.Checked)
	}
	if report.Healthy != 1 {
		t.Errorf("Healthy = %d, want 1", report.Healthy)
	}
	if report.Fixed != 0 {
		t.Errorf("Fixed = %d without fix flag, want 0", report.Fixed)
	}
	levels := map[string]string{}
	for _, finding := range report.Findings {
		levels[finding.TaskID] = finding.Level
	}
	if levels["task-alpha"] != HealthOK {
		t.Errorf("task-alpha level = %q, want OK", levels["task-alpha"])
	}
	if levels["task-orphan"] != HealthError {
		t.Errorf("task-orphan level = %q, want ERROR", levels["task-orphan"])
	}
	if levels["task-done"] != HealthWarning {
		t.Errorf("task-done level = %q, want WARNING", levels["task-done"])
	}
	if !strings.Contains(report.Summary, "3 worktree(s)") {
		t.Errorf("summary = %q", report.Summary)
	}

	// Dry run plans removals without touching anything.
	dry, err := f.mgr.Health(ctx, repo, true, true)
	if err != nil {
		t.Fatalf("Health dry run: %v", err)
	}
	var planned int
	for _, finding := range dry.Findings {
		if finding.Action == "would remove worktree" {
			planned++
		}
	}
	if planned != 2 {
		t.Errorf("planned removals = %d, want 2", planned)
	}
	if _, err := os.Stat(orphan.Path); err != nil {
		t.Errorf("dry run removed the orphan worktree: %v", err)
	}

	// Fix removes the orphan and the finished tree.
	fixed, err := f.mgr.Health(ctx, repo, true, false)
	if err != nil {
		t.Fatalf("Health fix: %v", err)
	}
	if fixed.Fixed != 2 {
		t.Errorf("Fixed = %d, want 2", fixed.Fixed)
	}
	if _, err := os.Stat(orphan.Path); !os.IsNotExist(err) {
		t.Errorf("orphan worktree still present: %v", err)
	}
	if _, err := os.Stat(done.Path); !os.IsNotExist(err) {
		t.Errorf("done worktree still present: %v", err)
	}
	task, err := f.store.GetTask("task-done")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.WorktreePath != "" {
		t.Errorf("task-done worktree_path = %q, want cleared", task.WorktreePath)
	}
}

func TestHealthSkipsDirtyRemoval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)

	f.createTask(t, "task-done", types.PhaseDone, repo)
	res, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-done"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	writeFile(t, res.Path, "wip.go", "package wip\n")

	report, err := f.mgr.Health(ctx, repo, true, false)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if report.Fixed != 0 {
		t.Errorf("Fixed = %d, want 0 for dirty tree", report.Fixed)
	}
	var skipped bool
	for _, finding := range report.Findings {
		if finding.TaskID == "task-done" && strings.Contains(finding.Action, "skipped") {
			skipped = true
		}
	}
	if !skipped {
		t.Errorf("expected a skipped-removal action, findings: %+v", report.Findings)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Errorf("dirty worktree must not be removed: %v", err)
	}
}

func TestHealthFlagsStaleWorktree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)

	f.createTask(t, "task-alpha", types.PhaseImplement, repo)
	if _, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-alpha"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A zero horizon makes every commit stale.
	f.cfg.Worktree.StaleDays = 0
	report, err := f.mgr.Health(ctx, repo, false, false)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	var stale bool
	for _, finding := range report.Findings {
		if finding.TaskID == "task-alpha" && strings.HasPrefix(finding.Issue, "stale:") {
			stale = true
			if finding.Level != HealthWarning {
				t.Errorf("stale level = %q, want WARNING", finding.Level)
			}
		}
	}
	if !stale {
		t.Errorf("expected a stale finding, got %+v", report.Findings)
	}
}

// ============================================================================
// SESSION HANDOFF AUTO-COMMIT
// ============================================================================

func TestAutoCommitOnHandoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := initRepo(t)

	f.createTask(t, "task-staged", types.PhaseImplement, repo)
	staged, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-staged"})
	if err != nil {
		t.Fatalf("Create staged: %v", err)
	}
	writeFile(t, staged.Path, "staged.go", "package staged\n")
	gitCmd(t, staged.Path, "add", "staged.go")

	f.createTask(t, "task-unstaged", types.PhaseImplement, repo)
	unstaged, err := f.mgr.Create(ctx, CreateRequest{TaskID: "task-unstaged"})
	if err != nil {
		t.Fatalf("Create unstaged: %v", err)
	}
	writeFile(t, unstaged.Path, "loose.go", "package loose\n")

	// No worktree at all: must be skipped silently.
	f.createTask(t, "task-bare", types.PhaseSpec, repo)

	res, err := f.mgr.AutoCommitOnHandoff(ctx)
	if err != nil {
		t.Fatalf("AutoCommitOnHandoff: %v", err)
	}
	if len(res.Committed) != 1 || res.Committed[0] != "task-staged" {
		t.Errorf("Committed = %v, want [task-staged]", res.Committed)
	}
	if len(res.Unstaged) != 1 || res.Unstaged[0] != "task-unstaged" {
		t.Errorf("Unstaged = %v, want [task-unstaged]", res.Unstaged)
	}

	subject := gitCmd(t, staged.Path, "log", "-1", "--format=%s")
	if subject != f.cfg.Worktree.AutoCommitMessage {
		t.Errorf("commit subject = %q, want %q", subject, f.cfg.Worktree.AutoCommitMessage)
	}
	if out := gitCmd(t, staged.Path, "status", "--porcelain"); out != "" {
		t.Errorf("staged worktree still dirty:\n%s", out)
	}

	if !strings.Contains(res.Summary, "## Auto-committed worktrees") ||
		!strings.Contains(res.Summary, "## Worktrees with unstaged changes") {
		t.Errorf("summary missing sections:\n%s", res.Summary)
	}
	if !strings.Contains(res.Summary, "task-staged") || !strings.Contains(res.Summary, "task-unstaged") {
		t.Errorf("summary missing task ids:\n%s", res.Summary)
	}
}

func TestAutoCommitNoWorktrees(t *testing.T) {
	f := newFixture(t)
	res, err := f.mgr.AutoCommitOnHandoff(context.Background())
	if err != nil {
		t.Fatalf("AutoCommitOnHandoff: %v", err)
	}
	if len(res.Committed) != 0 || len(res.Unstaged) != 0 || res.Summary != "" {
		t.Errorf("expected empty result, got %+v", res)
	}
}

// ============================================================================
// PARSERS
// ============================================================================

func TestParseWorktreePorcelain(t *testing.T) {
	out := strings.Join([]string{
		"worktree /repo",
		"HEAD 1111111111111111111111111111111111111111",
		"branch refs/heads/main",
		"",
		"worktree /repo/.worktrees/task-alpha",
		"HEAD 2222222222222222222222222222222222222222",
		"branch refs/heads/task-alpha",
		"",
		"worktree /repo/.worktrees/detached",
		"HEAD 3333333333333333333333333333333333333333",
		"detached",
	}, "\n")

	entries := parseWorktreePorcelain(out)
	if len(entries) != 3 {
		t.Fatalf("parsed %d entries, want 3", len(entries))
	}
	if entries[0].Path != "/repo" || entries[0].Branch != "main" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Branch != "task-alpha" {
		t.Errorf("second entry branch = %q, want task-alpha", entries[1].Branch)
	}
	if entries[2].Branch != "" {
		t.Errorf("detached entry branch = %q, want empty", entries[2].Branch)
	}
	if entries[1].Head != "2222222222222222222222222222222222222222" {
		t.Errorf("second entry head = %q", entries[1].Head)
	}
}

func TestParseStatusPorcelain(t *testing.T) {
	out := strings.Join([]string{
		"M  staged.go",
		" M unstaged.go",
		"MM both.go",
		"?? untracked.go",
		"R  old.go -> new.go",
	}, "\n")

	lines := parseStatusPorcelain(out)
	if len(lines) != 5 {
		t.Fatalf("parsed %d lines, want 5", len(lines))
	}
	cases := []struct {
		path     string
		staged   bool
		unstaged bool
	}{
		{"staged.go", true, false},
		{"unstaged.go", false, true},
		{"both.go", true, true},
		{"untracked.go", false, true},
		{"new.go", true, false},
	}
	for i, want := range cases {
		got := lines[i]
		if got.Path != want.path || got.Staged != want.staged || got.Unstaged != want.unstaged {
			t.Errorf("line %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestMentionedPaths(t *testing.T) {
	notes := "Refactor internal/auth/login.go and config.yaml; see ./docs/plan.md. Ignore at."
	paths := mentionedPaths(notes)

	for _, want := range []string{"internal/auth/login.go", "config.yaml", "docs/plan.md"} {
		if _, ok := paths[want]; !ok {
			t.Errorf("missing %q in %v", want, paths)
		}
	}
	if _, ok := paths["at"]; ok {
		t.Error("bare word should not count as a path")
	}
}
