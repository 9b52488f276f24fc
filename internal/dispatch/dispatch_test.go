package dispatch

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"engram/internal/assembler"
	"engram/internal/cluster"
	"engram/internal/collector"
	"engram/internal/config"
	"engram/internal/embedding"
	"engram/internal/review"
	"engram/internal/search"
	"engram/internal/store"
	"engram/internal/types"
	"engram/internal/values"
	"engram/internal/vector"
	"engram/internal/worktree"
)

const testDims = 32

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	return newTestDispatcherWithConfig(t, nil)
}

// newTestDispatcherWithConfig wires the full catalog over the memory vector
// store and the mock engine, the same shape the daemon wires at startup.
func newTestDispatcherWithConfig(t *testing.T, mutate func(*config.Config)) *Dispatcher {
	t.Helper()

	home := t.TempDir()
	cfg := config.DefaultConfig(home)
	cfg.Embedding.Provider = config.ProviderMock
	cfg.Embedding.Dimensions = testDims
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.Open(filepath.Join(home, "metadata.db"))
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	vs := vector.NewMemoryStore()
	eng := embedding.NewMock(testDims)
	runner := cluster.NewRunner(vs, cluster.New(cfg.Cluster.MinClusterSize, cfg.Cluster.MinSamples))
	searcher := search.New(st, vs, eng)

	svc := Services{
		Store:     st,
		Vectors:   vs,
		Engine:    eng,
		Collector: collector.New(st, vs, eng),
		Searcher:  searcher,
		Indexer:   search.NewIndexer(vs, eng),
		Assembler: assembler.New(searcher),
		Values:    values.New(vs, eng, runner, cfg.Values.SimilarityThreshold),
		Clusters:  runner,
		Reviews:   review.New(st, cfg),
		Worktrees: worktree.New(st, cfg),
		Config:    cfg,
	}
	return New(svc, cfg)
}

// call dispatches and fails the test on an error envelope.
func call(t *testing.T, d *Dispatcher, tool string, args map[string]interface{}) map[string]interface{} {
	t.Helper()
	env := d.Dispatch(context.Background(), tool, args)
	if e, ok := env["error"]; ok {
		t.Fatalf("%s returned error envelope: %v", tool, e)
	}
	return env
}

// callErr dispatches, asserts the error kind, and returns the message.
func callErr(t *testing.T, d *Dispatcher, tool string, args map[string]interface{}, kind ErrorKind) string {
	t.Helper()
	env := d.Dispatch(context.Background(), tool, args)
	raw, ok := env["error"]
	if !ok {
		t.Fatalf("%s succeeded, want %s error; envelope: %v", tool, kind, env)
	}
	e, ok := raw.(map[string]interface{})
	if !ok {
		t.Fatalf("%s error payload has type %T", tool, raw)
	}
	if got := e["type"]; got != string(kind) {
		t.Fatalf("%s error type = %v, want %s (message %v)", tool, got, kind, e["message"])
	}
	msg, _ := e["message"].(string)
	return msg
}

func validStartArgs() map[string]interface{} {
	return map[string]interface{}{
		"domain":     "debugging",
		"strategy":   "read-the-error",
		"goal":       "Fix the flaky login test",
		"hypothesis": "The session cookie expires before the assertion runs",
		"action":     "Freeze the clock during the login flow",
		"prediction": "The test passes ten times in a row",
	}
}

func createFeatureTask(t *testing.T, d *Dispatcher, id string) {
	t.Helper()
	call(t, d, "create_task", map[string]interface{}{
		"id":        id,
		"title":     "Test task",
		"task_type": "feature",
	})
}

// ============================================================================
// ENVELOPE & CATALOG
// ============================================================================

func TestPingEnvelope(t *testing.T) {
	d := newTestDispatcher(t)
	env := call(t, d, "ping", nil)
	if env["result"] != "pong" {
		t.Errorf("envelope = %v, want {result: pong}", env)
	}
}

func TestDispatchRejectsBlankToolName(t *testing.T) {
	d := newTestDispatcher(t)
	msg := callErr(t, d, "  ", nil, KindBadRequest)
	if !strings.Contains(msg, "tool is required") {
		t.Errorf("message = %q", msg)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(t)
	msg := callErr(t, d, "summon_demon", nil, KindUnknownTool)
	if !strings.Contains(msg, `unknown tool "summon_demon"`) {
		t.Errorf("message = %q", msg)
	}
}

func TestCatalogContents(t *testing.T) {
	d := newTestDispatcher(t)
	reg := d.Registry()

	want := []string{
		// liveness and introspection
		"ping", "get_stats",
		// hypothesis records
		"start_ghap", "update_ghap", "resolve_ghap", "get_active_ghap",
		"list_ghap_entries", "reindex_vectors",
		// semantic search and context assembly
		"search_experiences", "search_memories", "search_values",
		"search_code", "search_commits", "assemble_context",
		// code and commit indexing
		"index_code_unit", "delete_file_units", "index_commit",
		// memories and journal
		"store_memory", "get_memory", "list_memories", "update_memory",
		"delete_memory",
		"store_journal_entry", "list_journal_entries", "get_journal_entry",
		"mark_entries_reflected",
		// values and clustering
		"validate_value", "store_value", "list_values",
		"cluster_axis", "list_clusters",
		// tasks and workers
		"create_task", "get_task", "list_tasks", "update_task",
		"transition_task", "set_task_blockers", "delete_task",
		"register_worker", "update_worker_status", "list_workers",
		// reviews and gates
		"record_review", "list_reviews", "check_reviews",
		"gate_requirements", "check_gate",
		// worktrees
		"create_worktree", "merge_worktree", "remove_worktree",
		"check_conflicts", "list_worktrees", "worktree_health",
		// counters, handoffs, backups
		"increment_counter", "decrement_counter", "get_counter",
		"set_counter", "list_counters",
		"save_session_handoff", "get_pending_handoff", "mark_handoff_resumed",
		"list_handoffs",
		"create_backup", "restore_backup", "list_backups",
	}
	for _, name := range want {
		if !reg.Has(name) {
			t.Errorf("catalog is missing %s", name)
		}
	}
	if reg.Count() != len(want) {
		t.Errorf("catalog holds %d tools, want %d: %v", reg.Count(), len(want), reg.Names())
	}

	// Session bookkeeping moved into the hook processes; these names must
	// fail closed rather than alias to anything.
	for _, name := range []string{
		"start_session", "get_orphaned_ghap", "should_check_in",
		"increment_tool_count", "reset_tool_count",
	} {
		if reg.Has(name) {
			t.Errorf("%s should not be a dispatchable tool", name)
		}
	}
}

func TestRegistryRejectsBadTools(t *testing.T) {
	r := NewRegistry()
	handler := func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
		return "ok", nil
	}

	if err := r.Register(&Tool{Name: "", Func: handler}); err == nil {
		t.Error("blank name accepted")
	}
	if err := r.Register(&Tool{Name: "broken"}); err == nil {
		t.Error("nil handler accepted")
	}
	if err := r.Register(&Tool{
		Name:   "undeclared",
		Schema: Schema{Required: []string{"x"}},
		Func:   handler,
	}); err == nil {
		t.Error("required argument without a property accepted")
	}

	if err := r.Register(&Tool{Name: "dup", Func: handler}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register(&Tool{Name: "dup", Func: handler}); err == nil {
		t.Error("duplicate name accepted")
	}
}

func TestMissingArgumentsReportedTogether(t *testing.T) {
	d := newTestDispatcher(t)
	msg := callErr(t, d, "start_ghap", map[string]interface{}{"domain": "debugging"}, KindValidationError)
	want := "missing required arguments: strategy, goal, hypothesis, action, prediction"
	if msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
}

func TestDispatchTimeout(t *testing.T) {
	d := newTestDispatcherWithConfig(t, func(cfg *config.Config) {
		cfg.Daemon.RequestTimeoutSeconds = 0.05
	})
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	d.Registry().MustRegister(&Tool{
		Name:        "stall",
		Description: "Blocks until the test tears down.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			<-block
			return "late", nil
		},
	})

	start := time.Now()
	msg := callErr(t, d, "stall", nil, KindTimeout)
	if !strings.Contains(msg, "timed out") {
		t.Errorf("message = %q", msg)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("dispatch blocked for %s past its 50ms deadline", elapsed)
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	d := newTestDispatcher(t)
	d.Registry().MustRegister(&Tool{
		Name: "explode",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			panic("boom")
		},
	})
	msg := callErr(t, d, "explode", nil, KindInternalError)
	if !strings.Contains(msg, "failed internally") {
		t.Errorf("message = %q", msg)
	}
}

func TestDispatchRejectsNonObjectResults(t *testing.T) {
	d := newTestDispatcher(t)
	d.Registry().MustRegister(&Tool{
		Name: "scalar",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			return 42, nil
		},
	})
	msg := callErr(t, d, "scalar", nil, KindInternalError)
	if !strings.Contains(msg, "not an object") {
		t.Errorf("message = %q", msg)
	}
}

func TestDispatchNilResultReadsOK(t *testing.T) {
	d := newTestDispatcher(t)
	d.Registry().MustRegister(&Tool{
		Name: "noop",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			return nil, nil
		},
	})
	env := call(t, d, "noop", nil)
	if env["result"] != "ok" {
		t.Errorf("envelope = %v, want {result: ok}", env)
	}
}

// ============================================================================
// GHAP TOOLS
// ============================================================================

func TestGHAPLifecycle(t *testing.T) {
	d := newTestDispatcher(t)

	env := call(t, d, "start_ghap", validStartArgs())
	if env["ok"] != true {
		t.Fatalf("start envelope = %v", env)
	}
	id, _ := env["id"].(string)
	if !strings.HasPrefix(id, "ghap_") {
		t.Fatalf("id = %q, want ghap_ prefix", id)
	}

	msg := callErr(t, d, "start_ghap", validStartArgs(), KindActiveGHAPExists)
	if !strings.Contains(msg, id) || !strings.Contains(msg, "resolve_ghap") {
		t.Errorf("double-start message = %q, want it to carry %s and a way out", msg, id)
	}

	env = call(t, d, "get_active_ghap", nil)
	active, ok := env["active"].(*types.GHAPEntry)
	if !ok || active.ID != id {
		t.Fatalf("active = %#v, want entry %s", env["active"], id)
	}

	env = call(t, d, "update_ghap", map[string]interface{}{
		"hypothesis": "The cookie clock skews under CI load",
	})
	if env["success"] != true {
		t.Errorf("update envelope = %v", env)
	}
	if got := env["iteration_count"]; got != 2 {
		t.Errorf("iteration_count = %v (%T), want 2", got, got)
	}

	env = call(t, d, "resolve_ghap", map[string]interface{}{
		"status": "confirmed",
		"result": "Frozen clock made the test pass deterministically",
	})
	if env["ok"] != true || env["id"] != id {
		t.Errorf("resolve envelope = %v", env)
	}

	env = call(t, d, "get_active_ghap", nil)
	if env["active"] != nil {
		t.Errorf("active after resolve = %v, want nil", env["active"])
	}

	env = call(t, d, "list_ghap_entries", nil)
	if got := env["count"]; got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
}

func TestGHAPValidation(t *testing.T) {
	d := newTestDispatcher(t)

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
		kind ErrorKind
		want string
	}{
		{
			name: "start rejects unknown domain",
			tool: "start_ghap",
			args: func() map[string]interface{} {
				a := validStartArgs()
				a["domain"] = "gardening"
				return a
			}(),
			kind: KindValidationError,
			want: `invalid domain "gardening"`,
		},
		{
			name: "update without an active entry",
			tool: "update_ghap",
			args: map[string]interface{}{"hypothesis": "anything"},
			kind: KindNotFound,
			want: "",
		},
		{
			name: "update requires a field",
			tool: "update_ghap",
			args: map[string]interface{}{},
			kind: KindValidationError,
			want: "at least one of hypothesis, prediction",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := callErr(t, d, tt.tool, tt.args, tt.kind)
			if tt.want != "" && !strings.Contains(msg, tt.want) {
				t.Errorf("message = %q, want substring %q", msg, tt.want)
			}
		})
	}
}

func TestResolveFalsifiedNeedsRootCause(t *testing.T) {
	d := newTestDispatcher(t)
	call(t, d, "start_ghap", validStartArgs())

	msg := callErr(t, d, "resolve_ghap", map[string]interface{}{
		"status": "falsified",
		"result": "Test still flakes",
	}, KindValidationError)
	if !strings.Contains(msg, "root_cause is required") {
		t.Errorf("message = %q", msg)
	}

	env := call(t, d, "resolve_ghap", map[string]interface{}{
		"status": "falsified",
		"result": "Test still flakes",
		"root_cause": map[string]interface{}{
			"category":    "wrong-assumption",
			"description": "The cookie was fine; the DB fixture leaked state",
		},
	})
	if env["ok"] != true {
		t.Errorf("resolve envelope = %v", env)
	}
}

// ============================================================================
// SEARCH & MEMORY TOOLS
// ============================================================================

func TestSearchBeforeAnythingIndexed(t *testing.T) {
	d := newTestDispatcher(t)
	env := call(t, d, "search_experiences", map[string]interface{}{
		"query_text": "flaky login test",
	})
	if got := env["count"]; got != 0 {
		t.Errorf("count = %v, want 0", got)
	}
	if results, ok := env["results"].([]search.ExperienceResult); !ok || len(results) != 0 {
		t.Errorf("results = %#v, want empty slice", env["results"])
	}
}

func TestSearchFindsResolvedEntry(t *testing.T) {
	d := newTestDispatcher(t)
	call(t, d, "start_ghap", validStartArgs())
	call(t, d, "resolve_ghap", map[string]interface{}{
		"status": "confirmed",
		"result": "Frozen clock fixed it",
	})

	env := call(t, d, "search_experiences", map[string]interface{}{
		"query_text": "Fix the flaky login test",
		"axis":       "goal",
		"limit":      float64(3),
	})
	results, ok := env["results"].([]search.ExperienceResult)
	if !ok || len(results) == 0 {
		t.Fatalf("results = %#v, want at least one hit", env["results"])
	}
	if results[0].Goal != "Fix the flaky login test" {
		t.Errorf("top hit goal = %q", results[0].Goal)
	}
}

func TestMemoryTools(t *testing.T) {
	d := newTestDispatcher(t)

	env := call(t, d, "store_memory", map[string]interface{}{
		"content":  "The CI runner pins Go to the version in go.mod",
		"category": "project",
	})
	id, _ := env["id"].(string)
	if !strings.HasPrefix(id, "mem_") {
		t.Fatalf("id = %q, want mem_ prefix", id)
	}

	env = call(t, d, "get_memory", map[string]interface{}{"memory_id": id})
	if env["content"] != "The CI runner pins Go to the version in go.mod" {
		t.Errorf("content = %v", env["content"])
	}

	callErr(t, d, "get_memory", map[string]interface{}{"memory_id": "mem_missing"}, KindNotFound)

	env = call(t, d, "search_memories", map[string]interface{}{
		"query_text": "which Go version does CI use",
	})
	results, ok := env["results"].([]search.MemoryResult)
	if !ok || len(results) == 0 {
		t.Fatalf("results = %#v, want the stored memory", env["results"])
	}

	env = call(t, d, "delete_memory", map[string]interface{}{"memory_id": id})
	if env["result"] != "deleted "+id {
		t.Errorf("delete envelope = %v", env)
	}
	callErr(t, d, "get_memory", map[string]interface{}{"memory_id": id}, KindNotFound)
}

func TestStoreMemoryRejectsBadImportance(t *testing.T) {
	d := newTestDispatcher(t)
	msg := callErr(t, d, "store_memory", map[string]interface{}{
		"content":    "x",
		"category":   "project",
		"importance": 1.5,
	}, KindValidationError)
	if !strings.Contains(msg, "between 0 and 1") {
		t.Errorf("message = %q", msg)
	}
}

// ============================================================================
// VALUE & CLUSTER TOOLS
// ============================================================================

func TestValidateValueWithoutCentroid(t *testing.T) {
	d := newTestDispatcher(t)
	env := call(t, d, "validate_value", map[string]interface{}{
		"text":       "Always add logging when async tests hang",
		"cluster_id": "full_0",
	})
	if env["valid"] != false {
		t.Errorf("valid = %v, want false", env["valid"])
	}
	if env["cluster_id"] != "full_0" {
		t.Errorf("cluster_id = %v", env["cluster_id"])
	}
	if _, present := env["similarity"]; present {
		t.Errorf("similarity present without a centroid: %v", env["similarity"])
	}
}

func TestStoreValueRejectedWithoutCentroid(t *testing.T) {
	d := newTestDispatcher(t)
	env := call(t, d, "store_value", map[string]interface{}{
		"text":       "Always add logging when async tests hang",
		"cluster_id": "full_0",
		"axis":       "full",
	})
	if env["stored"] != false {
		t.Errorf("stored = %v, want false", env["stored"])
	}
	if _, present := env["value"]; present {
		t.Errorf("rejected candidate carried a value: %v", env["value"])
	}
	validation, ok := env["validation"].(map[string]interface{})
	if !ok || validation["valid"] != false {
		t.Errorf("validation = %#v", env["validation"])
	}

	env = call(t, d, "list_values", nil)
	if got := env["count"]; got != 0 {
		t.Errorf("count = %v, want 0 after rejection", got)
	}
}

func TestClusterAxisWithoutData(t *testing.T) {
	d := newTestDispatcher(t)
	msg := callErr(t, d, "cluster_axis", map[string]interface{}{"axis": "strategy"}, KindInsufficientData)
	if !strings.Contains(msg, "axis strategy has no indexed entries") {
		t.Errorf("message = %q", msg)
	}
}

func TestListClustersColdStart(t *testing.T) {
	d := newTestDispatcher(t)
	env := call(t, d, "list_clusters", nil)
	axes, ok := env["axes"].([]map[string]interface{})
	if !ok {
		t.Fatalf("axes = %#v", env["axes"])
	}
	if len(axes) != len(types.Axes()) {
		t.Fatalf("axes count = %d, want %d", len(axes), len(types.Axes()))
	}
	for _, summary := range axes {
		if summary["point_count"] != 0 || summary["cluster_count"] != 0 {
			t.Errorf("axis %v reports points on an empty index: %v", summary["axis"], summary)
		}
	}
}

// ============================================================================
// TASK & WORKER TOOLS
// ============================================================================

func TestTaskWorkflow(t *testing.T) {
	d := newTestDispatcher(t)

	env := call(t, d, "create_task", map[string]interface{}{
		"id":        "SPEC-001",
		"title":     "Add retry to the sync loop",
		"task_type": "feature",
	})
	if env["id"] != "SPEC-001" || env["phase"] != "SPEC" {
		t.Fatalf("create envelope = %v", env)
	}

	env = call(t, d, "transition_task", map[string]interface{}{
		"task_id": "SPEC-001",
		"to":      "DESIGN",
	})
	if env["phase"] != "DESIGN" {
		t.Fatalf("phase = %v, want DESIGN", env["phase"])
	}

	// Skipping a phase is rejected and the stored phase stays put.
	msg := callErr(t, d, "transition_task", map[string]interface{}{
		"task_id": "SPEC-001",
		"to":      "TEST",
	}, KindValidationError)
	if !strings.Contains(msg, "legal:") {
		t.Errorf("message = %q, want the legal edge named", msg)
	}
	env = call(t, d, "get_task", map[string]interface{}{"task_id": "SPEC-001"})
	if env["phase"] != "DESIGN" {
		t.Errorf("phase after rejected transition = %v, want DESIGN", env["phase"])
	}

	env = call(t, d, "update_task", map[string]interface{}{
		"task_id": "SPEC-001",
		"notes":   "Design doc drafted",
	})
	if env["notes"] != "Design doc drafted" {
		t.Errorf("notes = %v", env["notes"])
	}

	env = call(t, d, "set_task_blockers", map[string]interface{}{
		"task_id":    "SPEC-001",
		"blocked_by": []interface{}{"SPEC-000"},
	})
	blockers, ok := env["blocked_by"].([]interface{})
	if !ok || len(blockers) != 1 || blockers[0] != "SPEC-000" {
		t.Errorf("blocked_by = %#v", env["blocked_by"])
	}

	env = call(t, d, "list_tasks", map[string]interface{}{"phase": "DESIGN"})
	if got := env["count"]; got != 1 {
		t.Errorf("count = %v, want 1", got)
	}

	env = call(t, d, "delete_task", map[string]interface{}{"task_id": "SPEC-001"})
	if env["result"] != "deleted SPEC-001" {
		t.Errorf("delete envelope = %v", env)
	}
	callErr(t, d, "get_task", map[string]interface{}{"task_id": "SPEC-001"}, KindNotFound)
}

func TestListTasksRejectsUnknownPhase(t *testing.T) {
	d := newTestDispatcher(t)
	msg := callErr(t, d, "list_tasks", map[string]interface{}{"phase": "SHIPPING"}, KindValidationError)
	if !strings.Contains(msg, `invalid phase "SHIPPING"`) {
		t.Errorf("message = %q", msg)
	}
}

func TestBugWorkflowUsesItsOwnPhases(t *testing.T) {
	d := newTestDispatcher(t)
	env := call(t, d, "create_task", map[string]interface{}{
		"id":        "BUG-7",
		"title":     "Crash on empty config",
		"task_type": "bug",
	})
	if env["phase"] != "REPORTED" {
		t.Fatalf("phase = %v, want REPORTED", env["phase"])
	}
	env = call(t, d, "transition_task", map[string]interface{}{
		"task_id": "BUG-7",
		"to":      "INVESTIGATED",
	})
	if env["phase"] != "INVESTIGATED" {
		t.Errorf("phase = %v", env["phase"])
	}
	// DESIGN belongs to the feature workflow.
	callErr(t, d, "transition_task", map[string]interface{}{
		"task_id": "BUG-7",
		"to":      "DESIGN",
	}, KindValidationError)
}

func TestWorkerLifecycle(t *testing.T) {
	d := newTestDispatcher(t)
	createFeatureTask(t, d, "SPEC-002")

	callErr(t, d, "register_worker", map[string]interface{}{
		"task_id": "SPEC-404",
		"role":    "implementer",
	}, KindNotFound)

	env := call(t, d, "register_worker", map[string]interface{}{
		"task_id": "SPEC-002",
		"role":    "implementer",
	})
	workerID, _ := env["id"].(string)
	if !strings.HasPrefix(workerID, "wrk_") {
		t.Fatalf("worker id = %q", workerID)
	}
	if env["status"] != "active" {
		t.Errorf("status = %v, want active", env["status"])
	}

	env = call(t, d, "update_worker_status", map[string]interface{}{
		"worker_id": workerID,
		"status":    "completed",
	})
	if env["status"] != "completed" {
		t.Errorf("status = %v, want completed", env["status"])
	}

	env = call(t, d, "list_workers", map[string]interface{}{"status": "active"})
	if got := env["count"]; got != 0 {
		t.Errorf("active workers = %v, want 0", got)
	}
	env = call(t, d, "list_workers", nil)
	if got := env["count"]; got != 1 {
		t.Errorf("all workers = %v, want 1", got)
	}
}

// ============================================================================
// REVIEW & GATE TOOLS
// ============================================================================

func TestReviewQuorumFlow(t *testing.T) {
	d := newTestDispatcher(t)
	createFeatureTask(t, d, "SPEC-003")

	callErr(t, d, "record_review", map[string]interface{}{
		"task_id":     "SPEC-404",
		"review_type": "spec",
		"result":      "approved",
	}, KindNotFound)

	env := call(t, d, "record_review", map[string]interface{}{
		"task_id":     "SPEC-003",
		"review_type": "spec",
		"result":      "approved",
		"worker_id":   "wrk_alpha",
	})
	if id, _ := env["id"].(string); !strings.HasPrefix(id, "rev_") {
		t.Fatalf("review id = %v", env["id"])
	}

	check := call(t, d, "check_reviews", map[string]interface{}{
		"task_id":     "SPEC-003",
		"review_type": "spec",
	})
	if check["passed"] != false || check["count"] != 1 || check["required"] != 2 {
		t.Errorf("after one approval: %v", check)
	}

	// A second approval from the same reviewer must not advance the quorum.
	call(t, d, "record_review", map[string]interface{}{
		"task_id":     "SPEC-003",
		"review_type": "spec",
		"result":      "approved",
		"worker_id":   "wrk_alpha",
	})
	check = call(t, d, "check_reviews", map[string]interface{}{
		"task_id":     "SPEC-003",
		"review_type": "spec",
	})
	if check["count"] != 1 {
		t.Errorf("repeat approval counted twice: %v", check)
	}

	call(t, d, "record_review", map[string]interface{}{
		"task_id":     "SPEC-003",
		"review_type": "spec",
		"result":      "approved",
		"worker_id":   "wrk_beta",
	})
	check = call(t, d, "check_reviews", map[string]interface{}{
		"task_id":     "SPEC-003",
		"review_type": "spec",
	})
	if check["passed"] != true || check["count"] != 2 {
		t.Errorf("after two approvals: %v", check)
	}

	call(t, d, "record_review", map[string]interface{}{
		"task_id":     "SPEC-003",
		"review_type": "spec",
		"result":      "changes_requested",
		"worker_id":   "wrk_gamma",
	})
	check = call(t, d, "check_reviews", map[string]interface{}{
		"task_id":     "SPEC-003",
		"review_type": "spec",
	})
	if check["passed"] != false || check["count"] != 0 {
		t.Errorf("changes_requested should reset the quorum: %v", check)
	}
}

func TestGateRequirementsAndCheckGate(t *testing.T) {
	d := newTestDispatcher(t)
	createFeatureTask(t, d, "SPEC-004")

	env := call(t, d, "gate_requirements", map[string]interface{}{
		"task_id": "SPEC-004",
		"to":      "DESIGN",
	})
	reqs, ok := env["requirements"].([]review.GateRequirement)
	if !ok || len(reqs) != 1 {
		t.Fatalf("requirements = %#v", env["requirements"])
	}
	if reqs[0].Automated || !strings.Contains(reqs[0].Description, "spec reviews") {
		t.Errorf("requirement = %+v", reqs[0])
	}

	env = call(t, d, "check_gate", map[string]interface{}{
		"task_id":    "SPEC-004",
		"transition": "DESIGN",
	})
	if env["passed"] != false || env["transition"] != "SPEC -> DESIGN" {
		t.Fatalf("gate envelope = %v", env)
	}
	checks, ok := env["checks"].([]interface{})
	if !ok || len(checks) != 1 {
		t.Fatalf("checks = %#v", env["checks"])
	}
	first, _ := checks[0].(map[string]interface{})
	if first["passed"] != false || first["message"] != "0 of 2 approvals" {
		t.Errorf("check = %v", first)
	}

	for _, worker := range []string{"wrk_alpha", "wrk_beta"} {
		call(t, d, "record_review", map[string]interface{}{
			"task_id":     "SPEC-004",
			"review_type": "spec",
			"result":      "approved",
			"worker_id":   worker,
		})
	}
	env = call(t, d, "check_gate", map[string]interface{}{
		"task_id":    "SPEC-004",
		"transition": "DESIGN",
	})
	if env["passed"] != true {
		t.Errorf("gate after quorum = %v", env)
	}

	// The gate only evaluates the legal next edge.
	callErr(t, d, "check_gate", map[string]interface{}{
		"task_id":    "SPEC-004",
		"transition": "TEST",
	}, KindValidationError)
}

// ============================================================================
// COUNTER, HANDOFF & BACKUP TOOLS
// ============================================================================

func TestCounterTools(t *testing.T) {
	d := newTestDispatcher(t)

	env := call(t, d, "increment_counter", map[string]interface{}{"name": "merge_lock"})
	if env["value"] != int64(1) {
		t.Errorf("value = %v (%T), want 1", env["value"], env["value"])
	}
	env = call(t, d, "increment_counter", map[string]interface{}{"name": "merge_lock"})
	if env["value"] != int64(2) {
		t.Errorf("value = %v, want 2", env["value"])
	}
	env = call(t, d, "decrement_counter", map[string]interface{}{"name": "merge_lock"})
	if env["value"] != int64(1) {
		t.Errorf("value = %v, want 1", env["value"])
	}

	// Decrement floors at zero instead of going negative.
	call(t, d, "decrement_counter", map[string]interface{}{"name": "merge_lock"})
	env = call(t, d, "decrement_counter", map[string]interface{}{"name": "merge_lock"})
	if env["value"] != int64(0) {
		t.Errorf("floored value = %v, want 0", env["value"])
	}

	env = call(t, d, "get_counter", map[string]interface{}{"name": "merges_since_e2e"})
	if env["value"] != int64(0) {
		t.Errorf("absent counter reads %v, want 0", env["value"])
	}

	env = call(t, d, "set_counter", map[string]interface{}{"name": "merges_since_docs", "value": float64(7)})
	if env["value"] != int64(7) {
		t.Errorf("value = %v, want 7", env["value"])
	}
	msg := callErr(t, d, "set_counter", map[string]interface{}{"name": "merges_since_docs", "value": float64(-1)}, KindValidationError)
	if !strings.Contains(msg, ">= 0") {
		t.Errorf("message = %q", msg)
	}

	env = call(t, d, "list_counters", nil)
	counters, ok := env["counters"].(map[string]int64)
	if !ok {
		t.Fatalf("counters = %#v", env["counters"])
	}
	if counters["merges_since_docs"] != 7 {
		t.Errorf("counters = %v", counters)
	}
}

func TestHandoffLifecycle(t *testing.T) {
	d := newTestDispatcher(t)

	env := call(t, d, "save_session_handoff", map[string]interface{}{
		"content": "Stopped mid-refactor; resume at the parser",
	})
	h, ok := env["handoff"].(*types.SessionHandoff)
	if !ok {
		t.Fatalf("handoff = %#v", env["handoff"])
	}
	if !strings.HasPrefix(h.ID, "hand_") || !h.NeedsContinuation {
		t.Errorf("handoff = %+v", h)
	}
	// With no tasks there is nothing to commit, but the attempt still reports.
	if _, hasCommit := env["auto_commit"]; !hasCommit {
		if _, hasWarn := env["warnings"]; !hasWarn {
			t.Errorf("envelope carries neither auto_commit nor warnings: %v", env)
		}
	}

	env = call(t, d, "get_pending_handoff", nil)
	pending, ok := env["handoff"].(*types.SessionHandoff)
	if !ok || pending.ID != h.ID {
		t.Fatalf("pending = %#v, want %s", env["handoff"], h.ID)
	}

	env = call(t, d, "mark_handoff_resumed", map[string]interface{}{"handoff_id": h.ID})
	if env["ok"] != true {
		t.Errorf("envelope = %v", env)
	}
	callErr(t, d, "mark_handoff_resumed", map[string]interface{}{"handoff_id": "hand_missing"}, KindNotFound)

	env = call(t, d, "get_pending_handoff", nil)
	if env["handoff"] != nil {
		t.Errorf("pending after resume = %v, want nil", env["handoff"])
	}

	env = call(t, d, "list_handoffs", nil)
	if got := env["count"]; got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
}

func TestHandoffWithoutContinuationStaysOutOfPending(t *testing.T) {
	d := newTestDispatcher(t)
	call(t, d, "save_session_handoff", map[string]interface{}{
		"content":            "Session wrapped up clean",
		"needs_continuation": false,
	})
	env := call(t, d, "get_pending_handoff", nil)
	if env["handoff"] != nil {
		t.Errorf("pending = %v, want nil", env["handoff"])
	}
}

func TestBackupTools(t *testing.T) {
	d := newTestDispatcher(t)
	createFeatureTask(t, d, "SPEC-005")

	env := call(t, d, "create_backup", nil)
	path, _ := env["path"].(string)
	if env["ok"] != true || path == "" {
		t.Fatalf("backup envelope = %v", env)
	}

	env = call(t, d, "list_backups", nil)
	if got := env["count"]; got != 1 {
		t.Errorf("count = %v, want 1", got)
	}

	env = call(t, d, "restore_backup", map[string]interface{}{"path": path})
	if env["ok"] != true || env["restored_from"] != path {
		t.Errorf("restore envelope = %v", env)
	}
	// The snapshot predates nothing here, so the task survives the restore.
	call(t, d, "get_task", map[string]interface{}{"task_id": "SPEC-005"})
}

// ============================================================================
// STATS
// ============================================================================

func TestGetStats(t *testing.T) {
	d := newTestDispatcher(t)
	env := call(t, d, "get_stats", nil)

	emb, ok := env["embedding"].(map[string]interface{})
	if !ok {
		t.Fatalf("embedding = %#v", env["embedding"])
	}
	if emb["provider"] != config.ProviderMock || emb["dimensions"] != testDims {
		t.Errorf("embedding = %v", emb)
	}
	if _, ok := env["tables"]; !ok {
		t.Errorf("envelope missing tables: %v", env)
	}
	if env["server"] != config.ServerName {
		t.Errorf("server = %v", env["server"])
	}
}
