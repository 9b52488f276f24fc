package dispatch

import (
	"context"
	"strings"
	"time"

	"engram/internal/logging"
	"engram/internal/store"
	"engram/internal/types"
)

// registerSessionTools wires metadata counters, session handoffs, and store
// backups. The per-session tool counter is file-backed and owned by the hook
// processes, not by these tools.
func registerSessionTools(r *Registry, svc Services) {
	registerCounterTools(r, svc)
	registerHandoffTools(r, svc)
	registerBackupTools(r, svc)
}

func registerCounterTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "increment_counter",
		Description: "Atomically add 1 to a named counter and return the new value.",
		Schema: Schema{
			Required: []string{"name"},
			Properties: map[string]Property{
				"name": {Type: "string", Description: "Counter name, e.g. merge_lock or merges_since_e2e."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			name, terr := counterName(args)
			if terr != nil {
				return nil, terr
			}
			value, err := svc.Store.IncrementCounter(name)
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"name": name, "value": value}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "decrement_counter",
		Description: "Atomically subtract 1 from a named counter, flooring at 0.",
		Schema: Schema{
			Required: []string{"name"},
			Properties: map[string]Property{
				"name": {Type: "string", Description: "Counter name."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			name, terr := counterName(args)
			if terr != nil {
				return nil, terr
			}
			value, err := svc.Store.DecrementCounter(name)
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"name": name, "value": value}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "get_counter",
		Description: "Read a counter. Absent counters read as 0.",
		Schema: Schema{
			Required: []string{"name"},
			Properties: map[string]Property{
				"name": {Type: "string", Description: "Counter name."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			name, terr := counterName(args)
			if terr != nil {
				return nil, terr
			}
			value, err := svc.Store.GetCounter(name)
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"name": name, "value": value}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "set_counter",
		Description: "Force a counter to a value, creating it when absent.",
		Schema: Schema{
			Required: []string{"name", "value"},
			Properties: map[string]Property{
				"name":  {Type: "string", Description: "Counter name."},
				"value": {Type: "integer", Description: "New value; negative values are rejected."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			name, terr := counterName(args)
			if terr != nil {
				return nil, terr
			}
			value, terr := intArg(args, "value", 0)
			if terr != nil {
				return nil, terr
			}
			if value < 0 {
				return nil, Errorf(KindValidationError, "value must be >= 0")
			}
			if err := svc.Store.SetCounter(name, int64(value)); err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"name": name, "value": int64(value)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_counters",
		Description: "List every counter keyed by name.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			counters, err := svc.Store.ListCounters()
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"counters": counters, "count": len(counters)}, nil
		},
	})
}

func registerHandoffTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "save_session_handoff",
		Description: "Save end-of-session state. Staged worktree changes are auto-committed and summarized into the handoff.",
		Schema: Schema{
			Required: []string{"content"},
			Properties: map[string]Property{
				"content":            {Type: "string", Description: "Markdown handoff for the next session."},
				"needs_continuation": {Type: "boolean", Description: "Whether a later session should resume this work. Defaults to true."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			content, terr := stringArg(args, "content")
			if terr != nil {
				return nil, terr
			}
			if strings.TrimSpace(content) == "" {
				return nil, Errorf(KindValidationError, "content is required")
			}
			needsContinuation, terr := boolArg(args, "needs_continuation", true)
			if terr != nil {
				return nil, terr
			}

			out := map[string]interface{}{}
			// The handoff must save even when no git repository is reachable,
			// so auto-commit failures downgrade to a warning.
			ac, err := svc.Worktrees.AutoCommitOnHandoff(ctx)
			if err != nil {
				logging.DispatchWarn("Handoff auto-commit skipped: %v", err)
				out["warnings"] = []string{"worktree auto-commit failed: " + err.Error()}
			} else {
				out["auto_commit"] = map[string]interface{}{
					"committed": ac.Committed,
					"unstaged":  ac.Unstaged,
				}
				if ac.Summary != "" {
					content = content + "\n\n" + ac.Summary
				}
			}

			h := &types.SessionHandoff{
				ID:                types.NewID(types.PrefixHandoff),
				HandoffContent:    content,
				NeedsContinuation: needsContinuation,
				CreatedAt:         time.Now().UTC(),
			}
			if err := svc.Store.SaveHandoff(h); err != nil {
				return nil, Translate(err)
			}
			out["handoff"] = h
			return out, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "get_pending_handoff",
		Description: "Fetch the most recent unresumed handoff that needs continuation, or null.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			h, err := svc.Store.GetPendingHandoff()
			if err != nil {
				return nil, Translate(err)
			}
			if h == nil {
				return map[string]interface{}{"handoff": nil}, nil
			}
			return map[string]interface{}{"handoff": h}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "mark_handoff_resumed",
		Description: "Stamp a handoff as resumed so it stops being offered.",
		Schema: Schema{
			Required: []string{"handoff_id"},
			Properties: map[string]Property{
				"handoff_id": {Type: "string", Description: "Handoff id."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "handoff_id")
			if terr != nil {
				return nil, terr
			}
			if err := svc.Store.MarkHandoffResumed(id); err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"ok": true, "id": id}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_handoffs",
		Description: "List handoffs newest first.",
		Schema: Schema{
			Properties: map[string]Property{
				"limit": {Type: "integer", Description: "Maximum handoffs to return; 0 means all."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			limit, terr := intArg(args, "limit", 0)
			if terr != nil {
				return nil, terr
			}
			handoffs, err := svc.Store.ListHandoffs(limit)
			if err != nil {
				return nil, Translate(err)
			}
			if handoffs == nil {
				handoffs = []*types.SessionHandoff{}
			}
			return map[string]interface{}{"handoffs": handoffs, "count": len(handoffs)}, nil
		},
	})
}

func registerBackupTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "create_backup",
		Description: "Snapshot the metadata store into the backups directory.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			path, err := svc.Store.Backup(svc.Config.BackupDir())
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"ok": true, "path": path}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "restore_backup",
		Description: "Replace the live metadata store with a snapshot. Vector state is untouched.",
		Schema: Schema{
			Required: []string{"path"},
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Snapshot file to restore."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			path, terr := stringArg(args, "path")
			if terr != nil {
				return nil, terr
			}
			if err := svc.Store.RestoreBackup(path); err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{
				"ok":            true,
				"restored_from": path,
				"hint":          "run reindex_vectors to rebuild derived vector state",
			}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_backups",
		Description: "Enumerate metadata store snapshots, newest first.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			backups, err := store.ListBackups(svc.Config.BackupDir())
			if err != nil {
				return nil, Translate(err)
			}
			if backups == nil {
				backups = []store.BackupInfo{}
			}
			return map[string]interface{}{"backups": backups, "count": len(backups)}, nil
		},
	})
}

func counterName(args map[string]interface{}) (string, *ToolError) {
	name, terr := stringArg(args, "name")
	if terr != nil {
		return "", terr
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", Errorf(KindValidationError, "name is required")
	}
	return name, nil
}
