package dispatch

import (
	"context"

	"engram/internal/worktree"
)

// registerWorktreeTools wires the git worktree lifecycle. Git subprocesses run
// under the manager's per-repository budget, so concurrent calls are safe but
// may serialize.
func registerWorktreeTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "create_worktree",
		Description: "Create a task's worktree and branch, checking siblings for overlapping work first.",
		Schema: Schema{
			Required: []string{"task_id"},
			Properties: map[string]Property{
				"task_id":        {Type: "string", Description: "Task the worktree belongs to."},
				"repo_dir":       {Type: "string", Description: "Any directory inside the target repository; defaults to the task's project path."},
				"force":          {Type: "boolean", Description: "Skip the overlap check."},
				"check_overlaps": {Type: "boolean", Description: "Fail instead of warning when overlapping work is found."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			taskID, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			repoDir, terr := optionalString(args, "repo_dir")
			if terr != nil {
				return nil, terr
			}
			force, terr := boolArg(args, "force", false)
			if terr != nil {
				return nil, terr
			}
			checkOverlaps, terr := boolArg(args, "check_overlaps", false)
			if terr != nil {
				return nil, terr
			}
			res, err := svc.Worktrees.Create(ctx, worktree.CreateRequest{
				TaskID:        taskID,
				RepoDir:       repoDir,
				Force:         force,
				CheckOverlaps: checkOverlaps,
			})
			if err != nil {
				return nil, Translate(err)
			}
			return res, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "merge_worktree",
		Description: "Merge a task branch into the main branch, then sync dependencies and bump batch counters.",
		Schema: Schema{
			Required: []string{"task_id"},
			Properties: map[string]Property{
				"task_id":   {Type: "string", Description: "Task whose branch merges."},
				"skip_sync": {Type: "boolean", Description: "Skip the post-merge dependency sync."},
				"force":     {Type: "boolean", Description: "Merge even while the merge_lock counter is held."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			taskID, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			skipSync, terr := boolArg(args, "skip_sync", false)
			if terr != nil {
				return nil, terr
			}
			force, terr := boolArg(args, "force", false)
			if terr != nil {
				return nil, terr
			}
			res, err := svc.Worktrees.Merge(ctx, worktree.MergeRequest{
				TaskID:   taskID,
				SkipSync: skipSync,
				Force:    force,
			})
			if err != nil {
				return nil, Translate(err)
			}
			return res, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "remove_worktree",
		Description: "Remove a task's worktree without merging. The branch stays.",
		Schema: Schema{
			Required: []string{"task_id"},
			Properties: map[string]Property{
				"task_id": {Type: "string", Description: "Task whose worktree is removed."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			taskID, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			res, err := svc.Worktrees.Remove(ctx, taskID)
			if err != nil {
				return nil, Translate(err)
			}
			return res, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "check_conflicts",
		Description: "Dry-run a merge of the task branch and report conflicting paths without mutating state.",
		Schema: Schema{
			Required: []string{"task_id"},
			Properties: map[string]Property{
				"task_id": {Type: "string", Description: "Task whose branch is checked."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			taskID, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			report, err := svc.Worktrees.CheckConflicts(ctx, taskID)
			if err != nil {
				return nil, Translate(err)
			}
			return report, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_worktrees",
		Description: "Enumerate managed worktrees with task phase and type where known.",
		Schema: Schema{
			Properties: map[string]Property{
				"repo_dir": {Type: "string", Description: "Any directory inside the repository; defaults to the working directory."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			repoDir, terr := optionalString(args, "repo_dir")
			if terr != nil {
				return nil, terr
			}
			infos, err := svc.Worktrees.List(ctx, repoDir)
			if err != nil {
				return nil, Translate(err)
			}
			if infos == nil {
				infos = []worktree.Info{}
			}
			return map[string]interface{}{"worktrees": infos, "count": len(infos)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "worktree_health",
		Description: "Audit worktrees for orphans, finished tasks, uncommitted changes, and staleness.",
		Schema: Schema{
			Properties: map[string]Property{
				"repo_dir": {Type: "string", Description: "Any directory inside the repository; defaults to the working directory."},
				"fix":      {Type: "boolean", Description: "Remove orphaned and merged-done worktrees when clean."},
				"dry_run":  {Type: "boolean", Description: "Report what fix would do without touching anything."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			repoDir, terr := optionalString(args, "repo_dir")
			if terr != nil {
				return nil, terr
			}
			fix, terr := boolArg(args, "fix", false)
			if terr != nil {
				return nil, terr
			}
			dryRun, terr := boolArg(args, "dry_run", false)
			if terr != nil {
				return nil, terr
			}
			report, err := svc.Worktrees.Health(ctx, repoDir, fix, dryRun)
			if err != nil {
				return nil, Translate(err)
			}
			return report, nil
		},
	})
}
