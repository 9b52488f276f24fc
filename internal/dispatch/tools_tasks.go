package dispatch

import (
	"context"
	"strings"
	"time"

	"engram/internal/phase"
	"engram/internal/types"
)

// registerTaskTools wires the task lifecycle and worker tracking. Task ids are
// caller-chosen because they double as branch and worktree names; the daemon
// never mints them.
func registerTaskTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "create_task",
		Description: "Create an orchestration task in its workflow's initial phase.",
		Schema: Schema{
			Required: []string{"id", "title", "task_type"},
			Properties: map[string]Property{
				"id":           {Type: "string", Description: "Task id, also used as the branch and worktree name."},
				"title":        {Type: "string", Description: "Short human title."},
				"task_type":    {Type: "string", Description: "Workflow the task follows.", Enum: taskTypeEnum()},
				"spec_id":      {Type: "string", Description: "Optional spec document id."},
				"specialist":   {Type: "string", Description: "Optional specialist role assigned to the task."},
				"notes":        {Type: "string", Description: "Optional free-form notes."},
				"project_path": {Type: "string", Description: "Repository the task works against."},
				"blocked_by":   {Type: "array", Description: "Task ids this task waits on."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "id")
			if terr != nil {
				return nil, terr
			}
			id = strings.TrimSpace(id)
			if id == "" {
				return nil, Errorf(KindValidationError, "id is required")
			}
			title, terr := stringArg(args, "title")
			if terr != nil {
				return nil, terr
			}
			rawType, terr := stringArg(args, "task_type")
			if terr != nil {
				return nil, terr
			}
			tt, err := types.ParseTaskType(rawType)
			if err != nil {
				return nil, Translate(err)
			}
			specID, terr := optionalString(args, "spec_id")
			if terr != nil {
				return nil, terr
			}
			specialist, terr := optionalString(args, "specialist")
			if terr != nil {
				return nil, terr
			}
			notes, terr := optionalString(args, "notes")
			if terr != nil {
				return nil, terr
			}
			projectPath, terr := optionalString(args, "project_path")
			if terr != nil {
				return nil, terr
			}
			blockedBy, terr := stringListArg(args, "blocked_by")
			if terr != nil {
				return nil, terr
			}

			now := time.Now().UTC()
			task := &types.Task{
				ID:          id,
				Title:       title,
				TaskType:    tt,
				Phase:       phase.InitialPhase(tt),
				SpecID:      specID,
				Specialist:  specialist,
				Notes:       notes,
				BlockedBy:   blockedBy,
				ProjectPath: projectPath,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := svc.Store.CreateTask(task); err != nil {
				return nil, Translate(err)
			}
			return task, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "get_task",
		Description: "Fetch one task by id.",
		Schema: Schema{
			Required: []string{"task_id"},
			Properties: map[string]Property{
				"task_id": {Type: "string", Description: "Task id."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			task, err := svc.Store.GetTask(id)
			if err != nil {
				return nil, Translate(err)
			}
			return task, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_tasks",
		Description: "List tasks newest first, optionally filtered by phase.",
		Schema: Schema{
			Properties: map[string]Property{
				"phase": {Type: "string", Description: "Only tasks currently in this phase.", Enum: phaseEnum()},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			rawPhase, terr := optionalString(args, "phase")
			if terr != nil {
				return nil, terr
			}
			var filter types.Phase
			if rawPhase != "" {
				filter = types.Phase(strings.ToUpper(strings.TrimSpace(rawPhase)))
				if !knownPhase(filter) {
					return nil, Errorf(KindValidationError,
						"invalid phase %q (valid: %s)", rawPhase, strings.Join(phaseEnum(), ", "))
				}
			}
			tasks, err := svc.Store.ListTasks(filter)
			if err != nil {
				return nil, Translate(err)
			}
			if tasks == nil {
				tasks = []*types.Task{}
			}
			return map[string]interface{}{"tasks": tasks, "count": len(tasks)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "update_task",
		Description: "Replace a task's notes. Phase moves via transition_task, blockers via set_task_blockers.",
		Schema: Schema{
			Required: []string{"task_id", "notes"},
			Properties: map[string]Property{
				"task_id": {Type: "string", Description: "Task id."},
				"notes":   {Type: "string", Description: "New notes; an empty string clears them."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			notes, terr := stringArg(args, "notes")
			if terr != nil {
				return nil, terr
			}
			if err := svc.Store.SetTaskNotes(id, notes); err != nil {
				return nil, Translate(err)
			}
			task, err := svc.Store.GetTask(id)
			if err != nil {
				return nil, Translate(err)
			}
			return task, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "transition_task",
		Description: "Move a task to the next phase. Illegal edges are rejected before any write.",
		Schema: Schema{
			Required: []string{"task_id", "to"},
			Properties: map[string]Property{
				"task_id": {Type: "string", Description: "Task id."},
				"to":      {Type: "string", Description: "Target phase.", Enum: phaseEnum()},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			rawTo, terr := stringArg(args, "to")
			if terr != nil {
				return nil, terr
			}
			task, err := svc.Store.GetTask(id)
			if err != nil {
				return nil, Translate(err)
			}
			target := types.Phase(strings.ToUpper(strings.TrimSpace(rawTo)))
			if err := phase.ValidateTransition(task.TaskType, task.Phase, target); err != nil {
				return nil, Translate(err)
			}
			if err := svc.Store.SetTaskPhase(id, target); err != nil {
				return nil, Translate(err)
			}
			updated, err := svc.Store.GetTask(id)
			if err != nil {
				return nil, Translate(err)
			}
			return updated, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "set_task_blockers",
		Description: "Replace the set of task ids a task waits on.",
		Schema: Schema{
			Required: []string{"task_id", "blocked_by"},
			Properties: map[string]Property{
				"task_id":    {Type: "string", Description: "Task id."},
				"blocked_by": {Type: "array", Description: "Blocking task ids; an empty array unblocks."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			blockedBy, terr := stringListArg(args, "blocked_by")
			if terr != nil {
				return nil, terr
			}
			if err := svc.Store.SetTaskBlockers(id, blockedBy); err != nil {
				return nil, Translate(err)
			}
			task, err := svc.Store.GetTask(id)
			if err != nil {
				return nil, Translate(err)
			}
			return task, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "delete_task",
		Description: "Delete a task; its reviews cascade. The worktree, if any, is untouched.",
		Schema: Schema{
			Required: []string{"task_id"},
			Properties: map[string]Property{
				"task_id": {Type: "string", Description: "Task id."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			if err := svc.Store.DeleteTask(id); err != nil {
				return nil, Translate(err)
			}
			return "deleted " + id, nil
		},
	})

	registerWorkerTools(r, svc)
}

// registerWorkerTools tracks spawned workers so the sweeper and review quorums
// can attribute activity.
func registerWorkerTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "register_worker",
		Description: "Record a newly spawned worker against a task.",
		Schema: Schema{
			Required: []string{"task_id", "role"},
			Properties: map[string]Property{
				"task_id": {Type: "string", Description: "Task the worker serves."},
				"role":    {Type: "string", Description: "Worker role, e.g. implementer or reviewer."},
				"reason":  {Type: "string", Description: "Why the worker was spawned."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			taskID, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			role, terr := stringArg(args, "role")
			if terr != nil {
				return nil, terr
			}
			reason, terr := optionalString(args, "reason")
			if terr != nil {
				return nil, terr
			}
			if _, err := svc.Store.GetTask(taskID); err != nil {
				return nil, Translate(err)
			}
			w := &types.Worker{
				ID:        types.NewID(types.PrefixWorker),
				TaskID:    taskID,
				Role:      role,
				Status:    types.WorkerActive,
				StartedAt: time.Now().UTC(),
				Reason:    reason,
			}
			if err := svc.Store.RegisterWorker(w); err != nil {
				return nil, Translate(err)
			}
			return w, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "update_worker_status",
		Description: "Transition a worker's lifecycle status.",
		Schema: Schema{
			Required: []string{"worker_id", "status"},
			Properties: map[string]Property{
				"worker_id": {Type: "string", Description: "Worker id."},
				"status":    {Type: "string", Description: "New status.", Enum: workerStatusEnum()},
				"reason":    {Type: "string", Description: "Why the status changed."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "worker_id")
			if terr != nil {
				return nil, terr
			}
			rawStatus, terr := stringArg(args, "status")
			if terr != nil {
				return nil, terr
			}
			status, err := types.ParseWorkerStatus(rawStatus)
			if err != nil {
				return nil, Translate(err)
			}
			reason, terr := optionalString(args, "reason")
			if terr != nil {
				return nil, terr
			}
			if err := svc.Store.UpdateWorkerStatus(id, status, reason); err != nil {
				return nil, Translate(err)
			}
			w, err := svc.Store.GetWorker(id)
			if err != nil {
				return nil, Translate(err)
			}
			return w, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_workers",
		Description: "List workers newest first, optionally filtered by status.",
		Schema: Schema{
			Properties: map[string]Property{
				"status": {Type: "string", Description: "Only workers in this status.", Enum: workerStatusEnum()},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			rawStatus, terr := optionalString(args, "status")
			if terr != nil {
				return nil, terr
			}
			var filter types.WorkerStatus
			if rawStatus != "" {
				parsed, err := types.ParseWorkerStatus(rawStatus)
				if err != nil {
					return nil, Translate(err)
				}
				filter = parsed
			}
			workers, err := svc.Store.ListWorkers(filter)
			if err != nil {
				return nil, Translate(err)
			}
			if workers == nil {
				workers = []*types.Worker{}
			}
			return map[string]interface{}{"workers": workers, "count": len(workers)}, nil
		},
	})
}

// knownPhase reports whether p belongs to either workflow. List filtering
// accepts any phase; per-type legality only matters for transitions.
func knownPhase(p types.Phase) bool {
	return phase.IsValidPhase(types.TaskTypeFeature, p) || phase.IsValidPhase(types.TaskTypeBug, p)
}
