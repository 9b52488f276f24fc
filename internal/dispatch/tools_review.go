package dispatch

import (
	"context"
	"strings"

	"engram/internal/phase"
	"engram/internal/review"
	"engram/internal/store"
	"engram/internal/types"
)

// registerReviewTools wires review verdicts, quorum checks, and gates.
func registerReviewTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "record_review",
		Description: "Record a reviewer verdict. changes_requested clears prior reviews of the same type.",
		Schema: Schema{
			Required: []string{"task_id", "review_type", "result"},
			Properties: map[string]Property{
				"task_id":     {Type: "string", Description: "Task under review."},
				"review_type": {Type: "string", Description: "What the review approves.", Enum: reviewTypeEnum()},
				"result":      {Type: "string", Description: "Verdict.", Enum: reviewResultEnum()},
				"worker_id":   {Type: "string", Description: "Reviewer identity; quorum counts distinct reviewers."},
				"notes":       {Type: "string", Description: "Free-form review notes."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			taskID, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			reviewType, terr := stringArg(args, "review_type")
			if terr != nil {
				return nil, terr
			}
			result, terr := stringArg(args, "result")
			if terr != nil {
				return nil, terr
			}
			workerID, terr := optionalString(args, "worker_id")
			if terr != nil {
				return nil, terr
			}
			notes, terr := optionalString(args, "notes")
			if terr != nil {
				return nil, terr
			}
			if _, err := svc.Store.GetTask(taskID); err != nil {
				return nil, Translate(err)
			}
			rec, err := svc.Reviews.Record(review.RecordRequest{
				TaskID:   taskID,
				Type:     reviewType,
				Result:   result,
				WorkerID: workerID,
				Notes:    notes,
			})
			if err != nil {
				return nil, Translate(err)
			}
			return rec, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_reviews",
		Description: "List a task's reviews oldest first, optionally scoped to one type.",
		Schema: Schema{
			Required: []string{"task_id"},
			Properties: map[string]Property{
				"task_id":     {Type: "string", Description: "Task id."},
				"review_type": {Type: "string", Description: "Only reviews of this type.", Enum: reviewTypeEnum()},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			taskID, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			reviewType, terr := optionalString(args, "review_type")
			if terr != nil {
				return nil, terr
			}
			reviews, err := svc.Reviews.List(taskID, reviewType)
			if err != nil {
				return nil, Translate(err)
			}
			if reviews == nil {
				reviews = []*types.Review{}
			}
			return map[string]interface{}{"reviews": reviews, "count": len(reviews)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "check_reviews",
		Description: "Report whether a review type has its required distinct approvals.",
		Schema: Schema{
			Required: []string{"task_id", "review_type"},
			Properties: map[string]Property{
				"task_id":     {Type: "string", Description: "Task id."},
				"review_type": {Type: "string", Description: "Review type to check.", Enum: reviewTypeEnum()},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			taskID, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			reviewType, terr := stringArg(args, "review_type")
			if terr != nil {
				return nil, terr
			}
			passed, count, err := svc.Reviews.CheckQuorum(taskID, reviewType)
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{
				"task_id":     taskID,
				"review_type": reviewType,
				"passed":      passed,
				"count":       count,
				"required":    store.Quorum,
			}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "gate_requirements",
		Description: "List the requirements guarding a task's entry into a phase, without running them.",
		Schema: Schema{
			Required: []string{"task_id", "to"},
			Properties: map[string]Property{
				"task_id": {Type: "string", Description: "Task id."},
				"to":      {Type: "string", Description: "Phase being entered.", Enum: phaseEnum()},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			taskID, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			rawTo, terr := stringArg(args, "to")
			if terr != nil {
				return nil, terr
			}
			task, err := svc.Store.GetTask(taskID)
			if err != nil {
				return nil, Translate(err)
			}
			target := types.Phase(strings.ToUpper(strings.TrimSpace(rawTo)))
			if !phase.IsValidPhase(task.TaskType, target) {
				return nil, Errorf(KindValidationError,
					"invalid phase %q for task_type %q", rawTo, task.TaskType)
			}
			return map[string]interface{}{
				"task_id":      task.ID,
				"task_type":    string(task.TaskType),
				"to":           string(target),
				"requirements": review.GateRequirements(task.TaskType, target),
			}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "check_gate",
		Description: "Run every requirement guarding a task's next transition and report per-check results.",
		Schema: Schema{
			Required: []string{"task_id", "transition"},
			Properties: map[string]Property{
				"task_id":    {Type: "string", Description: "Task id."},
				"transition": {Type: "string", Description: "Target phase; must be the legal next edge.", Enum: phaseEnum()},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			taskID, terr := stringArg(args, "task_id")
			if terr != nil {
				return nil, terr
			}
			transition, terr := stringArg(args, "transition")
			if terr != nil {
				return nil, terr
			}
			res, err := svc.Reviews.CheckGate(ctx, taskID, transition)
			if err != nil {
				return nil, Translate(err)
			}
			return res, nil
		},
	})
}
