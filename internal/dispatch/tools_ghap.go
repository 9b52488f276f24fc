package dispatch

import (
	"context"

	"engram/internal/collector"
	"engram/internal/types"
)

// registerGHAPTools wires the hypothesis lifecycle: start, update, resolve,
// and the queries over resolved entries, plus the axis rebuild job.
func registerGHAPTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "start_ghap",
		Description: "Open a new active hypothesis entry. Exactly one entry may be active at a time.",
		Schema: Schema{
			Required: []string{"domain", "strategy", "goal", "hypothesis", "action", "prediction"},
			Properties: map[string]Property{
				"domain":     {Type: "string", Description: "Kind of work the entry describes.", Enum: domainEnum()},
				"strategy":   {Type: "string", Description: "Problem-solving approach.", Enum: strategyEnum()},
				"goal":       {Type: "string", Description: "What the work is trying to achieve."},
				"hypothesis": {Type: "string", Description: "The belief under test."},
				"action":     {Type: "string", Description: "What will be done to test it."},
				"prediction": {Type: "string", Description: "The expected observation if the hypothesis holds."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			req := collector.StartRequest{}
			fields := []struct {
				key string
				dst *string
			}{
				{"domain", &req.Domain},
				{"strategy", &req.Strategy},
				{"goal", &req.Goal},
				{"hypothesis", &req.Hypothesis},
				{"action", &req.Action},
				{"prediction", &req.Prediction},
			}
			for _, f := range fields {
				v, terr := stringArg(args, f.key)
				if terr != nil {
					return nil, terr
				}
				*f.dst = v
			}
			entry, err := svc.Collector.Start(req)
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"ok": true, "id": entry.ID}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "update_ghap",
		Description: "Revise the active entry's hypothesis or prediction and bump its iteration count.",
		Schema: Schema{
			Properties: map[string]Property{
				"hypothesis": {Type: "string", Description: "Replacement hypothesis."},
				"prediction": {Type: "string", Description: "Replacement prediction."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			hypothesis, terr := optionalStringPtr(args, "hypothesis")
			if terr != nil {
				return nil, terr
			}
			prediction, terr := optionalStringPtr(args, "prediction")
			if terr != nil {
				return nil, terr
			}
			entry, err := svc.Collector.Update(collector.UpdateRequest{
				Hypothesis: hypothesis,
				Prediction: prediction,
			})
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{
				"success":         true,
				"iteration_count": entry.IterationCount,
			}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "resolve_ghap",
		Description: "Resolve the active entry to a terminal status and index it across the axis collections.",
		Schema: Schema{
			Required: []string{"status", "result"},
			Properties: map[string]Property{
				"status":     {Type: "string", Description: "Terminal outcome.", Enum: outcomeEnum()},
				"result":     {Type: "string", Description: "What actually happened."},
				"surprise":   {Type: "string", Description: "What differed from the prediction."},
				"root_cause": {Type: "object", Description: "Required when status is falsified: {category, description}."},
				"lesson":     {Type: "object", Description: "Optional {what_worked, takeaway}."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			status, terr := stringArg(args, "status")
			if terr != nil {
				return nil, terr
			}
			result, terr := stringArg(args, "result")
			if terr != nil {
				return nil, terr
			}
			surprise, terr := optionalString(args, "surprise")
			if terr != nil {
				return nil, terr
			}
			rootCause, terr := rootCauseArg(args)
			if terr != nil {
				return nil, terr
			}
			lesson, terr := lessonArg(args)
			if terr != nil {
				return nil, terr
			}
			entry, err := svc.Collector.Resolve(ctx, collector.ResolveRequest{
				Status:    status,
				Result:    result,
				Surprise:  surprise,
				RootCause: rootCause,
				Lesson:    lesson,
			})
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"ok": true, "id": entry.ID}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "get_active_ghap",
		Description: "Return the active entry, or null when none exists.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			entry, err := svc.Collector.GetActive()
			if err != nil {
				return nil, Translate(err)
			}
			if entry == nil {
				return map[string]interface{}{"active": nil}, nil
			}
			return map[string]interface{}{"active": entry}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_ghap_entries",
		Description: "Page resolved entries newest first.",
		Schema: Schema{
			Properties: map[string]Property{
				"limit":  {Type: "integer", Description: "Page size, defaults to 20."},
				"offset": {Type: "integer", Description: "Rows to skip, defaults to 0."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			limit, terr := intArg(args, "limit", 20)
			if terr != nil {
				return nil, terr
			}
			offset, terr := intArg(args, "offset", 0)
			if terr != nil {
				return nil, terr
			}
			entries, err := svc.Collector.ListResolved(limit, offset)
			if err != nil {
				return nil, Translate(err)
			}
			if entries == nil {
				entries = []*types.GHAPEntry{}
			}
			return map[string]interface{}{
				"entries": entries,
				"count":   len(entries),
			}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "reindex_vectors",
		Description: "Drop and rebuild the four axis collections from every resolved entry.",
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			report, err := svc.Collector.Reindex(ctx)
			if err != nil {
				return nil, Translate(err)
			}
			return report, nil
		},
	})
}

// rootCauseArg decodes the optional root_cause object. Category membership is
// validated downstream by the collector.
func rootCauseArg(args map[string]interface{}) (*types.RootCause, *ToolError) {
	obj, terr := objectArg(args, "root_cause")
	if terr != nil || obj == nil {
		return nil, terr
	}
	category, terr := optionalString(obj, "category")
	if terr != nil {
		return nil, Errorf(KindValidationError, "root_cause.category must be a string")
	}
	description, terr := optionalString(obj, "description")
	if terr != nil {
		return nil, Errorf(KindValidationError, "root_cause.description must be a string")
	}
	return &types.RootCause{
		Category:    types.RootCauseCategory(category),
		Description: description,
	}, nil
}

func lessonArg(args map[string]interface{}) (*types.Lesson, *ToolError) {
	obj, terr := objectArg(args, "lesson")
	if terr != nil || obj == nil {
		return nil, terr
	}
	whatWorked, terr := optionalString(obj, "what_worked")
	if terr != nil {
		return nil, Errorf(KindValidationError, "lesson.what_worked must be a string")
	}
	takeaway, terr := optionalString(obj, "takeaway")
	if terr != nil {
		return nil, Errorf(KindValidationError, "lesson.takeaway must be a string")
	}
	return &types.Lesson{WhatWorked: whatWorked, Takeaway: takeaway}, nil
}
