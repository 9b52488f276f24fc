package dispatch

import (
	"context"

	"engram/internal/assembler"
	"engram/internal/search"
	"engram/internal/types"
)

// defaultSearchLimit applies when a search tool is called without one. The
// searcher itself enforces the [1, 50] range.
const defaultSearchLimit = 5

// registerSearchTools wires the semantic queries and the context assembler.
func registerSearchTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "search_experiences",
		Description: "Semantic search over resolved entries on one axis, hydrated from the metadata store.",
		Schema: Schema{
			Required: []string{"query_text"},
			Properties: map[string]Property{
				"query_text": {Type: "string", Description: "Natural-language query."},
				"axis":       {Type: "string", Description: "Axis collection to search, defaults to full.", Enum: axisEnum()},
				"domain":     {Type: "string", Description: "Restrict to one domain (full axis only).", Enum: domainEnum()},
				"outcome":    {Type: "string", Description: "Restrict to one terminal status.", Enum: outcomeEnum()},
				"limit":      {Type: "integer", Description: "Max results, 1-50, defaults to 5."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			query, terr := stringArg(args, "query_text")
			if terr != nil {
				return nil, terr
			}
			axis, terr := optionalString(args, "axis")
			if terr != nil {
				return nil, terr
			}
			if axis == "" {
				axis = string(types.AxisFull)
			}
			domain, terr := optionalString(args, "domain")
			if terr != nil {
				return nil, terr
			}
			outcome, terr := optionalString(args, "outcome")
			if terr != nil {
				return nil, terr
			}
			limit, terr := intArg(args, "limit", defaultSearchLimit)
			if terr != nil {
				return nil, terr
			}
			results, err := svc.Searcher.SearchExperiences(ctx, search.ExperiencesRequest{
				Query:   query,
				Axis:    axis,
				Domain:  domain,
				Outcome: outcome,
				Limit:   limit,
			})
			if err != nil {
				return nil, Translate(err)
			}
			if results == nil {
				results = []search.ExperienceResult{}
			}
			return map[string]interface{}{"results": results, "count": len(results)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "search_memories",
		Description: "Semantic search over memory notes, optionally scoped to one category.",
		Schema: Schema{
			Required: []string{"query_text"},
			Properties: map[string]Property{
				"query_text": {Type: "string", Description: "Natural-language query."},
				"category":   {Type: "string", Description: "Restrict to one category.", Enum: memoryCategoryEnum()},
				"limit":      {Type: "integer", Description: "Max results, 1-50, defaults to 5."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			query, terr := stringArg(args, "query_text")
			if terr != nil {
				return nil, terr
			}
			category, terr := optionalString(args, "category")
			if terr != nil {
				return nil, terr
			}
			limit, terr := intArg(args, "limit", defaultSearchLimit)
			if terr != nil {
				return nil, terr
			}
			results, err := svc.Searcher.SearchMemories(ctx, query, category, limit)
			if err != nil {
				return nil, Translate(err)
			}
			if results == nil {
				results = []search.MemoryResult{}
			}
			return map[string]interface{}{"results": results, "count": len(results)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "search_values",
		Description: "Semantic search over admitted values, optionally scoped to one axis.",
		Schema: Schema{
			Required: []string{"query_text"},
			Properties: map[string]Property{
				"query_text": {Type: "string", Description: "Natural-language query."},
				"axis":       {Type: "string", Description: "Restrict to one axis.", Enum: axisEnum()},
				"limit":      {Type: "integer", Description: "Max results, 1-50, defaults to 5."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			query, terr := stringArg(args, "query_text")
			if terr != nil {
				return nil, terr
			}
			axis, terr := optionalString(args, "axis")
			if terr != nil {
				return nil, terr
			}
			limit, terr := intArg(args, "limit", defaultSearchLimit)
			if terr != nil {
				return nil, terr
			}
			results, err := svc.Searcher.SearchValues(ctx, query, axis, limit)
			if err != nil {
				return nil, Translate(err)
			}
			if results == nil {
				results = []search.ValueResult{}
			}
			return map[string]interface{}{"results": results, "count": len(results)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "search_code",
		Description: "Semantic search over indexed code units, optionally scoped to one language.",
		Schema: Schema{
			Required: []string{"query_text"},
			Properties: map[string]Property{
				"query_text": {Type: "string", Description: "Natural-language query."},
				"language":   {Type: "string", Description: "Restrict to one language."},
				"limit":      {Type: "integer", Description: "Max results, 1-50, defaults to 5."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			query, terr := stringArg(args, "query_text")
			if terr != nil {
				return nil, terr
			}
			language, terr := optionalString(args, "language")
			if terr != nil {
				return nil, terr
			}
			limit, terr := intArg(args, "limit", defaultSearchLimit)
			if terr != nil {
				return nil, terr
			}
			results, err := svc.Searcher.SearchCode(ctx, query, language, limit)
			if err != nil {
				return nil, Translate(err)
			}
			if results == nil {
				results = []search.CodeResult{}
			}
			return map[string]interface{}{"results": results, "count": len(results)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "search_commits",
		Description: "Semantic search over indexed commit messages.",
		Schema: Schema{
			Required: []string{"query_text"},
			Properties: map[string]Property{
				"query_text": {Type: "string", Description: "Natural-language query."},
				"limit":      {Type: "integer", Description: "Max results, 1-50, defaults to 5."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			query, terr := stringArg(args, "query_text")
			if terr != nil {
				return nil, terr
			}
			limit, terr := intArg(args, "limit", defaultSearchLimit)
			if terr != nil {
				return nil, terr
			}
			results, err := svc.Searcher.SearchCommits(ctx, query, limit)
			if err != nil {
				return nil, Translate(err)
			}
			if results == nil {
				results = []search.CommitResult{}
			}
			return map[string]interface{}{"results": results, "count": len(results)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "assemble_context",
		Description: "Build a token-budgeted markdown context pack for a query.",
		Schema: Schema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query":          {Type: "string", Description: "Query the pack is assembled around."},
				"kinds":          {Type: "array", Description: "Context kinds to include, defaults to all.", Enum: assembler.Kinds()},
				"token_budget":   {Type: "integer", Description: "Approximate token cap, defaults to 2000."},
				"per_kind_limit": {Type: "integer", Description: "Max items per kind, defaults to 5."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			query, terr := stringArg(args, "query")
			if terr != nil {
				return nil, terr
			}
			kinds, terr := stringListArg(args, "kinds")
			if terr != nil {
				return nil, terr
			}
			budget, terr := intArg(args, "token_budget", 0)
			if terr != nil {
				return nil, terr
			}
			perKind, terr := intArg(args, "per_kind_limit", 0)
			if terr != nil {
				return nil, terr
			}
			pack, err := svc.Assembler.Assemble(ctx, assembler.Request{
				Query:        query,
				Kinds:        kinds,
				TokenBudget:  budget,
				PerKindLimit: perKind,
			})
			if err != nil {
				return nil, Translate(err)
			}
			return pack, nil
		},
	})
}
