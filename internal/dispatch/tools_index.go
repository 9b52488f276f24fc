package dispatch

import (
	"context"
	"time"

	"engram/internal/search"
	"engram/internal/types"
)

// registerIndexTools wires the ingestion endpoints the external repository
// indexer pushes through.
func registerIndexTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "index_code_unit",
		Description: "Embed and upsert one code unit (function, class, method) under the caller's id.",
		Schema: Schema{
			Required: []string{"id", "name", "path", "content"},
			Properties: map[string]Property{
				"id":       {Type: "string", Description: "Stable unit id; re-pushing replaces the vector."},
				"name":     {Type: "string", Description: "Unit name."},
				"kind":     {Type: "string", Description: "Construct kind, e.g. function or class."},
				"path":     {Type: "string", Description: "Source file path."},
				"language": {Type: "string", Description: "Source language."},
				"content":  {Type: "string", Description: "Unit source text."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			unit := search.CodeUnit{}
			fields := []struct {
				key      string
				dst      *string
				required bool
			}{
				{"id", &unit.ID, true},
				{"name", &unit.Name, true},
				{"kind", &unit.Kind, false},
				{"path", &unit.Path, true},
				{"language", &unit.Language, false},
				{"content", &unit.Content, true},
			}
			for _, f := range fields {
				var (
					v    string
					terr *ToolError
				)
				if f.required {
					v, terr = stringArg(args, f.key)
				} else {
					v, terr = optionalString(args, f.key)
				}
				if terr != nil {
					return nil, terr
				}
				*f.dst = v
			}
			if err := svc.Indexer.IndexCodeUnit(ctx, unit); err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"ok": true, "id": unit.ID}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "delete_file_units",
		Description: "Remove every indexed code unit belonging to one source file.",
		Schema: Schema{
			Required: []string{"path"},
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Source file path as it was indexed."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			path, terr := stringArg(args, "path")
			if terr != nil {
				return nil, terr
			}
			removed, err := svc.Indexer.DeleteFileUnits(path)
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"removed": removed, "path": path}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "index_commit",
		Description: "Embed and upsert one commit message under its sha.",
		Schema: Schema{
			Required: []string{"sha", "message"},
			Properties: map[string]Property{
				"sha":          {Type: "string", Description: "Commit identity; re-pushing replaces the vector."},
				"message":      {Type: "string", Description: "Full commit message."},
				"author":       {Type: "string", Description: "Author identity."},
				"files":        {Type: "array", Description: "Paths touched by the commit."},
				"committed_at": {Type: "string", Description: "ISO-8601 commit time, defaults to now."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			sha, terr := stringArg(args, "sha")
			if terr != nil {
				return nil, terr
			}
			message, terr := stringArg(args, "message")
			if terr != nil {
				return nil, terr
			}
			author, terr := optionalString(args, "author")
			if terr != nil {
				return nil, terr
			}
			files, terr := stringListArg(args, "files")
			if terr != nil {
				return nil, terr
			}
			committedRaw, terr := optionalString(args, "committed_at")
			if terr != nil {
				return nil, terr
			}
			var committedAt time.Time
			if committedRaw != "" {
				parsed, err := types.ParseTimeString(committedRaw)
				if err != nil {
					return nil, Errorf(KindValidationError, "committed_at: %v", err)
				}
				committedAt = parsed
			}
			err := svc.Indexer.IndexCommit(ctx, search.Commit{
				SHA:         sha,
				Message:     message,
				Author:      author,
				Files:       files,
				CommittedAt: committedAt,
			})
			if err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"ok": true, "sha": sha}, nil
		},
	})
}
