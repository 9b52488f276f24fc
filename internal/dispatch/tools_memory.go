package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"engram/internal/logging"
	"engram/internal/store"
	"engram/internal/types"
)

// registerMemoryTools wires the memory and journal note stores. Memory
// metadata commits first and indexing is best effort, mirroring the GHAP
// resolution ordering.
func registerMemoryTools(r *Registry, svc Services) {
	r.MustRegister(&Tool{
		Name:        "store_memory",
		Description: "Store a long-lived note and index it for semantic search.",
		Schema: Schema{
			Required: []string{"content", "category"},
			Properties: map[string]Property{
				"content":    {Type: "string", Description: "The note text."},
				"category":   {Type: "string", Description: "Note classification.", Enum: memoryCategoryEnum()},
				"importance": {Type: "number", Description: "Weight in [0, 1], defaults to 0.5."},
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
			rawCategory, terr := stringArg(args, "category")
			if terr != nil {
				return nil, terr
			}
			category, err := types.ParseMemoryCategory(rawCategory)
			if err != nil {
				return nil, Translate(err)
			}
			importance, terr := floatArg(args, "importance", 0.5)
			if terr != nil {
				return nil, terr
			}
			if importance < 0 || importance > 1 {
				return nil, Errorf(KindValidationError, "importance must be between 0 and 1, got %v", importance)
			}

			m := &types.Memory{
				ID:         types.NewID(types.PrefixMemory),
				Content:    strings.TrimSpace(content),
				Category:   category,
				Importance: importance,
				CreatedAt:  time.Now().UTC(),
			}
			if err := svc.Store.StoreMemory(m); err != nil {
				return nil, Translate(err)
			}
			if err := svc.Indexer.IndexMemory(ctx, m); err != nil {
				logging.DispatchError("Failed to index memory %s: %v", m.ID, err)
			}
			return m, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "get_memory",
		Description: "Fetch one memory by id.",
		Schema: Schema{
			Required: []string{"memory_id"},
			Properties: map[string]Property{
				"memory_id": {Type: "string", Description: "Memory id."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "memory_id")
			if terr != nil {
				return nil, terr
			}
			m, err := svc.Store.GetMemory(id)
			if err != nil {
				return nil, Translate(err)
			}
			return m, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_memories",
		Description: "List memories newest first, optionally scoped to one category.",
		Schema: Schema{
			Properties: map[string]Property{
				"category": {Type: "string", Description: "Restrict to one category.", Enum: memoryCategoryEnum()},
				"limit":    {Type: "integer", Description: "Max rows, defaults to all."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			rawCategory, terr := optionalString(args, "category")
			if terr != nil {
				return nil, terr
			}
			var category types.MemoryCategory
			if rawCategory != "" {
				parsed, err := types.ParseMemoryCategory(rawCategory)
				if err != nil {
					return nil, Translate(err)
				}
				category = parsed
			}
			limit, terr := intArg(args, "limit", 0)
			if terr != nil {
				return nil, terr
			}
			memories, err := svc.Store.ListMemories(category, limit)
			if err != nil {
				return nil, Translate(err)
			}
			if memories == nil {
				memories = []*types.Memory{}
			}
			return map[string]interface{}{"memories": memories, "count": len(memories)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "update_memory",
		Description: "Revise a memory's content, category, or importance and reindex it.",
		Schema: Schema{
			Required: []string{"memory_id"},
			Properties: map[string]Property{
				"memory_id":  {Type: "string", Description: "Memory id."},
				"content":    {Type: "string", Description: "Replacement note text."},
				"category":   {Type: "string", Description: "Replacement classification.", Enum: memoryCategoryEnum()},
				"importance": {Type: "number", Description: "Replacement weight in [0, 1]."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "memory_id")
			if terr != nil {
				return nil, terr
			}
			var u store.MemoryUpdate
			if _, ok := args["content"]; ok {
				content, terr := stringArg(args, "content")
				if terr != nil {
					return nil, terr
				}
				if strings.TrimSpace(content) == "" {
					return nil, Errorf(KindValidationError, "content must not be empty")
				}
				trimmed := strings.TrimSpace(content)
				u.Content = &trimmed
			}
			if _, ok := args["category"]; ok {
				rawCategory, terr := stringArg(args, "category")
				if terr != nil {
					return nil, terr
				}
				category, err := types.ParseMemoryCategory(rawCategory)
				if err != nil {
					return nil, Translate(err)
				}
				u.Category = &category
			}
			if _, ok := args["importance"]; ok {
				importance, terr := floatArg(args, "importance", 0)
				if terr != nil {
					return nil, terr
				}
				if importance < 0 || importance > 1 {
					return nil, Errorf(KindValidationError, "importance must be between 0 and 1, got %v", importance)
				}
				u.Importance = &importance
			}
			if u.Content == nil && u.Category == nil && u.Importance == nil {
				return nil, Errorf(KindValidationError, "nothing to update: provide content, category, or importance")
			}

			m, err := svc.Store.UpdateMemory(id, u)
			if err != nil {
				return nil, Translate(err)
			}
			if u.Content != nil || u.Category != nil {
				if err := svc.Indexer.IndexMemory(ctx, m); err != nil {
					logging.DispatchError("Failed to reindex memory %s: %v", m.ID, err)
				}
			}
			return m, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "delete_memory",
		Description: "Delete a memory and drop its vector.",
		Schema: Schema{
			Required: []string{"memory_id"},
			Properties: map[string]Property{
				"memory_id": {Type: "string", Description: "Memory id."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "memory_id")
			if terr != nil {
				return nil, terr
			}
			if err := svc.Store.DeleteMemory(id); err != nil {
				return nil, Translate(err)
			}
			if err := svc.Indexer.RemoveMemory(id); err != nil {
				logging.DispatchError("Failed to drop vector for memory %s: %v", id, err)
			}
			return fmt.Sprintf("deleted %s", id), nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "store_journal_entry",
		Description: "Append a free-form reflection note.",
		Schema: Schema{
			Required: []string{"content"},
			Properties: map[string]Property{
				"content":  {Type: "string", Description: "The note text."},
				"category": {Type: "string", Description: "Free-form grouping label."},
				"tags":     {Type: "array", Description: "Free-form tags."},
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
			category, terr := optionalString(args, "category")
			if terr != nil {
				return nil, terr
			}
			tags, terr := stringListArg(args, "tags")
			if terr != nil {
				return nil, terr
			}
			e := &types.JournalEntry{
				ID:        types.NewID(types.PrefixJournal),
				Content:   strings.TrimSpace(content),
				Category:  category,
				Tags:      tags,
				CreatedAt: time.Now().UTC(),
			}
			if err := svc.Store.AddJournalEntry(e); err != nil {
				return nil, Translate(err)
			}
			return e, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "list_journal_entries",
		Description: "List journal entries newest first, optionally only those not yet reflected.",
		Schema: Schema{
			Properties: map[string]Property{
				"unreflected_only": {Type: "boolean", Description: "Only entries not yet consumed by a reflection pass."},
				"limit":            {Type: "integer", Description: "Max rows, defaults to all."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			unreflectedOnly, terr := boolArg(args, "unreflected_only", false)
			if terr != nil {
				return nil, terr
			}
			limit, terr := intArg(args, "limit", 0)
			if terr != nil {
				return nil, terr
			}
			entries, err := svc.Store.ListJournal(unreflectedOnly, limit)
			if err != nil {
				return nil, Translate(err)
			}
			if entries == nil {
				entries = []*types.JournalEntry{}
			}
			return map[string]interface{}{"entries": entries, "count": len(entries)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "get_journal_entry",
		Description: "Fetch one journal entry by id.",
		Schema: Schema{
			Required: []string{"entry_id"},
			Properties: map[string]Property{
				"entry_id": {Type: "string", Description: "Journal entry id."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			id, terr := stringArg(args, "entry_id")
			if terr != nil {
				return nil, terr
			}
			e, err := svc.Store.GetJournalEntry(id)
			if err != nil {
				return nil, Translate(err)
			}
			return e, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "mark_entries_reflected",
		Description: "Flag journal entries as consumed by a reflection pass.",
		Schema: Schema{
			Required: []string{"entry_ids"},
			Properties: map[string]Property{
				"entry_ids": {Type: "array", Description: "Journal entry ids."},
			},
		},
		Func: func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError) {
			ids, terr := stringListArg(args, "entry_ids")
			if terr != nil {
				return nil, terr
			}
			if len(ids) == 0 {
				return nil, Errorf(KindValidationError, "entry_ids must not be empty")
			}
			if err := svc.Store.MarkReflected(ids); err != nil {
				return nil, Translate(err)
			}
			return map[string]interface{}{"marked": len(ids)}, nil
		},
	})
}
