package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"engram/internal/embedding"
	"engram/internal/logging"
	"engram/internal/types"
	"engram/internal/vector"
)

// ============================================================================
// INDEXER
// ============================================================================

// Pages pulled per scroll round during bulk deletes.
const deletePageSize = 256

// Payload content is capped so a single large source file cannot bloat the
// index; search hits carry a snippet, the file on disk stays authoritative.
const maxPayloadContent = 2000

// Indexer pushes externally sourced documents into the vector collections:
// code units and commits from the repository indexer, and memory notes as
// they are written. Collections are created lazily on first write so a fresh
// home directory indexes cleanly.
type Indexer struct {
	vectors vector.Store
	engine  embedding.Engine
}

// NewIndexer wires an indexer over its backends.
func NewIndexer(vs vector.Store, eng embedding.Engine) *Indexer {
	return &Indexer{vectors: vs, engine: eng}
}

func (ix *Indexer) ensure(collection string) error {
	return ix.vectors.CreateCollection(collection, ix.engine.Dimensions())
}

// ============================================================================
// CODE UNITS
// ============================================================================

// CodeUnit is one indexable source construct (function, class, method) pushed
// by the external repository indexer.
type CodeUnit struct {
	ID       string
	Name     string
	Kind     string
	Path     string
	Language string
	Content  string
}

// IndexCodeUnit embeds a code unit and upserts it under the caller's id.
// Re-pushing an id replaces the previous vector, so incremental indexing of a
// changed file is upsert-only.
func (ix *Indexer) IndexCodeUnit(ctx context.Context, u CodeUnit) error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"id", u.ID},
		{"name", u.Name},
		{"path", u.Path},
		{"content", u.Content},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	vec, err := embedding.EmbedDocument(ctx, ix.engine, u.Name+"\n"+u.Content)
	if err != nil {
		return fmt.Errorf("embed code unit %s: %w", u.ID, err)
	}
	if err := ix.ensure(vector.CollectionCodeUnits); err != nil {
		return err
	}

	content := u.Content
	if len(content) > maxPayloadContent {
		content = content[:maxPayloadContent]
	}
	point := vector.Point{
		ID:     u.ID,
		Vector: vec,
		Payload: map[string]interface{}{
			"name":     u.Name,
			"kind":     u.Kind,
			"path":     u.Path,
			"file":     u.Path,
			"language": u.Language,
			"content":  content,
		},
	}
	if err := ix.vectors.Upsert(vector.CollectionCodeUnits, []vector.Point{point}); err != nil {
		return fmt.Errorf("upsert code unit %s: %w", u.ID, err)
	}
	logging.SearchDebug("Indexed code unit %s (%s in %s)", u.ID, u.Name, u.Path)
	return nil
}

// DeleteFileUnits removes every code unit whose payload file equals path and
// reports how many were removed. The scroll loops until the store reports the
// collection exhausted; a single page is never trusted to be complete.
func (ix *Indexer) DeleteFileUnits(path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, fmt.Errorf("path is required")
	}

	var (
		ids    []string
		cursor int64
	)
	for {
		page, err := ix.vectors.Scroll(vector.CollectionCodeUnits, vector.ScrollRequest{
			Limit:   deletePageSize,
			Cursor:  cursor,
			Filters: map[string]interface{}{"file": path},
		})
		if errors.Is(err, vector.ErrCollectionNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("scroll code units: %w", err)
		}
		for _, p := range page.Points {
			ids = append(ids, p.ID)
		}
		if page.Done {
			break
		}
		cursor = page.NextCursor
	}

	if len(ids) == 0 {
		return 0, nil
	}
	if err := ix.vectors.Delete(vector.CollectionCodeUnits, ids); err != nil {
		return 0, fmt.Errorf("delete code units for %s: %w", path, err)
	}
	logging.Search("Removed %d code units for %s", len(ids), path)
	return len(ids), nil
}

// ============================================================================
// COMMITS
// ============================================================================

// Commit is one repository commit pushed for indexing. A zero CommittedAt
// defaults to now.
type Commit struct {
	SHA         string
	Message     string
	Author      string
	Files       []string
	CommittedAt time.Time
}

// IndexCommit embeds a commit message (and its file list) under the commit
// sha. Re-pushing a sha replaces the previous vector.
func (ix *Indexer) IndexCommit(ctx context.Context, c Commit) error {
	if strings.TrimSpace(c.SHA) == "" {
		return fmt.Errorf("sha is required")
	}
	if strings.TrimSpace(c.Message) == "" {
		return fmt.Errorf("message is required")
	}

	text := c.Message
	if len(c.Files) > 0 {
		text += "\n" + strings.Join(c.Files, "\n")
	}
	vec, err := embedding.EmbedDocument(ctx, ix.engine, text)
	if err != nil {
		return fmt.Errorf("embed commit %s: %w", c.SHA, err)
	}
	if err := ix.ensure(vector.CollectionCommits); err != nil {
		return err
	}

	committed := c.CommittedAt
	if committed.IsZero() {
		committed = time.Now().UTC()
	}
	subject := c.Message
	if i := strings.IndexByte(subject, '\n'); i >= 0 {
		subject = subject[:i]
	}
	point := vector.Point{
		ID:     c.SHA,
		Vector: vec,
		Payload: map[string]interface{}{
			"subject":      strings.TrimSpace(subject),
			"author":       c.Author,
			"files":        strings.Join(c.Files, "\n"),
			"committed_at": types.FormatTime(committed),
		},
	}
	if err := ix.vectors.Upsert(vector.CollectionCommits, []vector.Point{point}); err != nil {
		return fmt.Errorf("upsert commit %s: %w", c.SHA, err)
	}
	logging.SearchDebug("Indexed commit %s (%d files)", c.SHA, len(c.Files))
	return nil
}

// ============================================================================
// MEMORIES
// ============================================================================

// IndexMemory embeds a memory note so SearchMemories can find it. The
// metadata row stays authoritative; the payload carries only the category
// used for filtered search.
func (ix *Indexer) IndexMemory(ctx context.Context, m *types.Memory) error {
	vec, err := embedding.EmbedDocument(ctx, ix.engine, m.Content)
	if err != nil {
		return fmt.Errorf("embed memory %s: %w", m.ID, err)
	}
	if err := ix.ensure(vector.CollectionMemories); err != nil {
		return err
	}
	point := vector.Point{
		ID:     m.ID,
		Vector: vec,
		Payload: map[string]interface{}{
			"category": string(m.Category),
		},
	}
	if err := ix.vectors.Upsert(vector.CollectionMemories, []vector.Point{point}); err != nil {
		return fmt.Errorf("upsert memory %s: %w", m.ID, err)
	}
	return nil
}

// RemoveMemory drops a memory's vector. A collection that was never created
// has nothing to drop.
func (ix *Indexer) RemoveMemory(id string) error {
	err := ix.vectors.Delete(vector.CollectionMemories, []string{id})
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return nil
	}
	return err
}
