// Package assembler builds token-budgeted context packs for prompt
// injection. Each requested kind is searched semantically against the user's
// query, rendered as a markdown section, and appended until the budget is
// spent. Deduplication is by (source, content) over the full content.
package assembler

import (
	"context"
	"fmt"
	"strings"

	"engram/internal/logging"
	"engram/internal/search"
)

// Context kinds, in the order sections appear in the pack.
const (
	KindMemories    = "memories"
	KindExperiences = "experiences"
	KindValues      = "values"
	KindCode        = "code"
	KindCommits     = "commits"
)

// Kinds lists every valid context kind in section order.
func Kinds() []string {
	return []string{KindMemories, KindExperiences, KindValues, KindCode, KindCommits}
}

// Defaults applied when a request leaves budget fields unset.
const (
	DefaultTokenBudget  = 2000
	DefaultPerKindLimit = 5
)

var sectionTitles = map[string]string{
	KindMemories:    "Relevant Memories",
	KindExperiences: "Past Experiences",
	KindValues:      "Learned Values",
	KindCode:        "Related Code",
	KindCommits:     "Related Commits",
}

// Assembler builds context packs from the semantic search layer.
type Assembler struct {
	searcher *search.Searcher
	counter  *TokenCounter
}

// New wires an assembler over the searcher.
func New(s *search.Searcher) *Assembler {
	return &Assembler{searcher: s, counter: NewTokenCounter()}
}

// Request describes one context pack. Zero budget fields take the defaults.
type Request struct {
	Query        string
	Kinds        []string
	TokenBudget  int
	PerKindLimit int
}

// Pack is an assembled context pack.
type Pack struct {
	Markdown   string `json:"markdown"`
	ItemCount  int    `json:"item_count"`
	TokenCount int    `json:"token_count"`
	Truncated  bool   `json:"truncated"`
}

// item is one deduplicatable line. Using the struct itself as a map key gives
// equality (and hashing) over the full source and content, never a prefix.
type item struct {
	source  string
	content string
}

// Assemble searches every requested kind and renders the pack. Unknown kinds
// fail up front with a message naming the valid set.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Pack, error) {
	timer := logging.StartTimer(logging.CategoryAssembler, "Assemble")
	defer timer.Stop()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = Kinds()
	}
	requested := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		if _, ok := sectionTitles[k]; !ok {
			return nil, fmt.Errorf("unknown context kind %q (valid: %s)", k, strings.Join(Kinds(), ", "))
		}
		requested[k] = true
	}
	budget := req.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	perKind := req.PerKindLimit
	if perKind <= 0 {
		perKind = DefaultPerKindLimit
	}

	pack := &Pack{}
	seen := make(map[item]bool)
	var b strings.Builder

	for _, kind := range Kinds() {
		if !requested[kind] {
			continue
		}
		lines, err := a.collect(ctx, kind, req.Query, perKind)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", kind, err)
		}
		if len(lines) == 0 {
			continue
		}

		header := fmt.Sprintf("## %s\n\n", sectionTitles[kind])
		headerTokens := a.counter.Count(header)
		wroteHeader := false

		for _, line := range lines {
			it := item{source: kind, content: line}
			if seen[it] {
				continue
			}
			cost := a.counter.Count(line + "\n")
			if !wroteHeader {
				cost += headerTokens
			}
			if pack.TokenCount+cost > budget {
				pack.Truncated = true
				logging.AssemblerDebug("Budget %d reached at %s; pack truncated", budget, kind)
				break
			}
			if !wroteHeader {
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.WriteString(header)
				wroteHeader = true
			}
			b.WriteString(line)
			b.WriteString("\n")
			seen[it] = true
			pack.ItemCount++
			pack.TokenCount += cost
		}
		if pack.Truncated {
			break
		}
	}

	pack.Markdown = b.String()
	logging.Assembler("Assembled %d items, ~%d tokens (truncated=%v)", pack.ItemCount, pack.TokenCount, pack.Truncated)
	return pack, nil
}

// collect runs the kind's search and renders each hit as one markdown line.
func (a *Assembler) collect(ctx context.Context, kind, query string, limit int) ([]string, error) {
	switch kind {
	case KindMemories:
		hits, err := a.searcher.SearchMemories(ctx, query, "", limit)
		if err != nil {
			return nil, err
		}
		lines := make([]string, 0, len(hits))
		for _, h := range hits {
			lines = append(lines, fmt.Sprintf("- [%s] %s", h.Category, h.Content))
		}
		return lines, nil

	case KindExperiences:
		hits, err := a.searcher.SearchExperiences(ctx, search.ExperiencesRequest{
			Query: query,
			Axis:  "full",
			Limit: limit,
		})
		if err != nil {
			return nil, err
		}
		lines := make([]string, 0, len(hits))
		for _, h := range hits {
			line := fmt.Sprintf("- **%s** (%s, %s): %s", h.Goal, h.Domain, h.Status, h.OutcomeResult)
			if h.LessonTakeaway != "" {
				line += fmt.Sprintf(" Takeaway: %s", h.LessonTakeaway)
			}
			lines = append(lines, line)
		}
		return lines, nil

	case KindValues:
		hits, err := a.searcher.SearchValues(ctx, query, "", limit)
		if err != nil {
			return nil, err
		}
		lines := make([]string, 0, len(hits))
		for _, h := range hits {
			lines = append(lines, fmt.Sprintf("- %s", h.Text))
		}
		return lines, nil

	case KindCode:
		hits, err := a.searcher.SearchCode(ctx, query, "", limit)
		if err != nil {
			return nil, err
		}
		lines := make([]string, 0, len(hits))
		for _, h := range hits {
			lines = append(lines, fmt.Sprintf("- `%s` %s (%s)", h.Path, h.Name, h.Kind))
		}
		return lines, nil

	case KindCommits:
		hits, err := a.searcher.SearchCommits(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		lines := make([]string, 0, len(hits))
		for _, h := range hits {
			sha := h.SHA
			if len(sha) > 8 {
				sha = sha[:8]
			}
			lines = append(lines, fmt.Sprintf("- %s %s", sha, h.Subject))
		}
		return lines, nil
	}
	return nil, fmt.Errorf("unknown context kind %q (valid: %s)", kind, strings.Join(Kinds(), ", "))
}
