// Package vector implements the named-collection vector index. Collections
// are created lazily by consumers, carry a fixed dimension, and hold
// (id, vector, payload) points searched by cosine similarity.
//
// Two implementations share the package: SQLiteStore persists points as
// little-endian float32 blobs and uses the sqlite-vec extension for kNN when
// it is compiled in, and MemoryStore backs tests. Both apply the same payload
// filter grammar.
package vector

import (
	"errors"
	"fmt"
)

// ErrCollectionNotFound reports an operation against a collection that was
// never created. The message keeps the "not found" substring that upstream
// error normalization matches on.
var ErrCollectionNotFound = errors.New("collection not found")

func collectionNotFound(name string) error {
	return fmt.Errorf("collection %q not found: %w", name, ErrCollectionNotFound)
}

// Well-known collection names.
const (
	CollectionFull      = "full"
	CollectionStrategy  = "strategy"
	CollectionSurprise  = "surprise"
	CollectionRootCause = "root_cause"
	CollectionValues    = "values"
	CollectionMemories  = "memories"
	CollectionCodeUnits = "code_units"
	CollectionCommits   = "commits"
)

// Point is one stored vector with its payload.
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ScoredPoint is a search hit; Score is cosine similarity, higher is closer.
type ScoredPoint struct {
	Point
	Score float64 `json:"score"`
}

// ScrollRequest pages through a collection. Cursor is opaque; start at 0 and
// pass NextCursor back until Done. Filters prune returned points but the
// cursor always advances over stored rows, so a filtered scroll still
// terminates.
type ScrollRequest struct {
	Limit       int
	Cursor      int64
	WithVectors bool
	Filters     map[string]interface{}
}

// ScrollPage is one page of a scroll.
type ScrollPage struct {
	Points     []Point
	NextCursor int64
	Done       bool
}

// Store is the vector index contract. Missing collections fail with an error
// wrapping ErrCollectionNotFound on every data operation.
type Store interface {
	// CreateCollection is idempotent: re-creating an existing collection with
	// the same dimension is a no-op and never erases contents.
	CreateCollection(name string, dims int) error
	DeleteCollection(name string) error
	ListCollections() ([]string, error)

	Upsert(collection string, points []Point) error
	Get(collection, id string) (*Point, error)
	Delete(collection string, ids []string) error

	Search(collection string, query []float32, limit int, filters map[string]interface{}) ([]ScoredPoint, error)
	Scroll(collection string, req ScrollRequest) (*ScrollPage, error)
	Count(collection string, filters map[string]interface{}) (int, error)

	Close() error
}
