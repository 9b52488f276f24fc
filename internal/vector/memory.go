package vector

import (
	"fmt"
	"sort"
	"sync"
)

// ============================================================================
// IN-MEMORY STORE
// ============================================================================

// MemoryStore is the in-process Store used by tests and ephemeral runs. It
// implements the full filter grammar; equality-only filtering here once broke
// range queries that worked against the real store, so the two
// implementations share matchFilters.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

var _ Store = (*MemoryStore)(nil)

type memCollection struct {
	dims   int
	points map[string]Point
	order  []string // insertion order, drives scroll cursors
}

// NewMemoryStore returns an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// CreateCollection registers a collection; re-creation with the same
// dimension is a no-op.
func (s *MemoryStore) CreateCollection(name string, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("collection %q: dimension must be positive, got %d", name, dims)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.collections[name]; ok {
		if existing.dims != dims {
			return fmt.Errorf("collection %q already exists with dimension %d (requested %d)",
				name, existing.dims, dims)
		}
		return nil
	}
	s.collections[name] = &memCollection{dims: dims, points: make(map[string]Point)}
	return nil
}

// DeleteCollection removes a collection and its points.
func (s *MemoryStore) DeleteCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return collectionNotFound(name)
	}
	delete(s.collections, name)
	return nil
}

// ListCollections returns collection names sorted.
func (s *MemoryStore) ListCollections() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Upsert inserts or replaces points by id.
func (s *MemoryStore) Upsert(collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return collectionNotFound(collection)
	}
	for _, p := range points {
		if len(p.Vector) != coll.dims {
			return fmt.Errorf("vector dimension mismatch for collection %q: got %d, want %d",
				collection, len(p.Vector), coll.dims)
		}
		if _, exists := coll.points[p.ID]; !exists {
			coll.order = append(coll.order, p.ID)
		}
		coll.points[p.ID] = clonePoint(p)
	}
	return nil
}

// Get returns a point by id, or nil when the id is absent.
func (s *MemoryStore) Get(collection, id string) (*Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, collectionNotFound(collection)
	}
	p, ok := coll.points[id]
	if !ok {
		return nil, nil
	}
	cp := clonePoint(p)
	return &cp, nil
}

// Delete removes points by id. Absent ids are ignored.
func (s *MemoryStore) Delete(collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return collectionNotFound(collection)
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, exists := coll.points[id]; exists {
			delete(coll.points, id)
			drop[id] = true
		}
	}
	if len(drop) > 0 {
		kept := coll.order[:0]
		for _, id := range coll.order {
			if !drop[id] {
				kept = append(kept, id)
			}
		}
		coll.order = kept
	}
	return nil
}

// Search runs an exact cosine kNN scan with payload filters.
func (s *MemoryStore) Search(collection string, query []float32, limit int, filters map[string]interface{}) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, collectionNotFound(collection)
	}
	if len(query) != coll.dims {
		return nil, fmt.Errorf("query dimension mismatch for collection %q: got %d, want %d",
			collection, len(query), coll.dims)
	}
	if limit <= 0 {
		limit = 10
	}

	var candidates []ScoredPoint
	for _, id := range coll.order {
		p := coll.points[id]
		if !matchFilters(p.Payload, filters) {
			continue
		}
		candidates = append(candidates, ScoredPoint{
			Point: clonePoint(p),
			Score: CosineSimilarity(query, p.Vector),
		})
	}
	sortScored(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Scroll pages over points in insertion order. The cursor advances past every
// scanned point regardless of filters.
func (s *MemoryStore) Scroll(collection string, req ScrollRequest) (*ScrollPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, collectionNotFound(collection)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	start := int(req.Cursor)
	if start < 0 {
		start = 0
	}
	end := start + limit
	if end > len(coll.order) {
		end = len(coll.order)
	}

	page := &ScrollPage{NextCursor: int64(end), Done: end >= len(coll.order)}
	for _, id := range coll.order[start:end] {
		p := coll.points[id]
		if !matchFilters(p.Payload, req.Filters) {
			continue
		}
		cp := clonePoint(p)
		if !req.WithVectors {
			cp.Vector = nil
		}
		page.Points = append(page.Points, cp)
	}
	return page, nil
}

// Count returns how many points match the filters.
func (s *MemoryStore) Count(collection string, filters map[string]interface{}) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return 0, collectionNotFound(collection)
	}
	n := 0
	for _, p := range coll.points {
		if matchFilters(p.Payload, filters) {
			n++
		}
	}
	return n, nil
}

// clonePoint copies a point so callers cannot mutate stored state.
func clonePoint(p Point) Point {
	cp := Point{ID: p.ID}
	if p.Vector != nil {
		cp.Vector = make([]float32, len(p.Vector))
		copy(cp.Vector, p.Vector)
	}
	if p.Payload != nil {
		cp.Payload = make(map[string]interface{}, len(p.Payload))
		for k, v := range p.Payload {
			cp.Payload[k] = v
		}
	}
	return cp
}
