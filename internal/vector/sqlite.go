package vector

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"engram/internal/logging"
	"engram/internal/types"
)

// ============================================================================
// SQLITE-BACKED STORE
// ============================================================================

// SQLiteStore persists collections in a single SQLite file. Vectors are
// little-endian float32 blobs; payloads are JSON text. When the sqlite-vec
// extension is compiled in (build tag sqlite_vec with cgo), kNN runs in SQL
// through vec_distance_cosine; otherwise search falls back to an exact
// in-process scan.
type SQLiteStore struct {
	db      *sql.DB
	mu      sync.RWMutex
	dbPath  string
	vecExt  bool
	dimsFor map[string]int
}

var _ Store = (*SQLiteStore)(nil)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dims INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vec_items (
		collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
		id TEXT NOT NULL,
		vector BLOB NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vec_items_collection ON vec_items(collection)`,
}

// NewSQLiteStore opens (creating if needed) the vector database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryVector, "NewSQLiteStore")
	defer timer.Stop()

	logging.Vector("Opening vector store at %s", path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.VectorDebug("Failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.VectorDebug("Failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.VectorDebug("Failed to set synchronous=NORMAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.VectorDebug("Failed to enable foreign keys: %v", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize vector schema: %w", err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: path, dimsFor: make(map[string]int)}
	s.detectVecExtension()
	if s.vecExt {
		logging.Vector("sqlite-vec extension detected; SQL kNN enabled")
	} else {
		logging.Vector("sqlite-vec extension not available; using in-process cosine scan")
	}
	if err := s.loadCollectionDims(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// detectVecExtension probes for the sqlite-vec scalar functions.
func (s *SQLiteStore) detectVecExtension() {
	var version string
	if err := s.db.QueryRow(`SELECT vec_version()`).Scan(&version); err == nil {
		s.vecExt = true
		logging.VectorDebug("sqlite-vec version %s", version)
		return
	}
	s.vecExt = false
}

func (s *SQLiteStore) loadCollectionDims() error {
	rows, err := s.db.Query(`SELECT name, dims FROM collections`)
	if err != nil {
		return fmt.Errorf("failed to load collections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name string
			dims int
		)
		if err := rows.Scan(&name, &dims); err != nil {
			return err
		}
		s.dimsFor[name] = dims
	}
	return rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	logging.Vector("Closing vector store")
	return s.db.Close()
}

// CreateCollection registers a collection. Existing collections with the same
// dimension are left untouched; a dimension conflict is an error.
func (s *SQLiteStore) CreateCollection(name string, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("collection %q: dimension must be positive, got %d", name, dims)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.dimsFor[name]; ok {
		if existing != dims {
			return fmt.Errorf("collection %q already exists with dimension %d (requested %d)", name, existing, dims)
		}
		return nil
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO collections (name, dims, created_at) VALUES (?, ?, ?)`,
		name, dims, types.FormatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	s.dimsFor[name] = dims
	logging.Vector("Created collection %q (dims %d)", name, dims)
	return nil
}

// DeleteCollection removes a collection and all of its points.
func (s *SQLiteStore) DeleteCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dimsFor[name]; !ok {
		return collectionNotFound(name)
	}
	if _, err := s.db.Exec(`DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete collection %q: %w", name, err)
	}
	delete(s.dimsFor, name)
	logging.Vector("Deleted collection %q", name)
	return nil
}

// ListCollections returns collection names sorted.
func (s *SQLiteStore) ListCollections() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.dimsFor))
	for name := range s.dimsFor {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Upsert inserts or replaces points by id.
func (s *SQLiteStore) Upsert(collection string, points []Point) error {
	timer := logging.StartTimer(logging.CategoryVector, "Upsert")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	dims, ok := s.dimsFor[collection]
	if !ok {
		return collectionNotFound(collection)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", err)
	}
	now := types.FormatTime(time.Now().UTC())
	for _, p := range points {
		if len(p.Vector) != dims {
			tx.Rollback()
			return fmt.Errorf("vector dimension mismatch for collection %q: got %d, want %d",
				collection, len(p.Vector), dims)
		}
		payload, err := encodePayload(p.Payload)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO vec_items (collection, id, vector, payload, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			collection, p.ID, encodeVector(p.Vector), payload, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert point %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns a point by id, or nil when the id is absent.
func (s *SQLiteStore) Get(collection, id string) (*Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.dimsFor[collection]; !ok {
		return nil, collectionNotFound(collection)
	}

	var (
		blob    []byte
		payload string
	)
	err := s.db.QueryRow(
		`SELECT vector, payload FROM vec_items WHERE collection = ? AND id = ?`,
		collection, id).Scan(&blob, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get point %s: %w", id, err)
	}

	vec, err := decodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("point %s: %w", id, err)
	}
	p := &Point{ID: id, Vector: vec}
	if p.Payload, err = decodePayload(payload); err != nil {
		return nil, fmt.Errorf("point %s: %w", id, err)
	}
	return p, nil
}

// Delete removes points by id. Absent ids are ignored.
func (s *SQLiteStore) Delete(collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dimsFor[collection]; !ok {
		return collectionNotFound(collection)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.Exec(
			`DELETE FROM vec_items WHERE collection = ? AND id = ?`,
			collection, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete point %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Search runs cosine kNN over the collection. With the sqlite-vec extension
// present and no filters the ranking happens in SQL; otherwise all candidate
// rows are scanned and scored in-process so payload filters see every point.
func (s *SQLiteStore) Search(collection string, query []float32, limit int, filters map[string]interface{}) ([]ScoredPoint, error) {
	timer := logging.StartTimer(logging.CategoryVector, "Search")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	dims, ok := s.dimsFor[collection]
	if !ok {
		return nil, collectionNotFound(collection)
	}
	if len(query) != dims {
		return nil, fmt.Errorf("query dimension mismatch for collection %q: got %d, want %d",
			collection, len(query), dims)
	}
	if limit <= 0 {
		limit = 10
	}

	if s.vecExt && len(filters) == 0 {
		return s.searchVec(collection, query, limit)
	}
	return s.searchScan(collection, query, limit, filters)
}

func (s *SQLiteStore) searchVec(collection string, query []float32, limit int) ([]ScoredPoint, error) {
	rows, err := s.db.Query(
		`SELECT id, vector, payload, vec_distance_cosine(vector, ?) AS distance
		 FROM vec_items WHERE collection = ?
		 ORDER BY distance ASC LIMIT ?`,
		encodeVector(query), collection, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var results []ScoredPoint
	for rows.Next() {
		var (
			sp       ScoredPoint
			blob     []byte
			payload  string
			distance float64
		)
		if err := rows.Scan(&sp.ID, &blob, &payload, &distance); err != nil {
			return nil, err
		}
		if sp.Vector, err = decodeVector(blob); err != nil {
			logging.VectorWarn("Skipping point %s: %v", sp.ID, err)
			continue
		}
		if sp.Payload, err = decodePayload(payload); err != nil {
			logging.VectorWarn("Skipping point %s: %v", sp.ID, err)
			continue
		}
		sp.Score = 1.0 - distance
		results = append(results, sp)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) searchScan(collection string, query []float32, limit int, filters map[string]interface{}) ([]ScoredPoint, error) {
	rows, err := s.db.Query(
		`SELECT id, vector, payload FROM vec_items WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("vector scan failed: %w", err)
	}
	defer rows.Close()

	var candidates []ScoredPoint
	for rows.Next() {
		var (
			sp      ScoredPoint
			blob    []byte
			payload string
		)
		if err := rows.Scan(&sp.ID, &blob, &payload); err != nil {
			return nil, err
		}
		if sp.Vector, err = decodeVector(blob); err != nil {
			logging.VectorWarn("Skipping point %s: %v", sp.ID, err)
			continue
		}
		if sp.Payload, err = decodePayload(payload); err != nil {
			logging.VectorWarn("Skipping point %s: %v", sp.ID, err)
			continue
		}
		if !matchFilters(sp.Payload, filters) {
			continue
		}
		sp.Score = CosineSimilarity(query, sp.Vector)
		candidates = append(candidates, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortScored(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Scroll pages over stored rows in rowid order. The cursor advances past
// every scanned row even when filters prune it, so looping until Done always
// terminates.
func (s *SQLiteStore) Scroll(collection string, req ScrollRequest) (*ScrollPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.dimsFor[collection]; !ok {
		return nil, collectionNotFound(collection)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT rowid, id, vector, payload FROM vec_items
		 WHERE collection = ? AND rowid > ?
		 ORDER BY rowid ASC LIMIT ?`,
		collection, req.Cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("scroll failed: %w", err)
	}
	defer rows.Close()

	page := &ScrollPage{NextCursor: req.Cursor}
	scanned := 0
	for rows.Next() {
		var (
			rowid   int64
			p       Point
			blob    []byte
			payload string
		)
		if err := rows.Scan(&rowid, &p.ID, &blob, &payload); err != nil {
			return nil, err
		}
		scanned++
		page.NextCursor = rowid

		if p.Payload, err = decodePayload(payload); err != nil {
			logging.VectorWarn("Skipping point %s: %v", p.ID, err)
			continue
		}
		if !matchFilters(p.Payload, req.Filters) {
			continue
		}
		if req.WithVectors {
			if p.Vector, err = decodeVector(blob); err != nil {
				logging.VectorWarn("Skipping point %s: %v", p.ID, err)
				continue
			}
		}
		page.Points = append(page.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	page.Done = scanned < limit
	return page, nil
}

// Count returns how many points match the filters.
func (s *SQLiteStore) Count(collection string, filters map[string]interface{}) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.dimsFor[collection]; !ok {
		return 0, collectionNotFound(collection)
	}

	if len(filters) == 0 {
		var n int
		err := s.db.QueryRow(
			`SELECT COUNT(*) FROM vec_items WHERE collection = ?`, collection).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("count failed: %w", err)
		}
		return n, nil
	}

	rows, err := s.db.Query(
		`SELECT payload FROM vec_items WHERE collection = ?`, collection)
	if err != nil {
		return 0, fmt.Errorf("count scan failed: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return 0, err
		}
		decoded, err := decodePayload(payload)
		if err != nil {
			continue
		}
		if matchFilters(decoded, filters) {
			n++
		}
	}
	return n, rows.Err()
}

// sortScored orders by descending score, then id for deterministic ties.
func sortScored(points []ScoredPoint) {
	sort.Slice(points, func(i, j int) bool {
		if points[i].Score != points[j].Score {
			return points[i].Score > points[j].Score
		}
		return points[i].ID < points[j].ID
	})
}
