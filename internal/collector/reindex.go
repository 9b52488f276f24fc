package collector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"engram/internal/logging"
	"engram/internal/types"
	"engram/internal/vector"
)

// reindexParallelism bounds concurrent embedding work during a rebuild.
const reindexParallelism = 4

// ReindexReport summarizes one full axis rebuild.
type ReindexReport struct {
	Entries int `json:"entries"`
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// Reindex drops the four axis collections and rebuilds them from every
// resolved entry in the metadata store. Metadata is authoritative and vectors
// are derived, so a rebuild is always safe; it is the repair path for
// resolutions whose indexing failed. Per-entry failures are counted rather
// than aborting the rebuild.
func (c *Collector) Reindex(ctx context.Context) (*ReindexReport, error) {
	timer := logging.StartTimer(logging.CategoryCollector, "Reindex")
	defer timer.Stop()

	entries, err := c.store.ListAllEntries()
	if err != nil {
		return nil, err
	}
	var resolved []*types.GHAPEntry
	for _, e := range entries {
		if e.IsResolved() {
			resolved = append(resolved, e)
		}
	}

	for _, axis := range types.Axes() {
		coll := string(axis)
		if err := c.vectors.DeleteCollection(coll); err != nil && !errors.Is(err, vector.ErrCollectionNotFound) {
			return nil, fmt.Errorf("drop collection %s: %w", coll, err)
		}
		if err := c.vectors.CreateCollection(coll, c.engine.Dimensions()); err != nil {
			return nil, fmt.Errorf("create collection %s: %w", coll, err)
		}
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexParallelism)
	for _, entry := range resolved {
		g.Go(func() error {
			if err := c.IndexEntry(gctx, entry); err != nil {
				logging.CollectorError("Reindex of %s failed: %v", entry.ID, err)
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &ReindexReport{
		Entries: len(resolved),
		Indexed: len(resolved) - int(failed.Load()),
		Failed:  int(failed.Load()),
	}
	logging.Collector("Reindexed %d of %d resolved entries (%d failed)",
		report.Indexed, report.Entries, report.Failed)
	return report, nil
}
