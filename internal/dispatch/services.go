package dispatch

import (
	"engram/internal/assembler"
	"engram/internal/cluster"
	"engram/internal/collector"
	"engram/internal/config"
	"engram/internal/embedding"
	"engram/internal/review"
	"engram/internal/search"
	"engram/internal/store"
	"engram/internal/values"
	"engram/internal/vector"
	"engram/internal/worktree"
)

// Services bundles the backends the tool catalog closes over. The daemon
// wires one instance at startup; tests wire a smaller one over the memory
// vector store and the mock engine.
type Services struct {
	Store     *store.Store
	Vectors   vector.Store
	Engine    embedding.Engine
	Collector *collector.Collector
	Searcher  *search.Searcher
	Indexer   *search.Indexer
	Assembler *assembler.Assembler
	Values    *values.Service
	Clusters  *cluster.Runner
	Reviews   *review.Evaluator
	Worktrees *worktree.Manager
	Config    *config.Config
}
