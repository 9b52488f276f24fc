// Package daemon owns the long-running server process and its control
// surface: wiring the stores and tool catalog for the serve loop, spawning
// the background process, stopping it, and reporting status.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"engram/internal/assembler"
	"engram/internal/bus"
	"engram/internal/cluster"
	"engram/internal/collector"
	"engram/internal/config"
	"engram/internal/dispatch"
	"engram/internal/embedding"
	"engram/internal/logging"
	"engram/internal/metrics"
	"engram/internal/review"
	"engram/internal/search"
	"engram/internal/store"
	"engram/internal/values"
	"engram/internal/vector"
	"engram/internal/worktree"
)

// Daemon is one running server: both stores, the engine, the dispatcher and
// its HTTP surface, plus the background chores around them.
type Daemon struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.Store
	vectors vector.Store
	server  *dispatch.Server
	watcher *configWatcher
}

// newServeLogger builds the serve-loop logger. It writes to stderr, which
// the spawner redirects to {home}/server.log; category file logging stays a
// separate, debug-gated concern.
func newServeLogger(cfg *config.Config) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stderr"}
	logCfg.ErrorOutputPaths = []string{"stderr"}
	if cfg.Logging.DebugMode {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return logCfg.Build()
}

// New opens the stores and wires the full tool catalog over them, the same
// service graph the dispatch tests drive in-process.
func New(cfg *config.Config) (*Daemon, error) {
	if err := cfg.EnsureLayout(); err != nil {
		return nil, err
	}
	if err := logging.Initialize(cfg.Home); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	log, err := newServeLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	st, err := store.Open(cfg.MetadataDBPath())
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	vs, err := vector.NewSQLiteStore(cfg.VectorDBPath())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	eng, err := embedding.New(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.GetEmbeddingTimeout(),
	})
	if err != nil {
		vs.Close()
		st.Close()
		return nil, fmt.Errorf("create embedding engine: %w", err)
	}

	runner := cluster.NewRunner(vs, cluster.New(cfg.Cluster.MinClusterSize, cfg.Cluster.MinSamples))
	searcher := search.New(st, vs, eng)
	d := dispatch.New(dispatch.Services{
		Store:     st,
		Vectors:   vs,
		Engine:    eng,
		Collector: collector.New(st, vs, eng),
		Searcher:  searcher,
		Indexer:   search.NewIndexer(vs, eng),
		Assembler: assembler.New(searcher),
		Values:    values.New(vs, eng, runner, cfg.Values.SimilarityThreshold),
		Clusters:  runner,
		Reviews:   review.New(st, cfg),
		Worktrees: worktree.New(st, cfg),
		Config:    cfg,
	}, cfg)

	return &Daemon{
		cfg:     cfg,
		log:     log,
		store:   st,
		vectors: vs,
		server:  dispatch.NewServer(d, cfg),
	}, nil
}

// Run serves until a signal or ctx ends it. The PID file is held for the
// whole lifetime so stop and status can find this process, and removed on
// every exit path.
func (d *Daemon) Run(ctx context.Context) error {
	if err := bus.WritePIDFile(d.cfg.PIDPath(), os.Getpid()); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	defer func() {
		_ = d.log.Sync()
	}()
	defer func() {
		if err := bus.RemovePIDFile(d.cfg.PIDPath()); err != nil {
			d.log.Error("Failed to remove PID file", zap.Error(err))
		}
	}()

	if w, err := newConfigWatcher(d.cfg.Path()); err != nil {
		d.log.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		d.watcher = w
		defer w.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() { errCh <- d.server.Start() }()

	sweep := time.NewTicker(d.cfg.GetWorkerSweepInterval())
	defer sweep.Stop()

	d.log.Info("Serving",
		zap.String("server", config.ServerName),
		zap.String("version", config.Version),
		zap.String("addr", d.server.Addr()),
		zap.Int("pid", os.Getpid()))

	for {
		select {
		case sig := <-sigCh:
			d.log.Info("Received signal, shutting down", zap.Stringer("signal", sig))
			return d.shutdown()
		case <-ctx.Done():
			return d.shutdown()
		case err := <-errCh:
			d.closeStores()
			return err
		case <-sweep.C:
			d.sweepWorkers()
		}
	}
}

// shutdown drains in-flight requests within the grace period, then closes
// the stores.
func (d *Daemon) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.GetShutdownGrace())
	defer cancel()
	err := d.server.Shutdown(ctx)
	d.closeStores()
	d.log.Info("Shutdown complete")
	return err
}

func (d *Daemon) closeStores() {
	if err := d.vectors.Close(); err != nil {
		d.log.Error("Failed to close vector store", zap.Error(err))
	}
	if err := d.store.Close(); err != nil {
		d.log.Error("Failed to close metadata store", zap.Error(err))
	}
}

// sweepWorkers promotes stale active workers to session_ended so crashed
// sessions stop looking busy.
func (d *Daemon) sweepWorkers() {
	n, err := d.store.SweepStaleWorkers(d.cfg.GetWorkerStaleHorizon())
	if err != nil {
		d.log.Error("Worker sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		metrics.WorkerSweeps.Add(float64(n))
		d.log.Info("Worker sweep marked stale workers session_ended", zap.Int("count", n))
	}
}
