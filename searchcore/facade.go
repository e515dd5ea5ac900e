package searchcore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/justSteve/coding-agent-session-search/cache"
	"github.com/justSteve/coding-agent-session-search/embedder"
	"github.com/justSteve/coding-agent-session-search/hybrid"
	"github.com/justSteve/coding-agent-session-search/internal/idstore"
	"github.com/justSteve/coding-agent-session-search/lexical"
	"github.com/justSteve/coding-agent-session-search/model"
	"github.com/justSteve/coding-agent-session-search/query"
	"github.com/justSteve/coding-agent-session-search/schema"
	"github.com/justSteve/coding-agent-session-search/vector"
	"github.com/justSteve/coding-agent-session-search/warm"
)

// originRemoteBit is packed into the top bit of a vector row's SourceID
// field so the vector engine can recover origin_kind (local vs remote)
// for Source-scope filtering without a separate per-row metadata lookup
// (spec §4.3's row is fixed-size and doesn't carry origin_kind directly).
// Real interned source ids never approach 2^31, so the bit is free.
const originRemoteBit = uint32(1) << 31

func packSourceID(id uint32, origin model.OriginKind) uint32 {
	if origin == model.OriginRemote {
		return id | originRemoteBit
	}
	return id
}

func unpackSourceID(packed uint32) (id uint32, origin model.OriginKind) {
	if packed&originRemoteBit != 0 {
		return packed &^ originRemoteBit, model.OriginRemote
	}
	return packed, model.OriginLocal
}

// Facade is the public entry point described in spec §4.10: it wires the
// lexical index, vector index, embedder, prefix cache, warm worker,
// hybrid fuser and deduper behind index_batch/delete_source/search.
type Facade struct {
	dataDir string
	opts    options
	log     *Logger

	lex *lexical.Index

	vecIdx  atomic.Pointer[vector.Index]
	vecPath string
	vecDim  int
	vecQuant vector.Quantization

	emb embedder.Embedder
	ids *idstore.Store

	cache *cache.Cache
	fuser *hybrid.Fuser
	warm  *warm.Worker
	bg    *backgroundController

	metrics *metricsCollector

	// writeMu serializes index_batch/delete_source/Commit/Rebuild: at most
	// one writer across lexical+vector at any time (spec §5).
	writeMu sync.Mutex

	lastCommitMs   atomic.Int64
	schemaMismatch atomic.Bool
}

// Open initializes (or reopens) a Façade rooted at dataDir, creating
// data_dir/schema_hash, data_dir/lexical and data_dir/meta.sqlite on
// first use (spec §6 on-disk layout); data_dir/vectors is created by the
// first commit that writes vector rows.
func Open(dataDir string, opts ...Option) (*Facade, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = NewLogger(nil)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, wrap(ErrConfigError, "searchcore.Open: mkdir data_dir", err)
	}

	emb, err := buildEmbedder(o)
	if err != nil {
		return nil, err
	}

	ids, err := idstore.Open(filepath.Join(dataDir, "meta.sqlite"))
	if err != nil {
		return nil, wrap(ErrConfigError, "searchcore.Open: idstore", err)
	}

	f := &Facade{
		dataDir:  dataDir,
		opts:     o,
		log:      o.log,
		emb:      emb,
		ids:      ids,
		cache:    cache.New(cache.Options{ShardCap: o.cacheShardCap, TotalCap: o.cacheTotalCap, ByteCap: o.cacheByteCap}),
		fuser:    hybrid.New(o.rrfK),
		bg:       newBackgroundController(o.maxConcurrentBackground),
		metrics:  &metricsCollector{},
		vecPath:  filepath.Join(dataDir, "vectors", "cvvi.bin"),
		vecDim:   emb.Dimension(),
		vecQuant: o.vectorQuantization,
	}

	mismatch, err := f.checkSchemaFence()
	if err != nil {
		ids.Close()
		return nil, err
	}
	f.schemaMismatch.Store(mismatch)

	if !mismatch {
		if err := f.openEngines(); err != nil {
			ids.Close()
			return nil, err
		}
	}

	// A warm cycle that finds every background slot taken (a merge or a
	// write is running) is skipped rather than queued.
	reload := func() error {
		if !f.bg.TryAcquire() {
			return nil
		}
		defer f.bg.Release()
		return f.reloadReaders()
	}
	f.warm = warm.New(o.warmDebounce, reload, f.touchReaders, o.log.Logger)
	f.warm.Start()

	return f, nil
}

func buildEmbedder(o options) (embedder.Embedder, error) {
	switch o.embedderChoice {
	case EmbedderHash:
		return embedder.NewHashEmbedder(), nil
	case EmbedderML:
		if o.mlInfer == nil {
			return nil, wrap(ErrConfigError, "searchcore: embedder=ml requires WithMLEmbedder", nil)
		}
		return embedder.NewMLAdapter(o.mlInfer), nil
	default: // EmbedderAuto
		if o.mlInfer != nil {
			return embedder.NewMLAdapter(o.mlInfer), nil
		}
		return embedder.NewHashEmbedder(), nil
	}
}

// checkSchemaFence compares the on-disk schema_hash (if any) against the
// compiled schema.Hash, writing the file on first use (spec §4.1, §8
// invariant 3).
func (f *Facade) checkSchemaFence() (mismatch bool, err error) {
	path := filepath.Join(f.dataDir, "schema_hash")
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := os.WriteFile(path, []byte(schema.Hash), 0o644); werr != nil {
			return false, wrap(ErrConfigError, "searchcore: writing schema_hash", werr)
		}
		return false, nil
	}
	if err != nil {
		return false, wrap(ErrConfigError, "searchcore: reading schema_hash", err)
	}
	return !schema.Matches(string(b)), nil
}

func (f *Facade) openEngines() error {
	lexDir := filepath.Join(f.dataDir, "lexical")
	lex, err := lexical.Open(lexDir, f.log.Logger,
		lexical.WithMergeThreshold(f.opts.mergeThreshold),
		lexical.WithMergeCooldownMs(f.opts.mergeCooldownMs))
	if err != nil {
		return wrap(ErrIndexCorruption, "searchcore: opening lexical index", err)
	}
	f.lex = lex

	if idx, err := vector.Open(f.vecPath, vector.OpenOptions{
		PreConvert:        f.opts.vectorPreconvert,
		ParallelThreshold: f.opts.vectorParallelThreshold,
		WantEmbedderID:    f.emb.ID(),
		WantEmbedderRev:   f.emb.Revision(),
		WantDimension:     f.emb.Dimension(),
	}); err == nil {
		f.vecIdx.Store(idx)
	}
	// A missing/empty cvvi.bin is not an error at Open: the vector index
	// simply starts with zero rows until the first index_batch commit.
	return nil
}

// Close releases the warm worker, lexical writer, vector mmap and id
// store. Safe to call once.
func (f *Facade) Close() error {
	if f.warm != nil {
		f.warm.Stop()
	}
	if idx := f.vecIdx.Load(); idx != nil {
		_ = idx.Close()
	}
	var err error
	if f.ids != nil {
		err = f.ids.Close()
	}
	return err
}

// IndexBatch schema-validates and writes docs to the lexical and vector
// writers, committing atomically, and returns the new generation (spec
// §4.10 "index_batch"). Refuses with ErrSchemaMismatch until Rebuild.
func (f *Facade) IndexBatch(ctx context.Context, docs []model.Document) (generation uint64, err error) {
	if f.schemaMismatch.Load() {
		return 0, wrap(ErrSchemaMismatch, "searchcore.IndexBatch", nil)
	}

	if err := f.bg.Acquire(ctx); err != nil {
		return 0, wrap(ErrTimeout, "searchcore.IndexBatch: acquiring writer slot", err)
	}
	defer f.bg.Release()

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	start := time.Now()

	newRows := make([]vector.RowInput, 0, len(docs))
	for _, doc := range docs {
		if err := f.lex.AddDocument(doc); err != nil {
			return 0, wrap(ErrBug, "searchcore.IndexBatch: schema rejection", err)
		}
		if doc.Content == "" {
			continue // not embeddable
		}
		row, err := f.embedDocument(ctx, doc)
		if err != nil {
			f.log.Warn("index_batch: embedding failed, document kept lexical-only", "doc_id", doc.DocID, "error", err)
			continue
		}
		newRows = append(newRows, row)
	}

	if err := f.commitVectorRows(newRows, nil); err != nil {
		return 0, wrap(ErrIndexCorruption, "searchcore.IndexBatch: vector commit", err)
	}

	gen, err := f.lex.Commit()
	if err != nil {
		return 0, wrap(ErrIndexCorruption, "searchcore.IndexBatch: lexical commit", err)
	}

	f.lastCommitMs.Store(time.Now().UnixMilli())
	f.metrics.recordReload(time.Since(start))
	f.log.LogCommit(gen, len(docs), time.Since(start).Milliseconds())
	f.warm.Signal()

	return gen, nil
}

func (f *Facade) embedDocument(ctx context.Context, doc model.Document) (vector.RowInput, error) {
	vec := doc.Vector
	if vec == nil {
		var err error
		vec, err = f.emb.Embed(ctx, doc.Content)
		if err != nil {
			return vector.RowInput{}, err
		}
	}

	agentID, err := f.ids.Intern(ctx, idstore.KindAgent, doc.Agent)
	if err != nil {
		return vector.RowInput{}, err
	}
	workspaceID, err := f.ids.Intern(ctx, idstore.KindWorkspace, doc.Workspace)
	if err != nil {
		return vector.RowInput{}, err
	}
	sourceID, err := f.ids.Intern(ctx, idstore.KindSource, doc.SourceID)
	if err != nil {
		return vector.RowInput{}, err
	}

	return vector.RowInput{
		DocID:       doc.DocID,
		CreatedAtMs: doc.CreatedAtMs,
		AgentID:     agentID,
		WorkspaceID: workspaceID,
		SourceID:    packSourceID(sourceID, doc.OriginKind),
		Role:        uint8(doc.Role),
		ContentHash: doc.ContentHash,
		Vector:      vec,
	}, nil
}

// commitVectorRows rewrites cvvi.bin as the union of the previous
// snapshot's rows (minus any in dropSourceIDs or superseded by a DocID in
// newRows) and newRows, then reopens the reader. A CVVI file is a single
// whole-file snapshot (spec §4.3), so every commit rewrites it in full.
func (f *Facade) commitVectorRows(newRows []vector.RowInput, dropSourceIDs map[uint32]struct{}) error {
	if len(newRows) == 0 && dropSourceIDs == nil {
		return nil
	}

	byDocID := make(map[uint64]vector.RowInput)

	if prev := f.vecIdx.Load(); prev != nil {
		for i := 0; i < prev.RowCount(); i++ {
			row := prev.Row(i)
			if dropSourceIDs != nil {
				if _, dropped := dropSourceIDs[row.SourceID]; dropped {
					continue
				}
			}
			byDocID[row.DocID] = vector.RowInput{
				DocID:       row.DocID,
				CreatedAtMs: row.CreatedAtMs,
				AgentID:     row.AgentID,
				WorkspaceID: row.WorkspaceID,
				SourceID:    row.SourceID,
				Role:        row.Role,
				ChunkIdx:    row.ChunkIdx,
				ContentHash: row.ContentHash,
				Vector:      prev.VectorAt(i),
			}
		}
	}

	for _, r := range newRows {
		byDocID[r.DocID] = r // full-document replacement (spec §3 "mutated only by full-document replacement")
	}

	rows := make([]vector.RowInput, 0, len(byDocID))
	for _, r := range byDocID {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DocID < rows[j].DocID })

	if err := os.MkdirAll(filepath.Dir(f.vecPath), 0o755); err != nil {
		return err
	}
	if err := vector.Write(f.vecPath, rows, vector.WriteOptions{
		EmbedderID:   f.emb.ID(),
		EmbedderRev:  f.emb.Revision(),
		Dimension:    f.vecDim,
		Quantization: f.vecQuant,
	}); err != nil {
		return err
	}

	return f.reloadVectorIndex()
}

func (f *Facade) reloadVectorIndex() error {
	idx, err := vector.Open(f.vecPath, vector.OpenOptions{
		PreConvert:        f.opts.vectorPreconvert,
		ParallelThreshold: f.opts.vectorParallelThreshold,
		WantEmbedderID:    f.emb.ID(),
		WantEmbedderRev:   f.emb.Revision(),
		WantDimension:     f.emb.Dimension(),
	})
	if err != nil {
		return err
	}
	old := f.vecIdx.Swap(idx)
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// DeleteSource removes sourceID from both indices and commits (spec
// §4.10 "delete_source").
func (f *Facade) DeleteSource(ctx context.Context, sourceID string) error {
	if f.schemaMismatch.Load() {
		return wrap(ErrSchemaMismatch, "searchcore.DeleteSource", nil)
	}
	if sourceID == "" {
		return wrap(ErrNotFound, "searchcore.DeleteSource: empty source_id", nil)
	}

	if err := f.bg.Acquire(ctx); err != nil {
		return wrap(ErrTimeout, "searchcore.DeleteSource: acquiring writer slot", err)
	}
	defer f.bg.Release()

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	rawID, ok := f.ids.Lookup(idstore.KindSource, sourceID)
	if !ok && !f.lex.HasSource(sourceID) {
		return wrap(ErrNotFound, "searchcore.DeleteSource: unknown source_id", nil)
	}
	f.lex.DeleteBySource(sourceID)

	if ok {
		drop := map[uint32]struct{}{
			packSourceID(rawID, model.OriginLocal):  {},
			packSourceID(rawID, model.OriginRemote): {},
		}
		if err := f.commitVectorRows(nil, drop); err != nil {
			return wrap(ErrIndexCorruption, "searchcore.DeleteSource: vector commit", err)
		}
	}

	if _, err := f.lex.Commit(); err != nil {
		return wrap(ErrIndexCorruption, "searchcore.DeleteSource: lexical commit", err)
	}

	f.lastCommitMs.Store(time.Now().UnixMilli())
	f.cache.InvalidatePrefix("")
	f.warm.Signal()
	return nil
}

func (f *Facade) reloadReaders() error {
	if f.lex != nil {
		if err := f.lex.ReloadReader(); err != nil {
			return err
		}
	}
	return f.reloadVectorIndex()
}

// touchReaders runs a trivial MatchAll search to fault segment/slab pages
// into the OS page cache (spec §4.7).
func (f *Facade) touchReaders() error {
	if f.lex == nil {
		return nil
	}
	f.lex.Search(query.Empty, model.Filters{}, 1, 0)
	return nil
}

// Health reports current index state (spec §4.10 "health()").
type HealthReport struct {
	IndexExists   bool
	LastIndexedAt int64 // ms since epoch; 0 if never committed
	Segments      int
	VectorRows    int
	PendingMerges bool
}

func (f *Facade) Health() HealthReport {
	h := HealthReport{IndexExists: !f.schemaMismatch.Load(), LastIndexedAt: f.lastCommitMs.Load()}
	if f.lex != nil {
		lh := f.lex.HealthSnapshot()
		h.Segments = lh.Segments
		h.PendingMerges = lh.Segments >= f.opts.mergeThreshold
	}
	if idx := f.vecIdx.Load(); idx != nil {
		h.VectorRows = idx.RowCount()
	}
	return h
}

// OptimizeIfIdle considers merging lexical segments (spec §4.10
// "optimize_if_idle").
func (f *Facade) OptimizeIfIdle(ctx context.Context) (merged bool, err error) {
	if f.schemaMismatch.Load() || f.lex == nil {
		return false, nil
	}
	if !f.bg.TryAcquire() {
		return false, nil
	}
	defer f.bg.Release()

	start := time.Now()
	merged, err = f.lex.MergeIfIdle()
	f.metrics.recordMerge(merged)
	f.log.LogMerge(merged, time.Since(start).Milliseconds())
	return merged, err
}

// Metrics returns the façade's metrics() snapshot (spec §4.10).
func (f *Facade) Metrics() Metrics {
	cs := f.cache.Stats()
	p50, p95 := f.metrics.percentiles()
	runs, failed := f.warm.Stats()
	return Metrics{
		CacheHits:        cs.Hits,
		CacheMisses:      cs.Misses,
		CacheShortfalls:  cs.Shortfall,
		Reloads:          f.metrics.reloads.Load(),
		ReloadMsTotal:    f.metrics.reloadNanos.Load() / int64(time.Millisecond),
		MergeAttempts:    f.metrics.mergeAttempts.Load(),
		Merges:           f.metrics.merges.Load(),
		SearchP50Ms:      p50.Milliseconds(),
		SearchP95Ms:      p95.Milliseconds(),
		WarmWorkerRuns:   runs,
		WarmWorkerFailed: failed,
	}
}

// Rebuild closes the current engines, removes lexical/ and vectors/ and
// schema_hash, and reinitializes empty ones against the current
// schema.Hash (spec §8 scenario 6, SPEC_FULL §8 supplemental).
func (f *Facade) Rebuild(ctx context.Context) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if f.lex != nil {
		f.lex = nil
	}
	if idx := f.vecIdx.Swap(nil); idx != nil {
		_ = idx.Close()
	}

	for _, rel := range []string{"lexical", "vectors"} {
		if err := os.RemoveAll(filepath.Join(f.dataDir, rel)); err != nil {
			return wrap(ErrConfigError, "searchcore.Rebuild: removing "+rel, err)
		}
	}
	if err := os.Remove(filepath.Join(f.dataDir, "schema_hash")); err != nil && !os.IsNotExist(err) {
		return wrap(ErrConfigError, "searchcore.Rebuild: removing schema_hash", err)
	}

	if err := os.WriteFile(filepath.Join(f.dataDir, "schema_hash"), []byte(schema.Hash), 0o644); err != nil {
		return wrap(ErrConfigError, "searchcore.Rebuild: writing schema_hash", err)
	}
	f.schemaMismatch.Store(false)

	return f.openEngines()
}

