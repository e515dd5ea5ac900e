package lexical

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/justSteve/coding-agent-session-search/model"
	"github.com/justSteve/coding-agent-session-search/query"
)

// Index is the segment-based BM25 engine described in spec §4.2. There is
// at most one writer; many readers observe an atomically-swapped
// snapshot pointer and never block on a writer (spec §5).
type Index struct {
	dir    string
	log    *slog.Logger
	opts   options
	dirMu  sync.Mutex // serializes writer-side mutation, not reads
	reader atomic.Pointer[snapshot]

	manifest manifestFile

	pendingDocs    []model.Document
	pendingDeletes map[string]struct{}

	mergeLimiter *rate.Limiter
}

// Open loads (or initializes) a lexical index rooted at dir.
func Open(dir string, log *slog.Logger, opts ...Option) (*Index, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("lexical: mkdir %s: %w", dir, err)
	}

	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	m, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		dir:            dir,
		log:            log,
		opts:           o,
		manifest:       m,
		pendingDeletes: make(map[string]struct{}),
		mergeLimiter:   newMergeLimiter(o.mergeIOPerSec),
	}

	snap, err := idx.loadSnapshot()
	if err != nil {
		return nil, err
	}
	idx.reader.Store(snap)

	return idx, nil
}

func (idx *Index) loadSnapshot() (*snapshot, error) {
	segs := make([]*Segment, 0, len(idx.manifest.SegmentIDs))
	for _, id := range idx.manifest.SegmentIDs {
		seg, err := loadSegment(segmentPath(idx.dir, id))
		if err != nil {
			return nil, fmt.Errorf("lexical: load segment %d: %w", id, err)
		}
		segs = append(segs, seg)
	}
	tombstones := make(map[string]struct{}, len(idx.manifest.Tombstones))
	for _, s := range idx.manifest.Tombstones {
		tombstones[s] = struct{}{}
	}
	return &snapshot{segments: segs, tombstones: tombstones}, nil
}

// AddDocument enqueues doc in the current writer's pending batch. It
// fails only on schema rejection, a programming error propagated to the
// caller (spec §4.2).
func (idx *Index) AddDocument(doc model.Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}
	idx.dirMu.Lock()
	defer idx.dirMu.Unlock()
	idx.pendingDocs = append(idx.pendingDocs, doc)
	return nil
}

func validateDocument(doc model.Document) error {
	if doc.SourceID == "" {
		return fmt.Errorf("%w: empty source_id", ErrSchemaRejected)
	}
	if doc.DocID == 0 {
		return fmt.Errorf("%w: zero doc_id", ErrSchemaRejected)
	}
	return nil
}

// DeleteBySource removes all documents belonging to source_id. The
// removal is lazily applied: existing segments are marked via tombstone
// and physically dropped on the next merge.
func (idx *Index) DeleteBySource(sourceID string) {
	idx.dirMu.Lock()
	defer idx.dirMu.Unlock()
	idx.pendingDeletes[sourceID] = struct{}{}
}

// Commit builds a new segment from the pending batch (if any), persists
// it with fsync, applies pending tombstones, and atomically swaps the
// reader to the new snapshot. A failed Commit returns the error and
// leaves previously committed data unaffected; the pending batch is kept
// and the next Commit tries it again (spec §4.2).
func (idx *Index) Commit() (generation uint64, err error) {
	idx.dirMu.Lock()
	defer idx.dirMu.Unlock()

	for s := range idx.pendingDeletes {
		idx.manifest.Tombstones = appendUnique(idx.manifest.Tombstones, s)
	}

	if len(idx.pendingDocs) > 0 {
		segID := idx.manifest.NextSegmentID
		seg := buildSegment(segID, idx.pendingDocs)
		if err := persistSegment(segmentPath(idx.dir, segID), seg); err != nil {
			return 0, fmt.Errorf("lexical: commit: %w", err)
		}
		idx.manifest.SegmentIDs = append(idx.manifest.SegmentIDs, segID)
		idx.manifest.NextSegmentID++
	}

	if err := saveManifest(idx.dir, idx.manifest); err != nil {
		return 0, fmt.Errorf("lexical: commit manifest: %w", err)
	}

	idx.pendingDocs = nil
	idx.pendingDeletes = make(map[string]struct{})

	if err := idx.ReloadReader(); err != nil {
		idx.log.Warn("lexical: reload after commit failed", "error", err)
	}

	return idx.manifest.NextSegmentID - 1, nil
}

// ReloadReader atomically swaps the reader to the latest on-disk
// snapshot. Best-effort: on error the previous snapshot is retained and
// the error is logged and returned; Commit only logs it (spec §4.2).
func (idx *Index) ReloadReader() error {
	snap, err := idx.loadSnapshot()
	if err != nil {
		idx.log.Warn("lexical: reload_reader failed, retaining previous snapshot", "error", err)
		return err
	}
	idx.reader.Store(snap)
	return nil
}

// Search runs a parsed query against the current reader snapshot. If the
// reader is empty, returns an empty hit list (spec §4.2).
func (idx *Index) Search(root *query.Node, filters model.Filters, limit, offset int) SearchResult {
	snap := idx.reader.Load()
	if snap == nil || len(snap.segments) == 0 {
		plan := query.PlanFor(root)
		return SearchResult{Strategy: plan.Strategy, Cost: plan.Cost}
	}
	return snap.Search(root, filters, limit, offset)
}

// LookupByDocID retrieves the full document for docID from the current
// reader snapshot, used by the façade to hydrate vector-only hits
// (the vector index carries no title/content, spec §4.3) with payload
// text before snippet generation.
func (idx *Index) LookupByDocID(docID uint64) (model.Document, bool) {
	snap := idx.reader.Load()
	if snap == nil {
		return model.Document{}, false
	}
	return snap.lookupByDocID(docID)
}

// HasSource reports whether sourceID has any live (non-tombstoned)
// document in the current reader snapshot, used by the façade to tell a
// genuinely unknown source_id apart from one that was lexical-only and
// so never reached idstore (spec §6 NotFound "unknown source on
// delete").
func (idx *Index) HasSource(sourceID string) bool {
	snap := idx.reader.Load()
	if snap == nil {
		return false
	}
	if _, dead := snap.tombstones[sourceID]; dead {
		return false
	}
	for _, seg := range snap.segments {
		for i := range seg.docs {
			if seg.docs[i].SourceID == sourceID {
				return true
			}
		}
	}
	return false
}

// MergeIfIdle considers merging segments per the cooldown policy (spec
// §4.2): at least opts.mergeThreshold segments and opts.mergeCooldownMs
// since the last merge. Merges never block searches.
func (idx *Index) MergeIfIdle() (bool, error) {
	idx.dirMu.Lock()
	if len(idx.manifest.SegmentIDs) < idx.opts.mergeThreshold {
		idx.dirMu.Unlock()
		return false, nil
	}
	nowMs := time.Now().UnixMilli()
	if nowMs-idx.manifest.LastMergeMs < idx.opts.mergeCooldownMs {
		idx.dirMu.Unlock()
		return false, nil
	}

	oldIDs := append([]uint64(nil), idx.manifest.SegmentIDs...)
	tombstones := append([]string(nil), idx.manifest.Tombstones...)
	idx.dirMu.Unlock()

	merged, err := idx.mergeSegments(oldIDs, tombstones)
	if err != nil {
		return false, fmt.Errorf("lexical: merge: %w", err)
	}

	idx.dirMu.Lock()
	defer idx.dirMu.Unlock()

	idx.manifest.SegmentIDs = []uint64{merged.ID}
	idx.manifest.Tombstones = nil
	idx.manifest.LastMergeMs = nowMs
	if err := saveManifest(idx.dir, idx.manifest); err != nil {
		return false, fmt.Errorf("lexical: merge manifest: %w", err)
	}

	for _, id := range oldIDs {
		_ = os.Remove(segmentPath(idx.dir, id))
	}

	if err := idx.ReloadReader(); err != nil {
		idx.log.Warn("lexical: reload after merge failed", "error", err)
	}
	return true, nil
}

func (idx *Index) mergeSegments(ids []uint64, tombstones []string) (*Segment, error) {
	dead := make(map[string]struct{}, len(tombstones))
	for _, s := range tombstones {
		dead[s] = struct{}{}
	}

	var docs []model.Document
	for _, id := range ids {
		if idx.mergeLimiter != nil {
			_ = idx.mergeLimiter.Wait(context.Background())
		}
		seg, err := loadSegment(segmentPath(idx.dir, id))
		if err != nil {
			return nil, err
		}
		for _, d := range seg.docs {
			if _, gone := dead[d.SourceID]; gone {
				continue
			}
			docs = append(docs, d)
		}
	}

	mergedID := idx.nextMergedID()
	merged := buildSegment(mergedID, docs)
	if err := persistSegment(segmentPath(idx.dir, mergedID), merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (idx *Index) nextMergedID() uint64 {
	id := idx.manifest.NextSegmentID
	idx.manifest.NextSegmentID++
	return id
}

// Health reports current index state, mirrored into the façade's
// health() output (spec §4.10).
type Health struct {
	Segments     int
	PendingBatch int
}

func (idx *Index) HealthSnapshot() Health {
	snap := idx.reader.Load()
	n := 0
	if snap != nil {
		n = len(snap.segments)
	}
	idx.dirMu.Lock()
	defer idx.dirMu.Unlock()
	return Health{Segments: n, PendingBatch: len(idx.pendingDocs)}
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
