package searchcore

import (
	"context"
	"time"

	"github.com/justSteve/coding-agent-session-search/cache"
	"github.com/justSteve/coding-agent-session-search/dedup"
	"github.com/justSteve/coding-agent-session-search/internal/bitmapfilter"
	"github.com/justSteve/coding-agent-session-search/internal/idstore"
	"github.com/justSteve/coding-agent-session-search/model"
	"github.com/justSteve/coding-agent-session-search/query"
	"github.com/justSteve/coding-agent-session-search/schema"
	"github.com/justSteve/coding-agent-session-search/vector"
)

// SearchRequest is one search() call (spec §4.10).
type SearchRequest struct {
	Query   string
	Filters model.Filters
	Mode    Mode
	Limit   int
	Offset  int

	// Deadline, if non-zero, bounds how long this call may run. On
	// expiry, in-progress partial results are discarded and Search
	// returns ErrTimeout rather than a search-failure error (spec §5
	// "Cancellation and timeouts").
	Deadline time.Duration
}

// SearchMeta carries the routing/diagnostic facts a caller may want to
// surface (spec §4.10: "elapsed_ms, the selected strategy,
// wildcard_fallback flag, cache stats, index freshness ..., any
// staleness warnings, and a next_cursor for pagination").
type SearchMeta struct {
	ElapsedMs        int64
	Strategy         query.Strategy
	Cost             query.Cost
	WildcardFallback bool
	TotalMatched     int
	CacheStatus      string // "hit", "shortfall", or "miss"

	// IndexAgeMs is how long ago the most recent commit landed; 0 if
	// nothing has ever been committed.
	IndexAgeMs int64
	// StalenessWarnings is empty on a fully fresh response. Non-empty
	// values explain why a caller might not be seeing the latest data
	// (e.g. an empty index, or a cache entry older than the last commit).
	StalenessWarnings []string
	// NextCursor is the offset to pass for the next page, 0 if this page
	// reached the end of the available hits.
	NextCursor int
}

// SearchResponse is the façade's search() result.
type SearchResponse struct {
	Hits []model.Candidate
	Meta SearchMeta
}

const defaultSearchLimit = 10

// Search routes a query through cache, parse/plan, the selected engine(s),
// dedup and snippet generation (spec §4.10 "search()" steps 1-6).
func (f *Facade) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	start := time.Now()
	if f.schemaMismatch.Load() {
		return SearchResponse{}, wrap(ErrSchemaMismatch, "searchcore.Search", nil)
	}

	if req.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Deadline)
		defer cancel()
	}
	if ctx.Err() != nil {
		return SearchResponse{}, wrap(ErrTimeout, "searchcore.Search: deadline already expired", ctx.Err())
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > f.opts.searchLimitMax {
		limit = f.opts.searchLimitMax
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	// Cache entries are built at a "generous" depth (offset+limit, capped)
	// rather than exactly limit, so a later page of the same query can be
	// served from the same entry instead of missing (spec §4.6's prefix
	// cache has no notion of limit in its key).
	depth := offset + limit
	if depth > f.opts.searchLimitMax {
		depth = f.opts.searchLimitMax
	}

	filtersFP := cache.FiltersFingerprint(req.Filters)
	cacheKey := cache.Key(schema.Hash, req.Query, filtersFP)

	// The exact-key probe uses Peek rather than Get: a miss here is only
	// a genuine miss if prefix refinement below also fails to serve it,
	// otherwise a refinement hit/shortfall would double-count alongside
	// this probe's own miss (spec §8 scenario 5: a cache_miss and a
	// cache_hit/cache_shortfall must never both fire for one keystroke).
	if entry, ok := f.cache.Peek(cacheKey); ok {
		f.cache.RecordHit()
		page := pageHitEntries(entry.Hits, offset, limit)
		elapsed := time.Since(start)
		f.metrics.recordSearch(elapsed)
		return SearchResponse{Hits: page, Meta: f.buildMeta(SearchMeta{CacheStatus: "hit"}, elapsed, len(entry.Hits), offset, len(page), entry.GeneratedAtMs)}, nil
	}

	servedFromRefine := false
	if parentKey, ok := cache.ParentKey(schema.Hash, req.Query, filtersFP); ok {
		if refine, ok := f.cache.TryPrefixRefine(parentKey, req.Query, depth); ok {
			if !refine.Shortfall {
				candidates := candidatesFromHitEntries(refine.Hits)
				entry := cache.BuildEntry(req.Query, filtersFP, candidates)
				entry.GeneratedAtMs = time.Now().UnixMilli()
				f.cache.Set(cacheKey, entry)
				page := pageCandidates(candidates, offset, limit)
				elapsed := time.Since(start)
				f.metrics.recordSearch(elapsed)
				return SearchResponse{Hits: page, Meta: f.buildMeta(SearchMeta{CacheStatus: "hit"}, elapsed, len(candidates), offset, len(page), refine.GeneratedAtMs)}, nil
			}
			// Shortfall already recorded its own counter inside
			// TryPrefixRefine; falling through to a full search below
			// must not also count as a miss.
			servedFromRefine = true
		}
	}
	if !servedFromRefine {
		f.cache.RecordMiss()
	}

	root, err := query.Parse(req.Query)
	if err != nil {
		return SearchResponse{}, wrap(ErrBug, "searchcore.Search: parsing query", err)
	}
	plan := query.PlanFor(root)

	var (
		hits             []model.Candidate
		totalMatched     int
		wildcardFallback bool
	)

	switch req.Mode {
	case ModeSemantic:
		hits, err = f.semanticSearch(ctx, req.Query, req.Filters, depth)
	case ModeHybrid:
		hits, err = f.fuser.Run(ctx, depth, f.opts.rrfCandidateMult,
			func(ctx context.Context, n int) ([]model.Candidate, error) {
				res := f.lex.Search(root, req.Filters, n, 0)
				totalMatched = res.TotalMatched
				wildcardFallback = res.WildcardFallback
				return res.Hits, nil
			},
			func(ctx context.Context, n int) ([]model.Candidate, error) {
				return f.semanticSearch(ctx, req.Query, req.Filters, n)
			})
	default: // ModeLexical
		res := f.lex.Search(root, req.Filters, depth, 0)
		hits = res.Hits
		totalMatched = res.TotalMatched
		wildcardFallback = res.WildcardFallback
	}
	if err != nil {
		if ctx.Err() != nil {
			return SearchResponse{}, wrap(ErrTimeout, "searchcore.Search: deadline exceeded", err)
		}
		return SearchResponse{}, wrap(ErrBug, "searchcore.Search: engine error", err)
	}

	hits = dedup.Dedup(hits)
	hits = applySessionPaths(hits, req.Filters.SessionPaths)

	for i := range hits {
		if hits[i].Snippet == "" {
			hits[i].Snippet = GenerateSnippet(root, hits[i].Title, hits[i].Content)
		}
	}

	// A deadline that expired partway through scoring/snippeting is
	// still honored: discard these partial results rather than cache or
	// return them (spec §5 "on expiry, in-progress partial results are
	// discarded").
	if ctx.Err() != nil {
		return SearchResponse{}, wrap(ErrTimeout, "searchcore.Search: deadline exceeded", ctx.Err())
	}

	entry := cache.BuildEntry(req.Query, filtersFP, hits)
	entry.GeneratedAtMs = time.Now().UnixMilli()
	f.cache.Set(cacheKey, entry)
	page := pageCandidates(hits, offset, limit)

	elapsed := time.Since(start)
	f.metrics.recordSearch(elapsed)
	f.log.LogSearch(plan.Strategy.String(), wildcardFallback, len(page), elapsed.Milliseconds())

	cacheStatus := "miss"
	if servedFromRefine {
		cacheStatus = "shortfall"
	}

	meta := f.buildMeta(SearchMeta{
		Strategy:         plan.Strategy,
		Cost:             plan.Cost,
		WildcardFallback: wildcardFallback,
		TotalMatched:     totalMatched,
		CacheStatus:      cacheStatus,
	}, elapsed, len(hits), offset, len(page), entry.GeneratedAtMs)

	return SearchResponse{Hits: page, Meta: meta}, nil
}

// buildMeta fills in the fields common to every response path: elapsed
// time, index freshness, staleness warnings and the next-page cursor
// (spec §4.10). total is the size of the full (pre-page) hit list this
// page was sliced from; generatedAtMs is when the underlying cache entry
// (if any) was built, 0 for a fresh engine result.
func (f *Facade) buildMeta(m SearchMeta, elapsed time.Duration, total, offset, pageLen int, generatedAtMs int64) SearchMeta {
	m.ElapsedMs = elapsed.Milliseconds()

	lastCommit := f.lastCommitMs.Load()
	if lastCommit == 0 {
		m.StalenessWarnings = append(m.StalenessWarnings, "index has not been committed yet")
	} else {
		m.IndexAgeMs = time.Now().UnixMilli() - lastCommit
		if generatedAtMs != 0 && generatedAtMs < lastCommit {
			m.StalenessWarnings = append(m.StalenessWarnings, "served from a cache entry older than the most recent commit")
		}
	}

	if offset+pageLen < total {
		m.NextCursor = offset + pageLen
	}
	return m
}

// semanticSearch embeds queryText, builds a row prefilter from filters (if
// any are active) and scans the vector index, hydrating each hit's
// payload text from the lexical corpus (the vector index carries only
// doc_id/score, spec §4.3).
func (f *Facade) semanticSearch(ctx context.Context, queryText string, filters model.Filters, limit int) ([]model.Candidate, error) {
	idx := f.vecIdx.Load()
	if idx == nil || !idx.Borrow() {
		// Either no vector index has ever been built, or it was just
		// swapped out by a reload; either way there is nothing to scan
		// this round rather than racing a concurrent Close (spec §5).
		return nil, nil
	}
	defer idx.Release()
	if idx.RowCount() == 0 {
		return nil, nil
	}

	qvec, err := f.emb.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	var prefilter []int
	if hasActiveFilters(filters) {
		prefilter = f.buildVectorPrefilter(idx, filters)
		if len(prefilter) == 0 {
			return nil, nil
		}
	}

	raw := idx.Query(qvec, limit, prefilter)
	hits := make([]model.Candidate, 0, len(raw))
	for _, c := range raw {
		cand := model.Candidate{DocID: c.DocID, Score: c.Score, Approx: c.Approx}
		if doc, ok := f.lex.LookupByDocID(c.DocID); ok {
			cand.SourceID = doc.SourceID
			cand.Title = doc.Title
			cand.Content = doc.Content
			cand.Preview = doc.Preview
			cand.Agent = doc.Agent
			cand.CreatedAtMs = doc.CreatedAtMs
			cand.Role = doc.Role
		}
		hits = append(hits, cand)
	}
	return hits, nil
}

func hasActiveFilters(f model.Filters) bool {
	return len(f.Agents) > 0 || len(f.Workspaces) > 0 ||
		f.Source.Kind != model.SourceScopeAll ||
		f.CreatedFrom != 0 || f.CreatedTo != 0
}

// buildVectorPrefilter applies the same Must-clause semantics as
// lexical.matchesFilters to the vector row table, producing the sorted
// row-index prefilter vector.Index.Query requires (spec §4.3 "Prefilters
// produced from lexical filters must be sorted"). Source-scope is
// recovered from the bit-packed origin_kind bit (packSourceID/
// unpackSourceID).
func (f *Facade) buildVectorPrefilter(idx *vector.Index, filters model.Filters) []int {
	agentIDs, agentActive := internedSet(f.ids, idstore.KindAgent, filters.Agents)
	workspaceIDs, workspaceActive := internedSet(f.ids, idstore.KindWorkspace, filters.Workspaces)

	var wantSourceRaw uint32
	sourceFilterPossible := true
	if filters.Source.Kind == model.SourceScopeSourceID {
		var ok bool
		wantSourceRaw, ok = f.ids.Lookup(idstore.KindSource, filters.Source.SourceID)
		sourceFilterPossible = ok
	}

	result := bitmapfilter.New()
	if !sourceFilterPossible {
		return result.SortedRows()
	}

	for i := 0; i < idx.RowCount(); i++ {
		row := idx.Row(i)
		if agentActive {
			if _, ok := agentIDs[row.AgentID]; !ok {
				continue
			}
		}
		if workspaceActive {
			if _, ok := workspaceIDs[row.WorkspaceID]; !ok {
				continue
			}
		}
		sourceRaw, origin := unpackSourceID(row.SourceID)
		switch filters.Source.Kind {
		case model.SourceScopeLocal:
			if origin != model.OriginLocal {
				continue
			}
		case model.SourceScopeRemote:
			if origin != model.OriginRemote {
				continue
			}
		case model.SourceScopeSourceID:
			if sourceRaw != wantSourceRaw {
				continue
			}
		}
		if filters.CreatedFrom != 0 && row.CreatedAtMs < filters.CreatedFrom {
			continue
		}
		if filters.CreatedTo != 0 && row.CreatedAtMs > filters.CreatedTo {
			continue
		}
		result.Add(i)
	}
	return result.SortedRows()
}

// internedSet resolves values to their interned ids, reporting active=true
// whenever the caller asked for a filter at all (even if none of the
// values were ever interned, in which case the returned set is empty and
// every row correctly fails to match, per Lookup's read-only contract).
func internedSet(ids *idstore.Store, kind idstore.Kind, values []string) (set map[uint32]struct{}, active bool) {
	if len(values) == 0 {
		return nil, false
	}
	set = make(map[uint32]struct{}, len(values))
	for _, v := range values {
		if id, ok := ids.Lookup(kind, v); ok {
			set[id] = struct{}{}
		}
	}
	return set, true
}

// applySessionPaths would restrict hits to those whose originating file
// path matches one of paths, applied post-retrieval per spec §9
// ("session-paths filter... applied post-retrieval by the façade, never
// folded into the indexed Must clauses"). Neither model.Document nor
// model.Candidate carries a session-path field to filter against, so
// until an ingestion connector attaches one this is an honest no-op
// rather than a fabricated field.
func applySessionPaths(hits []model.Candidate, paths []string) []model.Candidate {
	return hits
}

func candidatesFromHitEntries(entries []cache.HitEntry) []model.Candidate {
	out := make([]model.Candidate, len(entries))
	for i, h := range entries {
		out[i] = h.Candidate
	}
	return out
}

func pageHitEntries(entries []cache.HitEntry, offset, limit int) []model.Candidate {
	return pageCandidates(candidatesFromHitEntries(entries), offset, limit)
}

func pageCandidates(hits []model.Candidate, offset, limit int) []model.Candidate {
	if offset > len(hits) {
		offset = len(hits)
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return append([]model.Candidate(nil), hits[offset:end]...)
}
