package lexical

import (
	"github.com/justSteve/coding-agent-session-search/model"
	"github.com/justSteve/coding-agent-session-search/query"
)

// snapshot is an immutable view of the corpus as of the last successful
// commit: a set of segments plus the tombstoned source_ids to skip.
// Readers hold a snapshot pointer and never see a commit half-applied
// (spec §5 "a search either sees a pre-commit snapshot entirely or a
// post-commit snapshot entirely").
type snapshot struct {
	segments   []*Segment
	tombstones map[string]struct{}
}

// SearchResult is the outcome of one lexical search.
type SearchResult struct {
	Hits             []model.Candidate
	TotalMatched     int
	Strategy         query.Strategy
	Cost             query.Cost
	WildcardFallback bool
}

// lookupByDocID scans every live (non-tombstoned) segment for docID,
// returning its full document. Used to hydrate vector-only hits (which
// carry no title/content) with payload text.
func (s *snapshot) lookupByDocID(docID uint64) (model.Document, bool) {
	for _, seg := range s.segments {
		for i := range seg.docs {
			d := &seg.docs[i]
			if d.DocID != docID {
				continue
			}
			if _, dead := s.tombstones[d.SourceID]; dead {
				continue
			}
			return *d, true
		}
	}
	return model.Document{}, false
}

// Search runs a parsed query tree against the snapshot, applying filters,
// and returns a page of results ordered by score descending (doc_id
// ascending on ties).
func (s *snapshot) Search(root *query.Node, filters model.Filters, limit, offset int) SearchResult {
	plan := query.PlanFor(root)

	var all []scoredDoc
	wildcardFallback := false
	for _, seg := range s.segments {
		res := seg.eval(root)
		wildcardFallback = wildcardFallback || res.wildcardFallback
		for row := range res.matched {
			doc := &seg.docs[row]
			if _, dead := s.tombstones[doc.SourceID]; dead {
				continue
			}
			if !matchesFilters(doc, filters) {
				continue
			}
			all = append(all, scoredDoc{doc: doc, score: res.scores[row]})
		}
	}

	sortScored(all)

	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := all[offset:end]

	hits := make([]model.Candidate, len(page))
	for i, sd := range page {
		hits[i] = model.Candidate{
			DocID:       sd.doc.DocID,
			SourceID:    sd.doc.SourceID,
			Score:       float32(sd.score),
			Title:       sd.doc.Title,
			Content:     sd.doc.Content,
			Preview:     sd.doc.Preview,
			Agent:       sd.doc.Agent,
			CreatedAtMs: sd.doc.CreatedAtMs,
			Role:        sd.doc.Role,
		}
	}

	return SearchResult{
		Hits:             hits,
		TotalMatched:     total,
		Strategy:         plan.Strategy,
		Cost:             plan.Cost,
		WildcardFallback: wildcardFallback,
	}
}
