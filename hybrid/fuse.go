// Package hybrid implements the Reciprocal Rank Fusion combiner of spec
// §4.8: the lexical and semantic paths run concurrently over the same
// filter set, and their ranked hit lists are merged by RRF score.
package hybrid

import (
	"sort"

	"github.com/justSteve/coding-agent-session-search/model"
)

// DefaultRRFK is the default K in the RRF formula (rrf_k, spec §6).
const DefaultRRFK = 60

// DefaultCandidateMult is the default multiplier for per-engine fetch
// depth (rrf_candidate_mult, spec §6): each engine is asked for
// mult*limit candidates before fusion.
const DefaultCandidateMult = 3

// Fuser merges two pre-ranked candidate lists via RRF.
type Fuser struct {
	RRFK int
}

// New constructs a Fuser with the given K (use DefaultRRFK if unsure).
func New(rrfK int) *Fuser {
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}
	return &Fuser{RRFK: rrfK}
}

type fused struct {
	candidate model.Candidate
	score     float64
	best      float32
}

// Fuse combines lexical and semantic hit lists (each assumed already
// ordered best-first by its own engine) into a single ranked list of at
// most limit hits. The fused score for document d is
// Σ over engines of 1/(K + rank_e(d)); a document absent from an engine
// contributes zero for it. Ties break on higher individual score, then
// doc_id ascending (spec §4.8) — deterministic given deterministic
// inputs.
func (f *Fuser) Fuse(lexical, semantic []model.Candidate, limit int) []model.Candidate {
	byKey := make(map[model.DocKey]*fused)

	accumulate := func(hits []model.Candidate) {
		for rank, c := range hits {
			key := model.DocKey{SourceID: c.SourceID, DocID: c.DocID}
			rrf := 1.0 / float64(f.RRFK+rank+1)
			e, ok := byKey[key]
			if !ok {
				cp := c
				byKey[key] = &fused{candidate: cp, score: rrf, best: c.Score}
				continue
			}
			e.score += rrf
			if c.Score > e.best {
				e.best = c.Score
			}
			mergePayload(&e.candidate, c)
		}
	}

	accumulate(lexical)
	accumulate(semantic)

	out := make([]*fused, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].best != out[j].best {
			return out[i].best > out[j].best
		}
		return out[i].candidate.DocID < out[j].candidate.DocID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	hits := make([]model.Candidate, len(out))
	for i, e := range out {
		hits[i] = e.candidate
		hits[i].Score = float32(e.score)
	}
	return hits
}

// mergePayload fills in fields a thinner candidate (typically from the
// vector engine, which only knows doc_id/score) is missing, preferring
// whichever side already has richer text.
func mergePayload(dst *model.Candidate, src model.Candidate) {
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
	}
	if dst.Content == "" && src.Content != "" {
		dst.Content = src.Content
	}
	if dst.Preview == "" && src.Preview != "" {
		dst.Preview = src.Preview
	}
	if dst.Agent == "" && src.Agent != "" {
		dst.Agent = src.Agent
	}
	if dst.CreatedAtMs == 0 && src.CreatedAtMs != 0 {
		dst.CreatedAtMs = src.CreatedAtMs
	}
}
