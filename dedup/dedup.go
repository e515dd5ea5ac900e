// Package dedup implements the deduper and noise filter of spec §4.9.
package dedup

import (
	"regexp"
	"sort"
	"strings"

	"github.com/justSteve/coding-agent-session-search/model"
)

// toolMarkerPattern matches a hit whose entire content is a bracketed
// tool-invocation marker, e.g. "[Tool: grep - search file contents]".
var toolMarkerPattern = regexp.MustCompile(`^\[Tool: [^\]]+\]$`)

// normalize collapses whitespace runs to a single space and trims ends,
// matching the grouping key's normalization rule (spec §4.9).
func normalize(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

type groupKey struct {
	sourceID string
	content  string
}

// Dedup groups hits by (source_id, normalized_content) and keeps the
// highest-scoring hit per group (ties broken by smallest doc_id). The
// same text from two different source_ids is never merged — the
// "source boundary" invariant. Hits that are pure tool-invocation
// markers are dropped outright.
func Dedup(hits []model.Candidate) []model.Candidate {
	best := make(map[groupKey]model.Candidate)
	order := make([]groupKey, 0, len(hits))

	for _, h := range hits {
		if toolMarkerPattern.MatchString(strings.TrimSpace(h.Content)) {
			continue
		}

		key := groupKey{sourceID: h.SourceID, content: normalize(h.Content)}
		existing, ok := best[key]
		if !ok {
			best[key] = h
			order = append(order, key)
			continue
		}
		if h.Score > existing.Score || (h.Score == existing.Score && h.DocID < existing.DocID) {
			best[key] = h
		}
	}

	out := make([]model.Candidate, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}

	// Deduping can promote a later, higher-scored duplicate to the front
	// of its group; restore the overall score-descending order the
	// façade's hit list contract requires (spec §5).
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}
