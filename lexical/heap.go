package lexical

import (
	"sort"

	"github.com/justSteve/coding-agent-session-search/model"
)

// scoredDoc is one scored hit before pagination.
type scoredDoc struct {
	doc   *model.Document
	score float64
}

// sortScored orders hits by score descending, doc_id ascending on ties
// (spec §4.8/§4.3 tie-break convention, applied uniformly across the
// lexical engine too).
func sortScored(hits []scoredDoc) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].doc.DocID < hits[j].doc.DocID
	})
}
