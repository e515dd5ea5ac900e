package lexical

import (
	"time"

	"github.com/justSteve/coding-agent-session-search/model"
	"github.com/justSteve/coding-agent-session-search/tokenizer"
)

// fieldName identifies one of the four tokenized fields a segment indexes.
type fieldName string

const (
	fieldTitle         fieldName = "title"
	fieldContent       fieldName = "content"
	fieldTitlePrefix   fieldName = "title_prefix"
	fieldContentPrefix fieldName = "content_prefix"
)

// Segment is an immutable, fully-built slice of the corpus: a row-indexed
// document table plus per-field inverted postings. Segments are built
// once by the writer at commit time and never mutated afterward; merges
// build a brand-new segment from the union of inputs.
type Segment struct {
	ID        uint64
	CreatedAt time.Time

	docs []model.Document

	postings map[fieldName]fieldPostings
	docLen   map[fieldName][]int
	totalLen map[fieldName]int64
}

// buildSegment tokenizes every document and constructs the inverted
// postings for title/content/title_prefix/content_prefix.
func buildSegment(id uint64, docs []model.Document) *Segment {
	seg := &Segment{
		ID:        id,
		CreatedAt: time.Now(),
		docs:      docs,
		postings: map[fieldName]fieldPostings{
			fieldTitle:         {},
			fieldContent:       {},
			fieldTitlePrefix:   {},
			fieldContentPrefix: {},
		},
		docLen: map[fieldName][]int{
			fieldTitle:   make([]int, len(docs)),
			fieldContent: make([]int, len(docs)),
		},
		totalLen: map[fieldName]int64{},
	}

	for row, d := range docs {
		titleTokens, titlePrefix := tokenizer.TokenizeWithPrefix(d.Title)
		contentTokens, contentPrefix := tokenizer.TokenizeWithPrefix(d.Content)

		seg.docLen[fieldTitle][row] = len(titleTokens)
		seg.docLen[fieldContent][row] = len(contentTokens)
		seg.totalLen[fieldTitle] += int64(len(titleTokens))
		seg.totalLen[fieldContent] += int64(len(contentTokens))

		addPositional(seg.postings[fieldTitle], uint32(row), titleTokens)
		addPositional(seg.postings[fieldContent], uint32(row), contentTokens)
		addPresence(seg.postings[fieldTitlePrefix], uint32(row), titlePrefix)
		addPresence(seg.postings[fieldContentPrefix], uint32(row), contentPrefix)
	}

	return seg
}

// addPositional records term frequency and ordinal positions for a
// tokenized field (title/content), needed for phrase queries.
func addPositional(fp fieldPostings, row uint32, tokens []string) {
	freq := make(map[string]uint32)
	pos := make(map[string][]uint32)
	for i, t := range tokens {
		freq[t]++
		pos[t] = append(pos[t], uint32(i))
	}
	for t, f := range freq {
		fp[t] = append(fp[t], posting{row: row, freq: f, positions: pos[t]})
	}
}

// addPresence records only term frequency (no positions), used for the
// prefix fields which never back phrase queries.
func addPresence(fp fieldPostings, row uint32, tokens []string) {
	freq := make(map[string]uint32)
	for _, t := range tokens {
		freq[t]++
	}
	for t, f := range freq {
		fp[t] = append(fp[t], posting{row: row, freq: f})
	}
}

func (s *Segment) avgDocLen(f fieldName) float64 {
	if len(s.docs) == 0 {
		return 1
	}
	avg := float64(s.totalLen[f]) / float64(len(s.docs))
	if avg <= 0 {
		return 1
	}
	return avg
}

func (s *Segment) docCount() int { return len(s.docs) }
