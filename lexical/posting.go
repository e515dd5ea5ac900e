package lexical

// posting is one occurrence record for a term within a single field of a
// single segment. Positions is populated for the title/content fields
// (needed for phrase queries) and left nil for the *_prefix fields, which
// are presence-only.
type posting struct {
	row       uint32
	freq      uint32
	positions []uint32
}

// fieldPostings maps a term to its postings list within one field.
type fieldPostings map[string][]posting
