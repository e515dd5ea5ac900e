package model

// SourceScope selects which provenance a query is restricted to.
type SourceScope struct {
	// Kind is one of "all", "local", "remote", "source_id". The zero value
	// is "all".
	Kind     SourceScopeKind
	SourceID string // only meaningful when Kind == SourceScopeSourceID
}

type SourceScopeKind uint8

const (
	SourceScopeAll SourceScopeKind = iota
	SourceScopeLocal
	SourceScopeRemote
	SourceScopeSourceID
)

// Filters is the exact-match/range filter set applied as Must clauses.
//
// SessionPaths is deliberately not part of the indexed filter set (see
// spec §9 "Session-paths filter"): it is applied post-retrieval by the
// façade, never folded into the lexical Must clauses.
type Filters struct {
	Agents       []string
	Workspaces   []string
	Source       SourceScope
	CreatedFrom  int64 // milliseconds since epoch; 0 means unbounded
	CreatedTo    int64 // milliseconds since epoch; 0 means unbounded
	SessionPaths []string
}

// Candidate is a scored, ranked hit produced by an engine before snippet
// generation and dedup.
type Candidate struct {
	DocID    uint64
	SourceID string
	Score    float32

	// Materialized payload, filled in progressively as the hit moves
	// through the façade pipeline.
	Title   string
	Content string
	Preview string
	Agent   string
	CreatedAtMs int64
	Role        Role

	Snippet string

	// Approx marks scores produced by a quantized/approximate path (e.g.
	// F16 vector comparison) rather than an exact computation.
	Approx bool
}
