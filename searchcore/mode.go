package searchcore

// Mode selects which engine(s) a search routes through (spec §4.10).
type Mode uint8

const (
	// ModeLexical executes on the lexical (BM25) engine only.
	ModeLexical Mode = iota
	// ModeSemantic embeds the query and scans the vector index, using the
	// lexical filters as a prefilter.
	ModeSemantic
	// ModeHybrid fetches rrf_candidate_mult*limit from each engine and
	// fuses them via Reciprocal Rank Fusion.
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeSemantic:
		return "semantic"
	case ModeHybrid:
		return "hybrid"
	default:
		return "lexical"
	}
}
