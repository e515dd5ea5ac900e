package lexical

import "errors"

var (
	// ErrCorruptSegment is returned when a persisted segment file fails its
	// magic/length check on load.
	ErrCorruptSegment = errors.New("lexical: corrupt segment file")
	// ErrSchemaRejected is returned by AddDocument when a document's fields
	// don't match the compiled schema catalog; this is a programming error
	// propagated to the caller (spec §4.2 "Failure semantics").
	ErrSchemaRejected = errors.New("lexical: document rejected by schema")
	// ErrNoWriter reports a writer that cannot accept commits and must be
	// rebuilt. No function in this package returns it; a failed Commit
	// leaves the writer usable.
	ErrNoWriter = errors.New("lexical: writer unavailable, rebuild required")
)
