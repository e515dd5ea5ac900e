// Package model defines the data types shared across the search core:
// the indexed document, provenance filters, and query-side candidates.
package model

// OriginKind distinguishes where a document's conversation was recorded.
type OriginKind uint8

const (
	// OriginLocal is a conversation recorded on this machine.
	OriginLocal OriginKind = iota
	// OriginRemote is a conversation mirrored from a remote host.
	OriginRemote
)

func (k OriginKind) String() string {
	if k == OriginRemote {
		return "remote"
	}
	return "local"
}

// Role is the speaker of a message.
type Role uint8

const (
	RoleUser Role = iota
	RoleAssistant
	RoleSystem
	RoleTool
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleSystem:
		return "system"
	case RoleTool:
		return "tool"
	default:
		return "unknown"
	}
}

// Document is the indexed unit: a single message within a conversation.
//
// Callers are responsible for producing canonicalized, normalized content
// before handing a Document to index_batch; this core does not parse raw
// session formats (that's an ingestion-connector concern, out of scope).
type Document struct {
	DocID      uint64
	SourceID   string
	OriginKind OriginKind
	OriginHost string

	Workspace         string
	WorkspaceOriginal string

	Agent          string
	ConversationID string
	MsgIdx         uint64
	Role           Role
	CreatedAtMs    int64

	Title   string
	Content string
	Preview string

	// ContentHash is a 32-byte digest of canonicalized content, used for
	// dedup and as the vector index's row-addressing key.
	ContentHash [32]byte

	// Vector is optional: when present (and the document is embeddable),
	// it is handed to the vector writer alongside the lexical write.
	Vector []float32
}

// Key returns the (source_id, doc_id) uniqueness key.
func (d Document) Key() DocKey {
	return DocKey{SourceID: d.SourceID, DocID: d.DocID}
}

// DocKey is the invariant unique identity of a document: (source_id, doc_id).
type DocKey struct {
	SourceID string
	DocID    uint64
}
