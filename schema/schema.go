// Package schema defines the field catalog for the lexical index and the
// compile-time schema hash that fences rebuilds (spec §4.1).
package schema

import (
	"crypto/sha256"
	"encoding/hex"
)

// FieldType is the storage/index type of a schema field.
type FieldType uint8

const (
	// FieldText is tokenized and stored; it also backs an edge-n-gram
	// prefix sibling field.
	FieldText FieldType = iota
	// FieldExactString is a single-token, case-sensitive, verbatim field.
	FieldExactString
	// FieldFastI64 is a range-queryable fast field.
	FieldFastI64
	// FieldStoredU64 is an indexed, stored u64 (e.g. msg_idx).
	FieldStoredU64
	// FieldStoredOnly is never indexed, only retrievable.
	FieldStoredOnly
)

// Field describes one field of the Document schema.
type Field struct {
	Name       string
	Type       FieldType
	Tokenizer  string // "" for non-text fields
	HasPrefix  bool   // emits an edge-n-gram sibling field (title_prefix, content_prefix)
}

// Catalog is the fixed, compile-time field list. Order matters for the
// schema hash: changing order, name, type, or tokenizer variant of any
// field must change the hash.
var Catalog = []Field{
	{Name: "doc_id", Type: FieldStoredU64},
	{Name: "source_id", Type: FieldExactString},
	{Name: "origin_kind", Type: FieldExactString},
	{Name: "origin_host", Type: FieldStoredOnly},
	{Name: "workspace", Type: FieldExactString},
	{Name: "workspace_original", Type: FieldStoredOnly},
	{Name: "agent", Type: FieldExactString},
	{Name: "conversation_id", Type: FieldExactString},
	{Name: "msg_idx", Type: FieldStoredU64},
	{Name: "role", Type: FieldExactString},
	{Name: "created_at", Type: FieldFastI64},
	{Name: "title", Type: FieldText, Tokenizer: "default", HasPrefix: true},
	{Name: "content", Type: FieldText, Tokenizer: "default", HasPrefix: true},
	{Name: "preview", Type: FieldStoredOnly},
	{Name: "content_hash", Type: FieldStoredOnly},
}

// edgeNgramMinLen must match tokenizer.EdgeNgramMinLen; it is baked into
// the hash so a tokenizer change that alters prefix semantics forces a
// rebuild even if Catalog itself is untouched.
const edgeNgramMinLen = 2

// Hash is the schema-fencing constant stored at data_dir/schema_hash. Any
// on-disk value that doesn't match this forces a full rebuild (spec §4.1,
// §7, §8 invariant 3).
var Hash = computeHash()

func computeHash() string {
	h := sha256.New()
	for _, f := range Catalog {
		h.Write([]byte(f.Name))
		h.Write([]byte{byte(f.Type)})
		h.Write([]byte(f.Tokenizer))
		if f.HasPrefix {
			h.Write([]byte{1, byte(edgeNgramMinLen)})
		} else {
			h.Write([]byte{0})
		}
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return "v1:" + hex.EncodeToString(sum)
}

// Matches reports whether an on-disk schema_hash value still fences to
// the current compiled schema.
func Matches(onDisk string) bool {
	return onDisk == Hash
}
