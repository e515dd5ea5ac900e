// Package lexical implements the BM25 full-text index (spec §4.2): a
// segment-based inverted index over (title, content, title_prefix,
// content_prefix), with a single-writer/many-reader snapshot model and a
// cooldown-gated background merge policy.
package lexical
