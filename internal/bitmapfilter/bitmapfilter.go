// Package bitmapfilter builds the row-index prefilters the façade hands
// from the lexical engine's Must clauses to the vector index's Query
// (spec §4.3 "Prefilter"), backed by a Roaring bitmap so large filter
// sets stay compact and intersect cheaply.
package bitmapfilter

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Filter wraps a Roaring bitmap of CVVI row indices.
type Filter struct {
	rb *roaring.Bitmap
}

// New returns an empty filter.
func New() *Filter {
	return &Filter{rb: roaring.New()}
}

// FromRows builds a filter directly from row indices.
func FromRows(rows []int) *Filter {
	f := New()
	for _, r := range rows {
		f.Add(r)
	}
	return f
}

// Add adds a single row index.
func (f *Filter) Add(row int) { f.rb.Add(uint32(row)) }

// AddDocIDs adds every row index that docIDToRow maps a given doc_id to;
// doc_ids with no known row (not yet vector-indexed) are skipped.
func (f *Filter) AddDocIDs(docIDToRow map[uint64]int, docIDs []uint64) {
	for _, id := range docIDs {
		if row, ok := docIDToRow[id]; ok {
			f.Add(row)
		}
	}
}

// Intersect returns a new filter containing rows present in both f and
// other.
func (f *Filter) Intersect(other *Filter) *Filter {
	return &Filter{rb: roaring.And(f.rb, other.rb)}
}

// Union returns a new filter containing rows present in either f or
// other.
func (f *Filter) Union(other *Filter) *Filter {
	return &Filter{rb: roaring.Or(f.rb, other.rb)}
}

// Cardinality returns the number of rows in the filter.
func (f *Filter) Cardinality() uint64 { return f.rb.GetCardinality() }

// SortedRows materializes the filter as an ascending []int, the form
// vector.Index.Query requires (spec §4.3 "Prefilters produced from
// lexical filters must be sorted").
func (f *Filter) SortedRows() []int {
	card := f.rb.GetCardinality()
	out := make([]int, 0, card)
	it := f.rb.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
