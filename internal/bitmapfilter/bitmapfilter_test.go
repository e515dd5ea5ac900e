package bitmapfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRows_SortedRowsAscending(t *testing.T) {
	f := FromRows([]int{9, 1, 5, 1})
	assert.Equal(t, []int{1, 5, 9}, f.SortedRows())
}

func TestAddDocIDs_SkipsUnknownDocIDs(t *testing.T) {
	f := New()
	docIDToRow := map[uint64]int{10: 0, 20: 3}
	f.AddDocIDs(docIDToRow, []uint64{10, 20, 999})
	assert.Equal(t, []int{0, 3}, f.SortedRows())
}

func TestIntersect_KeepsOnlySharedRows(t *testing.T) {
	a := FromRows([]int{1, 2, 3})
	b := FromRows([]int{2, 3, 4})
	assert.Equal(t, []int{2, 3}, a.Intersect(b).SortedRows())
}

func TestUnion_CombinesRows(t *testing.T) {
	a := FromRows([]int{1, 2})
	b := FromRows([]int{2, 3})
	assert.Equal(t, []int{1, 2, 3}, a.Union(b).SortedRows())
}

func TestCardinality_MatchesRowCount(t *testing.T) {
	f := FromRows([]int{1, 2, 3})
	assert.Equal(t, uint64(3), f.Cardinality())
}

func TestEmptyFilter_HasNoRows(t *testing.T) {
	f := New()
	assert.Empty(t, f.SortedRows())
	assert.Equal(t, uint64(0), f.Cardinality())
}
