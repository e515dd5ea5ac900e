package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/justSteve/coding-agent-session-search/model"
)

func TestDedup_KeepsHighestScoreWithinGroup(t *testing.T) {
	hits := []model.Candidate{
		{DocID: 1, SourceID: "s1", Content: "the answer", Score: 1},
		{DocID: 2, SourceID: "s1", Content: "the   answer", Score: 5},
	}
	out := Dedup(hits)
	assert.Len(t, out, 1)
	assert.Equal(t, uint64(2), out[0].DocID)
}

func TestDedup_TieBreaksOnSmallestDocID(t *testing.T) {
	hits := []model.Candidate{
		{DocID: 5, SourceID: "s1", Content: "same text", Score: 3},
		{DocID: 2, SourceID: "s1", Content: "same text", Score: 3},
	}
	out := Dedup(hits)
	assert.Len(t, out, 1)
	assert.Equal(t, uint64(2), out[0].DocID)
}

func TestDedup_PreservesCrossSourceDuplicates(t *testing.T) {
	hits := []model.Candidate{
		{DocID: 1, SourceID: "local-1", Content: "shared text", Score: 2},
		{DocID: 2, SourceID: "remote-2", Content: "shared text", Score: 2},
	}
	out := Dedup(hits)
	assert.Len(t, out, 2, "source boundary invariant: never merge across sources")
}

func TestDedup_DropsToolMarkerOnlyHits(t *testing.T) {
	hits := []model.Candidate{
		{DocID: 1, SourceID: "s1", Content: "[Tool: grep - search file contents]", Score: 9},
		{DocID: 2, SourceID: "s1", Content: "a real message", Score: 1},
	}
	out := Dedup(hits)
	assert.Len(t, out, 1)
	assert.Equal(t, uint64(2), out[0].DocID)
}

func TestDedup_KeepsToolMarkerEmbeddedInLongerText(t *testing.T) {
	hits := []model.Candidate{
		{DocID: 1, SourceID: "s1", Content: "before [Tool: grep - x] after", Score: 1},
	}
	out := Dedup(hits)
	assert.Len(t, out, 1, "marker pattern must match only when it is the entire content")
}

func TestDedup_NormalizesWhitespaceForGrouping(t *testing.T) {
	hits := []model.Candidate{
		{DocID: 1, SourceID: "s1", Content: "  a   b  c ", Score: 1},
		{DocID: 2, SourceID: "s1", Content: "a b c", Score: 1},
	}
	out := Dedup(hits)
	assert.Len(t, out, 1)
}

func TestDedup_OutputIsScoreDescending(t *testing.T) {
	hits := []model.Candidate{
		{DocID: 1, SourceID: "s1", Content: "low", Score: 1},
		{DocID: 2, SourceID: "s1", Content: "high", Score: 9},
	}
	out := Dedup(hits)
	assert.Equal(t, uint64(2), out[0].DocID)
}
