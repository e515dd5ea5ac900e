package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justSteve/coding-agent-session-search/model"
	"github.com/justSteve/coding-agent-session-search/query"
)

func mustParse(t *testing.T, q string) *query.Node {
	t.Helper()
	n, err := query.Parse(q)
	require.NoError(t, err)
	return n
}

func doc(id uint64, sourceID, title, content string) model.Document {
	return model.Document{
		DocID:    id,
		SourceID: sourceID,
		Agent:    "claude-code",
		Title:    title,
		Content:  content,
	}
}

func TestIndex_AddCommitSearch(t *testing.T) {
	idx, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, idx.AddDocument(doc(1, "local-1", "Auth bug fix", "the quick brown fox")))
	require.NoError(t, idx.AddDocument(doc(2, "local-1", "Unrelated", "jumped over the lazy dog")))
	require.NoError(t, idx.AddDocument(doc(3, "local-1", "Fox sighting", "fox and dog together")))

	_, err = idx.Commit()
	require.NoError(t, err)

	res := idx.Search(mustParse(t, "fox"), model.Filters{}, 10, 0)
	ids := hitIDs(res.Hits)
	assert.Contains(t, ids, uint64(1))
	assert.Contains(t, ids, uint64(3))
	assert.NotContains(t, ids, uint64(2))
}

func TestIndex_TitleOutranksContent(t *testing.T) {
	idx, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, idx.AddDocument(doc(1, "s", "auth", "nothing relevant here at all")))
	require.NoError(t, idx.AddDocument(doc(2, "s", "irrelevant title here", "this mentions auth once")))
	_, err = idx.Commit()
	require.NoError(t, err)

	res := idx.Search(mustParse(t, "auth"), model.Filters{}, 10, 0)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, uint64(1), res.Hits[0].DocID)
}

func TestIndex_PhraseQuery(t *testing.T) {
	idx, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, idx.AddDocument(doc(1, "s", "t1", "we found an auth bug yesterday")))
	require.NoError(t, idx.AddDocument(doc(2, "s", "t2", "bug auth swapped order")))
	_, err = idx.Commit()
	require.NoError(t, err)

	res := idx.Search(mustParse(t, `"auth bug"`), model.Filters{}, 10, 0)
	ids := hitIDs(res.Hits)
	assert.Contains(t, ids, uint64(1))
	assert.NotContains(t, ids, uint64(2))
}

func TestIndex_PrefixQuery(t *testing.T) {
	idx, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, idx.AddDocument(doc(1, "s", "asynchronous handler", "")))
	require.NoError(t, idx.AddDocument(doc(2, "s", "synchronous handler", "")))
	_, err = idx.Commit()
	require.NoError(t, err)

	res := idx.Search(mustParse(t, "async*"), model.Filters{}, 10, 0)
	ids := hitIDs(res.Hits)
	assert.Contains(t, ids, uint64(1))
	assert.NotContains(t, ids, uint64(2))
	assert.Equal(t, query.StrategyEdgeNgram, res.Strategy)
}

func TestIndex_RegexFallbackMarksWildcard(t *testing.T) {
	idx, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, idx.AddDocument(doc(1, "s", "t", "prefetching is slow")))
	_, err = idx.Commit()
	require.NoError(t, err)

	res := idx.Search(mustParse(t, "*fetch*"), model.Filters{}, 10, 0)
	ids := hitIDs(res.Hits)
	assert.Contains(t, ids, uint64(1))
	assert.True(t, res.WildcardFallback)
}

func TestIndex_BooleanAndNot(t *testing.T) {
	idx, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, idx.AddDocument(doc(1, "s", "t", "auth bug in login flow")))
	require.NoError(t, idx.AddDocument(doc(2, "s", "t", "auth works fine, no bug")))
	require.NoError(t, idx.AddDocument(doc(3, "s", "t", "login flow redesign")))
	_, err = idx.Commit()
	require.NoError(t, err)

	res := idx.Search(mustParse(t, "login NOT bug"), model.Filters{}, 10, 0)
	ids := hitIDs(res.Hits)
	assert.Contains(t, ids, uint64(3))
	assert.NotContains(t, ids, uint64(1))
}

func TestIndex_SourceBoundaryFilter(t *testing.T) {
	idx, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, idx.AddDocument(doc(1, "local-1", "t", "shared text content")))
	require.NoError(t, idx.AddDocument(doc(2, "remote-2", "t", "shared text content")))
	_, err = idx.Commit()
	require.NoError(t, err)

	res := idx.Search(mustParse(t, "shared"), model.Filters{Source: model.SourceScope{Kind: model.SourceScopeSourceID, SourceID: "local-1"}}, 10, 0)
	ids := hitIDs(res.Hits)
	assert.Contains(t, ids, uint64(1))
	assert.NotContains(t, ids, uint64(2))
}

func TestIndex_DeleteBySourceIsLazilyTombstoned(t *testing.T) {
	idx, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, idx.AddDocument(doc(1, "local-1", "t", "auth bug")))
	_, err = idx.Commit()
	require.NoError(t, err)

	idx.DeleteBySource("local-1")
	_, err = idx.Commit()
	require.NoError(t, err)

	res := idx.Search(mustParse(t, "auth"), model.Filters{}, 10, 0)
	assert.Empty(t, res.Hits)
}

func TestIndex_MergeIfIdle(t *testing.T) {
	idx, err := Open(t.TempDir(), nil, WithMergeThreshold(2), WithMergeCooldownMs(0))
	require.NoError(t, err)

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, idx.AddDocument(doc(i, "s", "t", "auth bug")))
		_, err = idx.Commit()
		require.NoError(t, err)
	}

	merged, err := idx.MergeIfIdle()
	require.NoError(t, err)
	assert.True(t, merged)
	assert.Equal(t, 1, idx.HealthSnapshot().Segments)

	res := idx.Search(mustParse(t, "auth"), model.Filters{}, 10, 0)
	assert.Len(t, res.Hits, 3)
}

func TestIndex_EmptyReaderReturnsEmptyHits(t *testing.T) {
	idx, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	res := idx.Search(mustParse(t, "anything"), model.Filters{}, 10, 0)
	assert.Empty(t, res.Hits)
}

func TestIndex_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, idx.AddDocument(doc(1, "s", "t", "auth bug")))
	_, err = idx.Commit()
	require.NoError(t, err)

	reopened, err := Open(dir, nil)
	require.NoError(t, err)
	res := reopened.Search(mustParse(t, "auth"), model.Filters{}, 10, 0)
	assert.Len(t, res.Hits, 1)
}

func hitIDs(hits []model.Candidate) []uint64 {
	ids := make([]uint64, len(hits))
	for i, h := range hits {
		ids[i] = h.DocID
	}
	return ids
}
