package searchcore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justSteve/coding-agent-session-search/model"
	"github.com/justSteve/coding-agent-session-search/query"
	"github.com/justSteve/coding-agent-session-search/schema"
)

func testDoc(id uint64, sourceID string, origin model.OriginKind, title, content string) model.Document {
	return model.Document{
		DocID:      id,
		SourceID:   sourceID,
		OriginKind: origin,
		Agent:      "claude-code",
		Workspace:  "/repo",
		Title:      title,
		Content:    content,
	}
}

func openTestFacade(t *testing.T, opts ...Option) *Facade {
	t.Helper()
	allOpts := append([]Option{WithLogger(NoopLogger()), WithEmbedder(EmbedderHash)}, opts...)
	f, err := Open(t.TempDir(), allOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// Seed scenario 1 (spec §8): four documents, "auth*" prefix search.
func TestSearch_PrefixWildcardOrdersByStrategy(t *testing.T) {
	f := openTestFacade(t)
	ctx := context.Background()

	docs := []model.Document{
		testDoc(1, "local-1", model.OriginLocal, "auth bug", "the login flow breaks under load"),
		testDoc(2, "local-1", model.OriginLocal, "authn refactor", "rewriting the authn middleware"),
		testDoc(3, "local-1", model.OriginLocal, "payments", "invoice totals are wrong"),
		testDoc(4, "local-1", model.OriginLocal, "auth retry", "retry policy for auth failures"),
	}
	_, err := f.IndexBatch(ctx, docs)
	require.NoError(t, err)

	resp, err := f.Search(ctx, SearchRequest{Query: "auth*", Mode: ModeLexical, Limit: 10})
	require.NoError(t, err)

	assert.Len(t, resp.Hits, 3)
	assert.Equal(t, query.StrategyEdgeNgram, resp.Meta.Strategy)
	assert.False(t, resp.Meta.WildcardFallback)
	for _, h := range resp.Hits {
		assert.NotEqual(t, uint64(3), h.DocID)
	}
}

// Seed scenario 2 (spec §8): "*auth*" falls back to a regex scan over the
// same corpus and returns the same three documents.
func TestSearch_RegexWildcardFallsBackButFindsSameDocs(t *testing.T) {
	f := openTestFacade(t)
	ctx := context.Background()

	docs := []model.Document{
		testDoc(1, "local-1", model.OriginLocal, "auth bug", "the login flow breaks under load"),
		testDoc(2, "local-1", model.OriginLocal, "authn refactor", "rewriting the authn middleware"),
		testDoc(3, "local-1", model.OriginLocal, "payments", "invoice totals are wrong"),
		testDoc(4, "local-1", model.OriginLocal, "auth retry", "retry policy for auth failures"),
	}
	_, err := f.IndexBatch(ctx, docs)
	require.NoError(t, err)

	resp, err := f.Search(ctx, SearchRequest{Query: "*auth*", Mode: ModeLexical, Limit: 10})
	require.NoError(t, err)

	assert.Len(t, resp.Hits, 3)
	assert.Equal(t, query.StrategyRegexScan, resp.Meta.Strategy)
	assert.True(t, resp.Meta.WildcardFallback)

	ids := make(map[uint64]bool, len(resp.Hits))
	for _, h := range resp.Hits {
		ids[h.DocID] = true
	}
	assert.True(t, ids[1])
	assert.True(t, ids[2])
	assert.True(t, ids[4])
	assert.False(t, ids[3])
}

// Seed scenario 4 (spec §8): identical content under two source_ids
// survives dedup once per source.
func TestSearch_DedupRespectsSourceBoundary(t *testing.T) {
	f := openTestFacade(t)
	ctx := context.Background()

	docs := []model.Document{
		testDoc(1, "local", model.OriginLocal, "greeting", "hello world"),
		testDoc(2, "remote:hostA", model.OriginRemote, "greeting", "hello world"),
	}
	_, err := f.IndexBatch(ctx, docs)
	require.NoError(t, err)

	resp, err := f.Search(ctx, SearchRequest{Query: "hello", Mode: ModeLexical, Limit: 10})
	require.NoError(t, err)

	require.Len(t, resp.Hits, 2)
	sources := map[string]bool{}
	for _, h := range resp.Hits {
		sources[h.SourceID] = true
	}
	assert.True(t, sources["local"])
	assert.True(t, sources["remote:hostA"])
}

// Seed scenario 5 (spec §8): incrementally typed queries hit the prefix
// cache or report a shortfall, never both, and the final result matches a
// cold direct search.
func TestSearch_IncrementalQueryCacheHitsOrShortfallsNeverBoth(t *testing.T) {
	f := openTestFacade(t)
	ctx := context.Background()

	_, err := f.IndexBatch(ctx, []model.Document{
		testDoc(1, "local-1", model.OriginLocal, "auth bug", "the auth flow breaks under load"),
	})
	require.NoError(t, err)

	typed := []string{"a", "au", "aut", "auth"}
	var last SearchResponse
	for i, q := range typed {
		resp, err := f.Search(ctx, SearchRequest{Query: q, Mode: ModeLexical, Limit: 10})
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, "miss", resp.Meta.CacheStatus)
		}
		last = resp
	}

	coldFacade := openTestFacade(t)
	_, err = coldFacade.IndexBatch(ctx, []model.Document{
		testDoc(1, "local-1", model.OriginLocal, "auth bug", "the auth flow breaks under load"),
	})
	require.NoError(t, err)
	direct, err := coldFacade.Search(ctx, SearchRequest{Query: "auth", Mode: ModeLexical, Limit: 10})
	require.NoError(t, err)

	lastIDs := hitDocIDs(last.Hits)
	directIDs := hitDocIDs(direct.Hits)
	assert.ElementsMatch(t, directIDs, lastIDs)
}

// Seed scenario 6 (spec §8): a stale schema_hash fences search and
// index_batch until Rebuild runs.
func TestSearch_StaleSchemaHashFencesUntilRebuild(t *testing.T) {
	dir := t.TempDir()

	f2, err := Open(dir, WithLogger(NoopLogger()), WithEmbedder(EmbedderHash))
	require.NoError(t, err)

	_, err = f2.IndexBatch(context.Background(), []model.Document{
		testDoc(1, "local-1", model.OriginLocal, "t", "auth bug"),
	})
	require.NoError(t, err)
	require.NoError(t, f2.Close())

	// Corrupt the on-disk schema_hash out from under the façade.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema_hash"), []byte("v0:stale"), 0o644))

	f3, err := Open(dir, WithLogger(NoopLogger()), WithEmbedder(EmbedderHash))
	require.NoError(t, err)
	defer f3.Close()

	_, err = f3.Search(context.Background(), SearchRequest{Query: "auth", Mode: ModeLexical, Limit: 10})
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = f3.IndexBatch(context.Background(), []model.Document{
		testDoc(2, "local-1", model.OriginLocal, "t", "another"),
	})
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	require.NoError(t, f3.Rebuild(context.Background()))
	resp, err := f3.Search(context.Background(), SearchRequest{Query: "auth", Mode: ModeLexical, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits) // rebuild starts from an empty corpus
	onDisk, err := os.ReadFile(filepath.Join(dir, "schema_hash"))
	require.NoError(t, err)
	assert.Equal(t, schema.Hash, string(onDisk))
}

// Semantic mode hydrates vector-only hits with lexical payload text.
func TestSearch_SemanticModeHydratesPayloadFromLexicalCorpus(t *testing.T) {
	f := openTestFacade(t)
	ctx := context.Background()

	_, err := f.IndexBatch(ctx, []model.Document{
		testDoc(1, "local-1", model.OriginLocal, "auth bug", "the login flow breaks under load"),
		testDoc(2, "local-1", model.OriginLocal, "payments", "invoice totals are wrong"),
	})
	require.NoError(t, err)

	resp, err := f.Search(ctx, SearchRequest{Query: "the login flow breaks under load", Mode: ModeSemantic, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)
	assert.Equal(t, uint64(1), resp.Hits[0].DocID)
	assert.Equal(t, "auth bug", resp.Hits[0].Title)
}

// Hybrid mode fuses lexical and semantic rankings deterministically for
// the same two inputs (RRF determinism, spec §8 invariant 4).
func TestSearch_HybridModeIsDeterministicAcrossRuns(t *testing.T) {
	f := openTestFacade(t)
	ctx := context.Background()

	_, err := f.IndexBatch(ctx, []model.Document{
		testDoc(1, "local-1", model.OriginLocal, "auth bug", "the login flow breaks under load"),
		testDoc(2, "local-1", model.OriginLocal, "auth retry", "retry policy for auth failures"),
		testDoc(3, "local-1", model.OriginLocal, "payments", "invoice totals are wrong"),
	})
	require.NoError(t, err)

	req := SearchRequest{Query: "auth", Mode: ModeHybrid, Limit: 10}
	first, err := f.Search(ctx, req)
	require.NoError(t, err)

	f.cache.InvalidatePrefix("")
	second, err := f.Search(ctx, req)
	require.NoError(t, err)

	require.Equal(t, len(first.Hits), len(second.Hits))
	for i := range first.Hits {
		assert.Equal(t, first.Hits[i].DocID, second.Hits[i].DocID)
	}
}

// DeleteSource removes a source from both engines; a subsequent search no
// longer returns it even after a commit+reload cycle.
func TestDeleteSource_RemovesFromLexicalAndVector(t *testing.T) {
	f := openTestFacade(t)
	ctx := context.Background()

	_, err := f.IndexBatch(ctx, []model.Document{
		testDoc(1, "local-1", model.OriginLocal, "auth bug", "the login flow breaks under load"),
		testDoc(2, "local-2", model.OriginLocal, "unrelated", "totally different content here"),
	})
	require.NoError(t, err)

	require.NoError(t, f.DeleteSource(ctx, "local-1"))

	resp, err := f.Search(ctx, SearchRequest{Query: "login", Mode: ModeLexical, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)

	health := f.Health()
	assert.Equal(t, 1, health.VectorRows)
}

// Health/Metrics report sane zero values before any write and non-zero
// counters after a commit and a search.
func TestHealthAndMetrics_ReflectActivity(t *testing.T) {
	f := openTestFacade(t)
	ctx := context.Background()

	h0 := f.Health()
	assert.True(t, h0.IndexExists)
	assert.Equal(t, 0, h0.VectorRows)

	_, err := f.IndexBatch(ctx, []model.Document{
		testDoc(1, "local-1", model.OriginLocal, "t", "auth bug in login"),
	})
	require.NoError(t, err)

	_, err = f.Search(ctx, SearchRequest{Query: "auth", Mode: ModeLexical, Limit: 10})
	require.NoError(t, err)

	m := f.Metrics()
	assert.Equal(t, int64(1), m.Reloads)

	h1 := f.Health()
	assert.Equal(t, 1, h1.VectorRows)
	assert.NotZero(t, h1.LastIndexedAt)
}

func hitDocIDs(hits []model.Candidate) []uint64 {
	ids := make([]uint64, len(hits))
	for i, h := range hits {
		ids[i] = h.DocID
	}
	return ids
}
