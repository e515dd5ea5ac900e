package vector

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randUnitVec(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	var norm float32
	for i := range v {
		v[i] = r.Float32()*2 - 1
		norm += v[i] * v[i]
	}
	n := float32(1)
	if norm > 0 {
		n = 1 / sqrt32(norm)
	}
	for i := range v {
		v[i] *= n
	}
	return v
}

func sqrt32(f float32) float32 {
	// tiny local sqrt to avoid pulling in math just for tests
	x := f
	for i := 0; i < 20; i++ {
		x = 0.5 * (x + f/x)
	}
	return x
}

func buildTestIndex(t *testing.T, n, dim int, quant Quantization) (string, []RowInput) {
	t.Helper()
	r := rand.New(rand.NewSource(42))
	rows := make([]RowInput, n)
	for i := 0; i < n; i++ {
		rows[i] = RowInput{
			DocID:  uint64(i + 1),
			Vector: randUnitVec(r, dim),
		}
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "cvvi.bin")
	require.NoError(t, Write(path, rows, WriteOptions{
		EmbedderID:   "hash",
		EmbedderRev:  "v1",
		Dimension:    dim,
		Quantization: quant,
	}))
	return path, rows
}

func TestWriteOpenRoundTrip_F32(t *testing.T) {
	path, rows := buildTestIndex(t, 50, 16, QuantF32)
	idx, err := Open(path, OpenOptions{WantEmbedderID: "hash", WantEmbedderRev: "v1", WantDimension: 16})
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, len(rows), idx.RowCount())
	row := idx.Row(0)
	assert.Equal(t, rows[0].DocID, row.DocID)
}

func TestQuery_SequentialMatchesReference(t *testing.T) {
	path, rows := buildTestIndex(t, 200, 32, QuantF32)
	idx, err := Open(path, OpenOptions{ParallelThreshold: 1_000_000})
	require.NoError(t, err)
	defer idx.Close()

	q := rows[5].Vector
	got := idx.Query(q, 5, nil)
	require.Len(t, got, 5)
	assert.Equal(t, rows[5].DocID, got[0].DocID) // best match is itself

	// monotonic non-increasing score
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i].Score, got[i-1].Score)
	}
}

func TestQuery_ParallelMatchesSequential(t *testing.T) {
	path, rows := buildTestIndex(t, 20_000, 24, QuantF32)
	seq, err := Open(path, OpenOptions{ParallelThreshold: 1_000_000})
	require.NoError(t, err)
	defer seq.Close()

	par, err := Open(path, OpenOptions{ParallelThreshold: 10_000})
	require.NoError(t, err)
	defer par.Close()

	q := rows[123].Vector
	seqRes := seq.Query(q, 10, nil)
	parRes := par.Query(q, 10, nil)

	require.Len(t, seqRes, 10)
	require.Len(t, parRes, 10)
	for i := range seqRes {
		assert.Equal(t, seqRes[i].DocID, parRes[i].DocID, "index %d", i)
		assert.InDelta(t, seqRes[i].Score, parRes[i].Score, 1e-4)
	}
}

func TestQuery_Prefilter(t *testing.T) {
	path, rows := buildTestIndex(t, 100, 16, QuantF32)
	idx, err := Open(path, OpenOptions{ParallelThreshold: 1_000_000})
	require.NoError(t, err)
	defer idx.Close()

	prefilter := []int{0, 1, 2}
	sort.Ints(prefilter)
	got := idx.Query(rows[0].Vector, 10, prefilter)
	assert.LessOrEqual(t, len(got), 3)
	for _, c := range got {
		found := false
		for _, ri := range prefilter {
			if rows[ri].DocID == c.DocID {
				found = true
			}
		}
		assert.True(t, found)
	}
}

func TestOpen_CorruptHeaderFails(t *testing.T) {
	path, _ := buildTestIndex(t, 5, 8, QuantF32)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] = 'X' // corrupt magic
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = Open(path, OpenOptions{})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpen_IdentityMismatchFails(t *testing.T) {
	path, _ := buildTestIndex(t, 5, 8, QuantF32)
	_, err := Open(path, OpenOptions{WantEmbedderID: "other", WantEmbedderRev: "v1", WantDimension: 8})
	assert.ErrorIs(t, err, ErrIdentityMismatch)
}

func TestF16Quantization_RoundTrip(t *testing.T) {
	path, rows := buildTestIndex(t, 30, 16, QuantF16)
	idx, err := Open(path, OpenOptions{PreConvert: true})
	require.NoError(t, err)
	defer idx.Close()

	got := idx.Query(rows[0].Vector, 3, nil)
	require.NotEmpty(t, got)
	assert.Equal(t, rows[0].DocID, got[0].DocID)
	assert.True(t, got[0].Approx)
}
