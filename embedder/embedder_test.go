package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder()
	v1, err := e.Embed(context.Background(), "async handler bug")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "async handler bug")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 384)
}

func TestHashEmbedder_UnitNormalized(t *testing.T) {
	e := NewHashEmbedder()
	v, err := e.Embed(context.Background(), "the quick brown fox jumps")
	require.NoError(t, err)

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSq, 1e-3)
}

func TestHashEmbedder_DistinctTextsDiffer(t *testing.T) {
	e := NewHashEmbedder()
	v1, _ := e.Embed(context.Background(), "auth bug")
	v2, _ := e.Embed(context.Background(), "completely different text")
	assert.NotEqual(t, v1, v2)
}

func TestHashEmbedder_Identity(t *testing.T) {
	e := NewHashEmbedder()
	assert.Equal(t, "hash", e.ID())
	assert.Equal(t, "fnv1a-384", e.Revision())
	assert.Equal(t, 384, e.Dimension())
}

func TestMLAdapter_WrapsInferenceAndValidatesDimension(t *testing.T) {
	good := func(ctx context.Context, text string) ([]float32, error) {
		return make([]float32, 384), nil
	}
	a := NewMLAdapter(good)
	v, err := a.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, v, 384)
	assert.Equal(t, "ml", a.ID())
	assert.Equal(t, "minilm-384", a.Revision())

	bad := func(ctx context.Context, text string) ([]float32, error) {
		return make([]float32, 10), nil
	}
	b := NewMLAdapter(bad)
	_, err = b.Embed(context.Background(), "hello")
	assert.Error(t, err)
}
