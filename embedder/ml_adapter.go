package embedder

import (
	"context"
	"fmt"
)

// InferenceFunc is the signature a caller's real sentence-embedding model
// must satisfy to plug into MLAdapter. This core never imports an ML
// runtime itself (spec §1, §4.4): it only shapes the contract.
type InferenceFunc func(ctx context.Context, text string) ([]float32, error)

// MLAdapter wraps a caller-supplied inference function as an Embedder,
// declaring the "minilm-384" identity used by the original embedder
// registry this spec was distilled from. The wrapped function is
// responsible for unit-normalizing its own output; MLAdapter only
// enforces the declared dimension.
type MLAdapter struct {
	infer InferenceFunc
	dim   int
}

// NewMLAdapter wraps infer as the ml/minilm-384 embedder.
func NewMLAdapter(infer InferenceFunc) *MLAdapter {
	return &MLAdapter{infer: infer, dim: hashDimension}
}

func (m *MLAdapter) ID() string       { return "ml" }
func (m *MLAdapter) Revision() string { return "minilm-384" }
func (m *MLAdapter) Dimension() int   { return m.dim }

func (m *MLAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := m.infer(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedder: ml inference: %w", err)
	}
	if len(vec) != m.dim {
		return nil, fmt.Errorf("embedder: ml inference returned dimension %d, want %d", len(vec), m.dim)
	}
	return vec, nil
}
