package simd

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reference(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func TestDot_MatchesReference(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 3, 4, 7, 8, 15, 16, 17, 31, 33, 384} {
		a := make([]float32, n)
		b := make([]float32, n)
		for i := range a {
			a[i] = r.Float32()
			b[i] = r.Float32()
		}
		assert.InDelta(t, float64(reference(a, b)), float64(Dot(a, b)), 1e-2, "n=%d", n)
		assert.InDelta(t, float64(reference(a, b)), float64(dot4(a, b)), 1e-2, "n=%d dot4", n)
		assert.InDelta(t, float64(reference(a, b)), float64(dot8(a, b)), 1e-2, "n=%d dot8", n)
		assert.InDelta(t, float64(reference(a, b)), float64(dot16(a, b)), 1e-2, "n=%d dot16", n)
	}
}
