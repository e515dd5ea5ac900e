package f16

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	vals := []float32{0, 1, -1, 0.5, 3.14159, -3.14159, 65504, -65504, 1e-5}
	for _, v := range vals {
		got := ToFloat32(FromFloat32(v))
		assert.InDelta(t, float64(v), float64(got), 0.01, "value %v", v)
	}
}

func TestZero(t *testing.T) {
	assert.Equal(t, float32(0), ToFloat32(FromFloat32(0)))
}

func TestEncodeDecodeSlice(t *testing.T) {
	src := []float32{1, 2, 3, 4.5, -6.75}
	enc := make([]Bits, len(src))
	Encode(enc, src)
	dec := make([]float32, len(src))
	Decode(dec, enc)
	for i := range src {
		assert.InDelta(t, float64(src[i]), float64(dec[i]), 0.01)
	}
}
