// Package simd provides the vector index's dot-product kernel.
//
// CVVI's §4.3 contract requires "a portable implementation [that] must
// pick the widest lane size available at runtime." This package detects
// the widest SIMD lane the host CPU supports via golang.org/x/sys/cpu and
// dispatches to a matching manually-unrolled Go loop. It does not drop
// into assembly: the unrolled loops let the Go compiler's own vectorizer
// and the CPU's out-of-order execution exploit the available lane width
// without us hand-maintaining per-arch .s files.
package simd

import (
	"golang.org/x/sys/cpu"
)

// Lane is the widest float32 SIMD lane width detected for this process.
type Lane int

const (
	Lane4  Lane = 4  // SSE / NEON baseline
	Lane8  Lane = 8  // AVX / widened NEON pairing
	Lane16 Lane = 16 // AVX-512
)

// DetectedLane is computed once at init and used as the default lane for
// Dot when callers don't need a specific width.
var DetectedLane = detectLane()

func detectLane() Lane {
	if cpu.X86.HasAVX512F {
		return Lane16
	}
	if cpu.X86.HasAVX || cpu.X86.HasAVX2 {
		return Lane8
	}
	return Lane4
}

// Dot computes the dot product of two equal-length float32 vectors using
// the widest lane detected for this CPU. Both inputs are assumed
// unit-normalized by the embedder (spec §4.3), so Dot doubles as cosine
// similarity.
func Dot(a, b []float32) float32 {
	switch DetectedLane {
	case Lane16:
		return dot16(a, b)
	case Lane8:
		return dot8(a, b)
	default:
		return dot4(a, b)
	}
}

// dot4 unrolls by 4 lanes, matching the narrowest widely-available SIMD
// register (SSE on amd64, NEON on arm64).
func dot4(a, b []float32) float32 {
	var acc0, acc1, acc2, acc3 float32
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		acc0 += a[i] * b[i]
		acc1 += a[i+1] * b[i+1]
		acc2 += a[i+2] * b[i+2]
		acc3 += a[i+3] * b[i+3]
	}
	sum := acc0 + acc1 + acc2 + acc3
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// dot8 unrolls by 8 lanes (AVX-width).
func dot8(a, b []float32) float32 {
	var acc [8]float32
	n := len(a)
	i := 0
	for ; i+8 <= n; i += 8 {
		for j := 0; j < 8; j++ {
			acc[j] += a[i+j] * b[i+j]
		}
	}
	var sum float32
	for _, v := range acc {
		sum += v
	}
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// dot16 unrolls by 16 lanes (AVX-512-width).
func dot16(a, b []float32) float32 {
	var acc [16]float32
	n := len(a)
	i := 0
	for ; i+16 <= n; i += 16 {
		for j := 0; j < 16; j++ {
			acc[j] += a[i+j] * b[i+j]
		}
	}
	var sum float32
	for _, v := range acc {
		sum += v
	}
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
