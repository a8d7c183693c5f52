// Package vector holds the float math shared by the index and the retrievers.
package vector

import "math"

// Normalize returns a unit-length copy of v.
// A zero vector stays zero: it has no direction, so every inner product with it is 0.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Dot returns the inner product of a and b accumulated in float64.
// Both vectors must have the same length.
func Dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Clamp bounds a cosine similarity to [-1, 1] against float rounding.
func Clamp(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}
