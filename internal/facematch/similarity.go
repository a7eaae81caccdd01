// Package facematch scores face descriptors against each other and decides
// whether a score is close enough to propose a lost/found match.
package facematch

import "math"

// Similarity returns the cosine similarity of two descriptors rescaled from
// [-1, 1] to [0, 1]. Missing descriptors, descriptors of different length and
// zero-magnitude descriptors all score 0.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	cosine := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	cosine = max(-1, min(1, cosine))

	return (cosine + 1) / 2
}
