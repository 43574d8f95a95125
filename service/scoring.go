package service

import "math"

// Weights controls how semantic and metadata similarity are blended during rescoring
type Weights struct {
	Semantic float64
	Metadata float64
}

// DefaultWeights favours the query text over party and year metadata
var DefaultWeights = Weights{Semantic: 0.7, Metadata: 0.3}

// Blend combines the two similarities into one ranking score
func Blend(semantic, metadata float64, w Weights) float64 {
	return w.Semantic*semantic + w.Metadata*metadata
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 if
// either is a zero vector or the lengths differ
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
