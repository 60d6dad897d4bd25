package matching

import (
	"math"

	"github.com/okian/rollcall/internal/domain/model"
)

// Distance returns the Euclidean (L2) distance between two embeddings of equal
// dimension. Accumulation is done in float64. Callers must check dimensions first.
func Distance(a, b model.Embedding) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Norm returns the L2 norm of e.
func Norm(e model.Embedding) float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize returns e scaled to unit L2 norm. A zero vector is returned unchanged.
func Normalize(e model.Embedding) model.Embedding {
	n := Norm(e)
	out := make(model.Embedding, len(e))
	if n == 0 {
		copy(out, e)
		return out
	}
	for i, v := range e {
		out[i] = float32(float64(v) / n)
	}
	return out
}

// normalizedDistance is Distance(Normalize(q), Normalize(s)) for a query that
// is already unit length, without allocating a normalized copy of s.
func normalizedDistance(unitQuery, s model.Embedding) float64 {
	n := Norm(s)
	if n == 0 {
		return Distance(unitQuery, s)
	}
	var sum float64
	for i := range unitQuery {
		d := float64(unitQuery[i]) - float64(s[i])/n
		sum += d * d
	}
	return math.Sqrt(sum)
}
