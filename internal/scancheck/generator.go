package scancheck

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"

	"github.com/google/uuid"
)

const randomFloatDivisor = 1000000

type identity struct {
	ExternalID string
	Name       string
	Embedding  []float32
	SampleID   string
}

// getRandomFloat returns a random float64 in [-1, 1) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(2*randomFloatDivisor))
	return float64(n.Int64())/float64(randomFloatDivisor) - 1
}

// randomUnit returns a random vector of unit length.
func randomUnit(dim int) []float32 {
	for {
		v := make([]float32, dim)
		var sum float64
		for i := range v {
			x := getRandomFloat()
			v[i] = float32(x)
			sum += x * x
		}
		if sum == 0 {
			continue
		}
		norm := float32(math.Sqrt(sum))
		for i := range v {
			v[i] /= norm
		}
		return v
	}
}

// generateIdentities creates n identities with distinct random unit embeddings.
// Submitting an identity's own embedding yields distance zero to it, so any
// two distinct vectors resolve to the right identity.
func generateIdentities(n, dim int) []identity {
	out := make([]identity, n)
	for i := range out {
		out[i] = identity{
			ExternalID: "scan-" + uuid.NewString(),
			Name:       fmt.Sprintf("Scan Check %03d", i+1),
			Embedding:  randomUnit(dim),
		}
	}
	return out
}
