package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand/v2"
)

// FallbackName tags vectors produced by HashProvider.
const FallbackName = "fallback"

// HashProvider is the deterministic offline provider. The SHA-256 of the
// text seeds a PCG generator that draws a normal(0, 0.1) vector, which is
// then L2-normalized. Identical text always yields a bit-identical vector.
// The space carries no semantic meaning.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a fallback provider producing vectors of dimension.
func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashProvider{dimension: dimension}
}

func (p *HashProvider) Name() string { return FallbackName }

func (p *HashProvider) Dimension() int { return p.dimension }

// Embed never fails.
func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(sum[0:8]),
		binary.BigEndian.Uint64(sum[8:16]),
	))

	raw := make([]float64, p.dimension)
	var norm float64
	for i := range raw {
		raw[i] = rng.NormFloat64() * 0.1
		norm += raw[i] * raw[i]
	}
	norm = math.Sqrt(norm)

	vector := make([]float32, p.dimension)
	for i, v := range raw {
		if norm > 0 {
			v /= norm
		}
		vector[i] = float32(v)
	}
	return vector, nil
}
