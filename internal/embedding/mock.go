package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
)

// =============================================================================
// DETERMINISTIC MOCK ENGINE
// =============================================================================

// Mock derives embeddings from a hash of the input text: SHA-256 seeds a PRNG
// whose normal draws are L2-normalized into a unit vector. The same text
// always produces the same vector and distinct texts land nearly orthogonal,
// so tests and offline runs exercise real similarity ranking without a
// network dependency.
type Mock struct {
	dims int
}

var _ Engine = (*Mock)(nil)

// NewMock creates a mock engine. A non-positive dims falls back to 768,
// matching the default cloud and local models.
func NewMock(dims int) *Mock {
	if dims <= 0 {
		dims = 768
	}
	return &Mock{dims: dims}
}

// Embed generates the deterministic embedding for text.
func (m *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.LittleEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float32, m.dims)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimensions returns the configured vector width.
func (m *Mock) Dimensions() int {
	return m.dims
}

// Name returns the engine name.
func (m *Mock) Name() string {
	return "mock"
}
