package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// hashProvider generates deterministic embeddings from a content hash.
// It carries no semantic signal, but identical text always maps to the same
// unit vector, which is exactly what the change-detection and move-matching
// tests need and is good enough for offline smoke use.
type hashProvider struct {
	dimensions int
}

// NewHashProvider creates the deterministic offline provider.
func NewHashProvider(dimensions int) Provider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &hashProvider{dimensions: dimensions}
}

func (p *hashProvider) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		hash := sha256.Sum256([]byte(text))

		embedding := make([]float32, p.dimensions)
		var norm float64
		for j := 0; j < p.dimensions; j++ {
			offset := (j * 4) % (len(hash) - 4)
			val := binary.BigEndian.Uint32(hash[offset : offset+4])
			// Mix the dimension index back in so the vector is not
			// just the hash repeated every 8 dimensions.
			val ^= uint32(j) * 2654435761
			f := (float64(val)/float64(1<<32))*2.0 - 1.0
			embedding[j] = float32(f)
			norm += f * f
		}

		// Normalize to unit length for cosine similarity.
		if norm > 0 {
			scale := float32(1.0 / math.Sqrt(norm))
			for j := range embedding {
				embedding[j] *= scale
			}
		}

		embeddings[i] = embedding
	}
	return embeddings, nil
}

func (p *hashProvider) Dimensions() int {
	return p.dimensions
}
