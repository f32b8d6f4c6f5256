package embed

import (
	"context"
	"fmt"
)

// Mode specifies the type of embedding to generate.
type Mode string

const (
	// ModeQuery generates embeddings for search queries.
	ModeQuery Mode = "query"

	// ModePassage generates embeddings for stored document chunks.
	ModePassage Mode = "passage"
)

// Provider converts text into vectors. The indexing pipeline treats the
// embedding model as an external collaborator: the only requirement is that
// the same text always yields a comparable vector.
type Provider interface {
	// Embed converts texts into their vector representations.
	Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int
}

// NewProvider creates a provider by name. "hash" is the offline default;
// "openai" requires OPENAI_API_KEY in the environment.
func NewProvider(name string, dimensions int) (Provider, error) {
	switch name {
	case "", "hash":
		return NewHashProvider(dimensions), nil
	case "openai":
		return newOpenAIProvider()
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", name)
	}
}
