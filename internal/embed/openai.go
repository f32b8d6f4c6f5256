package embed

import (
	"context"
	"fmt"
	"os"

	"github.com/philippgille/chromem-go"
)

// openAIProvider adapts chromem-go's OpenAI embedding func to the Provider
// interface. text-embedding-3-small produces 1536-dimension vectors.
type openAIProvider struct {
	fn chromem.EmbeddingFunc
}

func newOpenAIProvider() (Provider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return &openAIProvider{
		fn: chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small),
	}, nil
}

func (p *openAIProvider) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := p.fn(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

func (p *openAIProvider) Dimensions() int {
	return 1536
}
