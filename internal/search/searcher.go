package search

// Implementation Plan:
// 1. Searcher loads chunks from the content store into a chromem-go collection
// 2. Precomputed embeddings are passed through, never recomputed on load
// 3. Query embeds the query text in query mode and runs vector similarity
// 4. Native WHERE filter on category, post-filter for min-score
// 5. Reload support with atomic collection swap (RWMutex)

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/rdalcega/docdex/internal/embed"
	"github.com/rdalcega/docdex/internal/store"
)

// resultMultiplier controls over-fetching so enough results survive
// post-filtering.
const resultMultiplier = 2

const collectionName = "docdex"

// Options narrows a search. PathPrefix restricts results to sources under
// the given directory, e.g. "strategy/2026".
type Options struct {
	Limit      int
	Category   string
	FileType   string
	PathPrefix string
	MinScore   float64
}

// DefaultOptions returns the options used when the caller passes nil.
func DefaultOptions() *Options {
	return &Options{Limit: 10}
}

// Result is one scored chunk.
type Result struct {
	ID       string
	Source   string
	Content  string
	Category string
	Ordinal  string
	Score    float64
}

// Searcher answers semantic queries over the indexed chunks. It keeps an
// in-memory vector collection built from the content store; Reload rebuilds
// it after the store changes.
type Searcher struct {
	store    store.Store
	provider embed.Provider
	db       *chromem.DB

	mu         sync.RWMutex // protects collection during reload
	collection *chromem.Collection
}

// NewSearcher builds a searcher and performs the initial load.
func NewSearcher(ctx context.Context, st store.Store, provider embed.Provider) (*Searcher, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}

	s := &Searcher{
		store:    st,
		provider: provider,
		db:       chromem.NewDB(),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	return s, nil
}

// Reload rebuilds the vector collection from the store and swaps it in
// atomically. Concurrent queries keep using the old collection until the
// swap.
func (s *Searcher) Reload(ctx context.Context) error {
	docs, err := s.store.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read store: %w", err)
	}

	collection, err := s.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for _, doc := range docs {
		cdoc := chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  doc.Metadata,
		}
		if err := collection.AddDocument(ctx, cdoc); err != nil {
			return fmt.Errorf("failed to add chunk %s: %w", doc.ID, err)
		}
	}

	s.mu.Lock()
	s.collection = collection
	s.mu.Unlock()
	return nil
}

// Count returns the number of chunks currently loaded.
func (s *Searcher) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return 0
	}
	return s.collection.Count()
}

// Query runs a semantic search for the given text.
func (s *Searcher) Query(ctx context.Context, query string, options *Options) ([]*Result, error) {
	if options == nil {
		options = DefaultOptions()
	}
	if options.Limit <= 0 || options.Limit > 100 {
		options.Limit = 10
	}

	embeddings, err := s.provider.Embed(ctx, []string{query}, embed.ModeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	s.mu.RLock()
	collection := s.collection
	s.mu.RUnlock()
	if collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	nResults := options.Limit * resultMultiplier
	if nResults > count {
		nResults = count
	}

	where := make(map[string]string)
	if options.Category != "" {
		where[store.MetaCategory] = options.Category
	}
	if options.FileType != "" {
		where[store.MetaFileType] = options.FileType
	}
	if options.PathPrefix != "" {
		// Each level is an exact-match field, so a directory prefix becomes
		// one equality filter per path component.
		prefix := strings.Trim(path.Clean(options.PathPrefix), "/")
		if prefix != "" && prefix != "." {
			for i, part := range strings.Split(prefix, "/") {
				where[store.MetaPathLevel(i)] = part
			}
		}
	}

	docs, err := collection.QueryEmbedding(ctx, embeddings[0], nResults, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]*Result, 0, options.Limit)
	for _, doc := range docs {
		if options.MinScore > 0 && float64(doc.Similarity) < options.MinScore {
			continue
		}
		results = append(results, &Result{
			ID:       doc.ID,
			Source:   doc.Metadata[store.MetaSource],
			Content:  doc.Content,
			Category: doc.Metadata[store.MetaCategory],
			Ordinal:  doc.Metadata[store.MetaOrdinal],
			Score:    float64(doc.Similarity),
		})
		if len(results) >= options.Limit {
			break
		}
	}
	return results, nil
}

// Close releases resources. chromem-go needs no explicit cleanup; this
// exists for symmetry with the store.
func (s *Searcher) Close() error {
	return nil
}
