package store

import (
	"context"
	"strconv"
)

// Metadata keys shared by the ingester, watcher and search layers.
// MetaSource holds the project-relative path of the originating file and is
// the equality filter every per-file operation pivots on.
const (
	MetaSource    = "source"
	MetaFilename  = "filename"
	MetaOrdinal   = "chunk_index"
	MetaFileType  = "file_type"
	MetaCategory  = "category"
	MetaPathDepth = "path_depth"
	MetaParentDir = "parent_dir"
	MetaAncestors = "path_ancestors"

	// MetaPathLevelPrefix prefixes the per-level directory keys; level keys
	// only exist for levels the source path actually has.
	MetaPathLevelPrefix = "path_level_"
)

// MetaPathLevel returns the metadata key holding the directory name at the
// given zero-based depth of a source path.
func MetaPathLevel(level int) string {
	return MetaPathLevelPrefix + strconv.Itoa(level)
}

// Document is one stored chunk: the unit of insertion, replacement and search.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// Store is the persistent chunk store consumed by the ingester and watcher.
// Implementations must make each individual call atomic; cross-call
// consistency is the caller's responsibility (see ingest.Replacer).
type Store interface {
	// GetByIDs returns the documents for the given IDs. Missing IDs are
	// silently omitted from the result.
	GetByIDs(ctx context.Context, ids []string) ([]Document, error)

	// GetBySource returns all documents whose source metadata equals the
	// given project-relative path, ordered by chunk ordinal.
	GetBySource(ctx context.Context, source string) ([]Document, error)

	// Upsert inserts documents, replacing any existing document with the
	// same ID. The whole batch succeeds or fails together.
	Upsert(ctx context.Context, docs []Document) error

	// Delete removes the documents with the given IDs. Deleting an ID that
	// does not exist is not an error.
	Delete(ctx context.Context, ids []string) error

	// Count returns the total number of stored documents.
	Count(ctx context.Context) (int, error)

	// All enumerates every stored document.
	All(ctx context.Context) ([]Document, error)

	Close() error
}

// Clone returns a deep copy of d sharing no memory with the original.
// Store implementations return clones so callers cannot mutate stored
// state through a retained slice or map.
func (d Document) Clone() Document {
	c := Document{ID: d.ID, Content: d.Content}
	if d.Embedding != nil {
		c.Embedding = make([]float32, len(d.Embedding))
		copy(c.Embedding, d.Embedding)
	}
	if d.Metadata != nil {
		c.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}
