package ingest

import (
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rdalcega/docdex/internal/store"
)

// chunkNamespace seeds deterministic chunk IDs. The same (source, ordinal)
// pair must yield the same ID across runs so replacement works as upsert.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/rdalcega/docdex"))

// ChunkID derives the stable ID for one chunk of a source file.
func ChunkID(source string, ordinal int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(source+"#"+strconv.Itoa(ordinal))).String()
}

// Categorize assigns a coarse content category from path heuristics.
func Categorize(source string) string {
	p := strings.ToLower(source)
	switch {
	case strings.Contains(p, "strategy"):
		return "strategy"
	case strings.Contains(p, "lyrics") || strings.Contains(p, "analysis"):
		return "content"
	case strings.Contains(p, "references") || strings.Contains(p, "resources"):
		return "reference"
	case strings.Contains(p, "disorganized"):
		return "planning"
	default:
		return "general"
	}
}

// BuildMetadata assembles the metadata map for one chunk of source, a
// slash-normalized project-relative path. Besides the identity fields it
// records the directory hierarchy (depth, parent, one field per level and a
// comma-joined ancestor list) so queries can pre-filter by path prefix.
func BuildMetadata(source string, ordinal int) map[string]string {
	source = path.Clean(strings.ReplaceAll(source, "\\", "/"))

	meta := map[string]string{
		store.MetaSource:   source,
		store.MetaFilename: path.Base(source),
		store.MetaOrdinal:  strconv.Itoa(ordinal),
		store.MetaFileType: strings.ToLower(path.Ext(source)),
		store.MetaCategory: Categorize(source),
	}

	addPathFields(meta, source)
	return meta
}

// RelocateMetadata rewrites the path-derived fields of meta for a move from
// its current source to newSource, leaving content fields (ordinal, category,
// file type) untouched. Stale path_level_N fields from a deeper old location
// are dropped.
func RelocateMetadata(meta map[string]string, newSource string) map[string]string {
	newSource = path.Clean(strings.ReplaceAll(newSource, "\\", "/"))

	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if strings.HasPrefix(k, store.MetaPathLevelPrefix) {
			continue
		}
		out[k] = v
	}

	out[store.MetaSource] = newSource
	out[store.MetaFilename] = path.Base(newSource)
	addPathFields(out, newSource)
	return out
}

func addPathFields(meta map[string]string, source string) {
	dir := path.Dir(source)
	var parts []string
	if dir != "." && dir != "/" {
		parts = strings.Split(dir, "/")
	}

	meta[store.MetaPathDepth] = strconv.Itoa(len(parts))
	if len(parts) > 0 {
		meta[store.MetaParentDir] = parts[len(parts)-1]
	} else {
		meta[store.MetaParentDir] = ""
	}

	ancestors := make([]string, 0, len(parts))
	for i, part := range parts {
		meta[store.MetaPathLevel(i)] = part
		ancestors = append(ancestors, strings.Join(parts[:i+1], "/"))
	}
	meta[store.MetaAncestors] = strings.Join(ancestors, ",")
}

// NewDocuments pairs split chunks with their embeddings and metadata,
// producing the documents that replace a source's content wholesale.
// Ordinals are the slice indexes, so they are contiguous from 0 by
// construction.
func NewDocuments(source string, chunks []string, embeddings [][]float32) []store.Document {
	docs := make([]store.Document, len(chunks))
	for i, content := range chunks {
		var emb []float32
		if i < len(embeddings) {
			emb = embeddings[i]
		}
		docs[i] = store.Document{
			ID:        ChunkID(source, i),
			Content:   content,
			Embedding: emb,
			Metadata:  BuildMetadata(source, i),
		}
	}
	return docs
}
