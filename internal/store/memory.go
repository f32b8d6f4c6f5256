package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore is a map-backed Store used in tests and as a scratch backend.
// The Fail* hooks inject errors into individual operations so callers can
// exercise rollback paths without a real database.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]Document

	// When set, the corresponding operation returns the error instead of
	// mutating state. Reset to nil to restore normal behavior.
	FailUpsert error
	FailDelete error
	FailGet    error

	// FailUpsertOnce fails only the next Upsert call, then clears itself.
	// Lets tests fail a write while its compensating re-insert succeeds.
	FailUpsertOnce error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

func (m *MemoryStore) GetByIDs(ctx context.Context, ids []string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet != nil {
		return nil, m.FailGet
	}

	var docs []Document
	for _, id := range ids {
		if doc, ok := m.docs[id]; ok {
			docs = append(docs, doc.Clone())
		}
	}
	return docs, nil
}

func (m *MemoryStore) GetBySource(ctx context.Context, source string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet != nil {
		return nil, m.FailGet
	}

	var docs []Document
	for _, doc := range m.docs {
		if doc.Metadata[MetaSource] == source {
			docs = append(docs, doc.Clone())
		}
	}
	sortByOrdinal(docs)
	return docs, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpsert != nil {
		return m.FailUpsert
	}
	if m.FailUpsertOnce != nil {
		err := m.FailUpsertOnce
		m.FailUpsertOnce = nil
		return err
	}

	for _, doc := range docs {
		m.docs[doc.ID] = doc.Clone()
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}

	for _, id := range ids {
		delete(m.docs, id)
	}
	return nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs), nil
}

func (m *MemoryStore) All(ctx context.Context) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet != nil {
		return nil, m.FailGet
	}

	docs := make([]Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc.Clone())
	}
	sort.Slice(docs, func(i, j int) bool {
		si, sj := docs[i].Metadata[MetaSource], docs[j].Metadata[MetaSource]
		if si != sj {
			return si < sj
		}
		return ordinalOf(docs[i]) < ordinalOf(docs[j])
	})
	return docs, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func sortByOrdinal(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		return ordinalOf(docs[i]) < ordinalOf(docs[j])
	})
}

func ordinalOf(doc Document) int {
	n, _ := strconv.Atoi(doc.Metadata[MetaOrdinal])
	return n
}
