package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

const createChunksTable = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id   TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	ordinal    INTEGER NOT NULL DEFAULT 0,
	content    TEXT NOT NULL,
	embedding  BLOB,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const createSourceIndex = `
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source)`

// SQLiteStore is the persistent Store implementation backed by SQLite.
// Each exported call runs in its own transaction, so single calls are atomic;
// the replacer's backup/rollback protocol handles multi-call consistency.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the chunk database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writers from the watcher's deferred callbacks can interleave; let
	// SQLite wait instead of returning SQLITE_BUSY immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(createChunksTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chunks table: %w", err)
	}
	if _, err := db.Exec(createSourceIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create source index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// GetByIDs returns the documents for the given IDs, omitting missing ones.
func (s *SQLiteStore) GetByIDs(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := sq.Select("chunk_id", "content", "embedding", "metadata").
		From("chunks").
		Where(sq.Eq{"chunk_id": ids}).
		OrderBy("source", "ordinal").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks by id: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// GetBySource returns all documents for one source path in ordinal order.
func (s *SQLiteStore) GetBySource(ctx context.Context, source string) ([]Document, error) {
	rows, err := sq.Select("chunk_id", "content", "embedding", "metadata").
		From("chunks").
		Where(sq.Eq{"source": source}).
		OrderBy("ordinal").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for source %s: %w", source, err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Upsert inserts documents, replacing existing rows with the same chunk ID.
// The batch is wrapped in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	now := time.Now().UTC().Format(time.RFC3339)
	for _, doc := range docs {
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", doc.ID, err)
		}

		ordinal := 0
		if v, ok := doc.Metadata[MetaOrdinal]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				ordinal = n
			}
		}

		_, err = sq.Insert("chunks").
			Columns("chunk_id", "source", "ordinal", "content", "embedding", "metadata", "created_at", "updated_at").
			Values(
				doc.ID,
				doc.Metadata[MetaSource],
				ordinal,
				doc.Content,
				SerializeEmbedding(doc.Embedding),
				string(metaJSON),
				now,
				now,
			).
			Suffix(`ON CONFLICT(chunk_id) DO UPDATE SET
				source = excluded.source,
				ordinal = excluded.ordinal,
				content = excluded.content,
				embedding = excluded.embedding,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at`).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// Delete removes the documents with the given IDs.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := sq.Delete("chunks").
		Where(sq.Eq{"chunk_id": ids}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Count returns the total number of stored documents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := sq.Select("COUNT(*)").
		From("chunks").
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// All enumerates every stored document, grouped by source in ordinal order.
func (s *SQLiteStore) All(ctx context.Context) ([]Document, error) {
	rows, err := sq.Select("chunk_id", "content", "embedding", "metadata").
		From("chunks").
		OrderBy("source", "ordinal").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate chunks: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var (
			doc      Document
			embBytes []byte
			metaJSON string
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &embBytes, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}

		emb, err := DeserializeEmbedding(embBytes)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", doc.ID, err)
		}
		doc.Embedding = emb

		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("chunk %s: corrupt metadata: %w", doc.ID, err)
		}

		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk rows: %w", err)
	}
	return docs, nil
}
