package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.VectorStore = (*VectorStore)(nil)

// VectorStore implements ragdoc.VectorStore on the chunks table. Queries
// scan the stored vectors and rank them by cosine distance in memory,
// which suits per-site documentation collections.
type VectorStore struct {
	db *DB
}

// NewVectorStore creates a new VectorStore.
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db}
}

// Upsert inserts or replaces chunks and their vectors by chunk ID.
func (s *VectorStore) Upsert(ctx context.Context, chunks []*ragdoc.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return ragdoc.Errorf(ragdoc.EINDEX, "got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if len(chunks) == 0 {
		return nil
	}
	return s.inTx(ctx, "upsert", func(tx *sql.Tx) error {
		return insertChunks(ctx, tx, chunks, vectors)
	})
}

// Replace deletes the source's chunks and stores chunks in their place. A
// failure leaves the previous chunks untouched.
func (s *VectorStore) Replace(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return ragdoc.Errorf(ragdoc.EINDEX, "got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return s.inTx(ctx, "replace", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ?", sourceID); err != nil {
			return ragdoc.Errorf(ragdoc.EINDEX, "failed to clear chunks of %s: %v", sourceID, err)
		}
		return insertChunks(ctx, tx, chunks, vectors)
	})
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *VectorStore) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return ragdoc.Errorf(ragdoc.EINDEX, "failed to begin %s: %v", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return ragdoc.Errorf(ragdoc.EINDEX, "failed to commit %s: %v", op, err)
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []*ragdoc.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source_id, content, metadata, embedding, dimensions)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			source_id = excluded.source_id,
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			dimensions = excluded.dimensions
	`)
	if err != nil {
		return ragdoc.Errorf(ragdoc.EINDEX, "failed to prepare insert: %v", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		meta, err := json.Marshal(c.Metadata.Map())
		if err != nil {
			return ragdoc.Errorf(ragdoc.EINDEX, "failed to encode metadata for %s: %v", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.SourceID, c.Content, string(meta), encodeVector(vectors[i]), len(vectors[i])); err != nil {
			return ragdoc.Errorf(ragdoc.EINDEX, "failed to store chunk %s: %v", c.ID, err)
		}
	}
	return nil
}

// Query returns the k stored chunks nearest to vector, optionally within
// one source. Vectors of a different dimension are skipped.
func (s *VectorStore) Query(ctx context.Context, vector []float32, k int, sourceID string) ([]ragdoc.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}

	query := "SELECT id, source_id, content, metadata, embedding FROM chunks WHERE dimensions = ?"
	args := []any{len(vector)}
	if sourceID != "" {
		query += " AND source_id = ?"
		args = append(args, sourceID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EINDEX, "failed to query chunks: %v", err)
	}
	defer rows.Close()

	var neighbors []ragdoc.Neighbor
	for rows.Next() {
		var c ragdoc.Chunk
		var meta string
		var blob []byte
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Content, &meta, &blob); err != nil {
			return nil, ragdoc.Errorf(ragdoc.EINDEX, "failed to scan chunk: %v", err)
		}

		var m map[string]string
		if err := json.Unmarshal([]byte(meta), &m); err != nil {
			return nil, ragdoc.Errorf(ragdoc.EINDEX, "invalid metadata for %s: %v", c.ID, err)
		}
		if c.Metadata, err = ragdoc.ParseChunkMetadata(m); err != nil {
			return nil, ragdoc.Errorf(ragdoc.EINDEX, "invalid metadata for %s: %v", c.ID, err)
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, ragdoc.Errorf(ragdoc.EINDEX, "invalid embedding for %s: %v", c.ID, err)
		}

		neighbors = append(neighbors, ragdoc.Neighbor{Chunk: &c, Distance: cosineDistance(vector, v)})
	}
	if err := rows.Err(); err != nil {
		return nil, ragdoc.Errorf(ragdoc.EINDEX, "failed to read chunks: %v", err)
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// DeleteBySource removes every chunk of the source.
func (s *VectorStore) DeleteBySource(ctx context.Context, sourceID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ?", sourceID); err != nil {
		return ragdoc.Errorf(ragdoc.EINDEX, "failed to delete chunks: %v", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, ragdoc.Errorf(ragdoc.EINDEX, "failed to count chunks: %v", err)
	}
	return n, nil
}
