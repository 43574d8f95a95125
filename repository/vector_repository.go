package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"casebrief-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const (
	// pgvector's hnsw.ef_search default and upper bound
	minEfSearch = 40
	maxEfSearch = 1000
)

const nearestChunksQuery = `
	SELECT
		id::text,
		document,
		metadata,
		embedding <=> $1::vector AS distance
	FROM case_chunks
	ORDER BY embedding <=> $1::vector, id
	LIMIT $2`

// efSearchFor sizes the HNSW candidate list so an index scan can return n rows
func efSearchFor(n int) int {
	return min(max(n, minEfSearch), maxEfSearch)
}

// VectorRepository is a pgvector-backed vector index over case chunks
type VectorRepository struct {
	db        *pgxpool.Pool
	dimension int
}

// NewVectorRepository creates a new vector repository. A dimension of 0 disables the length check.
func NewVectorRepository(db *pgxpool.Pool, dimension int) *VectorRepository {
	return &VectorRepository{db: db, dimension: dimension}
}

func (r *VectorRepository) checkDimension(vector []float32) error {
	if r.dimension > 0 && len(vector) != r.dimension {
		return fmt.Errorf("embedding must be %d dimensions, got %d", r.dimension, len(vector))
	}
	return nil
}

// Add inserts the entries in a single transaction
func (r *VectorRepository) Add(ctx context.Context, entries ...models.IndexedVector) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO case_chunks (id, document, metadata, source_file, embedding)
		VALUES ($1, $2, $3, $4, $5::vector)`

	for _, e := range entries {
		if err := r.checkDimension(e.Vector); err != nil {
			return err
		}
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return fmt.Errorf("invalid chunk id %q: %w", e.ID, err)
		}
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		if _, err := tx.Exec(ctx, query,
			id,
			e.Document,
			meta,
			e.Metadata.SourceFile,
			pgvector.NewVector(e.Vector),
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// Query returns the n nearest chunks by cosine distance, closest first.
// Pools larger than pgvector's ef_search ceiling come back truncated to it.
func (r *VectorRepository) Query(ctx context.Context, vector []float32, n int) ([]models.IndexHit, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := r.checkDimension(vector); err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// an HNSW scan returns at most ef_search rows
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearchFor(n))); err != nil {
		return nil, fmt.Errorf("failed to set hnsw.ef_search: %w", err)
	}

	rows, err := tx.Query(ctx, nearestChunksQuery, pgvector.NewVector(vector), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query case chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.IndexHit
	for rows.Next() {
		var (
			hit  models.IndexHit
			meta []byte
		)
		if err := rows.Scan(&hit.ID, &hit.Document, &meta, &hit.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan case chunk: %w", err)
		}
		if err := json.Unmarshal(meta, &hit.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for chunk %s: %w", hit.ID, err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating case chunks: %w", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit query: %w", err)
	}
	return hits, nil
}

// Count returns the number of indexed chunks
func (r *VectorRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM case_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count case chunks: %w", err)
	}
	return n, nil
}

// Clear removes every indexed chunk
func (r *VectorRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `TRUNCATE case_chunks`); err != nil {
		return fmt.Errorf("failed to clear case chunks: %w", err)
	}
	return nil
}

// DeleteBySource removes the chunks ingested from one case file
func (r *VectorRepository) DeleteBySource(ctx context.Context, sourceFile string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM case_chunks WHERE source_file = $1`, sourceFile)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %s: %w", sourceFile, err)
	}
	return tag.RowsAffected(), nil
}
