package service

import (
	"context"
	"io"

	"casebrief-backend/models"
)

// Embedder maps text to a unit-norm vector. Ingestion and queries must use the same model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores embedded chunks and answers nearest-neighbour queries.
// Query results are ordered by ascending distance.
type VectorIndex interface {
	Add(ctx context.Context, entries ...models.IndexedVector) error
	Query(ctx context.Context, vector []float32, n int) ([]models.IndexHit, error)
	Count(ctx context.Context) (int, error)
}

// SourceDeleter is implemented by indexes that can drop the chunks of one case file
type SourceDeleter interface {
	DeleteBySource(ctx context.Context, sourceFile string) (int64, error)
}

// Generator completes a prompt with a generative text model
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CaseSource reads raw case records by name
type CaseSource interface {
	List(ctx context.Context) ([]string, error)
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}

// ResponseStore persists analysis results keyed by case id
type ResponseStore interface {
	Put(ctx context.Context, caseID string, result *models.AnalysisResult) error
	Get(ctx context.Context, caseID string) (*models.AnalysisResult, error)
	GetRaw(ctx context.Context, caseID string) ([]byte, error)
}

// TextChunker splits decision text into chunks
type TextChunker interface {
	Chunk(text string) []string
}
