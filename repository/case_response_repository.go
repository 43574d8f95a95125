package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"casebrief-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCaseNotFound is returned when no analysis is stored under a case id
var ErrCaseNotFound = errors.New("case not found")

// CaseResponseRepository persists analysis results in Postgres
type CaseResponseRepository struct {
	db *pgxpool.Pool
}

// NewCaseResponseRepository creates a new case response repository
func NewCaseResponseRepository(db *pgxpool.Pool) *CaseResponseRepository {
	return &CaseResponseRepository{db: db}
}

func encodeResult(result *models.AnalysisResult) ([]byte, error) {
	if result == nil {
		return nil, errors.New("analysis result is nil")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis result: %w", err)
	}
	return data, nil
}

func decodeResult(data []byte) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis result: %w", err)
	}
	return &result, nil
}

// Put stores the result under caseID, replacing any previous record
func (r *CaseResponseRepository) Put(ctx context.Context, caseID string, result *models.AnalysisResult) error {
	data, err := encodeResult(result)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO case_responses (case_id, response_data, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (case_id) DO UPDATE
		SET response_data = EXCLUDED.response_data,
			created_at = EXCLUDED.created_at`

	if _, err := r.db.Exec(ctx, query, caseID, string(data)); err != nil {
		return fmt.Errorf("failed to store case response: %w", err)
	}
	return nil
}

// GetRaw returns the stored serialized result exactly as written
func (r *CaseResponseRepository) GetRaw(ctx context.Context, caseID string) ([]byte, error) {
	var data string
	err := r.db.QueryRow(ctx,
		`SELECT response_data FROM case_responses WHERE case_id = $1`,
		caseID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to get case response: %w", err)
	}
	return []byte(data), nil
}

// Get returns the stored result for caseID or ErrCaseNotFound
func (r *CaseResponseRepository) Get(ctx context.Context, caseID string) (*models.AnalysisResult, error) {
	data, err := r.GetRaw(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return decodeResult(data)
}
