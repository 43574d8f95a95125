package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"casebrief-backend/models"

	"github.com/google/uuid"
)

// MaxPromptLength is the longest user prompt accepted, in characters
const MaxPromptLength = 1000

var (
	ErrInvalidPrompt         = errors.New("invalid prompt")
	ErrAnalysisNotConfigured = errors.New("analysis service requires a retriever, synthesizer and response store")
)

// Retriever produces ranked candidates for a query
type Retriever interface {
	Retrieve(ctx context.Context, req RetrieveRequest) ([]models.RetrievalCandidate, error)
}

// Synthesizer turns candidates into validated arguments
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, candidates []models.RetrievalCandidate) SynthesisResult
}

// AnalysisService runs retrieval and synthesis for one user query and
// persists the result under a fresh case id
type AnalysisService struct {
	retriever   Retriever
	synthesizer Synthesizer
	store       ResponseStore
	topK        int
	logger      *slog.Logger
	newCaseID   func() string
}

// AnalysisServiceOption is a functional option for AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// AnalysisWithRetriever sets the retriever
func AnalysisWithRetriever(r Retriever) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.retriever = r
	}
}

// AnalysisWithSynthesizer sets the synthesizer
func AnalysisWithSynthesizer(syn Synthesizer) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.synthesizer = syn
	}
}

// AnalysisWithResponseStore sets where results are persisted
func AnalysisWithResponseStore(store ResponseStore) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.store = store
	}
}

// AnalysisWithTopK sets how many candidates feed the synthesizer
func AnalysisWithTopK(k int) AnalysisServiceOption {
	return func(s *AnalysisService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// AnalysisWithLogger sets the logger
func AnalysisWithLogger(l *slog.Logger) AnalysisServiceOption {
	return func(s *AnalysisService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(opts ...AnalysisServiceOption) *AnalysisService {
	s := &AnalysisService{
		topK:      DefaultTopK,
		logger:    slog.Default(),
		newCaseID: NewCaseID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewCaseID returns an id of the form CASE-1A2B3C4D
func NewCaseID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CASE-" + strings.ToUpper(hex[:8])
}

// AnalyzeRequest represents a request to analyze a user's case
type AnalyzeRequest struct {
	UserPrompt string
	Claimant   string
	Respondent string
	CaseYear   string
}

// ValidatePrompt checks the prompt is present and within MaxPromptLength
func ValidatePrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidPrompt)
	}
	if utf8.RuneCountInString(trimmed) > MaxPromptLength {
		return fmt.Errorf("%w: prompt exceeds %d characters", ErrInvalidPrompt, MaxPromptLength)
	}
	return nil
}

// Analyze retrieves evidence, synthesizes arguments and stores the result.
// Retrieval failures degrade to an empty analysis; a storage failure is returned.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*models.AnalysisResult, error) {
	if s.retriever == nil || s.synthesizer == nil || s.store == nil {
		return nil, ErrAnalysisNotConfigured
	}
	if err := ValidatePrompt(req.UserPrompt); err != nil {
		return nil, err
	}

	prompt := strings.TrimSpace(req.UserPrompt)
	candidates, err := s.retriever.Retrieve(ctx, RetrieveRequest{
		Query:      prompt,
		TopK:       s.topK,
		Claimant:   req.Claimant,
		Respondent: req.Respondent,
		CaseYear:   req.CaseYear,
	})
	if err != nil {
		s.logger.Error("retrieval failed", "error", err)
		candidates = nil
	}

	synth := s.synthesizer.Synthesize(ctx, prompt, candidates)

	result := &models.AnalysisResult{
		CaseID:     s.newCaseID(),
		Strengths:  synth.Strengths,
		Weaknesses: synth.Weaknesses,
	}
	if result.Strengths == nil {
		result.Strengths = []models.Argument{}
	}
	if result.Weaknesses == nil {
		result.Weaknesses = []models.Argument{}
	}

	if err := s.store.Put(ctx, result.CaseID, result); err != nil {
		return nil, fmt.Errorf("failed to store analysis: %w", err)
	}

	s.logger.Info("analysis stored",
		"case_id", result.CaseID,
		"candidates", len(candidates),
		"strengths", len(result.Strengths),
		"weaknesses", len(result.Weaknesses),
	)
	return result, nil
}

// GetStored returns the serialized analysis exactly as it was stored
func (s *AnalysisService) GetStored(ctx context.Context, caseID string) ([]byte, error) {
	if s.store == nil {
		return nil, ErrAnalysisNotConfigured
	}
	return s.store.GetRaw(ctx, caseID)
}
