package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"casebrief-backend/models"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopK        = 10
	DefaultFanOut      = 10
	DefaultConcurrency = 4
)

var ErrRetrievalNotConfigured = errors.New("retrieval service requires an embedder and a vector index")

// RetrievalService runs the two-stage retrieval: a wide nearest-neighbour pull
// followed by optional metadata rescoring
type RetrievalService struct {
	embedder    Embedder
	index       VectorIndex
	source      CaseSource
	weights     Weights
	fanOut      int
	concurrency int
	logger      *slog.Logger
}

// RetrievalServiceOption is a functional option for RetrievalService
type RetrievalServiceOption func(*RetrievalService)

// RetrievalWithEmbedder sets the query embedder
func RetrievalWithEmbedder(e Embedder) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.embedder = e
	}
}

// RetrievalWithIndex sets the vector index
func RetrievalWithIndex(idx VectorIndex) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.index = idx
	}
}

// RetrievalWithCaseSource sets where full case records are loaded from
func RetrievalWithCaseSource(src CaseSource) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.source = src
	}
}

// RetrievalWithWeights sets the rescoring blend
func RetrievalWithWeights(w Weights) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.weights = w
	}
}

// RetrievalWithFanOut sets how many candidates per requested result stage 1 pulls
func RetrievalWithFanOut(n int) RetrievalServiceOption {
	return func(s *RetrievalService) {
		if n > 0 {
			s.fanOut = n
		}
	}
}

// RetrievalWithConcurrency bounds parallel embedding and file reads
func RetrievalWithConcurrency(n int) RetrievalServiceOption {
	return func(s *RetrievalService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// RetrievalWithLogger sets the logger
func RetrievalWithLogger(l *slog.Logger) RetrievalServiceOption {
	return func(s *RetrievalService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRetrievalService creates a new retrieval service
func NewRetrievalService(opts ...RetrievalServiceOption) *RetrievalService {
	s := &RetrievalService{
		weights:     DefaultWeights,
		fanOut:      DefaultFanOut,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RetrieveRequest represents one retrieval query. The party and year fields
// are optional; supplying any of them enables metadata rescoring.
type RetrieveRequest struct {
	Query      string
	TopK       int
	Claimant   string
	Respondent string
	CaseYear   string
}

func (r RetrieveRequest) hasMetadata() bool {
	return strings.TrimSpace(r.Claimant) != "" ||
		strings.TrimSpace(r.Respondent) != "" ||
		strings.TrimSpace(r.CaseYear) != ""
}

// Retrieve returns at most TopK candidates, best first. An empty index yields
// an empty result, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, req RetrieveRequest) ([]models.RetrievalCandidate, error) {
	if s.embedder == nil || s.index == nil {
		return nil, ErrRetrievalNotConfigured
	}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	count, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count index: %w", err)
	}
	if count == 0 {
		return []models.RetrievalCandidate{}, nil
	}

	queryVec, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	pool := topK * s.fanOut
	if pool > count {
		pool = count
	}
	hits, err := s.index.Query(ctx, queryVec, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	candidates := make([]models.RetrievalCandidate, len(hits))
	for i, hit := range hits {
		c := models.RetrievalCandidate{
			Text:     RepairText(hit.Document),
			Metadata: hit.Metadata,
			Distance: hit.Distance,
		}
		repairMetadata(&c.Metadata)
		c.Score = c.SemanticSimilarity()
		candidates[i] = c
	}

	if req.hasMetadata() {
		candidates = s.rescore(ctx, req, candidates)
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	if s.source != nil {
		s.attachCases(ctx, candidates)
	}

	return candidates, nil
}

// rescore blends metadata similarity into each candidate's score and re-sorts.
// If the query metadata cannot be embedded, semantic order is kept.
func (s *RetrievalService) rescore(ctx context.Context, req RetrieveRequest, candidates []models.RetrievalCandidate) []models.RetrievalCandidate {
	fields := metadataFields{
		claimant:   strings.TrimSpace(req.Claimant) != "",
		respondent: strings.TrimSpace(req.Respondent) != "",
		year:       strings.TrimSpace(req.CaseYear) != "",
	}

	queryMeta := describe(fields, strings.TrimSpace(req.Claimant), strings.TrimSpace(req.Respondent), strings.TrimSpace(req.CaseYear))
	queryVec, err := s.embedder.Embed(ctx, queryMeta)
	if err != nil {
		s.logger.Warn("metadata rescoring skipped", "error", err)
		return candidates
	}

	// many chunks share one case, so embed each distinct description once
	descriptions := make([]string, len(candidates))
	var distinct []string
	seen := make(map[string]bool)
	for i, c := range candidates {
		descriptions[i] = describeCandidate(fields, c.Metadata)
		if d := descriptions[i]; d != "" && !seen[d] {
			seen[d] = true
			distinct = append(distinct, d)
		}
	}

	var mu sync.Mutex
	unique := make(map[string][]float32, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, text := range distinct {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, text)
			if err != nil {
				s.logger.Warn("candidate metadata embedding failed", "description", text, "error", err)
				return nil
			}
			mu.Lock()
			unique[text] = vec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for i := range candidates {
		var meta float64
		if vec := unique[descriptions[i]]; vec != nil {
			meta = CosineSimilarity(queryVec, vec)
		}
		candidates[i].Score = Blend(candidates[i].SemanticSimilarity(), meta, s.weights)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

type metadataFields struct {
	claimant, respondent, year bool
}

// describe renders the metadata sentence used on both sides of rescoring
func describe(fields metadataFields, claimant, respondent, year string) string {
	var parts []string
	if fields.claimant && claimant != "" {
		parts = append(parts, "Claimant: "+claimant+".")
	}
	if fields.respondent && respondent != "" {
		parts = append(parts, "Respondent: "+respondent+".")
	}
	if fields.year && year != "" {
		parts = append(parts, "Year: "+year+".")
	}
	return strings.Join(parts, " ")
}

var yearPattern = regexp.MustCompile(`\b(1[89]|20)\d{2}\b`)

// describeCandidate builds the candidate-side sentence from party nationalities
// (claimant first, respondent second) and the decision year
func describeCandidate(fields metadataFields, m models.ChunkMetadata) string {
	parties := models.SplitList(m.PartyNationalities)
	var claimant, respondent string
	if len(parties) > 0 {
		claimant = parties[0]
	}
	if len(parties) > 1 {
		respondent = parties[1]
	}
	year := yearPattern.FindString(m.DecisionDate)
	return describe(fields, claimant, respondent, year)
}

// attachCases loads each referenced case record once and attaches it to every
// candidate that cites it. Failures mark the candidate instead of aborting.
func (s *RetrievalService) attachCases(ctx context.Context, candidates []models.RetrievalCandidate) {
	type loaded struct {
		doc *models.CaseDocument
		err error
	}

	files := make(map[string]*loaded)
	for _, c := range candidates {
		if c.Metadata.SourceFile != "" {
			files[c.Metadata.SourceFile] = &loaded{}
		}
	}
	if len(files) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for name, slot := range files {
		g.Go(func() error {
			slot.doc, slot.err = readCaseRecord(gctx, s.source, name)
			return nil
		})
	}
	_ = g.Wait()

	for i := range candidates {
		slot, ok := files[candidates[i].Metadata.SourceFile]
		if !ok {
			continue
		}
		if slot.err != nil {
			s.logger.Warn("failed to load case record", "file", candidates[i].Metadata.SourceFile, "error", slot.err)
			candidates[i].CaseError = slot.err.Error()
			continue
		}
		candidates[i].Case = slot.doc
	}
}

// readCaseRecord downloads and decodes one case record
func readCaseRecord(ctx context.Context, src CaseSource, name string) (*models.CaseDocument, error) {
	rc, err := src.Download(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	var doc models.CaseDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return &doc, nil
}
