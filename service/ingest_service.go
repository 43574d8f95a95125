package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"casebrief-backend/models"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	ErrIngestNotConfigured = errors.New("ingest service requires a source, chunker, embedder and index")
	ErrMalformedRecord     = errors.New("malformed case record")
)

// FileError reports a case file that could not be ingested. It never aborts a run.
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// IngestReport summarizes one ingestion run
type IngestReport struct {
	FilesProcessed   int
	FilesFailed      int
	DecisionsSkipped int
	ChunksWritten    int
	Failures         []*FileError
}

// IngestService reads case records, chunks and embeds their decisions, and
// writes the chunks to a vector index
type IngestService struct {
	source   CaseSource
	chunker  TextChunker
	embedder Embedder
	index    VectorIndex
	limiter  *rate.Limiter
	replace  bool
	logger   *slog.Logger
	newID    func() string
}

// IngestServiceOption is a functional option for IngestService
type IngestServiceOption func(*IngestService)

// IngestWithSource sets the case-record source
func IngestWithSource(src CaseSource) IngestServiceOption {
	return func(s *IngestService) {
		s.source = src
	}
}

// IngestWithChunker sets the chunker
func IngestWithChunker(c TextChunker) IngestServiceOption {
	return func(s *IngestService) {
		s.chunker = c
	}
}

// IngestWithEmbedder sets the embedder
func IngestWithEmbedder(e Embedder) IngestServiceOption {
	return func(s *IngestService) {
		s.embedder = e
	}
}

// IngestWithIndex sets the destination index
func IngestWithIndex(idx VectorIndex) IngestServiceOption {
	return func(s *IngestService) {
		s.index = idx
	}
}

// IngestWithRateLimit paces embedding calls; rps <= 0 disables pacing
func IngestWithRateLimit(rps float64) IngestServiceOption {
	return func(s *IngestService) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			s.limiter = nil
		}
	}
}

// IngestWithReplaceExisting drops a file's previously indexed chunks before
// writing new ones, when the index supports it
func IngestWithReplaceExisting(replace bool) IngestServiceOption {
	return func(s *IngestService) {
		s.replace = replace
	}
}

// IngestWithLogger sets the logger
func IngestWithLogger(l *slog.Logger) IngestServiceOption {
	return func(s *IngestService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewIngestService creates a new ingest service
func NewIngestService(opts ...IngestServiceOption) *IngestService {
	s := &IngestService{
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest processes every case record in the source in numeric filename order.
// Bad files are logged and counted; only listing failures and cancellation
// return an error.
func (s *IngestService) Ingest(ctx context.Context) (*IngestReport, error) {
	if s.source == nil || s.chunker == nil || s.embedder == nil || s.index == nil {
		return nil, ErrIngestNotConfigured
	}

	names, err := s.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list case records: %w", err)
	}
	names = SortCaseFiles(names)

	report := &IngestReport{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		s.logger.Info("processing case file", "file", name)
		written, skipped, err := s.IngestFile(ctx, name)
		report.DecisionsSkipped += skipped
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			fe := &FileError{File: name, Err: err}
			s.logger.Error("failed to ingest case file", "file", name, "error", err)
			report.FilesFailed++
			report.Failures = append(report.Failures, fe)
			continue
		}

		report.FilesProcessed++
		report.ChunksWritten += written
		s.logger.Info("ingested case file", "file", name, "chunks", written)
	}

	return report, nil
}

// IngestFile ingests one case record and returns the number of chunks written
// and decisions skipped. Nothing is written for a file that fails part way.
func (s *IngestService) IngestFile(ctx context.Context, name string) (written, skipped int, err error) {
	doc, err := s.loadRecord(ctx, name)
	if err != nil {
		return 0, 0, err
	}

	var entries []models.IndexedVector
	for di := range doc.Decisions {
		decision := &doc.Decisions[di]
		if strings.TrimSpace(decision.Content) == "" {
			s.logger.Warn("skipping decision without content", "file", name, "decision", decision.Title)
			skipped++
			continue
		}

		for ci, text := range s.chunker.Chunk(decision.Content) {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return 0, skipped, err
				}
			}

			vec, err := s.embedder.Embed(ctx, text)
			if err != nil {
				return 0, skipped, fmt.Errorf("failed to embed chunk %d of %q: %w", ci, decision.Title, err)
			}

			entries = append(entries, models.IndexedVector{
				ID:       s.newID(),
				Vector:   vec,
				Document: text,
				Metadata: models.NewChunkMetadata(doc, decision, ci, name),
			})
		}
	}

	if s.replace {
		if deleter, ok := s.index.(SourceDeleter); ok {
			removed, err := deleter.DeleteBySource(ctx, name)
			if err != nil {
				return 0, skipped, err
			}
			if removed > 0 {
				s.logger.Info("replaced previously indexed chunks", "file", name, "removed", removed)
			}
		}
	}

	if err := s.index.Add(ctx, entries...); err != nil {
		return 0, skipped, fmt.Errorf("failed to write chunks: %w", err)
	}
	return len(entries), skipped, nil
}

// loadRecord downloads and decodes a case record, flagging unknown fields
func (s *IngestService) loadRecord(ctx context.Context, name string) (*models.CaseDocument, error) {
	rc, err := s.source.Download(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if unknown := unknownFields(fields); len(unknown) > 0 {
		s.logger.Warn("case record has unknown fields", "file", name, "fields", unknown)
	}

	var doc models.CaseDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if strings.TrimSpace(doc.Identifier) == "" {
		return nil, fmt.Errorf("%w: missing Identifier", ErrMalformedRecord)
	}
	return &doc, nil
}

func unknownFields(fields map[string]json.RawMessage) []string {
	var unknown []string
	for k := range fields {
		if !models.CaseDocumentFields[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

var fileNumber = regexp.MustCompile(`\d+`)

// SortCaseFiles orders names by the first number in their base name. Names
// without a number sort last; ties fall back to the name itself.
func SortCaseFiles(names []string) []string {
	type keyed struct {
		name string
		num  int
		has  bool
	}

	keys := make([]keyed, len(names))
	for i, n := range names {
		k := keyed{name: n}
		if m := fileNumber.FindString(path.Base(n)); m != "" {
			if v, err := strconv.Atoi(m); err == nil {
				k.num, k.has = v, true
			}
		}
		keys[i] = k
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.has != b.has {
			return a.has
		}
		if a.has && a.num != b.num {
			return a.num < b.num
		}
		return a.name < b.name
	})

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.name
	}
	return out
}
