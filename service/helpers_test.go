package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"

	"casebrief-backend/embedding"
	"casebrief-backend/models"
	"casebrief-backend/storage"
)

const hashDims = 1024

// hashEmbedder is a deterministic bag-of-words embedder
type hashEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  map[string]error
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h.mu.Lock()
	h.calls++
	err := h.fail[text]
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vec := make([]float32, hashDims)
	for _, tok := range tokenize(text) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		vec[f.Sum32()%hashDims]++
	}
	return embedding.Normalize(vec), nil
}

func (h *hashEmbedder) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// stubEmbedder returns fixed vectors for known texts and hashes everything else
type stubEmbedder struct {
	vectors  map[string][]float32
	fallback *hashEmbedder
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return embedding.Normalize(append([]float32(nil), v...)), nil
	}
	return s.fallback.Embed(ctx, text)
}

// scriptedGenerator replays a canned response and records the prompt
type scriptedGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	block    bool
	prompts  []string
}

func (g *scriptedGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.response, g.err
}

func (g *scriptedGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// memorySource is an in-memory case-record source
type memorySource struct {
	files map[string]string
}

func (m *memorySource) List(context.Context) ([]string, error) {
	names := make([]string, 0, len(m.files))
	for n := range m.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memorySource) Download(_ context.Context, name string) (io.ReadCloser, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

// countingIndex records the n passed to Query
type countingIndex struct {
	VectorIndex
	mu    sync.Mutex
	asked []int
}

func (c *countingIndex) Query(ctx context.Context, vector []float32, n int) ([]models.IndexHit, error) {
	c.mu.Lock()
	c.asked = append(c.asked, n)
	c.mu.Unlock()
	return c.VectorIndex.Query(ctx, vector, n)
}

// failingStore rejects every write
type failingStore struct{ ResponseStore }

func (failingStore) Put(context.Context, string, *models.AnalysisResult) error {
	return errors.New("disk full")
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
