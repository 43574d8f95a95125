package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned when the window parameters cannot make progress
var ErrInvalidConfig = errors.New("invalid chunking configuration")

const (
	defaultShrinkStep = 10
	defaultMinWords   = 10
)

// Tokenizer measures text in the embedding model's tokens
type Tokenizer interface {
	CountTokens(text string) int
}

// Chunker splits decision text into overlapping word windows.
//
// Without a tokenizer the window is measured in words only. With a tokenizer,
// each window is additionally trimmed from its tail, shrinkStep words at a time,
// until its token count fits maxTokens or it reaches minWords. The next window
// starts overlap words before the end of the trimmed one, so trimming yields
// more chunks but never skips a word.
type Chunker struct {
	maxTokens  int
	overlap    int
	tokenizer  Tokenizer
	shrinkStep int
	minWords   int
}

// Option is a functional option for Chunker
type Option func(*Chunker)

// WithTokenizer enables token-aware window trimming
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chunker) {
		c.tokenizer = t
	}
}

// WithShrinkStep sets how many words are dropped per trimming round
func WithShrinkStep(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.shrinkStep = n
		}
	}
}

// WithMinWords sets the smallest window trimming may produce
func WithMinWords(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.minWords = n
		}
	}
}

// New creates a chunker with a window of maxTokens words, consecutive windows sharing overlap words
func New(maxTokens, overlap int, opts ...Option) (*Chunker, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: max_tokens must be > 0, got %d", ErrInvalidConfig, maxTokens)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be >= 0, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= maxTokens {
		return nil, fmt.Errorf("%w: overlap (%d) must be smaller than max_tokens (%d)", ErrInvalidConfig, overlap, maxTokens)
	}

	c := &Chunker{
		maxTokens:  maxTokens,
		overlap:    overlap,
		shrinkStep: defaultShrinkStep,
		minWords:   defaultMinWords,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Chunk is a convenience wrapper for a word-count-only chunker
func Chunk(text string, maxTokens, overlap int) ([]string, error) {
	c, err := New(maxTokens, overlap)
	if err != nil {
		return nil, err
	}
	return c.Chunk(text), nil
}

// MaxTokens returns the configured window size
func (c *Chunker) MaxTokens() int { return c.maxTokens }

// Overlap returns the configured overlap
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into windows. Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, len(words)/(c.maxTokens-c.overlap)+1)
	for start := 0; start < len(words); {
		end := start + c.maxTokens
		if end > len(words) {
			end = len(words)
		}

		window := words[start:end]
		if c.tokenizer != nil {
			window = c.fit(window)
		}
		chunks = append(chunks, strings.Join(window, " "))

		// stop once a window has reached the last word
		if start+len(window) == len(words) {
			break
		}
		start += max(len(window)-c.overlap, 1)
	}
	return chunks
}

// fit trims the window until the tokenizer says it fits
func (c *Chunker) fit(window []string) []string {
	for len(window) > c.minWords && c.tokenizer.CountTokens(strings.Join(window, " ")) > c.maxTokens {
		cut := c.shrinkStep
		if len(window)-cut < c.minWords {
			cut = len(window) - c.minWords
		}
		window = window[:len(window)-cut]
	}
	return window
}
