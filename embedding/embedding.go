package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	maxRetries     = 3
	requestTimeout = 30 * time.Second
)

var initialBackoff = 1 * time.Second

var (
	ErrEmptyText      = errors.New("cannot embed empty text")
	ErrEmptyEmbedding = errors.New("model returned an empty embedding")
)

// Normalize scales v to unit length in place. A zero vector is left unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// withRetry runs fn up to maxRetries times with exponential backoff.
// Each attempt gets its own timeout; the parent context aborts the loop.
func withRetry(ctx context.Context, fn func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		vec, err := fn(attemptCtx)
		cancel()
		if err == nil {
			if len(vec) == 0 {
				return nil, ErrEmptyEmbedding
			}
			return Normalize(vec), nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to generate embedding after %d attempts: %w", maxRetries, lastErr)
}
