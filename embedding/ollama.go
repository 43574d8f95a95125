package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// DefaultOllamaModel is a 768-dimensional local embedding model
const DefaultOllamaModel = "nomic-embed-text"

// OllamaEmbedder generates embeddings using a local Ollama server
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

// NewOllamaEmbedder connects to host, or to OLLAMA_HOST when host is empty
func NewOllamaEmbedder(host, model string) (*OllamaEmbedder, error) {
	client, err := NewOllamaClient(host)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaEmbedder{client: client, model: model}, nil
}

// NewOllamaClient builds an api client for host, falling back to the environment
func NewOllamaClient(host string) (*api.Client, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	return api.NewClient(hostURL, http.DefaultClient), nil
}

// Embed returns a unit-norm embedding of text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return withRetry(ctx, func(ctx context.Context) ([]float32, error) {
		resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
			Model:  e.model,
			Prompt: text,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding: %w", err)
		}

		vec := make([]float32, len(resp.Embedding))
		for i, v := range resp.Embedding {
			vec[i] = float32(v)
		}
		return vec, nil
	})
}
