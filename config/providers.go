package config

import (
	"context"
	"errors"
	"fmt"

	"casebrief-backend/embedding"
	"casebrief-backend/llm"
	"casebrief-backend/service"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultOllamaGenerateModel is used when the llm provider is ollama and no model is set
const DefaultOllamaGenerateModel = "llama3.1"

var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is required for the gemini provider")

// Models holds the configured embedder and generator. Close releases the
// shared Gemini client when one was opened.
type Models struct {
	Embedder  service.Embedder
	Generator service.Generator

	gemini *genai.Client
}

// Close releases provider clients
func (m *Models) Close() error {
	if m.gemini != nil {
		return m.gemini.Close()
	}
	return nil
}

// NewModels builds the embedder and generator selected by the embedding and
// llm sections. A single Gemini client is shared when both use Gemini.
func (c *Config) NewModels(ctx context.Context, withGenerator bool) (*Models, error) {
	m := &Models{}

	geminiClient := func() (*genai.Client, error) {
		if m.gemini != nil {
			return m.gemini, nil
		}
		if c.GeminiAPIKey == "" {
			return nil, ErrMissingAPIKey
		}
		client, err := genai.NewClient(ctx, option.WithAPIKey(c.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		m.gemini = client
		return client, nil
	}

	switch c.Embedding.Provider {
	case ProviderOllama:
		emb, err := embedding.NewOllamaEmbedder(c.Ollama.Host, c.Embedding.Model)
		if err != nil {
			return nil, err
		}
		m.Embedder = emb
	default:
		client, err := geminiClient()
		if err != nil {
			return nil, err
		}
		m.Embedder = embedding.NewGeminiEmbedder(client, c.Embedding.Model)
	}

	if !withGenerator {
		return m, nil
	}

	switch c.LLM.Provider {
	case ProviderOllama:
		model := c.LLM.Model
		if model == "" {
			model = DefaultOllamaGenerateModel
		}
		gen, err := llm.NewOllamaGenerator(c.Ollama.Host, model, c.LLM.Temperature)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.Generator = gen
	default:
		client, err := geminiClient()
		if err != nil {
			m.Close()
			return nil, err
		}
		m.Generator = llm.NewGeminiGenerator(client, c.LLM.Model, c.LLM.Temperature)
	}

	return m, nil
}
