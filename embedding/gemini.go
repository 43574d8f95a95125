package embedding

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// DefaultGeminiModel produces 768-dimensional vectors
const DefaultGeminiModel = "text-embedding-004"

// GeminiEmbedder embeds text with a Gemini embedding model
type GeminiEmbedder struct {
	model *genai.EmbeddingModel
}

// NewGeminiEmbedder wraps an existing client; the caller owns the client lifecycle
func NewGeminiEmbedder(client *genai.Client, modelName string) *GeminiEmbedder {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	model := client.EmbeddingModel(modelName)
	model.TaskType = genai.TaskTypeSemanticSimilarity
	return &GeminiEmbedder{model: model}
}

// Embed returns a unit-norm embedding of text
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return withRetry(ctx, func(ctx context.Context) ([]float32, error) {
		res, err := e.model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if res == nil || res.Embedding == nil {
			return nil, ErrEmptyEmbedding
		}
		// copy so normalisation never touches the response buffer
		vec := make([]float32, len(res.Embedding.Values))
		copy(vec, res.Embedding.Values)
		return vec, nil
	})
}
