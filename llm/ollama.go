package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaGenerator completes prompts with a local Ollama model in JSON mode
type OllamaGenerator struct {
	client      *api.Client
	model       string
	temperature float32
}

// NewOllamaGenerator connects to host, or to OLLAMA_HOST when host is empty
func NewOllamaGenerator(host, model string, temperature float32) (*OllamaGenerator, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	return &OllamaGenerator{
		client:      api.NewClient(hostURL, http.DefaultClient),
		model:       model,
		temperature: temperature,
	}, nil
}

// Complete streams the response and returns the accumulated text
func (o *OllamaGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	req := api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Format: json.RawMessage(`"json"`),
		Options: map[string]any{
			"temperature": o.temperature,
		},
	}

	var b strings.Builder
	err := o.client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := b.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
