package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"casebrief-backend/chunker"
	"casebrief-backend/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DATABASE_URL", "GEMINI_API_KEY", "PORT", "STORAGE_TYPE", "STORAGE_LOCAL_PATH",
	"AWS_S3_BUCKET", "AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 500, cfg.Chunking.MaxTokens)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 60*time.Second, cfg.Synthesis.Timeout)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: "9090"
storage:
  type: s3
  s3_bucket: arbitration-cases
  s3_prefix: records/
chunking:
  max_tokens: 300
  overlap: 50
  token_aware: true
retrieval:
  top_k: 5
  semantic_weight: 0.6
  metadata_weight: 0.4
synthesis:
  timeout: 45s
ingest:
  requests_per_second: 2.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 300, cfg.Chunking.MaxTokens)
	assert.True(t, cfg.Chunking.TokenAware)
	assert.Equal(t, "cl100k_base", cfg.Chunking.Encoding)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 10, cfg.Retrieval.FanOut)
	assert.InDelta(t, 0.4, cfg.Weights().Metadata, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.Synthesis.Timeout)
	assert.InDelta(t, 2.5, cfg.Ingest.RequestsPerSecond, 1e-9)

	sc := cfg.StorageSettings()
	assert.Equal(t, storage.StorageTypeS3, sc.Type)
	assert.Equal(t, "arbitration-cases", sc.S3Bucket)
	assert.Equal(t, "records/", sc.S3Prefix)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  port: \"9090\"\ndatabase:\n  url: postgres://file\n")
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "secret", cfg.GeminiAPIKey)
	assert.Equal(t, "AKIA", cfg.StorageSettings().AWSAccessKey)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "chunking: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantCfg bool
	}{
		{"overlap equals max", func(c *Config) { c.Chunking.Overlap = c.Chunking.MaxTokens }, true},
		{"overlap above max", func(c *Config) { c.Chunking.Overlap = 600 }, true},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }, false},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, false},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, false},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "openai" }, false},
		{"zero dimension", func(c *Config) { c.Database.Dimension = 0 }, false},
		{"zero weights", func(c *Config) { c.Retrieval.SemanticWeight, c.Retrieval.MetadataWeight = 0, 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.wantCfg, errors.Is(err, chunker.ErrInvalidConfig))
		})
	}
}

func TestNewChunker(t *testing.T) {
	cfg := Default()
	cfg.Chunking.MaxTokens = 20
	cfg.Chunking.Overlap = 5

	c, err := cfg.NewChunker()
	require.NoError(t, err)
	assert.Equal(t, 20, c.MaxTokens())
	assert.Equal(t, 5, c.Overlap())
}
