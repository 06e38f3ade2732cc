package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "googleai"
  api_key: "test-key"
  model: "gemini-2.0-flash"
  max_tokens: 1000
  temperature: 0.5
  request_timeout: 30

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  messages_table: "test_messages"
  vector_dim: 768
  search_limit: 3

loader:
  language: "de"
  rate_limit: 1.5

processor:
  chunk_size: 500
  chunk_overlap: 100

chat:
  history_limit: 6
  restrict_to_filter: true

server:
  port: "9000"
  cors_origin: "http://localhost:3000"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "googleai", config.LLM.Provider)
	assert.Equal(t, "test-key", config.LLM.APIKey)
	assert.Equal(t, "gemini-2.0-flash", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_chunks", config.Database.TableName)
	assert.Equal(t, "test_messages", config.Database.MessagesTable)
	assert.Equal(t, 3, config.Database.SearchLimit)
	assert.Equal(t, "de", config.Loader.Language)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 6, config.Chat.HistoryLimit)
	assert.True(t, config.Chat.RestrictToFilter)
	assert.Equal(t, "9000", config.Server.Port)
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "googleai", config.LLM.Provider)
	assert.Equal(t, "embedding-001", config.LLM.EmbeddingModel)
	assert.Equal(t, 2000, config.LLM.MaxTokens)
	assert.Equal(t, "embedded_documents", config.Database.TableName)
	assert.Equal(t, "conversation_messages", config.Database.MessagesTable)
	assert.Equal(t, 768, config.Database.VectorDim)
	assert.Equal(t, 1000, config.Processor.ChunkSize)
	assert.Equal(t, 200, config.Processor.ChunkOverlap)
	assert.Equal(t, 14, config.Chat.HistoryLimit)
	assert.False(t, config.Chat.RestrictToFilter)
	assert.Equal(t, "8000", config.Server.Port)
}

func TestMergeWithEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("DATABASE_URL", "postgres://env-host:5432/env")
	t.Setenv("PORT", "7777")

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "env-key", config.LLM.APIKey)
	assert.Equal(t, "postgres://env-host:5432/env", config.Database.URL)
	assert.Equal(t, "7777", config.Server.Port)
}

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		config, _ := getDefaultConfig()
		config.LLM.APIKey = "key"
		return config
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "missing api key",
			mutate: func(c *Config) { c.LLM.APIKey = "" },
			field:  "llm.api_key",
		},
		{
			name:   "unknown provider",
			mutate: func(c *Config) { c.LLM.Provider = "anthropic" },
			field:  "llm.provider",
		},
		{
			name:   "max tokens out of range",
			mutate: func(c *Config) { c.LLM.MaxTokens = 100000 },
			field:  "llm.max_tokens",
		},
		{
			name:   "overlap not below chunk size",
			mutate: func(c *Config) { c.Processor.ChunkOverlap = c.Processor.ChunkSize },
			field:  "processor.chunk_overlap",
		},
		{
			name:   "negative history limit",
			mutate: func(c *Config) { c.Chat.HistoryLimit = -1 },
			field:  "chat.history_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)

			errs := config.Validate()
			if tt.field == "" {
				assert.Empty(t, errs)
				return
			}

			require.NotEmpty(t, errs)
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected error on %s, got %v", tt.field, errs)
		})
	}
}
