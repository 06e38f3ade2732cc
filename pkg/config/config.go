package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider       string  `yaml:"provider"` // "googleai" or "ollama"
		APIKey         string  `yaml:"api_key"`
		BaseURL        string  `yaml:"base_url"`
		Model          string  `yaml:"model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
		RequestTimeout int     `yaml:"request_timeout"` // seconds
	} `yaml:"llm"`

	Database struct {
		URL           string `yaml:"url"`
		TableName     string `yaml:"table_name"`
		MessagesTable string `yaml:"messages_table"`
		VectorDim     int    `yaml:"vector_dim"`
		BatchSize     int    `yaml:"batch_size"`
		SearchLimit   int    `yaml:"search_limit"`
	} `yaml:"database"`

	Loader struct {
		Language  string  `yaml:"language"`
		RateLimit float64 `yaml:"rate_limit"`
		Timeout   int     `yaml:"timeout"` // seconds
	} `yaml:"loader"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Chat struct {
		HistoryLimit int `yaml:"history_limit"`
		// RestrictToFilter rejects queries that carry no document id
		// filter. Off by default: an empty filter searches every document.
		RestrictToFilter       bool `yaml:"restrict_to_filter"`
		PersistPartialOnCancel bool `yaml:"persist_partial_on_cancel"`
	} `yaml:"chat"`

	Server struct {
		Port       string `yaml:"port"`
		CORSOrigin string `yaml:"cors_origin"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/tuber/config.yaml"),
			"/etc/tuber/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	applyDefaults(&config)
	mergeWithEnv(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "googleai"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "gemini-2.0-flash"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "embedding-001"
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.RequestTimeout == 0 {
		config.LLM.RequestTimeout = 60
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "embedded_documents"
	}
	if config.Database.MessagesTable == "" {
		config.Database.MessagesTable = "conversation_messages"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}
	if config.Database.SearchLimit == 0 {
		config.Database.SearchLimit = 5
	}

	if config.Loader.Language == "" {
		config.Loader.Language = "en"
	}
	if config.Loader.RateLimit == 0 {
		config.Loader.RateLimit = 2.0
	}
	if config.Loader.Timeout == 0 {
		config.Loader.Timeout = 30
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Chat.HistoryLimit == 0 {
		config.Chat.HistoryLimit = 14
	}

	if config.Server.Port == "" {
		config.Server.Port = "8000"
	}
	if config.Server.CORSOrigin == "" {
		config.Server.CORSOrigin = "http://localhost:5173"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
