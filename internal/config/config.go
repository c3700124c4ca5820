package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"localrag/internal/logging"
	"localrag/internal/workflow"
)

// BackendConfig holds connection details for the indexing backend.
type BackendConfig struct {
	URL         string `yaml:"url" koanf:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
	UploadField string `yaml:"upload_field" koanf:"upload_field"`
}

// Timeout returns the per-call HTTP timeout. Zero means unbounded.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// IntakeConfig configures which files may be staged.
type IntakeConfig struct {
	Accept []string `yaml:"accept" koanf:"accept"`
}

// QueryConfig configures the query screen.
type QueryConfig struct {
	SubmitKey string `yaml:"submit_key" koanf:"submit_key"`
}

// WorkflowConfig configures shared workflow state.
type WorkflowConfig struct {
	LateResponses string `yaml:"late_responses" koanf:"late_responses"`
}

// Policy parses LateResponses.
func (w WorkflowConfig) Policy() (workflow.LatePolicy, error) {
	return workflow.ParseLatePolicy(w.LateResponses)
}

// LogConfig configures the log sink.
type LogConfig struct {
	File  string `yaml:"file" koanf:"file"`
	Level string `yaml:"level" koanf:"level"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" koanf:"api_key_env"`
	Model       string `yaml:"model" koanf:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size" koanf:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type" koanf:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty" koanf:"openai"`
}

// OpenAIGeneratorConfig points the answer generator at an OpenAI-compatible
// chat endpoint.
type OpenAIGeneratorConfig struct {
	BaseURL     string `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" koanf:"api_key_env"`
	Model       string `yaml:"model" koanf:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
}

// GeneratorConfig selects how answers are written: extractive sentence
// selection or a chat model.
type GeneratorConfig struct {
	Type   string                 `yaml:"type" koanf:"type"`
	OpenAI *OpenAIGeneratorConfig `yaml:"openai,omitempty" koanf:"openai"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type" koanf:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty" koanf:"qdrant"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url" koanf:"url"`
	APIKey      string `yaml:"api_key" koanf:"api_key"`
	Collection  string `yaml:"collection" koanf:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
}

// DevServerConfig configures the development backend.
type DevServerConfig struct {
	Addr              string            `yaml:"addr" koanf:"addr"`
	TopK              int               `yaml:"top_k" koanf:"top_k"`
	SentencesPerChunk int               `yaml:"sentences_per_chunk" koanf:"sentences_per_chunk"`
	OverlapSentences  int               `yaml:"overlap_sentences" koanf:"overlap_sentences"`
	AnswerSentences   int               `yaml:"answer_sentences" koanf:"answer_sentences"`
	Embedder          EmbedderConfig    `yaml:"embedder" koanf:"embedder"`
	VectorStore       VectorStoreConfig `yaml:"vector_store" koanf:"vector_store"`
	Generator         GeneratorConfig   `yaml:"generator" koanf:"generator"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Backend   BackendConfig   `yaml:"backend" koanf:"backend"`
	Intake    IntakeConfig    `yaml:"intake" koanf:"intake"`
	Query     QueryConfig     `yaml:"query" koanf:"query"`
	Workflow  WorkflowConfig  `yaml:"workflow" koanf:"workflow"`
	Log       LogConfig       `yaml:"log" koanf:"log"`
	DevServer DevServerConfig `yaml:"devserver" koanf:"devserver"`
}

// ErrConfigExists is returned by WriteDefault when it would overwrite a file.
var ErrConfigExists = errors.New("config file already exists")

// Validate reports the first setting that would leave the client unusable.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return errors.New("backend.url must not be empty")
	}
	if c.Backend.TimeoutSecs < 0 {
		return fmt.Errorf("backend.timeout_secs must not be negative, got %d", c.Backend.TimeoutSecs)
	}
	if _, err := c.Workflow.Policy(); err != nil {
		return fmt.Errorf("workflow.late_responses: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if len(c.Intake.Accept) == 0 {
		return errors.New("intake.accept must list at least one extension")
	}
	switch c.DevServer.Embedder.Type {
	case "tfidf", "openai":
	default:
		return fmt.Errorf("devserver.embedder.type must be tfidf or openai, got %q", c.DevServer.Embedder.Type)
	}
	switch c.DevServer.Generator.Type {
	case "extractive", "openai":
	default:
		return fmt.Errorf("devserver.generator.type must be extractive or openai, got %q", c.DevServer.Generator.Type)
	}
	switch c.DevServer.VectorStore.Type {
	case "memory":
	case "qdrant":
		if q := c.DevServer.VectorStore.Qdrant; q == nil || q.URL == "" {
			return errors.New("devserver.vector_store.qdrant.url is required for the qdrant store")
		}
	default:
		return fmt.Errorf("devserver.vector_store.type must be memory or qdrant, got %q", c.DevServer.VectorStore.Type)
	}
	if c.DevServer.OverlapSentences < 0 || c.DevServer.OverlapSentences >= c.DevServer.SentencesPerChunk {
		return fmt.Errorf("devserver.overlap_sentences must be in [0, %d)", c.DevServer.SentencesPerChunk)
	}
	return nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteDefault writes the default config to path, or to the per-user location
// when path is empty. It refuses to overwrite unless force is set.
func WriteDefault(path string, force bool) (string, error) {
	if path == "" {
		p, err := DefaultUserConfigPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	return path, Save(path, Default())
}

// DefaultUserConfigPath is ~/.config/localrag/config.yaml.
func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "localrag", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Backend:  BackendConfig{URL: "http://localhost:8000", UploadField: "file"},
		Intake:   IntakeConfig{Accept: []string{".pdf", ".csv"}},
		Query:    QueryConfig{SubmitKey: "enter"},
		Workflow: WorkflowConfig{LateResponses: workflow.ApplyLate.String()},
		Log:      LogConfig{Level: "info"},
		DevServer: DevServerConfig{
			Addr:              ":8000",
			TopK:              10,
			SentencesPerChunk: 5,
			OverlapSentences:  1,
			AnswerSentences:   3,
			Embedder:          EmbedderConfig{Type: "tfidf"},
			VectorStore:       VectorStoreConfig{Type: "memory"},
			Generator:         GeneratorConfig{Type: "extractive"},
		},
	}
}

// applyConfigDefaults fills scalar settings a partial file left at zero.
// Lists are left alone so an explicit empty list still fails validation.
func applyConfigDefaults(cfg *AppConfig) {
	d := Default()
	if cfg.Backend.UploadField == "" {
		cfg.Backend.UploadField = d.Backend.UploadField
	}
	if cfg.Query.SubmitKey == "" {
		cfg.Query.SubmitKey = d.Query.SubmitKey
	}
	if cfg.Workflow.LateResponses == "" {
		cfg.Workflow.LateResponses = d.Workflow.LateResponses
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.DevServer.Addr == "" {
		cfg.DevServer.Addr = d.DevServer.Addr
	}
	if cfg.DevServer.TopK == 0 {
		cfg.DevServer.TopK = d.DevServer.TopK
	}
	if cfg.DevServer.SentencesPerChunk == 0 {
		cfg.DevServer.SentencesPerChunk = d.DevServer.SentencesPerChunk
	}
	if cfg.DevServer.AnswerSentences == 0 {
		cfg.DevServer.AnswerSentences = d.DevServer.AnswerSentences
	}
	if cfg.DevServer.Embedder.Type == "" {
		cfg.DevServer.Embedder.Type = d.DevServer.Embedder.Type
	}
	if cfg.DevServer.VectorStore.Type == "" {
		cfg.DevServer.VectorStore.Type = d.DevServer.VectorStore.Type
	}
	if cfg.DevServer.Generator.Type == "" {
		cfg.DevServer.Generator.Type = d.DevServer.Generator.Type
	}
	if cfg.DevServer.Embedder.Type == "openai" {
		if cfg.DevServer.Embedder.OpenAI == nil {
			cfg.DevServer.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.DevServer.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "http://localhost:11434/v1"
		}
		if o.Model == "" {
			o.Model = "mxbai-embed-large"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
	}
	if cfg.DevServer.Generator.Type == "openai" {
		if cfg.DevServer.Generator.OpenAI == nil {
			cfg.DevServer.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		g := cfg.DevServer.Generator.OpenAI
		if g.BaseURL == "" {
			g.BaseURL = "http://localhost:11434/v1"
		}
		if g.Model == "" {
			g.Model = "llama3.2"
		}
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 120
		}
	}
	if q := cfg.DevServer.VectorStore.Qdrant; q != nil {
		if q.Collection == "" {
			q.Collection = "localrag"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}
}
