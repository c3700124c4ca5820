// Package openai embeds text through an OpenAI-compatible /embeddings
// endpoint. Ollama serves one at http://localhost:11434/v1.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"localrag/internal/logging"
	"localrag/internal/retrieval"
)

// Defaults target a local Ollama server.
const (
	DefaultBaseURL   = "http://localhost:11434/v1"
	DefaultModel     = "mxbai-embed-large"
	DefaultBatchSize = 32
	DefaultTimeout   = 30 * time.Second
)

var ErrNoEmbedding = errors.New("no embedding returned")

// Config configures the embeddings client. The API key is read from the
// environment variable named by APIKeyEnv.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	BatchSize  int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is an OpenAI-compatible embeddings client. Prepare embeds the
// corpus in batches and caches the vectors so Embed on a corpus text does not
// call the server again.
type Client struct {
	embedder  embeddings.Embedder
	model     string
	batchSize int
	timeout   time.Duration
	log       *slog.Logger

	mu        sync.RWMutex
	dimension int
	cache     map[string][]float64
}

var _ retrieval.Embedder = (*Client)(nil)

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	// local OpenAI-compatible servers ignore the token
	token := "none"
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			token = key
		}
	}

	llm, err := openai.New(
		openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(hc),
	)
	if err != nil {
		return nil, fmt.Errorf("create embeddings client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Client{
		embedder:  embedder,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		log:       logging.OrDiscard(cfg.Logger).With("component", "openai-embedder"),
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension is known after the first successful embedding.
func (c *Client) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// Prepare embeds corpus and replaces the cache.
func (c *Client) Prepare(corpus []string) error {
	vecs, err := c.embed(corpus)
	if err != nil {
		return err
	}
	cache := make(map[string][]float64, len(corpus))
	for i, text := range corpus {
		cache[text] = vecs[i]
	}
	c.mu.Lock()
	c.cache = cache
	c.mu.Unlock()
	c.log.Debug("corpus embedded", "texts", len(corpus), "dimension", c.Dimension())
	return nil
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(text string) ([]float64, error) {
	c.mu.RLock()
	v, ok := c.cache[text]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}
	vecs, err := c.embed([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) embed(texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	// Timeout applies per batch.
	batches := (len(texts) + c.batchSize - 1) / c.batchSize
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout*time.Duration(batches))
	defer cancel()

	raw, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrNoEmbedding, len(raw), len(texts))
	}

	vecs := make([][]float64, len(raw))
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range raw {
		if len(r) == 0 {
			return nil, ErrNoEmbedding
		}
		if c.dimension == 0 {
			c.dimension = len(r)
		}
		if len(r) != c.dimension {
			return nil, fmt.Errorf("embedding dimension changed from %d to %d", c.dimension, len(r))
		}
		v := make([]float64, len(r))
		for j, x := range r {
			v[j] = float64(x)
		}
		vecs[i] = v
	}
	return vecs, nil
}
