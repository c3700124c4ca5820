package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"localrag/internal/logging"
	"localrag/internal/retrieval"
)

// Defaults target a local Ollama server.
const (
	DefaultGeneratorBaseURL = "http://localhost:11434/v1"
	DefaultGeneratorModel   = "llama3.2"
)

const systemPrompt = "You are a helpful assistant. Answer the question based only on the provided context."

var ErrEmptyGeneration = errors.New("chat model returned no choices")

// GeneratorConfig configures a Generator. The API key is read from the
// environment variable named by APIKeyEnv.
type GeneratorConfig struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Generator answers a query with an OpenAI-compatible chat model, grounded on
// the retrieved chunks.
type Generator struct {
	client  llms.Model
	timeout time.Duration
	log     *slog.Logger
}

var _ retrieval.Composer = (*Generator)(nil)

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeneratorBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeneratorModel
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
	client, err := openai.New(
		openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(hc),
	)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}
	return &Generator{
		client:  client,
		timeout: cfg.Timeout,
		log:     logging.OrDiscard(cfg.Logger).With("component", "generator", "model", cfg.Model),
	}, nil
}

// Compose sends the question and the retrieved chunks, separated by blank
// lines, to the chat model at temperature 0.
func (g *Generator) Compose(ctx context.Context, query string, results []retrieval.SearchResult) (string, error) {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		if t := strings.TrimSpace(r.Chunk.Text); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return NoAnswer, nil
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf("Question: %s\nContext: %s", query, strings.Join(texts, "\n\n"))),
	}
	start := time.Now()
	resp, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyGeneration
	}
	answer := strings.TrimSpace(resp.Choices[0].Content)
	g.log.Debug("answer generated", "chunks", len(texts), "elapsed", time.Since(start))
	return answer, nil
}
