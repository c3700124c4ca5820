package devserver

import (
	"fmt"
	"log/slog"
	"time"

	"localrag/internal/chunker"
	"localrag/internal/config"
	"localrag/internal/embedding/openai"
	"localrag/internal/embedding/tfidf"
	"localrag/internal/retrieval"
	"localrag/internal/summarizer"
	"localrag/internal/vectorstore/memory"
	"localrag/internal/vectorstore/qdrant"
)

// NewIndex assembles the retrieval pipeline selected by cfg.
func NewIndex(cfg config.DevServerConfig, logger *slog.Logger) (*retrieval.Index, error) {
	var embedder retrieval.Embedder
	switch cfg.Embedder.Type {
	case "tfidf":
		embedder = tfidf.NewEmbedder()
	case "openai":
		o := cfg.Embedder.OpenAI
		if o == nil {
			o = &config.OpenAIEmbedderConfig{}
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   o.BaseURL,
			APIKeyEnv: o.APIKeyEnv,
			Model:     o.Model,
			Timeout:   time.Duration(o.TimeoutSecs) * time.Second,
			BatchSize: o.BatchSize,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		embedder = client
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}

	var store retrieval.VectorStore
	switch cfg.VectorStore.Type {
	case "memory":
		store = memory.NewStorage()
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil || q.URL == "" {
			return nil, fmt.Errorf("qdrant vector store needs a url")
		}
		store = qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.VectorStore.Type)
	}

	var composer retrieval.Composer
	switch cfg.Generator.Type {
	case "", "extractive":
		composer = summarizer.NewQueryComposer(cfg.AnswerSentences)
	case "openai":
		g := cfg.Generator.OpenAI
		if g == nil {
			g = &config.OpenAIGeneratorConfig{}
		}
		gen, err := summarizer.NewGenerator(summarizer.GeneratorConfig{
			BaseURL:   g.BaseURL,
			APIKeyEnv: g.APIKeyEnv,
			Model:     g.Model,
			Timeout:   time.Duration(g.TimeoutSecs) * time.Second,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		composer = gen
	default:
		return nil, fmt.Errorf("unknown generator type %q", cfg.Generator.Type)
	}

	return retrieval.NewIndex(
		chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences),
		embedder,
		store,
		composer,
		logger,
	), nil
}
