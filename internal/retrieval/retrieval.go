// Package retrieval holds the document model and the component interfaces of
// the development backend's index: chunking, embedding, vector storage and
// answer composition.
package retrieval

import "context"

// Document is one unit of ingested text. A PDF or TXT file is one document;
// every CSV row is its own document.
type Document struct {
	ID       string
	Source   string
	Content  string
	Metadata map[string]string
}

// Chunk is a searchable slice of a document.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Source     string
	Text       string
	Index      int
	Metadata   map[string]string
}

// SearchResult is a chunk and its similarity to the query.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Chunker splits a document into chunks.
type Chunker interface {
	Chunk(doc Document) ([]Chunk, error)
}

// Embedder maps text to vectors. Prepare must be called with the corpus
// before Embed.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(text string) ([]float64, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Init(dimension int) error
	Upsert(chunks []Chunk, vectors [][]float64) error
	Search(vector []float64, topK int) ([]SearchResult, error)
	Clear() error
}

// Composer turns retrieved chunks into an answer for a query.
type Composer interface {
	Compose(ctx context.Context, query string, results []SearchResult) (string, error)
}
