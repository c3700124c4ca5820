package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"localrag/internal/logging"
)

var (
	ErrNoDocuments = errors.New("no documents to index")
	ErrNotBuilt    = errors.New("index has not been built")
)

// DefaultTopK is used when a search asks for zero or fewer results.
const DefaultTopK = 5

// Index ties a chunker, embedder, vector store and composer together. It is
// safe for concurrent use; Build excludes searches while it runs.
type Index struct {
	mu       sync.RWMutex
	chunker  Chunker
	embedder Embedder
	store    VectorStore
	composer Composer
	chunks   []Chunk
	built    bool
	log      *slog.Logger
}

func NewIndex(chunker Chunker, embedder Embedder, store VectorStore, composer Composer, logger *slog.Logger) *Index {
	return &Index{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		composer: composer,
		log:      logging.OrDiscard(logger),
	}
}

// Build replaces the index contents with docs and returns the chunk count.
func (x *Index) Build(docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, ErrNoDocuments
	}
	var chunks []Chunk
	var texts []string
	for _, d := range docs {
		cs, err := x.chunker.Chunk(d)
		if err != nil {
			return 0, fmt.Errorf("chunk %s: %w", d.Source, err)
		}
		for _, c := range cs {
			chunks = append(chunks, c)
			texts = append(texts, c.Text)
		}
	}
	if len(chunks) == 0 {
		return 0, ErrNoDocuments
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.built = false
	if err := x.embedder.Prepare(texts); err != nil {
		return 0, err
	}
	if err := x.store.Init(x.embedder.Dimension()); err != nil {
		return 0, err
	}
	vectors := make([][]float64, len(chunks))
	for i := range chunks {
		vec, err := x.embedder.Embed(chunks[i].Text)
		if err != nil {
			return 0, err
		}
		vectors[i] = vec
	}
	if err := x.store.Clear(); err != nil {
		return 0, err
	}
	if err := x.store.Upsert(chunks, vectors); err != nil {
		return 0, err
	}
	x.chunks = chunks
	x.built = true
	x.log.Info("index built", "documents", len(docs), "chunks", len(chunks), "embedder", x.embedder.Name(), "dimension", x.embedder.Dimension())
	return len(chunks), nil
}

// Ready reports whether Build has succeeded.
func (x *Index) Ready() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.built
}

// Reset drops the index.
func (x *Index) Reset() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks = nil
	x.built = false
	return x.store.Clear()
}

// Search returns the topK chunks closest to query. A query with no known
// terms falls back to token overlap ranking.
func (x *Index) Search(query string, topK int) ([]SearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.built {
		return nil, ErrNotBuilt
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	vec, err := x.embedder.Embed(query)
	if err != nil {
		return nil, err
	}
	if isZero(vec) {
		return x.lexicalSearch(query, topK), nil
	}
	res, err := x.store.Search(vec, topK)
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		if r.Score > 1e-9 {
			return res, nil
		}
	}
	return x.lexicalSearch(query, topK), nil
}

// Answer searches and composes the results into a reply.
func (x *Index) Answer(ctx context.Context, query string, topK int) (string, error) {
	res, err := x.Search(query, topK)
	if err != nil {
		return "", err
	}
	return x.composer.Compose(ctx, query, res)
}

func (x *Index) lexicalSearch(query string, topK int) []SearchResult {
	qset := TokenSet(query)
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(x.chunks))
	for i, ch := range x.chunks {
		scores[i] = pair{i, ochiai(qset, TokenSet(ch.Text))}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]SearchResult, 0, topK)
	for _, p := range scores[:topK] {
		out = append(out, SearchResult{Chunk: x.chunks[p.idx], Score: p.score})
	}
	return out
}

// ochiai is |A∩B| / sqrt(|A||B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}

func isZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
