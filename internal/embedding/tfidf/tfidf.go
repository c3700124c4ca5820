// Package tfidf is a corpus-fitted TF-IDF embedder.
package tfidf

import (
	"errors"
	"math"
	"slices"
	"sync"

	"localrag/internal/retrieval"
)

var (
	ErrEmptyCorpus = errors.New("empty corpus for TF-IDF prepare")
	ErrNoTokens    = errors.New("no tokens found in corpus")
	ErrNotPrepared = errors.New("tfidf embedder not prepared")
)

// Embedder builds its vocabulary from the corpus passed to Prepare. Vectors
// are L2 normalized so a dot product is the cosine similarity.
type Embedder struct {
	mu         sync.RWMutex
	vocabulary map[string]int
	idf        []float64
}

var _ retrieval.Embedder = (*Embedder)(nil)

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder { return &Embedder{} }

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare replaces the vocabulary and IDF values with ones fitted to corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}
	df := make(map[string]int)
	for _, text := range corpus {
		for tok := range retrieval.TokenSet(text) {
			df[tok]++
		}
	}
	if len(df) == 0 {
		return ErrNoTokens
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	slices.Sort(terms)

	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocab[term] = i
		// Smoothed IDF
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	e.mu.Lock()
	e.vocabulary, e.idf = vocab, idf
	e.mu.Unlock()
	return nil
}

// Dimension returns the vocabulary size, zero before Prepare.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.idf)
}

// Embed returns the TF-IDF vector of text. Text with no known terms yields
// the zero vector.
func (e *Embedder) Embed(text string) ([]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.vocabulary == nil {
		return nil, ErrNotPrepared
	}
	vec := make([]float64, len(e.idf))
	total := 0
	for _, tok := range retrieval.Tokens(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			vec[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for i, count := range vec {
		if count != 0 {
			vec[i] = count / float64(total) * e.idf[i]
		}
	}
	normalize(vec)
	return vec, nil
}

func normalize(vec []float64) {
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
}
