// Package qdrant is a minimal REST client to a Qdrant collection.
package qdrant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"localrag/internal/retrieval"
)

var ErrInvalidDimension = errors.New("invalid dimension")

// pointNamespace derives stable point IDs from chunk IDs. Qdrant only accepts
// unsigned integers and UUIDs as IDs.
var pointNamespace = uuid.MustParse("6f1d3c0a-8a43-4f57-9d0e-4c1f2b7a9e55")

// Storage stores chunks in one collection using cosine distance.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

var _ retrieval.VectorStore = (*Storage)(nil)

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewStorage(cfg Config) *Storage {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "localrag"
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     hc,
	}
}

// Init recreates the collection empty with the given vector size.
func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}
	s.dimension = dimension
	return s.Clear()
}

// Clear drops the collection and, once the dimension is known, creates it
// again empty.
func (s *Storage) Clear() error {
	err := s.send(http.MethodDelete, s.collectionURL(""), nil, nil)
	var se *statusError
	if err != nil && !(errors.As(err, &se) && se.code == http.StatusNotFound) {
		return err
	}
	if s.dimension == 0 {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	return s.send(http.MethodPut, s.collectionURL(""), body, nil)
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (s *Storage) Upsert(chunks []retrieval.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	points := make([]point, len(chunks))
	for i, c := range chunks {
		points[i] = point{
			ID:     uuid.NewSHA1(pointNamespace, []byte(c.ChunkID)).String(),
			Vector: vectors[i],
			Payload: map[string]any{
				"document_id": c.DocumentID,
				"chunk_id":    c.ChunkID,
				"source":      c.Source,
				"index":       c.Index,
				"text":        c.Text,
				"metadata":    c.Metadata,
			},
		}
	}
	return s.send(http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
}

type searchResponse struct {
	Result []struct {
		Score   float64 `json:"score"`
		Payload struct {
			DocumentID string            `json:"document_id"`
			ChunkID    string            `json:"chunk_id"`
			Source     string            `json:"source"`
			Index      int               `json:"index"`
			Text       string            `json:"text"`
			Metadata   map[string]string `json:"metadata"`
		} `json:"payload"`
	} `json:"result"`
}

func (s *Storage) Search(vector []float64, topK int) ([]retrieval.SearchResult, error) {
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp searchResponse
	if err := s.send(http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]retrieval.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := r.Payload
		results = append(results, retrieval.SearchResult{
			Chunk: retrieval.Chunk{
				DocumentID: p.DocumentID,
				ChunkID:    p.ChunkID,
				Source:     p.Source,
				Index:      p.Index,
				Text:       p.Text,
				Metadata:   p.Metadata,
			},
			Score: r.Score,
		})
	}
	return results, nil
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

type statusError struct {
	method, url string
	code        int
	status      string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func (s *Storage) send(method, url string, body any, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
