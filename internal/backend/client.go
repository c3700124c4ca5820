// Package backend is the HTTP client for the indexing and question answering
// service. Wire formats live here and nowhere else.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"localrag/internal/domain"
	"localrag/internal/logging"
)

// Endpoint paths of the backend.
const (
	PathUpload      = "/upload-file"
	PathColumns     = "/set-columns"
	PathCreateIndex = "/create-vector-database"
	PathQuery       = "/query"
)

// DefaultUploadField is the multipart field every uploaded file is sent under.
const DefaultUploadField = "file"

// Config configures the backend client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	UploadField string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client talks to the backend over HTTP.
type Client struct {
	baseURL     string
	uploadField string
	client      *http.Client
	log         *slog.Logger
}

// NewClient creates a client. A zero Timeout leaves calls unbounded; index
// creation can take minutes on a local model.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	field := cfg.UploadField
	if field == "" {
		field = DefaultUploadField
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		uploadField: field,
		client:      hc,
		log:         logging.OrDiscard(cfg.Logger),
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s %s failed: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("backend %s %s failed: %s: %s", e.Method, e.URL, e.Status, e.Body)
}

type tabularFile struct {
	Filename string   `json:"filename"`
	Columns  []string `json:"columns"`
}

type uploadResponse struct {
	Message string        `json:"message"`
	Columns []tabularFile `json:"columns"`
}

type partition struct {
	Filename    string   `json:"filename"`
	Columns     []string `json:"columns"`
	PageContent []string `json:"page_content"`
	Metadata    []string `json:"metadata"`
}

type columnsRequest struct {
	Files []partition `json:"files"`
}

type queryResponse struct {
	Message *string `json:"message"`
}

// Upload sends every file in one multipart request, each part under the same
// field name. The body is streamed from disk.
func (c *Client) Upload(ctx context.Context, files []domain.StagedFile) (domain.UploadResult, error) {
	if len(files) == 0 {
		return domain.UploadResult{}, errors.New("no files to upload")
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeFiles(mw, c.uploadField, files)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathUpload, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return domain.UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out uploadResponse
	if err := c.do(req, &out); err != nil {
		return domain.UploadResult{}, err
	}
	res := domain.UploadResult{}
	for _, tf := range out.Columns {
		res.Tabular = append(res.Tabular, domain.TabularFile{Filename: tf.Filename, Columns: tf.Columns})
	}
	return res, nil
}

func writeFiles(mw *multipart.Writer, field string, files []domain.StagedFile) error {
	for _, f := range files {
		if err := writeFile(mw, field, f); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(mw *multipart.Writer, field string, f domain.StagedFile) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer src.Close()
	part, err := mw.CreateFormFile(field, f.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("read %s: %w", f.Name, err)
	}
	return nil
}

// SetColumns sends the content/metadata partition of every tabular file.
func (c *Client) SetColumns(ctx context.Context, parts []domain.ColumnPartition) error {
	body := columnsRequest{Files: make([]partition, 0, len(parts))}
	for _, p := range parts {
		body.Files = append(body.Files, partition{
			Filename:    p.Filename,
			Columns:     nonNil(p.Columns),
			PageContent: nonNil(p.Content),
			Metadata:    nonNil(p.Metadata),
		})
	}
	return c.postJSON(ctx, PathColumns, body, nil)
}

// CreateIndex asks the backend to build the vector database.
func (c *Client) CreateIndex(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathCreateIndex, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Query submits q as the form field "query".
func (c *Client) Query(ctx context.Context, q string) (domain.Answer, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("query", q); err != nil {
		return domain.Answer{}, err
	}
	if err := mw.Close(); err != nil {
		return domain.Answer{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathQuery, &buf)
	if err != nil {
		return domain.Answer{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out queryResponse
	if err := c.do(req, &out); err != nil {
		return domain.Answer{}, err
	}
	if out.Message == nil {
		return domain.Answer{}, errors.New("backend query response has no message")
	}
	return domain.Answer{Message: *out.Message}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do executes req and decodes a JSON body into out when out is non-nil. An
// empty body leaves out untouched.
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("backend call", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{
			Method:     req.Method,
			URL:        req.URL.Path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
