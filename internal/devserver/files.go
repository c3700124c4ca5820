package devserver

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"localrag/internal/retrieval"
)

const (
	kindPDF = "pdf"
	kindCSV = "csv"
	kindTXT = "txt"
)

var errNoHeader = errors.New("csv file has no header row")

// storedFile is one uploaded file. Content and Metadata are nil until a
// partition is set, which means every column is content.
type storedFile struct {
	Name        string
	Kind        string
	ContentType string
	Data        []byte
	Header      []string
	Content     []string
	Metadata    []string
}

// fileStore keeps uploads in memory in first-upload order. Re-uploading a
// name replaces the file and drops its partition.
type fileStore struct {
	mu    sync.RWMutex
	order []string
	files map[string]*storedFile
}

func newFileStore() *fileStore {
	return &fileStore{files: make(map[string]*storedFile)}
}

func kindOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return kindPDF
	case ".csv":
		return kindCSV
	case ".txt":
		return kindTXT
	}
	return ""
}

// newStoredFile classifies data by extension and reads the CSV header.
func newStoredFile(name, contentType string, data []byte) (*storedFile, error) {
	f := &storedFile{Name: name, Kind: kindOf(name), ContentType: contentType, Data: data}
	if f.Kind == kindCSV {
		header, err := csvHeader(data)
		if err != nil {
			return nil, err
		}
		f.Header = header
	}
	return f, nil
}

func (s *fileStore) put(files []*storedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range files {
		if _, ok := s.files[f.Name]; !ok {
			s.order = append(s.order, f.Name)
		}
		s.files[f.Name] = f
	}
}

func (s *fileStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// partition is one file's column assignment.
type partition struct {
	Filename    string   `json:"filename"`
	Columns     []string `json:"columns"`
	PageContent []string `json:"page_content"`
	Metadata    []string `json:"metadata"`
}

// setPartitions validates every partition before applying any of them.
func (s *fileStore) setPartitions(parts []partition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range parts {
		f, ok := s.files[p.Filename]
		if !ok {
			return fmt.Errorf("unknown file %q", p.Filename)
		}
		if f.Kind != kindCSV {
			return fmt.Errorf("file %q has no columns", p.Filename)
		}
		for _, col := range slices.Concat(p.PageContent, p.Metadata) {
			if !slices.Contains(f.Header, col) {
				return fmt.Errorf("file %q has no column %q", p.Filename, col)
			}
		}
	}
	for _, p := range parts {
		f := s.files[p.Filename]
		f.Content = nonNil(p.PageContent)
		f.Metadata = nonNil(p.Metadata)
	}
	return nil
}

// documents converts every stored file into retrieval documents.
func (s *fileStore) documents() ([]retrieval.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []retrieval.Document
	for _, name := range s.order {
		f := s.files[name]
		var (
			fileDocs []retrieval.Document
			err      error
		)
		switch f.Kind {
		case kindPDF:
			fileDocs, err = pdfDocuments(f)
		case kindCSV:
			fileDocs, err = csvDocuments(f)
		case kindTXT:
			fileDocs = []retrieval.Document{{ID: uuid.NewString(), Source: f.Name, Content: string(f.Data)}}
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

func newCSVReader(data []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

func csvHeader(data []byte) ([]string, error) {
	header, err := newCSVReader(data).Read()
	if errors.Is(err, io.EOF) {
		return nil, errNoHeader
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, nil
}

// csvDocuments turns each row into a document: content columns joined with
// spaces, metadata columns as metadata. Rows without content are skipped.
func csvDocuments(f *storedFile) ([]retrieval.Document, error) {
	r := newCSVReader(f.Data)
	if _, err := r.Read(); err != nil {
		return nil, err
	}
	content := f.Content
	if content == nil {
		content = f.Header
	}
	pos := make(map[string]int, len(f.Header))
	for i, h := range f.Header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	field := func(row []string, col string) string {
		if i := pos[col]; i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var docs []retrieval.Document
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		var parts []string
		for _, col := range content {
			if v := field(row, col); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) == 0 {
			continue
		}
		meta := map[string]string{"row": strconv.Itoa(line)}
		for _, col := range f.Metadata {
			meta[col] = field(row, col)
		}
		docs = append(docs, retrieval.Document{
			ID:       uuid.NewString(),
			Source:   f.Name,
			Content:  strings.Join(parts, " "),
			Metadata: meta,
		})
	}
	return docs, nil
}

// pdfDocuments returns one document per page with text.
func pdfDocuments(f *storedFile) (docs []retrieval.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(f.Data), int64(len(f.Data)))
	if err != nil {
		return nil, err
	}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, retrieval.Document{
			ID:       uuid.NewString(),
			Source:   f.Name,
			Content:  text,
			Metadata: map[string]string{"page": strconv.Itoa(i)},
		})
	}
	return docs, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
