package devserver

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"localrag/internal/retrieval"
)

type fileInfo struct {
	Filename string `json:"filename"`
	Filetype string `json:"filetype"`
}

type tabularFile struct {
	Filename string   `json:"filename"`
	Columns  []string `json:"columns"`
}

type uploadResponse struct {
	Message string        `json:"message"`
	Files   []fileInfo    `json:"files"`
	Columns []tabularFile `json:"columns,omitempty"`
}

type columnsRequest struct {
	Files []partition `json:"files"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type indexResponse struct {
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Files   int    `json:"files"`
	Indexed bool   `json:"indexed"`
}

// HandleUpload stores every part of the upload field. The batch is rejected
// whole if any file is unsupported or unreadable.
func (s *Server) HandleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest("expected a multipart form", err)
	}
	headers := form.File[s.uploadField]
	if len(headers) == 0 {
		return badRequest("no file provided", nil)
	}

	staged := make([]*storedFile, 0, len(headers))
	resp := uploadResponse{Message: "File saved"}
	for _, fh := range headers {
		if kindOf(fh.Filename) == "" {
			return unsupportedType(fh.Filename)
		}
		data, err := readPart(fh)
		if err != nil {
			return badRequest("could not read "+fh.Filename, err)
		}
		f, err := newStoredFile(fh.Filename, fh.Header.Get(echo.HeaderContentType), data)
		if err != nil {
			return badRequest("could not parse "+fh.Filename, err)
		}
		staged = append(staged, f)
		resp.Files = append(resp.Files, fileInfo{Filename: f.Name, Filetype: f.ContentType})
		if f.Kind == kindCSV {
			resp.Columns = append(resp.Columns, tabularFile{Filename: f.Name, Columns: f.Header})
		}
	}
	s.files.put(staged)
	s.log.Info("files uploaded", "count", len(staged), "tabular", len(resp.Columns))
	return c.JSON(http.StatusCreated, resp)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

// HandleSetColumns records the content/metadata split of tabular files.
func (s *Server) HandleSetColumns(c echo.Context) error {
	var req columnsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid JSON body", err)
	}
	if err := s.files.setPartitions(req.Files); err != nil {
		return badRequest("invalid column selection", err)
	}
	s.log.Info("columns set", "files", len(req.Files))
	return c.JSON(http.StatusOK, messageResponse{Message: "Columns set"})
}

// HandleCreateIndex rebuilds the index from every uploaded file.
func (s *Server) HandleCreateIndex(c echo.Context) error {
	if s.files.len() == 0 {
		return conflict("no files uploaded")
	}
	docs, err := s.files.documents()
	if err != nil {
		return unprocessable("could not read uploaded files", err)
	}
	n, err := s.index.Build(docs)
	if errors.Is(err, retrieval.ErrNoDocuments) {
		return unprocessable("uploaded files contain no text", err)
	}
	if err != nil {
		return internalError("could not build the index", err)
	}
	return c.JSON(http.StatusCreated, indexResponse{Message: "Vector database created", Chunks: n})
}

// HandleQuery answers the form field "query" from the index.
func (s *Server) HandleQuery(c echo.Context) error {
	q := strings.TrimSpace(c.FormValue("query"))
	if q == "" {
		return badRequest("query must not be empty", nil)
	}
	if !s.index.Ready() {
		return conflict("the vector database has not been created")
	}
	answer, err := s.index.Answer(c.Request().Context(), q, s.topK)
	if err != nil {
		return internalError("could not answer the query", err)
	}
	s.log.Debug("query answered", "query", q, "answer_len", len(answer))
	return c.JSON(http.StatusOK, messageResponse{Message: answer})
}

// HandleHealth reports liveness along with the staged file count and index state.
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Files: s.files.len(), Indexed: s.index.Ready()})
}
