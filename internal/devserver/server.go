// Package devserver is an in-memory implementation of the indexing backend
// for local runs and integration tests.
package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"localrag/internal/backend"
	"localrag/internal/logging"
	"localrag/internal/retrieval"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Addr        string
	TopK        int
	UploadField string
	BodyLimit   string
	Index       *retrieval.Index
	Logger      *slog.Logger
}

// Server serves the four backend endpoints over an in-memory file store and
// index.
type Server struct {
	echo        *echo.Echo
	addr        string
	topK        int
	uploadField string
	files       *fileStore
	index       *retrieval.Index
	log         *slog.Logger
}

// New builds a Server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		echo:        echo.New(),
		addr:        opts.Addr,
		topK:        opts.TopK,
		uploadField: opts.UploadField,
		files:       newFileStore(),
		index:       opts.Index,
		log:         logging.OrDiscard(opts.Logger),
	}
	if s.uploadField == "" {
		s.uploadField = backend.DefaultUploadField
	}
	bodyLimit := opts.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "64M"
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				s.log.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.log.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.BodyLimit(bodyLimit))
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.GET("/health", s.HandleHealth)
	e.POST(backend.PathUpload, s.HandleUpload)
	e.POST(backend.PathColumns, s.HandleSetColumns)
	e.POST(backend.PathCreateIndex, s.HandleCreateIndex)
	e.POST(backend.PathQuery, s.HandleQuery)
}

// Handler exposes the router for httptest servers.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("devserver listening", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("devserver shutting down")
		return s.echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
