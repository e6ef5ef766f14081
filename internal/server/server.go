// Package server exposes the tracker over a JSON HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"invoice-tracker/internal/async"
	"invoice-tracker/internal/export"
	"invoice-tracker/internal/extract"
	"invoice-tracker/internal/ingest"
	"invoice-tracker/internal/repository"
)

type Server struct {
	logger   *slog.Logger
	db       *repository.DB
	profiles repository.ProfileRepository
	receipts repository.ReceiptRepository
	jobs     repository.ExtractJobRepository
	ingestor ingest.Ingestor
	queue    async.Queue
	exporter *export.Service
	fields   extract.FieldExtractor

	uploadDir string

	mux  *http.ServeMux
	http *http.Server
}

type Deps struct {
	Logger   *slog.Logger
	DB       *repository.DB
	Profiles repository.ProfileRepository
	Receipts repository.ReceiptRepository
	Jobs     repository.ExtractJobRepository
	Ingestor ingest.Ingestor
	Queue    async.Queue
	Exporter *export.Service
	Fields   extract.FieldExtractor

	// UploadDir receives files posted to /v1/ingest/upload. Empty
	// disables the endpoint.
	UploadDir string
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{
		logger:    d.Logger,
		db:        d.DB,
		profiles:  d.Profiles,
		receipts:  d.Receipts,
		jobs:      d.Jobs,
		ingestor:  d.Ingestor,
		queue:     d.Queue,
		exporter:  d.Exporter,
		fields:    d.Fields,
		uploadDir: d.UploadDir,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// routes go most specific to least specific
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /v1/extract", s.handleExtract)
	s.mux.HandleFunc("POST /v1/ingest", s.handleIngest)
	s.mux.HandleFunc("POST /v1/ingest/upload", s.handleIngestUpload)

	s.mux.HandleFunc("GET /v1/profiles", s.handleListProfiles)
	s.mux.HandleFunc("POST /v1/profiles", s.handleCreateProfile)

	s.mux.HandleFunc("GET /v1/receipts/{id}", s.handleGetReceipt)
	s.mux.HandleFunc("GET /v1/receipts", s.handleListReceipts)

	s.mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("GET /v1/export.xlsx", s.handleExportXLSX)
}

// ServeHTTP implements http.Handler, for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", "addr", addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
