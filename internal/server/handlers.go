package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoice-tracker/internal/async"
	"invoice-tracker/internal/common"
	"invoice-tracker/internal/ingest"
)

const defaultCurrency = "USD"

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.HealthCheck(r.Context(), 2*time.Second); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("database unreachable: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Record     json.RawMessage `json:"record"`
	Confidence float32         `json:"confidence"`
	Engine     string          `json:"engine"`
}

// handleExtract runs the field extractor on caller-supplied text
// without persisting anything. Any text is accepted; unrecognizable
// input yields a record with absent fields, not an error.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	res, err := s.fields.ExtractFields(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, extractResponse{
		Record:     res.JSON,
		Confidence: res.Confidence,
		Engine:     res.Engine,
	})
}

type ingestRequest struct {
	ProfileID  string `json:"profile_id,omitempty"`
	Profile    string `json:"profile,omitempty"` // name, created on first use
	Path       string `json:"path,omitempty"`
	RootPath   string `json:"root_path,omitempty"`
	SkipHidden bool   `json:"skip_hidden"`
	Process    bool   `json:"process"`
}

type ingestResponse struct {
	Results []ingest.IngestionResult `json:"results"`
	Stats   *ingest.DirStats         `json:"stats,omitempty"`
	Queued  int                      `json:"queued"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if (req.Path == "") == (req.RootPath == "") {
		s.writeError(w, http.StatusBadRequest, errors.New("exactly one of path or root_path is required"))
		return
	}

	profileID, err := s.resolveProfile(r, req.ProfileID, req.Profile)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var resp ingestResponse
	if req.Path != "" {
		res, err := s.ingestor.IngestPath(r.Context(), profileID, req.Path)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		resp.Results = []ingest.IngestionResult{res}
	} else {
		results, stats, err := s.ingestor.IngestDirectory(r.Context(), profileID, req.RootPath, req.SkipHidden)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		resp.Results = results
		resp.Stats = &stats
	}

	if req.Process && s.queue != nil {
		for _, res := range resp.Results {
			if res.Err != "" || res.FileID == uuid.Nil {
				continue
			}
			_ = s.queue.Enqueue(r.Context(), async.Job{
				FileID:      res.FileID,
				SubmittedAt: time.Now().UTC(),
			})
			resp.Queued++
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// maxUploadBytes caps a single multipart upload; scans larger than this
// are not receipts.
const maxUploadBytes = 32 << 20

// handleIngestUpload accepts a multipart "file" part, writes it under
// the upload directory and ingests it like any on-disk file. Form
// fields mirror the JSON ingest request: profile_id or profile, and
// process=true to queue extraction.
func (s *Server) handleIngestUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploadDir == "" {
		s.writeError(w, http.StatusNotImplemented, errors.New("uploads are not configured"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	profileID, err := s.resolveProfile(r, r.FormValue("profile_id"), r.FormValue("profile"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	part, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("file part is required: %w", err))
		return
	}
	defer part.Close()

	dst, err := s.saveUpload(part, hdr.Filename)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	res, err := s.ingestor.IngestPath(r.Context(), profileID, dst)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	resp := ingestResponse{Results: []ingest.IngestionResult{res}}
	if r.FormValue("process") == "true" && s.queue != nil && res.Err == "" && res.FileID != uuid.Nil {
		_ = s.queue.Enqueue(r.Context(), async.Job{
			FileID:      res.FileID,
			SubmittedAt: time.Now().UTC(),
		})
		resp.Queued = 1
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// saveUpload writes the part to a uniquely named file in the upload
// directory, keeping the original base name for later display.
func (s *Server) saveUpload(part io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(s.uploadDir, uuid.NewString()+"-"+filepath.Base(name))
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, part); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("write upload: %w", err)
	}
	return dst, nil
}

type createProfileRequest struct {
	Name            string `json:"name"`
	DefaultCurrency string `json:"default_currency,omitempty"`
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if req.DefaultCurrency == "" {
		req.DefaultCurrency = defaultCurrency
	}
	p, err := s.profiles.Create(r.Context(), req.Name, req.DefaultCurrency)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	ps, err := s.profiles.List(r.Context())
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ps)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid receipt id: %w", err))
		return
	}
	rec, err := s.receipts.GetByID(r.Context(), id)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	profileID, err := uuid.Parse(r.URL.Query().Get("profile_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid profile_id: %w", err))
		return
	}
	from, to, err := parseWindow(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	recs, err := s.receipts.ListReceipts(r.Context(), profileID, from, to)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid job id: %w", err))
		return
	}
	job, file, err := s.jobs.GetWithFile(r.Context(), id)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job, "file": file})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	profileID, err := uuid.Parse(r.URL.Query().Get("profile_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid profile_id: %w", err))
		return
	}
	from, to, err := parseWindow(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	b, err := s.exporter.ExportReceiptsXLSX(r.Context(), profileID, from, to)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="receipts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) resolveProfile(r *http.Request, id, name string) (uuid.UUID, error) {
	switch {
	case id != "":
		pid, err := uuid.Parse(id)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid profile_id: %w", err)
		}
		if _, err := s.profiles.GetByID(r.Context(), pid); err != nil {
			return uuid.Nil, fmt.Errorf("profile %s: %w", pid, err)
		}
		return pid, nil
	case name != "":
		p, err := s.profiles.GetOrCreateByName(r.Context(), name, defaultCurrency)
		if err != nil {
			return uuid.Nil, err
		}
		return p.ID, nil
	default:
		return uuid.Nil, errors.New("profile_id or profile is required")
	}
}

// parseWindow reads optional from/to query params, as 2006-01-02 or RFC3339.
func parseWindow(r *http.Request) (*time.Time, *time.Time, error) {
	parse := func(key string) (*time.Time, error) {
		v := r.URL.Query().Get(key)
		if v == "" {
			return nil, nil
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return &t, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %q", key, v)
		}
		return &t, nil
	}
	from, err := parse("from")
	if err != nil {
		return nil, nil, err
	}
	to, err := parse("to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	} else {
		s.logger.Warn("request rejected", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeAppError maps domain errors onto HTTP statuses.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, common.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}
