package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoice-tracker/constants"
	"invoice-tracker/internal/repository"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	Profiles repository.ProfileRepository
	Files    repository.ReceiptFileRepository
	Logger   *slog.Logger
}

func NewFSIngestor(p repository.ProfileRepository, f repository.ReceiptFileRepository, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{Profiles: p, Files: f, Logger: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, profileID uuid.UUID, path string) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return out, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	if _, err := i.Profiles.GetByID(ctx, profileID); err != nil {
		return out, fmt.Errorf("check profile: %w", err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return out, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return out, fmt.Errorf("stat: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return out, fmt.Errorf("hash: %w", err)
	}
	sum := h.Sum(nil)
	now := time.Now().UTC()

	row, dedup, err := i.Files.UpsertByHash(ctx, profileID, abs, ext, st.Size(), sum, now)
	if err != nil {
		return out, err
	}

	return IngestionResult{
		SourcePath:   row.SourcePath,
		FileID:       row.ID,
		Deduplicated: dedup,
		HashHex:      hex.EncodeToString(sum),
		FileExt:      row.FileExt,
		UploadedAt:   row.UploadedAt,
	}, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and
// calls IngestPath for each matching file. A bad file never aborts the
// walk; it is recorded in its result and the stats.
func (i *FSIngestor) IngestDirectory(
	ctx context.Context,
	profileID uuid.UUID,
	root string,
	skipHidden bool,
) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, profileID, path)
		if err != nil {
			i.Logger.Warn("ingest failed", "path", path, "error", err)
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	i.Logger.Info("directory ingest complete",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
